// Package telegram wraps the go-telegram/bot client used to reply to chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/scribrbot/internal/logger"
)

// NewTelegramBot creates a bot client. bot.New calls getMe, so a bad token
// fails here, at start-up.
func NewTelegramBot(token string, log *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	log.Info("Telegram bot instance created successfully", "token_prefix", prefix+"...")
	return b, nil
}

// MessageSender is the part of *bot.Bot the Notifier uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier delivers text replies to chats. Sends are synchronous and not retried.
type Notifier struct {
	sender MessageSender
	logger *slog.Logger
}

// NewNotifier creates a Notifier on top of sender, usually a *bot.Bot.
func NewNotifier(sender MessageSender, log *slog.Logger) *Notifier {
	if log == nil {
		log = logger.Discard()
	}
	return &Notifier{
		sender: sender,
		logger: log.With("component", "notifier"),
	}
}

// Send delivers text to chatID and reports whether Telegram accepted it.
// A failure is logged, never returned: the reply is best effort.
func (n *Notifier) Send(ctx context.Context, chatID int64, text string) bool {
	msg, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		n.logger.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
		return false
	}
	if msg == nil {
		n.logger.WarnContext(ctx, "Telegram returned no message for send", "chat_id", chatID)
		return false
	}
	n.logger.DebugContext(ctx, "Message sent", "chat_id", chatID, "message_id", msg.ID,
		"text_preview", logger.Truncate(text, 50))
	return true
}
