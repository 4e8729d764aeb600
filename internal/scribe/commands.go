package scribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/scribrbot/internal/config"
)

// Command tokens, matched case-sensitively after the leading '/'.
const (
	CommandSummarize = "summ"
	CommandStart     = "start"
	CommandHelp      = "help"
)

// Summarizer produces a document for every message in a chat tagged with a hashtag.
type Summarizer interface {
	// Generate returns the document address, or ok=false when nothing matched.
	Generate(ctx context.Context, chatID int64, hashtag string) (address string, ok bool, err error)
}

// Notifier delivers a reply to a chat and reports whether it was accepted.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) bool
}

// CommandDispatcher runs bot commands. Every dispatched command sends exactly one reply.
type CommandDispatcher struct {
	summarizer  Summarizer
	notifier    Notifier
	messages    config.MessagesConfig
	botUsername string
	logger      *slog.Logger
}

// NewCommandDispatcher creates a dispatcher. botUsername may be empty.
func NewCommandDispatcher(summarizer Summarizer, notifier Notifier, messages config.MessagesConfig, botUsername string, log *slog.Logger) *CommandDispatcher {
	return &CommandDispatcher{
		summarizer:  summarizer,
		notifier:    notifier,
		messages:    messages,
		botUsername: botUsername,
		logger:      log.With("component", "commands"),
	}
}

// Dispatch parses the command marked by entity, runs it and sends the reply.
// It returns the reply text. Store faults are returned before any reply is sent.
func (d *CommandDispatcher) Dispatch(ctx context.Context, msg *models.Message, entity models.MessageEntity) (string, error) {
	token, err := EntityBody(msg.Text, entity)
	if err != nil {
		return "", err
	}
	token = d.stripBotSuffix(token)
	chatID := msg.Chat.ID
	log := d.logger.With("chat_id", chatID, "command", token)

	var reply string
	switch token {
	case CommandSummarize:
		reply, err = d.summarize(ctx, msg)
		if err != nil {
			log.ErrorContext(ctx, "Summarize failed", "error", err)
			return "", err
		}
	case CommandStart, CommandHelp:
		reply = d.messages.Help
	default:
		log.InfoContext(ctx, "Unrecognized command")
		reply = d.messages.UnknownCommand
	}

	if !d.notifier.Send(ctx, chatID, reply) {
		log.WarnContext(ctx, "Command reply was not delivered")
	}
	log.InfoContext(ctx, "Handled command")
	return reply, nil
}

func (d *CommandDispatcher) summarize(ctx context.Context, msg *models.Message) (string, error) {
	hashtags, err := ExtractHashtags(msg.Text, msg.Entities)
	if err != nil {
		return "", err
	}
	if len(hashtags) == 0 {
		return d.messages.NeedHashtag, nil
	}

	// Only one hashtag is summarized: the lexicographically smallest.
	hashtag := SortedHashtags(hashtags)[0]

	address, ok, err := d.summarizer.Generate(ctx, msg.Chat.ID, hashtag)
	if err != nil {
		return "", fmt.Errorf("summarize #%s: %w", hashtag, err)
	}
	if !ok {
		return fmt.Sprintf(d.messages.NoMessages, hashtag), nil
	}
	return fmt.Sprintf(d.messages.SummaryReady, address), nil
}

// stripBotSuffix turns "summ@thisbot" into "summ". A suffix naming another
// bot is kept so the token stays unmatched.
func (d *CommandDispatcher) stripBotSuffix(token string) string {
	name, target, found := strings.Cut(token, "@")
	if !found || d.botUsername == "" {
		return token
	}
	if strings.EqualFold(target, strings.TrimPrefix(d.botUsername, "@")) {
		return name
	}
	return token
}
