package scribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot/models"
)

// Greeter welcomes new chat members.
type Greeter struct {
	notifier Notifier
	welcome  string
	logger   *slog.Logger
}

// NewGreeter creates a Greeter. welcome must contain one %s for the names.
func NewGreeter(notifier Notifier, welcome string, log *slog.Logger) *Greeter {
	return &Greeter{
		notifier: notifier,
		welcome:  welcome,
		logger:   log.With("component", "greeter"),
	}
}

// Greet sends one combined welcome for all new members. No members, no message.
func (g *Greeter) Greet(ctx context.Context, msg *models.Message) bool {
	if len(msg.NewChatMembers) == 0 {
		return false
	}

	names := make([]string, 0, len(msg.NewChatMembers))
	for _, member := range msg.NewChatMembers {
		names = append(names, member.FirstName)
	}
	joined := strings.Join(names, ", ")

	delivered := g.notifier.Send(ctx, msg.Chat.ID, fmt.Sprintf(g.welcome, joined))
	g.logger.InfoContext(ctx, "Greeted new members", "chat_id", msg.Chat.ID, "members", joined, "delivered", delivered)
	return true
}
