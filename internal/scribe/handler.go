package scribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/scribrbot/internal/config"
	"github.com/edgard/scribrbot/internal/database"
	"github.com/edgard/scribrbot/internal/logger"
)

// Terminal status markers returned by Handle. They are invocation results,
// never sent to a chat.
const (
	StatusNothingToDo = "Nothing for me to do here"
	StatusStored      = "ScribrBot, out"
	StatusGreeted     = "Greeted new members"
	StatusCommand     = "Handled command"
)

// ErrMalformedEvent is returned when the payload is not a JSON update.
var ErrMalformedEvent = errors.New("malformed event")

// MessageStore appends tagged messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, message *database.Message) error
}

// HandlerDeps are the process-wide collaborators of the webhook handler,
// built once at start-up.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      MessageStore
	Summarizer Summarizer
	Notifier   Notifier
}

// WebhookHandler processes one inbound update per call. It keeps no state
// between calls.
type WebhookHandler struct {
	store      MessageStore
	commands   *CommandDispatcher
	greeter    *Greeter
	maxTextLen int
	logger     *slog.Logger
}

// NewWebhookHandler wires the handler from deps.
func NewWebhookHandler(deps HandlerDeps) *WebhookHandler {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	cfg := deps.Config
	return &WebhookHandler{
		store:      deps.Store,
		commands:   NewCommandDispatcher(deps.Summarizer, deps.Notifier, cfg.Messages, cfg.Telegram.BotUsername, log),
		greeter:    NewGreeter(deps.Notifier, cfg.Messages.Welcome, log),
		maxTextLen: cfg.Summary.MaxTextLength,
		logger:     log.With("component", "webhook"),
	}
}

// Handle decodes raw as a Telegram update and processes it.
func (h *WebhookHandler) Handle(ctx context.Context, raw []byte) (string, error) {
	var update models.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return h.HandleUpdate(ctx, &update, raw)
}

// HandleUpdate classifies update and runs the matching branch. raw is stored
// with the record as the original event.
func (h *WebhookHandler) HandleUpdate(ctx context.Context, update *models.Update, raw []byte) (string, error) {
	if update == nil {
		return StatusNothingToDo, nil
	}
	log := h.logger.With("update_id", update.ID)

	c, err := Classify(update, h.maxTextLen)
	if err != nil {
		log.ErrorContext(ctx, "Failed to classify update", "error", err)
		return "", err
	}
	log = log.With("outcome", c.Outcome.String())

	switch c.Outcome {
	case OutcomeCommand:
		if _, err := h.commands.Dispatch(ctx, update.Message, c.Command); err != nil {
			return "", err
		}
		return StatusCommand, nil

	case OutcomeGreeting:
		if !h.greeter.Greet(ctx, update.Message) {
			return StatusNothingToDo, nil
		}
		return StatusGreeted, nil

	case OutcomeStore:
		record := BuildRecord(update.Message, raw, c.Hashtags)
		if err := h.store.SaveMessage(ctx, record); err != nil {
			log.ErrorContext(ctx, "Failed to store message", "chat_id", record.ChatID, "error", err)
			return "", fmt.Errorf("store message: %w", err)
		}
		log.InfoContext(ctx, "Stored tagged message",
			"chat_id", record.ChatID, "hashtags", record.Hashtags,
			"text_preview", logger.Truncate(record.Text, 50))
		return StatusStored, nil

	default:
		log.DebugContext(ctx, "Ignoring update", "reason", c.Reason)
		return StatusNothingToDo, nil
	}
}
