package scribe

import (
	"github.com/go-telegram/bot/models"
)

// Outcome is what the webhook should do with an update.
type Outcome int

const (
	// OutcomeNoop means the update is ignored without side effects.
	OutcomeNoop Outcome = iota
	// OutcomeCommand means the message carries a bot command.
	OutcomeCommand
	// OutcomeGreeting means new members joined the chat.
	OutcomeGreeting
	// OutcomeStore means the message is tagged and should be stored.
	OutcomeStore
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeCommand:
		return "command"
	case OutcomeGreeting:
		return "greeting"
	case OutcomeStore:
		return "store"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Outcome Outcome
	// Reason explains a no-op, for logs.
	Reason string
	// Command is the first bot_command entity when Outcome is OutcomeCommand.
	Command models.MessageEntity
	// Hashtags is set when Outcome is OutcomeStore; never empty then.
	Hashtags map[string]struct{}
}

func noop(reason string) Classification {
	return Classification{Outcome: OutcomeNoop, Reason: reason}
}

// Classify routes an update. Checks run in priority order and the first
// match wins, so a command that also carries hashtags is a command.
// maxTextLength bounds stored messages in UTF-16 code units.
func Classify(update *models.Update, maxTextLength int) (Classification, error) {
	if update == nil || update.Message == nil {
		return noop("no message in update"), nil
	}
	msg := update.Message
	hasText := msg.Text != ""
	hasMembers := len(msg.NewChatMembers) > 0
	hasEntities := len(msg.Entities) > 0

	if !hasText && !hasMembers {
		return noop("no text or new members in message"), nil
	}
	if !hasEntities && !hasMembers {
		return noop("no entities or new members in message"), nil
	}

	if cmd, ok := firstEntity(msg.Entities, models.MessageEntityTypeBotCommand); ok {
		return Classification{Outcome: OutcomeCommand, Command: cmd}, nil
	}

	if hasMembers {
		return Classification{Outcome: OutcomeGreeting}, nil
	}

	hashtags, err := ExtractHashtags(msg.Text, msg.Entities)
	if err != nil {
		return Classification{}, err
	}
	if len(hashtags) == 0 {
		return noop("no hashtags in message"), nil
	}
	if TextLength(msg.Text) > maxTextLength {
		return noop("message text too long"), nil
	}
	return Classification{Outcome: OutcomeStore, Hashtags: hashtags}, nil
}
