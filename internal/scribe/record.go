package scribe

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/scribrbot/internal/database"
)

// BuildRecord turns a classified message into a storable record. Leading '/'
// characters are stripped from the text; raw is the original update JSON.
func BuildRecord(msg *models.Message, raw []byte, hashtags map[string]struct{}) *database.Message {
	firstName := ""
	if msg.From != nil {
		firstName = msg.From.FirstName
	}
	return &database.Message{
		ChatID:        msg.Chat.ID,
		UnixTimestamp: int64(msg.Date),
		Direction:     database.DirectionIn,
		Text:          strings.TrimLeft(msg.Text, "/"),
		UserFirstName: firstName,
		Raw:           string(raw),
		Hashtags:      SortedHashtags(hashtags),
	}
}
