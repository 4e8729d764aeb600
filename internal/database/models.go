package database

import "time"

// DirectionIn marks a message received from a chat.
const DirectionIn = "In"

// Message is a stored inbound chat message that carried at least one hashtag.
// Records are append-only.
type Message struct {
	ID            int64     `db:"id"`
	ChatID        int64     `db:"chat_id"`
	UnixTimestamp int64     `db:"unix_timestamp"`
	Direction     string    `db:"direction"`
	Text          string    `db:"text"`
	UserFirstName string    `db:"user_first_name"`
	Raw           string    `db:"raw"` // original update JSON, kept for audit
	CreatedAt     time.Time `db:"created_at"`

	// Hashtags lives in message_hashtags; sorted, without the leading '#'.
	Hashtags []string `db:"-"`
}

// SentAt returns the platform timestamp of the message.
func (m *Message) SentAt() time.Time {
	return time.Unix(m.UnixTimestamp, 0)
}
