package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/scribrbot/internal/logger"
)

// ErrNoHashtags is returned when saving a message without hashtags.
var ErrNoHashtags = errors.New("message has no hashtags")

// Store defines the message store operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage appends a message and its hashtags. It never updates an existing row.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessagesByChatAndHashtag returns every message in chatID tagged with
	// hashtag, in insertion order. The result may be empty.
	GetMessagesByChatAndHashtag(ctx context.Context, chatID int64, hashtag string) ([]*Message, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore implements Store backed by sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store on a connected, migrated sqlx.DB.
func NewStore(db *sqlx.DB, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}
	return &sqlxStore{
		db:     db,
		logger: log.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.ChatID == 0 {
		return fmt.Errorf("message must have a non-zero chat_id")
	}
	if len(message.Hashtags) == 0 {
		return ErrNoHashtags
	}
	if message.Direction == "" {
		message.Direction = DirectionIn
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	result, err := tx.NamedExecContext(ctx, `
        INSERT INTO messages (chat_id, unix_timestamp, direction, text, user_first_name, raw, created_at)
        VALUES (:chat_id, :unix_timestamp, :direction, :text, :user_first_name, :raw, :created_at);
    `, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "chat_id", message.ChatID, "error", err)
		return fmt.Errorf("failed to save message (chat %d): %w", message.ChatID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted message id: %w", err)
	}
	message.ID = id

	hashtags := append([]string(nil), message.Hashtags...)
	sort.Strings(hashtags)
	for _, tag := range hashtags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO message_hashtags (message_id, chat_id, hashtag) VALUES (?, ?, ?);`,
			id, message.ChatID, tag,
		); err != nil {
			return fmt.Errorf("failed to save hashtag %q for message %d: %w", tag, id, err)
		}
	}
	message.Hashtags = hashtags

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message saved successfully",
		"chat_id", message.ChatID, "message_id", message.ID, "hashtags", hashtags)
	return nil
}

func (s *sqlxStore) GetMessagesByChatAndHashtag(ctx context.Context, chatID int64, hashtag string) ([]*Message, error) {
	var messages []*Message
	err := s.db.SelectContext(ctx, &messages, `
        SELECT m.id, m.chat_id, m.unix_timestamp, m.direction, m.text, m.user_first_name, m.raw, m.created_at
        FROM messages m
        JOIN message_hashtags h ON h.message_id = m.id
        WHERE h.chat_id = ? AND h.hashtag = ?
        ORDER BY m.id ASC;
    `, chatID, hashtag)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error querying messages by hashtag", "chat_id", chatID, "hashtag", hashtag, "error", err)
		return nil, fmt.Errorf("failed to query messages (chat %d, hashtag %q): %w", chatID, hashtag, err)
	}
	if len(messages) == 0 {
		return messages, nil
	}

	if err := s.loadHashtags(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *sqlxStore) loadHashtags(ctx context.Context, messages []*Message) error {
	byID := make(map[int64]*Message, len(messages))
	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	query, args, err := sqlx.In(
		`SELECT message_id, hashtag FROM message_hashtags WHERE message_id IN (?) ORDER BY message_id, hashtag;`, ids)
	if err != nil {
		return fmt.Errorf("failed to build hashtag query: %w", err)
	}

	var rows []struct {
		MessageID int64  `db:"message_id"`
		Hashtag   string `db:"hashtag"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load hashtags: %w", err)
	}
	for _, row := range rows {
		if m, ok := byID[row.MessageID]; ok {
			m.Hashtags = append(m.Hashtags, row.Hashtag)
		}
	}
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running SQL maintenance")
	for _, stmt := range []string{"PRAGMA optimize;", "VACUUM;"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("maintenance statement %q failed: %w", stmt, err)
		}
	}
	return nil
}
