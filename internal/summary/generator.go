package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/edgard/scribrbot/internal/database"
	"github.com/edgard/scribrbot/internal/docstore"
	"github.com/edgard/scribrbot/internal/logger"
)

// ContentType of rendered summaries.
const ContentType = "text/html; charset=utf-8"

// MessageQuerier finds stored messages by chat and hashtag.
type MessageQuerier interface {
	GetMessagesByChatAndHashtag(ctx context.Context, chatID int64, hashtag string) ([]*database.Message, error)
}

// Digester writes a short digest of the messages. Optional.
type Digester interface {
	Digest(ctx context.Context, hashtag string, messages []*database.Message) (string, error)
}

// Generator queries, renders and publishes summaries. Nothing is cached:
// every call re-reads the store and overwrites the previous document.
type Generator struct {
	store    MessageQuerier
	docs     docstore.Store
	renderer *Renderer
	digester Digester
	logger   *slog.Logger
}

// NewGenerator creates a Generator. digester may be nil.
func NewGenerator(store MessageQuerier, docs docstore.Store, renderer *Renderer, digester Digester, log *slog.Logger) *Generator {
	if log == nil {
		log = logger.Discard()
	}
	return &Generator{
		store:    store,
		docs:     docs,
		renderer: renderer,
		digester: digester,
		logger:   log.With("component", "summary"),
	}
}

// Key is the document key for a chat and hashtag.
func Key(chatID int64, hashtag string) string {
	return "summaries/" + strconv.FormatInt(chatID, 10) + "/" + hashtag
}

// Generate publishes the summary of hashtag in chatID and returns its public
// address. ok is false, and nothing is written, when no message matches.
func (g *Generator) Generate(ctx context.Context, chatID int64, hashtag string) (string, bool, error) {
	log := g.logger.With("chat_id", chatID, "hashtag", hashtag)

	records, err := g.store.GetMessagesByChatAndHashtag(ctx, chatID, hashtag)
	if err != nil {
		return "", false, fmt.Errorf("query messages: %w", err)
	}
	if len(records) == 0 {
		log.InfoContext(ctx, "No messages to summarize")
		return "", false, nil
	}

	digest := g.digest(ctx, log, hashtag, records)

	doc, err := g.renderer.Render(chatID, hashtag, records, digest)
	if err != nil {
		return "", false, err
	}

	address, err := g.docs.Put(ctx, Key(chatID, hashtag), doc, ContentType, true)
	if err != nil {
		return "", false, fmt.Errorf("store summary: %w", err)
	}

	log.InfoContext(ctx, "Published summary", "messages", len(records), "address", address)
	return address, true, nil
}

// digest failures only cost the digest paragraph.
func (g *Generator) digest(ctx context.Context, log *slog.Logger, hashtag string, records []*database.Message) string {
	if g.digester == nil {
		return ""
	}
	text, err := g.digester.Digest(ctx, hashtag, records)
	if err != nil {
		log.WarnContext(ctx, "Digest generation failed, rendering without it", "error", err)
		return ""
	}
	return text
}
