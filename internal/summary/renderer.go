// Package summary renders and publishes hashtag summary documents.
package summary

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/edgard/scribrbot/internal/database"
	"github.com/edgard/scribrbot/internal/sanitize"
)

//go:embed templates/summary.html.tmpl
var templateFS embed.FS

const defaultTemplate = "templates/summary.html.tmpl"

// TimeLayout is how message timestamps are printed in a summary.
const TimeLayout = "Mon, 02 Jan 2006 15:04:05 MST"

// Page is the data passed to the summary template.
type Page struct {
	Hashtag string
	ChatID  int64
	// Digest is sanitized HTML rendered from the model's markdown.
	Digest  template.HTML
	Entries []Entry
}

// Entry is one rendered message.
type Entry struct {
	FirstName string
	Text      string
	Time      string
	ISOTime   string
}

// Renderer expands the summary template. It is safe for concurrent use.
type Renderer struct {
	tmpl   *template.Template
	loc    *time.Location
	digest *sanitize.Policy
}

// LoadTemplate parses the template at path, or the embedded default when path is empty.
func LoadTemplate(path string) (*template.Template, error) {
	if path == "" {
		tmpl, err := template.ParseFS(templateFS, defaultTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded summary template: %w", err)
		}
		return tmpl, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary template %s: %w", path, err)
	}
	tmpl, err := template.New(filepath.Base(path)).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary template %s: %w", path, err)
	}
	return tmpl, nil
}

// NewRenderer creates a renderer printing timestamps in loc.
func NewRenderer(tmpl *template.Template, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{tmpl: tmpl, loc: loc, digest: sanitize.NewDigestPolicy()}
}

// Render builds the HTML document for records, in the order given.
// html/template escapes the message text; digest is markdown.
func (r *Renderer) Render(chatID int64, hashtag string, records []*database.Message, digest string) ([]byte, error) {
	page := Page{
		Hashtag: hashtag,
		ChatID:  chatID,
		Digest:  r.digest.HTML(digest),
		Entries: make([]Entry, 0, len(records)),
	}
	for _, rec := range records {
		sent := rec.SentAt().In(r.loc)
		page.Entries = append(page.Entries, Entry{
			FirstName: rec.UserFirstName,
			Text:      rec.Text,
			Time:      sent.Format(TimeLayout),
			ISOTime:   sent.Format(time.RFC3339),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("failed to render summary for #%s: %w", hashtag, err)
	}
	return buf.Bytes(), nil
}
