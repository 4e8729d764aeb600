// Package scribe classifies inbound Telegram updates, stores hashtag-tagged
// messages and dispatches bot commands.
package scribe

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
)

// ErrEntityOutOfRange is returned when an entity does not fit inside the message text.
var ErrEntityOutOfRange = errors.New("entity out of range")

// Telegram measures entity offsets and lengths in UTF-16 code units.

// TextLength returns the length of text in UTF-16 code units.
func TextLength(text string) int {
	return len(utf16.Encode([]rune(text)))
}

// entityBody returns the entity span without its leading marker ('#' or '/').
func entityBody(units []uint16, e models.MessageEntity) (string, error) {
	start, end := e.Offset+1, e.Offset+e.Length
	if e.Offset < 0 || e.Length < 1 || end > len(units) {
		return "", fmt.Errorf("%w: %s at offset %d length %d in text of %d units",
			ErrEntityOutOfRange, e.Type, e.Offset, e.Length, len(units))
	}
	return string(utf16.Decode(units[start:end])), nil
}

// EntityBody returns text[offset+1 : offset+length] for e.
func EntityBody(text string, e models.MessageEntity) (string, error) {
	return entityBody(utf16.Encode([]rune(text)), e)
}

// ExtractHashtags returns the set of hashtags (without '#') annotated by
// hashtag entities. Duplicates collapse.
func ExtractHashtags(text string, entities []models.MessageEntity) (map[string]struct{}, error) {
	hashtags := make(map[string]struct{})
	var units []uint16
	for _, e := range entities {
		if e.Type != models.MessageEntityTypeHashtag {
			continue
		}
		if units == nil {
			units = utf16.Encode([]rune(text))
		}
		tag, err := entityBody(units, e)
		if err != nil {
			return nil, err
		}
		hashtags[tag] = struct{}{}
	}
	return hashtags, nil
}

// SortedHashtags returns the set as a sorted slice.
func SortedHashtags(set map[string]struct{}) []string {
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// firstEntity returns the first entity of type t, in message order.
func firstEntity(entities []models.MessageEntity, t models.MessageEntityType) (models.MessageEntity, bool) {
	for _, e := range entities {
		if e.Type == t {
			return e, true
		}
	}
	return models.MessageEntity{}, false
}
