// Package models defines the domain types shared by the sync, retrieval and
// reconciliation pipelines.
package models

import (
	"strings"
	"time"
)

// TimeLayout is the fixed-width UTC form used for createdAt/modifiedAt so
// that lexicographic order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Document is one parsed note.
type Document struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Body        string         `json:"content"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	CreatedAt   string         `json:"createdAt,omitempty"`
	ModifiedAt  string         `json:"modifiedAt,omitempty"`
}

// EmbeddingText is the text sent to the embedding provider for d.
func (d Document) EmbeddingText() string {
	return d.Title + "\n\n" + d.Body
}

// HasAnyTag reports whether d carries at least one of tags.
func (d Document) HasAnyTag(tags []string) bool {
	return anyTag(d.Tags, tags)
}

// FormatTime renders t in TimeLayout. The zero time renders as "".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts RFC 3339 timestamps and plain dates (2006-01-02).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func anyTag(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
