package noteservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/models"
)

// ListSort selects the ListNotes order.
type ListSort string

const (
	ListByTitle      ListSort = "title"
	ListByCreatedAt  ListSort = "createdAt"
	ListByModifiedAt ListSort = "modifiedAt"
)

// ListFilter narrows ListNotes. DateFrom and DateTo apply to createdAt when
// sorting by creation, otherwise to modifiedAt; notes without that date
// pass the date filter.
type ListFilter struct {
	Limit      int
	Tags       []string
	PathPrefix string
	SortBy     ListSort
	DateFrom   string
	DateTo     string
}

// NoteSummary is one ListNotes entry.
type NoteSummary struct {
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"createdAt,omitempty"`
	ModifiedAt string   `json:"modifiedAt,omitempty"`
}

// NoteList is the ListNotes result. Total counts every match before the
// limit is applied.
type NoteList struct {
	Notes []NoteSummary `json:"notes"`
	Total int           `json:"total"`
}

func (l *NoteList) Message() string {
	if len(l.Notes) == 0 {
		return "No notes found matching the specified criteria."
	}
	return fmt.Sprintf("Found %d notes (showing %d)", l.Total, len(l.Notes))
}

// ListNotes pages through the content store and returns matching notes.
// Records that cannot be read or decoded are skipped.
func (s *Service) ListNotes(ctx context.Context, f ListFilter) (*NoteList, error) {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	f.Limit = min(max(f.Limit, 1), MaxListLimit)

	from, err := parseBound(f.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("noteservice: dateFrom %q: %w", f.DateFrom, ErrInvalidDate)
	}
	to, err := parseBound(f.DateTo)
	if err != nil {
		return nil, fmt.Errorf("noteservice: dateTo %q: %w", f.DateTo, ErrInvalidDate)
	}

	prefix := models.ContentKey(strings.TrimPrefix(f.PathPrefix, "/"))
	notes := []NoteSummary{}
	err = contentstore.Walk(ctx, s.deps.Content, prefix, func(o models.ObjectInfo) error {
		rec, err := s.deps.Content.Get(ctx, o.Key)
		if err != nil {
			return nil
		}
		var doc models.Document
		if json.Unmarshal(rec.Value, &doc) != nil {
			return nil
		}
		if !doc.HasAnyTag(f.Tags) {
			return nil
		}
		date := doc.ModifiedAt
		if f.SortBy == ListByCreatedAt {
			date = doc.CreatedAt
		}
		if !inRange(date, from, to) {
			return nil
		}
		p := models.PathFromKey(o.Key)
		title := doc.Title
		if title == "" {
			title = titleFromPath(p)
		}
		tags := doc.Tags
		if tags == nil {
			tags = []string{}
		}
		notes = append(notes, NoteSummary{
			Path:       p,
			Title:      title,
			Tags:       tags,
			CreatedAt:  doc.CreatedAt,
			ModifiedAt: doc.ModifiedAt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("noteservice: list: %w", err)
	}

	sortNotes(notes, f.SortBy)
	list := &NoteList{Total: len(notes), Notes: notes}
	if len(notes) > f.Limit {
		list.Notes = notes[:f.Limit]
	}
	return list, nil
}

func sortNotes(notes []NoteSummary, by ListSort) {
	sort.SliceStable(notes, func(i, j int) bool {
		switch by {
		case ListByCreatedAt:
			return notes[i].CreatedAt > notes[j].CreatedAt
		case ListByModifiedAt:
			return notes[i].ModifiedAt > notes[j].ModifiedAt
		default:
			return strings.ToLower(notes[i].Title) < strings.ToLower(notes[j].Title)
		}
	})
}

func parseBound(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return models.ParseTime(s)
}

func inRange(date string, from, to time.Time) bool {
	if date == "" || (from.IsZero() && to.IsZero()) {
		return true
	}
	t, err := models.ParseTime(date)
	if err != nil {
		return true
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
