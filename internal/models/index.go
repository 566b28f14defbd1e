package models

// PreviewLength bounds the body prefix copied into vector metadata.
const PreviewLength = 1000

// EntryMetadata is the denormalized copy of a document stored next to its
// vector. Extra holds pass-through front-matter keys (string or []string).
type EntryMetadata struct {
	Path       string         `json:"path"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Tags       []string       `json:"tags"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	ModifiedAt string         `json:"modifiedAt,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// HasAnyTag reports whether m carries at least one of tags. An empty
// filter matches everything.
func (m EntryMetadata) HasAnyTag(tags []string) bool {
	return anyTag(m.Tags, tags)
}

// IndexEntry is the vector-store record for one document.
type IndexEntry struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"vector"`
	Metadata EntryMetadata `json:"metadata"`
}

// Match is one nearest-neighbour hit returned by a vector store.
type Match struct {
	ID       string        `json:"id"`
	Score    float64       `json:"score"`
	Metadata EntryMetadata `json:"metadata"`
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
