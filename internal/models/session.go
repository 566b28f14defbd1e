package models

// SessionState is the bookkeeping a long-lived client session carries
// between calls. It is a plain value: operations take it and return the
// updated copy.
type SessionState struct {
	LastSearchQuery   string `json:"lastSearchQuery,omitempty"`
	SearchCount       int    `json:"searchCount"`
	TotalNotesIndexed int    `json:"totalNotesIndexed"`
}

// WithSearch records a search for query.
func (s SessionState) WithSearch(query string) SessionState {
	s.LastSearchQuery = query
	s.SearchCount++
	return s
}

// WithIndexed adds n indexed notes to the running total.
func (s SessionState) WithIndexed(n int) SessionState {
	s.TotalNotesIndexed += n
	return s
}
