package api

import (
	"github.com/starford/vaultvec/internal/index"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/noteservice"
	"github.com/starford/vaultvec/internal/reconcile"
	"github.com/starford/vaultvec/internal/search"
	"github.com/starford/vaultvec/internal/stats"
)

// IndexRequest is the request body for POST /index.
type IndexRequest struct {
	Notes []models.Document `json:"notes" validate:"required"`
}

// IndexResponse reports one indexing run.
type IndexResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Result  *index.Result `json:"result"`
}

// SearchRequest is the request body for POST /search. Limit and MinScore
// accept numbers or numeric strings; invalid values fall back to defaults.
type SearchRequest struct {
	Query         string   `json:"query" example:"project roadmap --QDF=4" validate:"required"`
	Limit         any      `json:"limit,omitempty" example:"10"`
	MinScore      any      `json:"minScore,omitempty" example:"0.7"`
	Tags          []string `json:"tags,omitempty"`
	SortBy        string   `json:"sortBy,omitempty" example:"relevance"`
	ReturnContent bool     `json:"returnContent,omitempty"`
}

// ConnectionsRequest is the request body for POST /connections.
type ConnectionsRequest struct {
	Note     string `json:"note" example:"Project Plan" validate:"required"`
	Limit    any    `json:"limit,omitempty" example:"10"`
	MinScore any    `json:"minScore,omitempty" example:"0.6"`
}

// SearchResponse wraps search and connection results.
type SearchResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Query     string          `json:"query"`
	Freshness int             `json:"freshness,omitempty"`
	Results   []search.Result `json:"results"`
	Count     int             `json:"count"`
}

// StatsResponse wraps store statistics.
type StatsResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Stats   *stats.Stats `json:"stats"`
}

// FilesResponse lists note paths (GET /list-indexed, GET /orphans).
type FilesResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Files   []string `json:"files"`
	Count   int      `json:"count"`
}

// CleanupRequest is the request body for POST /cleanup. Without Files every
// current orphan is purged.
type CleanupRequest struct {
	Confirm bool     `json:"confirm" validate:"required"`
	Files   []string `json:"files,omitempty"`
}

// CleanupResponse reports a purge.
type CleanupResponse struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message"`
	DeletedCount int                    `json:"deletedCount"`
	Result       *reconcile.PurgeResult `json:"result"`
}

// NoteListResponse wraps GET /notes.
type NoteListResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message"`
	Notes   []noteservice.NoteSummary `json:"notes"`
	Total   int                       `json:"total" example:"42"`
}
