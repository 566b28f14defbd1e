// Package search answers semantic queries against the vector index, with
// optional freshness rescoring and content hydration.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/embedding"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/vectorstore"
)

// PreviewLength bounds the preview returned with each result.
const PreviewLength = 200

// SortBy selects the result order.
type SortBy string

const (
	SortRelevance  SortBy = "relevance"
	SortCreatedAt  SortBy = "createdAt"
	SortModifiedAt SortBy = "modifiedAt"
)

// ParseSortBy maps free text onto a SortBy, defaulting to relevance.
func ParseSortBy(s string) SortBy {
	switch SortBy(s) {
	case SortCreatedAt, SortModifiedAt:
		return SortBy(s)
	default:
		return SortRelevance
	}
}

// Request describes one search. A zero Limit means DefaultLimit; a nil
// MinScore means the engine default.
type Request struct {
	Query          string
	Limit          int
	MinScore       *float64
	Tags           []string
	SortBy         SortBy
	IncludeContent bool
}

// Result is one scored note.
type Result struct {
	ID         string   `json:"id"`
	Score      float64  `json:"score"`
	Path       string   `json:"path"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
	Preview    string   `json:"preview"`
	Content    string   `json:"content,omitempty"`
	CreatedAt  string   `json:"createdAt,omitempty"`
	ModifiedAt string   `json:"modifiedAt,omitempty"`
}

// Response is the outcome of Search or Connections.
type Response struct {
	Query     string   `json:"query"`
	Freshness int      `json:"freshness,omitempty"`
	MinScore  float64  `json:"minScore"`
	Results   []Result `json:"results"`
}

func (r *Response) Message() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("No notes found matching %q with minimum score %.2f.", r.Query, r.MinScore)
	}
	return fmt.Sprintf("Found %d notes matching %q", len(r.Results), r.Query)
}

// Options configures an Engine.
type Options struct {
	MinScore         float64
	FreshnessEnabled bool
}

// Engine runs searches. It holds no per-request state.
type Engine struct {
	embedder embedding.Embedder
	vectors  vectorstore.Store
	content  contentstore.Store
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an engine. content may be nil, which disables hydration.
func New(embedder embedding.Embedder, vectors vectorstore.Store, content contentstore.Store, opts Options, logger *slog.Logger) *Engine {
	opts.MinScore = ClampMinScore(opts.MinScore, DefaultMinScore)
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		content:  content,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Search embeds the query once, filters by score and tags, applies the
// freshness boost when the query asks for it and sorts.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	limit = ClampLimit(limit, MaxLimit)
	minScore := e.opts.MinScore
	if req.MinScore != nil {
		minScore = ClampMinScore(*req.MinScore, e.opts.MinScore)
	}
	level, query := ParseFreshness(req.Query)

	matches, err := e.query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Score < minScore || !m.Metadata.HasAnyTag(req.Tags) {
			continue
		}
		kept = append(kept, m)
	}

	if e.opts.FreshnessEnabled && level >= 3 {
		e.boost(kept, level)
	}
	sortMatches(kept, req.SortBy)

	resp := &Response{Query: query, Freshness: level, MinScore: minScore, Results: make([]Result, 0, len(kept))}
	for _, m := range kept {
		r := toResult(m)
		if req.IncludeContent {
			r.Content = e.hydrate(ctx, m.Metadata.Path)
		}
		resp.Results = append(resp.Results, r)
	}
	return resp, nil
}

// Connections finds notes related to reference, excluding the note whose
// title or path equals reference. Filtering happens before truncation.
func (e *Engine) Connections(ctx context.Context, reference string, limit int, minScore *float64) (*Response, error) {
	if limit == 0 {
		limit = DefaultConnectionsLimit
	}
	limit = ClampLimit(limit, MaxConnectionsLimit)
	threshold := DefaultConnectionsMinScore
	if minScore != nil {
		threshold = ClampMinScore(*minScore, DefaultConnectionsMinScore)
	}

	matches, err := e.query(ctx, reference, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &Response{Query: reference, MinScore: threshold, Results: []Result{}}
	for _, m := range matches {
		if m.Score < threshold || m.Metadata.Title == reference || m.Metadata.Path == reference {
			continue
		}
		resp.Results = append(resp.Results, toResult(m))
		if len(resp.Results) == limit {
			break
		}
	}
	return resp, nil
}

func (e *Engine) query(ctx context.Context, text string, topK int) ([]models.Match, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	if err := embedding.CheckVector(vec, e.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	matches, err := e.vectors.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search: query vectors: %w", err)
	}
	return matches, nil
}

// boost multiplies the score of matches modified inside the level's window
// and re-sorts by the boosted score.
func (e *Engine) boost(matches []models.Match, level int) {
	cutoff := e.now().AddDate(0, 0, -freshnessWindowDays(level))
	factor := freshnessFactor(level)
	for i := range matches {
		modified, err := models.ParseTime(matches[i].Metadata.ModifiedAt)
		if err != nil || !modified.After(cutoff) {
			continue
		}
		matches[i].Score = min(1.0, matches[i].Score*factor)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}

// hydrate loads the full body for path. Failures are logged and yield "".
func (e *Engine) hydrate(ctx context.Context, path string) string {
	if e.content == nil {
		return ""
	}
	rec, err := e.content.Get(ctx, models.ContentKey(path))
	if err != nil {
		e.logger.Debug("search: hydrate failed", slog.String("path", path), slog.String("error", err.Error()))
		return ""
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Value, &doc); err != nil {
		e.logger.Debug("search: decode failed", slog.String("path", path), slog.String("error", err.Error()))
		return ""
	}
	return doc.Body
}

func sortMatches(matches []models.Match, by SortBy) {
	var key func(m models.Match) string
	switch by {
	case SortCreatedAt:
		key = func(m models.Match) string { return m.Metadata.CreatedAt }
	case SortModifiedAt:
		key = func(m models.Match) string { return m.Metadata.ModifiedAt }
	default:
		return
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return key(matches[i]) > key(matches[j])
	})
}

func toResult(m models.Match) Result {
	tags := m.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	return Result{
		ID:         m.ID,
		Score:      m.Score,
		Path:       m.Metadata.Path,
		Title:      m.Metadata.Title,
		Tags:       tags,
		Preview:    models.Truncate(m.Metadata.Content, PreviewLength),
		CreatedAt:  m.Metadata.CreatedAt,
		ModifiedAt: m.Metadata.ModifiedAt,
	}
}
