// Package noteservice is the facade the REST, MCP and CLI surfaces share.
// It coordinates the indexing pipeline, search engine, reconciler and stats
// aggregator over one pair of stores.
package noteservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/index"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/reconcile"
	"github.com/starford/vaultvec/internal/safepath"
	"github.com/starford/vaultvec/internal/search"
	"github.com/starford/vaultvec/internal/stats"
	"github.com/starford/vaultvec/internal/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	// OpenSearchLimit is the fixed result count of OpenSearch.
	OpenSearchLimit = 10

	DefaultVaultName = "ObsidianVault"
)

// ErrNoSelector is returned by GetNote when neither a path nor a search
// term is given.
var ErrNoSelector = errors.New("noteservice: either path or searchTerm must be provided")

// ErrInvalidDate is returned by ListNotes for an unparseable date bound.
var ErrInvalidDate = errors.New("invalid date")

// Deps are the components a Service coordinates. Source may be nil when the
// service only receives documents over the API.
type Deps struct {
	Pipeline   *index.Pipeline
	Search     *search.Engine
	Reconciler *reconcile.Reconciler
	Stats      *stats.Aggregator
	Content    contentstore.Store
	Source     storage.Source
}

// Options tune the surface-facing behaviour.
type Options struct {
	VaultName    string
	OpenMinScore float64
}

// Service coordinates note operations.
type Service struct {
	deps Deps
	opts Options
}

// NewService creates a new note service.
func NewService(deps Deps, opts Options) *Service {
	if opts.VaultName == "" {
		opts.VaultName = DefaultVaultName
	}
	return &Service{deps: deps, opts: opts}
}

// VaultName is the name used in obsidian:// links.
func (s *Service) VaultName() string { return s.opts.VaultName }

// HasSource reports whether the service can enumerate the vault itself.
func (s *Service) HasSource() bool { return s.deps.Source != nil }

// Index indexes documents supplied by the caller.
func (s *Service) Index(ctx context.Context, docs []models.Document) (*index.Result, error) {
	return s.deps.Pipeline.SyncDocuments(ctx, docs)
}

// Sync indexes every note in the vault.
func (s *Service) Sync(ctx context.Context) (*index.Result, error) {
	return s.deps.Pipeline.SyncAll(ctx)
}

// Search delegates to the search engine.
func (s *Service) Search(ctx context.Context, req search.Request) (*search.Response, error) {
	return s.deps.Search.Search(ctx, req)
}

// Connections delegates to the search engine.
func (s *Service) Connections(ctx context.Context, reference string, limit int, minScore *float64) (*search.Response, error) {
	return s.deps.Search.Connections(ctx, reference, limit, minScore)
}

// Stats reports store totals.
func (s *Service) Stats(ctx context.Context) (*stats.Stats, error) {
	return s.deps.Stats.Stats(ctx)
}

// ListIndexed returns every stored note path.
func (s *Service) ListIndexed(ctx context.Context) ([]string, error) {
	return s.deps.Reconciler.ListIndexed(ctx)
}

// Orphans returns stored notes whose vault file is gone.
func (s *Service) Orphans(ctx context.Context) ([]string, error) {
	if s.deps.Source == nil {
		return nil, fmt.Errorf("noteservice: orphans need a vault path: %w", apperr.ErrConfigurationMissing)
	}
	return s.deps.Reconciler.ScanOrphans(ctx, s.deps.Source)
}

// Cleanup purges paths, or every current orphan when paths is empty.
// Callers are responsible for confirmation.
func (s *Service) Cleanup(ctx context.Context, paths []string) (*reconcile.PurgeResult, error) {
	if len(paths) == 0 {
		orphans, err := s.Orphans(ctx)
		if err != nil {
			return nil, err
		}
		paths = orphans
	}
	return s.deps.Reconciler.Purge(ctx, paths)
}

// GetNote loads a note by path, or the best semantic match for searchTerm
// when path is empty.
func (s *Service) GetNote(ctx context.Context, notePath, searchTerm string) (*models.Document, error) {
	switch {
	case notePath != "":
		return s.load(ctx, notePath)
	case searchTerm != "":
		zero := 0.0
		resp, err := s.deps.Search.Search(ctx, search.Request{Query: searchTerm, Limit: 1, MinScore: &zero})
		if err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			return nil, fmt.Errorf("noteservice: no note matches %q: %w", searchTerm, apperr.ErrNotFound)
		}
		return s.load(ctx, resp.Results[0].Path)
	default:
		return nil, ErrNoSelector
	}
}

func (s *Service) load(ctx context.Context, raw string) (*models.Document, error) {
	clean, err := safepath.Sanitize(raw)
	if err != nil {
		return nil, err
	}
	rec, err := s.deps.Content.Get(ctx, models.ContentKey(clean))
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(rec.Value, &doc); err != nil {
		return nil, fmt.Errorf("noteservice: decode %s: %w", clean, err)
	}
	if doc.Path == "" {
		doc.Path = clean
	}
	if doc.Title == "" {
		doc.Title = titleFromPath(clean)
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return &doc, nil
}

// Document is one search or fetch hit in the connector format.
type Document struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	URL      string         `json:"url"`
	Metadata *FetchMetadata `json:"metadata,omitempty"`
}

// FetchMetadata accompanies a fetched document.
type FetchMetadata struct {
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"createdAt,omitempty"`
	ModifiedAt string   `json:"modifiedAt,omitempty"`
	Path       string   `json:"path"`
}

// OpenSearch runs the connector-style search: a single query string, ten
// results at most, previews as text and the note path as id.
func (s *Service) OpenSearch(ctx context.Context, query string) ([]Document, error) {
	minScore := s.opts.OpenMinScore
	resp, err := s.deps.Search.Search(ctx, search.Request{Query: query, Limit: OpenSearchLimit, MinScore: &minScore})
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(resp.Results))
	for _, r := range resp.Results {
		text := r.Preview
		switch {
		case text == "":
			text = "No preview available"
		case len([]rune(text)) == search.PreviewLength:
			text += "..."
		}
		title := r.Title
		if title == "" {
			title = titleFromPath(r.Path)
		}
		out = append(out, Document{ID: r.Path, Title: title, Text: text, URL: s.OpenURL(r.Path)})
	}
	return out, nil
}

// Fetch resolves an id returned by OpenSearch (the note path) to the full
// note.
func (s *Service) Fetch(ctx context.Context, id string) (*Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:    doc.Path,
		Title: doc.Title,
		Text:  doc.Body,
		URL:   s.OpenURL(doc.Path),
		Metadata: &FetchMetadata{
			Tags:       doc.Tags,
			CreatedAt:  doc.CreatedAt,
			ModifiedAt: doc.ModifiedAt,
			Path:       doc.Path,
		},
	}, nil
}

// OpenURL links to notePath in the Obsidian app.
func (s *Service) OpenURL(notePath string) string {
	return "obsidian://open?vault=" + escape(s.opts.VaultName) + "&file=" + escape(notePath)
}

// escape percent-encodes like encodeURIComponent: spaces become %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func titleFromPath(p string) string {
	stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if stem == "" || stem == "." || stem == "/" {
		return "Untitled"
	}
	return stem
}
