// Package index keeps the vector index and the content store in step with
// the vault: batched sync of documents and the file watcher that drives it.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/checksum"
	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/embedding"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/parser"
	"github.com/starford/vaultvec/internal/safepath"
	"github.com/starford/vaultvec/internal/storage"
	"github.com/starford/vaultvec/internal/vectorstore"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 100 * time.Millisecond
)

// EventCallback is called after an index change.
// kind is one of "indexed", "purged".
type EventCallback func(kind string, path string)

// Config tunes the batch loop.
type Config struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Pipeline embeds documents into the vector store and mirrors them into the
// content store. Batches run strictly one after another.
type Pipeline struct {
	embedder embedding.Embedder
	vectors  vectorstore.Store
	content  contentstore.Store
	source   storage.Source
	logger   *slog.Logger
	cfg      Config
	cb       EventCallback
}

// NewPipeline wires a pipeline. source may be nil when only SyncDocuments
// is used.
func NewPipeline(
	embedder embedding.Embedder,
	vectors vectorstore.Store,
	content contentstore.Store,
	source storage.Source,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	return &Pipeline{
		embedder: embedder,
		vectors:  vectors,
		content:  content,
		source:   source,
		logger:   logger,
		cfg:      cfg,
	}
}

// OnEvent registers cb for "indexed" events. Call before the first sync.
func (p *Pipeline) OnEvent(cb EventCallback) {
	p.cb = cb
}

// Result summarizes one sync run.
type Result struct {
	Total       int           `json:"total"`
	Indexed     int           `json:"indexed"`
	Updated     int           `json:"updated"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	FailedPaths []string      `json:"failedPaths,omitempty"`
	Duration    time.Duration `json:"duration"`

	failed map[string]struct{}
}

// SuccessRate is the indexed share of attempted documents, in percent.
func (r *Result) SuccessRate() float64 {
	attempted := r.Indexed + r.Failed
	if attempted == 0 {
		return 0
	}
	return float64(r.Indexed) / float64(attempted) * 100
}

// Message renders the run as one human-readable line.
func (r *Result) Message() string {
	return fmt.Sprintf("Indexed %d of %d notes (content: %d updated, %d unchanged, %d failed)",
		r.Indexed, r.Total, r.Updated, r.Skipped, r.Failed)
}

func (r *Result) fail(path string) {
	if r.failed == nil {
		r.failed = make(map[string]struct{})
	}
	if _, ok := r.failed[path]; ok {
		return
	}
	r.failed[path] = struct{}{}
	r.Failed++
	r.FailedPaths = append(r.FailedPaths, path)
}

// SyncAll enumerates the source and syncs every document in it.
func (p *Pipeline) SyncAll(ctx context.Context) (*Result, error) {
	if p.source == nil {
		return nil, fmt.Errorf("index: sync all: %w", apperr.ErrConfigurationMissing)
	}
	paths, err := p.source.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	return p.SyncPaths(ctx, paths)
}

// SyncPaths reads, parses and indexes paths from the source enumerator.
// Paths that sanitize to the same note are synced once.
func (p *Pipeline) SyncPaths(ctx context.Context, paths []string) (*Result, error) {
	if p.source == nil {
		return nil, fmt.Errorf("index: sync paths: %w", apperr.ErrConfigurationMissing)
	}
	res := &Result{}
	var (
		raws   []string
		cleans []string
		seen   = make(map[string]struct{}, len(paths))
	)
	for _, raw := range paths {
		clean, err := safepath.Sanitize(raw)
		if err != nil {
			p.logger.Warn("index: skip document", slog.String("path", raw), slog.String("error", err.Error()))
			res.fail(raw)
			continue
		}
		if _, dup := seen[clean]; dup {
			p.logger.Debug("index: duplicate path", slog.String("path", raw), slog.String("note", clean))
			continue
		}
		seen[clean] = struct{}{}
		raws = append(raws, raw)
		cleans = append(cleans, clean)
	}
	res.Total = len(raws) + res.Failed

	return p.run(ctx, res, len(raws), func(ctx context.Context, start, end int, res *Result) []models.Document {
		docs := make([]models.Document, 0, end-start)
		for i := start; i < end; i++ {
			doc, err := p.load(ctx, raws[i], cleans[i])
			if err != nil {
				p.logger.Warn("index: skip document", slog.String("path", raws[i]), slog.String("error", err.Error()))
				res.fail(raws[i])
				continue
			}
			docs = append(docs, doc)
		}
		return docs
	})
}

// SyncDocuments indexes documents that were parsed elsewhere. When several
// documents sanitize to the same path the last one wins.
func (p *Pipeline) SyncDocuments(ctx context.Context, docs []models.Document) (*Result, error) {
	res := &Result{}
	unique := make([]models.Document, 0, len(docs))
	pos := make(map[string]int, len(docs))
	for _, doc := range docs {
		clean, err := safepath.Sanitize(doc.Path)
		if err != nil {
			p.logger.Warn("index: skip document", slog.String("path", doc.Path), slog.String("error", err.Error()))
			res.fail(doc.Path)
			continue
		}
		doc.Path = clean
		if i, dup := pos[clean]; dup {
			unique[i] = doc
			continue
		}
		pos[clean] = len(unique)
		unique = append(unique, doc)
	}
	res.Total = len(unique) + res.Failed

	return p.run(ctx, res, len(unique), func(_ context.Context, start, end int, _ *Result) []models.Document {
		return unique[start:end]
	})
}

type batchLoader func(ctx context.Context, start, end int, res *Result) []models.Document

// run processes total items in batches and accumulates into res.
func (p *Pipeline) run(ctx context.Context, res *Result, total int, load batchLoader) (*Result, error) {
	started := time.Now()
	defer func() { res.Duration = time.Since(started) }()

	batches := (total + p.cfg.BatchSize - 1) / p.cfg.BatchSize
	for i := 0; i < batches; i++ {
		if i > 0 && p.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(p.cfg.BatchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := i * p.cfg.BatchSize
		end := min(start+p.cfg.BatchSize, total)
		docs := load(ctx, start, end, res)
		if len(docs) == 0 {
			continue
		}
		if err := p.indexBatch(ctx, docs, res); err != nil {
			p.logger.Error("index: run aborted",
				slog.Int("batch", i+1),
				slog.Int("batches", batches),
				slog.String("error", err.Error()))
			return res, err
		}
		p.storeContent(ctx, docs, res)
		p.logger.Debug("index: batch done", slog.Int("batch", i+1), slog.Int("batches", batches))
	}

	p.logger.Info("index: sync done",
		slog.Int("total", res.Total),
		slog.Int("indexed", res.Indexed),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, nil
}

// indexBatch embeds and upserts docs. It returns an error only when the run
// must stop; recoverable failures are recorded on res.
func (p *Pipeline) indexBatch(ctx context.Context, docs []models.Document, res *Result) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.EmbeddingText()
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		err = embedding.CheckBatch(vectors, len(docs), p.embedder.Dimensions())
	}
	if err == nil {
		entries := make([]models.IndexEntry, len(docs))
		for i, d := range docs {
			entries[i] = buildEntry(d, vectors[i])
		}
		err = p.vectors.Upsert(ctx, entries)
	}
	if errors.Is(err, apperr.ErrDimensionMismatch) {
		return fmt.Errorf("index: batch: %w", err)
	}
	if err != nil {
		p.logger.Error("index: batch failed", slog.Int("documents", len(docs)), slog.String("error", err.Error()))
		for _, d := range docs {
			res.fail(d.Path)
		}
		return nil
	}

	res.Indexed += len(docs)
	for _, d := range docs {
		if p.cb != nil {
			p.cb("indexed", d.Path)
		}
	}
	return nil
}

// storeContent writes each document to the content store unless the stored
// checksum already matches.
func (p *Pipeline) storeContent(ctx context.Context, docs []models.Document, res *Result) {
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			p.logger.Warn("index: encode document", slog.String("path", d.Path), slog.String("error", err.Error()))
			res.fail(d.Path)
			continue
		}
		sum := checksum.Sum(data)
		key := models.ContentKey(d.Path)

		info, err := p.content.Head(ctx, key)
		switch {
		case err == nil && info.Checksum == sum:
			res.Skipped++
			continue
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			p.logger.Warn("index: head failed", slog.String("path", d.Path), slog.String("error", err.Error()))
		}

		if err := p.content.Put(ctx, key, data, sum); err != nil {
			p.logger.Warn("index: store content", slog.String("path", d.Path), slog.String("error", err.Error()))
			res.fail(d.Path)
			continue
		}
		res.Updated++
	}
}

// load reads the note under its on-disk name raw and stores it under clean,
// the sanitized key. The source does its own root-escape check on raw.
func (p *Pipeline) load(ctx context.Context, raw, clean string) (models.Document, error) {
	rd, err := p.source.ReadDocument(ctx, raw)
	if err != nil {
		return models.Document{}, err
	}
	res := parser.Parse(rd.Data, raw)
	if res.Diagnostic != nil {
		p.logger.Warn("index: front-matter ignored", slog.String("path", clean), slog.String("error", res.Diagnostic.Error()))
	}
	return models.Document{
		Path:        clean,
		Title:       res.Title,
		Body:        res.Body,
		Tags:        res.Tags,
		Frontmatter: res.Frontmatter,
		CreatedAt:   models.FormatTime(rd.CreatedAt),
		ModifiedAt:  models.FormatTime(rd.ModifiedAt),
	}, nil
}

func buildEntry(d models.Document, vector []float32) models.IndexEntry {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.IndexEntry{
		ID:     checksum.PathID(d.Path),
		Vector: vector,
		Metadata: models.EntryMetadata{
			Path:       d.Path,
			Title:      d.Title,
			Content:    models.Truncate(d.Body, models.PreviewLength),
			Tags:       tags,
			CreatedAt:  d.CreatedAt,
			ModifiedAt: d.ModifiedAt,
			Extra:      extraMetadata(d.Frontmatter),
		},
	}
}
