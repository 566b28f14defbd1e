// Package reconcile finds index entries whose source note is gone and
// removes them from both stores.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/vaultvec/internal/checksum"
	"github.com/starford/vaultvec/internal/contentstore"
	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/safepath"
	"github.com/starford/vaultvec/internal/storage"
	"github.com/starford/vaultvec/internal/vectorstore"
)

// Reconciler compares the content store against the source and purges
// orphans. It performs no confirmation; callers gate Purge.
type Reconciler struct {
	vectors vectorstore.Store
	content contentstore.Store
	logger  *slog.Logger
}

func New(vectors vectorstore.Store, content contentstore.Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{vectors: vectors, content: content, logger: logger}
}

// ListIndexed returns every stored note path, sorted. It pages through the
// whole listing.
func (r *Reconciler) ListIndexed(ctx context.Context) ([]string, error) {
	var paths []string
	err := contentstore.Walk(ctx, r.content, models.ContentKeyPrefix, func(o models.ObjectInfo) error {
		paths = append(paths, models.PathFromKey(o.Key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile: list indexed: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// FindOrphans returns the indexed paths absent from sourcePaths. Source
// paths are sanitized first so both sides compare in the same form;
// unsanitizable source paths cannot match anything and are ignored.
func (r *Reconciler) FindOrphans(ctx context.Context, sourcePaths []string) ([]string, error) {
	indexed, err := r.ListIndexed(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(sourcePaths))
	for _, p := range sourcePaths {
		clean, err := safepath.Sanitize(p)
		if err != nil {
			continue
		}
		present[clean] = struct{}{}
	}
	orphans := []string{}
	for _, p := range indexed {
		if _, ok := present[p]; !ok {
			orphans = append(orphans, p)
		}
	}
	return orphans, nil
}

// ScanOrphans enumerates src and returns its orphans.
func (r *Reconciler) ScanOrphans(ctx context.Context, src storage.Source) ([]string, error) {
	paths, err := src.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list source: %w", err)
	}
	return r.FindOrphans(ctx, paths)
}

// PurgeResult counts what a purge did.
type PurgeResult struct {
	Requested    int      `json:"requested"`
	Deleted      int      `json:"deleted"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	DeletedPaths []string `json:"deletedPaths,omitempty"`
}

func (p *PurgeResult) Message() string {
	return fmt.Sprintf("Deleted %d of %d orphaned notes (%d skipped, %d failed)",
		p.Deleted, p.Requested, p.Skipped, p.Failed)
}

// Purge deletes each path from the content store and the vector store.
// A path that fails to sanitize is skipped; store failures are counted and
// the purge moves on. Only context cancellation stops it early.
func (r *Reconciler) Purge(ctx context.Context, paths []string) (*PurgeResult, error) {
	res := &PurgeResult{Requested: len(paths)}
	for _, raw := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		clean, err := safepath.Sanitize(raw)
		if err != nil {
			r.logger.Warn("reconcile: skip path", slog.String("path", raw), slog.String("error", err.Error()))
			res.Skipped++
			continue
		}
		if err := r.content.Delete(ctx, models.ContentKey(clean)); err != nil {
			r.logger.Warn("reconcile: delete content", slog.String("path", clean), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		if err := r.vectors.DeleteByIDs(ctx, []string{checksum.PathID(clean)}); err != nil {
			r.logger.Warn("reconcile: delete vector", slog.String("path", clean), slog.String("error", err.Error()))
			res.Failed++
			continue
		}
		res.Deleted++
		res.DeletedPaths = append(res.DeletedPaths, clean)
	}
	r.logger.Info("reconcile: purge done",
		slog.Int("requested", res.Requested),
		slog.Int("deleted", res.Deleted),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, nil
}
