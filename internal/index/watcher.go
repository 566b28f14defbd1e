package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vaultvec/internal/reconcile"
	"github.com/starford/vaultvec/internal/storage"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before syncing.
const DefaultDebounce = 200 * time.Millisecond

// WatchConfig tunes Watch.
type WatchConfig struct {
	Debounce time.Duration
	// ReconcileInterval enables a periodic orphan scan when > 0.
	ReconcileInterval time.Duration
	// AutoPurge lets the watcher delete orphans without confirmation.
	// When false orphans are only logged.
	AutoPurge bool
}

// Watch starts an fsnotify watcher on the vault root and syncs changed notes
// through p until ctx is cancelled. Writes are collected and synced in one
// run once the debounce window passes. Removes and renames schedule a
// reconciliation pass. cb (if non-nil) receives "purged" events; "indexed"
// events come from the pipeline's own callback.
//
// New directories created at runtime are automatically added to the watch
// list and their notes are queued.
func Watch(
	ctx context.Context,
	p *Pipeline,
	rec *reconcile.Reconciler,
	vault *storage.FS,
	cfg WatchConfig,
	logger *slog.Logger,
	cb EventCallback,
) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := vault.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var syncTimer, reconcileTimer *time.Timer
	var syncCh, reconcileCh <-chan time.Time

	schedule := func(t **time.Timer, ch *<-chan time.Time) {
		if *t == nil {
			*t = time.NewTimer(cfg.Debounce)
			*ch = (*t).C
			return
		}
		(*t).Reset(cfg.Debounce)
	}

	var tickCh <-chan time.Time
	if cfg.ReconcileInterval > 0 {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	queue := func(abs string) {
		rel, relErr := vault.Rel(abs)
		if relErr != nil {
			return
		}
		pending[rel] = struct{}{}
		schedule(&syncTimer, &syncCh)
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range []*time.Timer{syncTimer, reconcileTimer} {
				if t != nil {
					t.Stop()
				}
			}
			logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			paths := make([]string, 0, len(pending))
			for rel := range pending {
				paths = append(paths, rel)
			}
			clear(pending)
			sort.Strings(paths)
			if _, err := p.SyncPaths(ctx, paths); err != nil {
				logger.Error("watcher: sync failed", slog.String("error", err.Error()))
			}

		case <-reconcileCh:
			reconcileOrphans(ctx, rec, vault, cfg.AutoPurge, logger, cb)

		case <-tickCh:
			reconcileOrphans(ctx, rec, vault, cfg.AutoPurge, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if storage.SkipDir(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
						continue
					}
					logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					for _, note := range notesUnder(absPath) {
						queue(note)
					}
					continue
				}
			}

			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				// The new name of a rename arrives as its own Create event.
				schedule(&reconcileTimer, &reconcileCh)
				continue
			}

			if !storage.IsNote(absPath) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				queue(absPath)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcileOrphans scans for orphans and purges them when autoPurge is set.
func reconcileOrphans(
	ctx context.Context,
	rec *reconcile.Reconciler,
	vault *storage.FS,
	autoPurge bool,
	logger *slog.Logger,
	cb EventCallback,
) {
	orphans, err := rec.ScanOrphans(ctx, vault)
	if err != nil {
		logger.Warn("reconcile: scan failed", slog.String("error", err.Error()))
		return
	}
	if len(orphans) == 0 {
		return
	}
	if !autoPurge {
		logger.Info("reconcile: orphans found, purge not enabled", slog.Int("count", len(orphans)))
		return
	}
	res, err := rec.Purge(ctx, orphans)
	if err != nil {
		logger.Warn("reconcile: purge interrupted", slog.String("error", err.Error()))
	}
	if res == nil || cb == nil {
		return
	}
	for _, p := range res.DeletedPaths {
		cb("purged", p)
	}
}

// notesUnder lists the note files below dir.
func notesUnder(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && storage.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if storage.IsNote(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
