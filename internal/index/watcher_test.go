package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/vaultvec/internal/models"
	"github.com/starford/vaultvec/internal/reconcile"
	"github.com/starford/vaultvec/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(want string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == want {
			return true
		}
	}
	return false
}

func (env *pipelineEnv) stored(path string) bool {
	_, err := env.content.Head(context.Background(), models.ContentKey(path))
	return err == nil
}

// startWatch runs Watch in the background and waits briefly for it to
// register the vault directories.
func startWatch(t *testing.T, env *pipelineEnv, cfg WatchConfig, log *eventLog) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		<-done
	})

	env.pipeline.OnEvent(log.add)
	rec := reconcile.New(env.vectors, env.content, testutil.Logger())
	go func() {
		defer close(done)
		_ = Watch(ctx, env.pipeline, rec, env.source, cfg, testutil.Logger(), log.add)
	}()
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	env := newPipelineEnv(t, 10)
	log := &eventLog{}
	startWatch(t, env, WatchConfig{Debounce: 50 * time.Millisecond}, log)

	_ = os.WriteFile(filepath.Join(env.vault, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return env.stored("new.md")
	}, "new file not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("indexed:new.md")
	}, "expected indexed:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	env := newPipelineEnv(t, 10)
	startWatch(t, env, WatchConfig{Debounce: 50 * time.Millisecond}, &eventLog{})

	subDir := filepath.Join(env.vault, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return env.stored("subdir/deep.md")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_IgnoresNonNotes(t *testing.T) {
	env := newPipelineEnv(t, 10)
	startWatch(t, env, WatchConfig{Debounce: 50 * time.Millisecond}, &eventLog{})

	_ = os.WriteFile(filepath.Join(env.vault, "image.png"), []byte("png"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if n := len(env.embedder.Batches()); n != 0 {
		t.Errorf("embed batches = %d, want 0", n)
	}
}

func TestWatcher_DeletePurgesWhenAllowed(t *testing.T) {
	env := newPipelineEnv(t, 10)
	testutil.WriteNote(t, env.vault, "del.md", "# Delete Me")
	if _, err := env.pipeline.SyncAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !env.stored("del.md") {
		t.Fatal("precondition: file should be indexed")
	}

	log := &eventLog{}
	startWatch(t, env, WatchConfig{Debounce: 50 * time.Millisecond, AutoPurge: true}, log)
	_ = os.Remove(filepath.Join(env.vault, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.stored("del.md")
	}, "deleted file still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has("purged:del.md")
	}, "expected purged:del.md callback")
	if n, _ := env.vectors.Count(context.Background()); n != 0 {
		t.Errorf("vector count = %d", n)
	}
}

func TestWatcher_DeleteKeptWithoutAutoPurge(t *testing.T) {
	env := newPipelineEnv(t, 10)
	testutil.WriteNote(t, env.vault, "keep.md", "# Keep")
	if _, err := env.pipeline.SyncAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	startWatch(t, env, WatchConfig{Debounce: 50 * time.Millisecond}, &eventLog{})
	_ = os.Remove(filepath.Join(env.vault, "keep.md"))
	time.Sleep(400 * time.Millisecond)

	if !env.stored("keep.md") {
		t.Error("orphan must not be purged without the auto-purge policy")
	}
}

func TestWatcher_RenameReconciles(t *testing.T) {
	env := newPipelineEnv(t, 10)
	testutil.WriteNote(t, env.vault, "old.md", "# Rename")
	if _, err := env.pipeline.SyncAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	startWatch(t, env, WatchConfig{Debounce: 50 * time.Millisecond, AutoPurge: true}, &eventLog{})
	_ = os.Rename(filepath.Join(env.vault, "old.md"), filepath.Join(env.vault, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.stored("old.md") && env.stored("renamed.md")
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestWatcher_PeriodicReconcile(t *testing.T) {
	env := newPipelineEnv(t, 10)
	seedStale := models.Document{Path: "stale.md", Title: "Stale", Body: "gone"}
	if _, err := env.pipeline.SyncDocuments(context.Background(), []models.Document{seedStale}); err != nil {
		t.Fatal(err)
	}

	startWatch(t, env, WatchConfig{
		Debounce:          50 * time.Millisecond,
		ReconcileInterval: 100 * time.Millisecond,
		AutoPurge:         true,
	}, &eventLog{})

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !env.stored("stale.md")
	}, "periodic reconcile did not purge stale entry")
}
