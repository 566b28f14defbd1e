// Package testutil provides shared test helpers: temporary vaults, a quiet
// logger and a deterministic embedder.
package testutil

import (
	"context"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode"

	"github.com/starford/vaultvec/internal/storage"
)

// Logger returns a logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestVault creates a temporary vault directory with a filesystem source.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes content to rel under root, creating parent directories.
func WriteNote(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Embedder hashes words into buckets, so texts sharing words get similar
// vectors. Vectors registers exact outputs for specific texts.
type Embedder struct {
	Dims    int
	Vectors map[string][]float32
	// Fail, when set, is consulted before every batch.
	Fail func(texts []string) error
	// WrongDims, when > 0, makes every vector this long.
	WrongDims int

	mu      sync.Mutex
	batches [][]string
}

// NewEmbedder returns an embedder producing dims-sized vectors.
func NewEmbedder(dims int) *Embedder {
	return &Embedder{Dims: dims, Vectors: map[string][]float32{}}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	e.mu.Unlock()

	if e.Fail != nil {
		if err := e.Fail(texts); err != nil {
			return nil, err
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *Embedder) Dimensions() int { return e.Dims }

func (e *Embedder) ModelName() string { return "fake-embedder" }

// Batches returns a copy of every batch received so far.
func (e *Embedder) Batches() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.batches))
	copy(out, e.batches)
	return out
}

func (e *Embedder) vector(text string) []float32 {
	if v, ok := e.Vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	dims := e.Dims
	if e.WrongDims > 0 {
		dims = e.WrongDims
	}
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)]++
	}
	if len(words) == 0 {
		v[0] = 1
	}
	return v
}
