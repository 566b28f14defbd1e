// Package vectorstore holds the vector index backends: an in-memory store,
// a persisted HNSW graph and PostgreSQL with pgvector.
package vectorstore

import (
	"context"
	"math"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
)

// Store is the vector capability used by the pipelines. Scores are cosine
// similarity; higher is closer.
type Store interface {
	// Upsert inserts or replaces entries by id.
	Upsert(ctx context.Context, entries []models.IndexEntry) error
	// Query returns up to topK matches ordered by descending score, with
	// metadata inline.
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
	// DeleteByIDs removes entries; unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error
	// Count returns the number of live entries.
	Count(ctx context.Context) (int, error)
	// Close releases resources and flushes persistent backends.
	Close() error
}

func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func dimensionError(expected, got int) error {
	return &apperr.DimensionMismatchError{Expected: expected, Got: got}
}
