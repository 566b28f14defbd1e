// Package embedding defines the embedding capability consumed by the
// indexing and retrieval pipelines, plus its provider adapters.
package embedding

import (
	"context"
	"fmt"

	"github.com/starford/vaultvec/internal/apperr"
)

// Embedder converts text into fixed-length vectors.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the configured output size.
	Dimensions() int
	// ModelName identifies the model for cache keys and logs.
	ModelName() string
}

// CheckBatch validates a batch response. A count mismatch fails the batch
// with apperr.ErrEmbedding; a vector of the wrong size is a
// *apperr.DimensionMismatchError, which callers treat as fatal.
func CheckBatch(vectors [][]float32, want, dims int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedding: %w: got %d vectors for %d inputs", apperr.ErrEmbedding, len(vectors), want)
	}
	for _, v := range vectors {
		if err := CheckVector(v, dims); err != nil {
			return err
		}
	}
	return nil
}

// CheckVector validates a single vector against the configured size.
func CheckVector(v []float32, dims int) error {
	if len(v) != dims {
		return &apperr.DimensionMismatchError{Expected: dims, Got: len(v)}
	}
	return nil
}
