// Package apperr defines the error taxonomy shared by the sync, retrieval
// and reconciliation pipelines.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath is returned when a document path is rejected by the
	// sanitizer. Callers skip the document and continue.
	ErrInvalidPath = errors.New("invalid path")

	// ErrParseWarning marks malformed front-matter. The parser still returns
	// a usable result; the warning travels as a diagnostic.
	ErrParseWarning = errors.New("parse warning")

	// ErrEmbedding is a recoverable embedding provider failure.
	ErrEmbedding = errors.New("embedding failure")

	// ErrDimensionMismatch is fatal for a run: the provider and the index
	// disagree on vector size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	ErrStoreIO = errors.New("store io failure")

	// ErrConfigurationMissing is reported at startup when a required
	// binding (model, DSN, bucket) is absent.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// DimensionMismatchError carries the expected and observed vector sizes.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// StoreIO wraps err so that errors.Is(err, ErrStoreIO) holds while the
// backend error stays reachable through errors.Unwrap.
func StoreIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreIO, err)
}

// Embedding wraps err as a recoverable embedding failure.
func Embedding(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrEmbedding, err)
}
