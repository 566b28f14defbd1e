// Package storage enumerates and reads the source notes folder.
package storage

import (
	"context"
	"time"
)

// RawDocument is an unparsed source file with filesystem timestamps.
type RawDocument struct {
	Path       string
	Data       []byte
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Source is the enumeration side of the sync pipeline.
type Source interface {
	// ListDocuments returns every note path relative to the source root,
	// using forward slashes, sorted.
	ListDocuments(ctx context.Context) ([]string, error)
	// ReadDocument returns the raw bytes and timestamps of path.
	ReadDocument(ctx context.Context, path string) (*RawDocument, error)
}
