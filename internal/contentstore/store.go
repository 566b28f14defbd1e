// Package contentstore holds the full-fidelity key/value backends for
// document records: SQLite, S3-compatible object storage and memory.
package contentstore

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/starford/vaultvec/internal/models"
)

// DefaultPageSize is the listing page size when none is configured.
const DefaultPageSize = 1000

// Store is the content capability used by the pipelines. Get and Head
// return apperr.ErrNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (*models.ContentRecord, error)
	Head(ctx context.Context, key string) (*models.ObjectInfo, error)
	Put(ctx context.Context, key string, value []byte, checksum string) error
	// List returns one page of keys under prefix in key order. Pass the
	// previous page's NextPageToken to continue.
	List(ctx context.Context, prefix, pageToken string) (*models.ListPage, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Walk pages through every key under prefix and calls fn per item.
func Walk(ctx context.Context, s Store, prefix string, fn func(models.ObjectInfo) error) error {
	token := ""
	for {
		page, err := s.List(ctx, prefix, token)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		if page.NextPageToken == token {
			return fmt.Errorf("contentstore: list did not advance past token %q", token)
		}
		token = page.NextPageToken
	}
}

// encodeToken and decodeToken make key-based cursors opaque.
func encodeToken(lastKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(lastKey))
}

func decodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("contentstore: invalid page token: %w", err)
	}
	return string(b), nil
}
