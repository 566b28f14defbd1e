package contentstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	record_key TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite stores records in a single table keyed by record key.
type SQLite struct {
	conn     *sql.DB
	pageSize int
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(path string, pageSize int) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("contentstore: sqlite path: %w", apperr.ErrConfigurationMissing)
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("contentstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("contentstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("contentstore: apply schema: %w", err)
	}
	return &SQLite{conn: conn, pageSize: pageSize}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (*models.ContentRecord, error) {
	rec := models.ContentRecord{Key: key}
	err := s.conn.QueryRowContext(ctx,
		`SELECT value, checksum, size FROM records WHERE record_key = ?`, key,
	).Scan(&rec.Value, &rec.Checksum, &rec.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contentstore: get %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.StoreIO("contentstore: get "+key, err)
	}
	return &rec, nil
}

func (s *SQLite) Head(ctx context.Context, key string) (*models.ObjectInfo, error) {
	info := models.ObjectInfo{Key: key}
	err := s.conn.QueryRowContext(ctx,
		`SELECT checksum, size FROM records WHERE record_key = ?`, key,
	).Scan(&info.Checksum, &info.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contentstore: head %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.StoreIO("contentstore: head "+key, err)
	}
	return &info, nil
}

func (s *SQLite) Put(ctx context.Context, key string, value []byte, checksum string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO records (record_key, value, checksum, size, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(record_key) DO UPDATE SET
			value      = excluded.value,
			checksum   = excluded.checksum,
			size       = excluded.size,
			updated_at = excluded.updated_at
	`, key, value, checksum, len(value))
	if err != nil {
		return apperr.StoreIO("contentstore: put "+key, err)
	}
	return nil
}

// List pages by key: the token encodes the last key of the previous page.
func (s *SQLite) List(ctx context.Context, prefix, pageToken string) (*models.ListPage, error) {
	after, err := decodeToken(pageToken)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT record_key, checksum, size FROM records
		WHERE substr(record_key, 1, length(?1)) = ?1 AND record_key > ?2
		ORDER BY record_key
		LIMIT ?3
	`, prefix, after, s.pageSize+1)
	if err != nil {
		return nil, apperr.StoreIO("contentstore: list", err)
	}
	defer rows.Close()

	page := &models.ListPage{Items: []models.ObjectInfo{}}
	for rows.Next() {
		var info models.ObjectInfo
		if err := rows.Scan(&info.Key, &info.Checksum, &info.Size); err != nil {
			return nil, apperr.StoreIO("contentstore: scan", err)
		}
		page.Items = append(page.Items, info)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreIO("contentstore: rows", err)
	}
	if len(page.Items) > s.pageSize {
		page.Items = page.Items[:s.pageSize]
		page.NextPageToken = encodeToken(page.Items[len(page.Items)-1].Key)
	}
	return page, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM records WHERE record_key = ?`, key); err != nil {
		return apperr.StoreIO("contentstore: delete "+key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
