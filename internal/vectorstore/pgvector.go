package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/starford/vaultvec/internal/apperr"
	"github.com/starford/vaultvec/internal/models"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "note_vectors"

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PGVectorConfig configures the PostgreSQL backend.
type PGVectorConfig struct {
	DSN        string
	Table      string
	Dimensions int
	MaxConns   int32
}

// PGVector stores entries in PostgreSQL using the pgvector extension.
type PGVector struct {
	pool  *pgxpool.Pool
	table string
	dims  int
}

// NewPGVector connects, pings and applies the schema.
func NewPGVector(ctx context.Context, cfg PGVectorConfig) (*PGVector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("vectorstore: pgvector dsn: %w", apperr.ErrConfigurationMissing)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vectorstore: pgvector dimensions: %w", apperr.ErrConfigurationMissing)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if !tableNameRe.MatchString(cfg.Table) {
		return nil, fmt.Errorf("vectorstore: invalid table name %q", cfg.Table)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperr.StoreIO("vectorstore: create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperr.StoreIO("vectorstore: ping", err)
	}

	s := &PGVector{pool: pool, table: pgx.Identifier{cfg.Table}.Sanitize(), dims: cfg.Dimensions}
	if err := s.migrate(ctx, cfg.Table); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVector) migrate(ctx context.Context, rawTable string) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			path       TEXT NOT NULL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table, s.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{rawTable + "_embedding_idx"}.Sanitize(), s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return apperr.StoreIO("vectorstore: migrate", err)
		}
	}
	return nil
}

// Upsert writes all entries in one batch.
func (s *PGVector) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		if len(e.Vector) != s.dims {
			return dimensionError(s.dims, len(e.Vector))
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("vectorstore: encode metadata %s: %w", e.ID, err)
		}
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %s (id, path, embedding, metadata, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (id) DO UPDATE SET
				path       = excluded.path,
				embedding  = excluded.embedding,
				metadata   = excluded.metadata,
				updated_at = excluded.updated_at`, s.table),
			e.ID, e.Metadata.Path, pgvector.NewVector(e.Vector), meta)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return apperr.StoreIO("vectorstore: upsert", err)
		}
	}
	return nil
}

// Query orders by cosine distance and reports 1 - distance as the score.
func (s *PGVector) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	if len(vector) != s.dims {
		return nil, dimensionError(s.dims, len(vector))
	}
	if topK <= 0 {
		return []models.Match{}, nil
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, s.table), pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, apperr.StoreIO("vectorstore: query", err)
	}
	defer rows.Close()

	out := make([]models.Match, 0, topK)
	for rows.Next() {
		var (
			m    models.Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &meta, &m.Score); err != nil {
			return nil, apperr.StoreIO("vectorstore: scan", err)
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("vectorstore: decode metadata %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreIO("vectorstore: rows", err)
	}
	return out, nil
}

// DeleteByIDs removes rows by id.
func (s *PGVector) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table), ids); err != nil {
		return apperr.StoreIO("vectorstore: delete", err)
	}
	return nil
}

// Count returns the number of rows.
func (s *PGVector) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, apperr.StoreIO("vectorstore: count", err)
	}
	return n, nil
}

// Close closes the pool.
func (s *PGVector) Close() error {
	s.pool.Close()
	return nil
}
