package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const historySchemaSQL = `
CREATE TABLE IF NOT EXISTS transform_history (
	id BIGSERIAL PRIMARY KEY,
	job_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	format TEXT NOT NULL,
	original_size INTEGER NOT NULL,
	compressed_size INTEGER NOT NULL,
	size_target_met BOOLEAN NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(ctx context.Context, dsn string) (*PostgresHistoryStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresHistoryStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresHistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, historySchemaSQL); err != nil {
		return fmt.Errorf("ensure transform_history schema: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) Close() error {
	return s.db.Close()
}

func (s *PostgresHistoryStore) Record(ctx context.Context, rec TransformRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transform_history (job_id, tool, format, original_size, compressed_size, size_target_met, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.JobID,
		rec.Tool,
		rec.Format,
		rec.OriginalSize,
		rec.CompressedSize,
		rec.SizeTargetMet,
		rec.DurationMS,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert transform record: %w", err)
	}

	return nil
}
