package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/tickerflow/pkg/database"
)

// partitionSchema is applied by NewPostgresStore
var partitionSchema = []string{
	`CREATE TABLE IF NOT EXISTS partitions (
		path       TEXT PRIMARY KEY,
		payload    BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// PostgresStore keeps blobs in a single keyed table
// ⭐ SSOT: ON CONFLICT 로 덮어쓰기 (재실행 멱등)
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore ensures the schema exists
func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	if err := db.Migrate(ctx, partitionSchema...); err != nil {
		return nil, fmt.Errorf("partition schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Ping checks the underlying pool
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Write upserts the blob at path
func (s *PostgresStore) Write(ctx context.Context, path string, payload []byte) error {
	query := `
		INSERT INTO partitions (path, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (path) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`

	if _, err := s.db.Pool.Exec(ctx, query, path, payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

// Read returns the blob at path
func (s *PostgresStore) Read(ctx context.Context, path string) ([]byte, error) {
	var payload []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT payload FROM partitions WHERE path = $1`, path).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return payload, nil
}
