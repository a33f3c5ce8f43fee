package kv

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

// PostgresStore persists blobs in a single two-column table. Useful where a
// deployment already runs Postgres and does not want Redis for durability.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the blob table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS wizard_blobs (key TEXT PRIMARY KEY, value JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now())`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM wizard_blobs WHERE key=$1`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO wizard_blobs(key, value, updated_at) VALUES($1,$2,now())
		 ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`, key, value)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM wizard_blobs WHERE key=$1`, key)
	return err
}
