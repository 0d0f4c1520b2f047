package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps entries in the kv_entries table. Single-row upserts
// are atomic, which is all the cache and curation layers need.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects with a pooled client and verifies the connection.
// Pool size comes from pool_max_conns in connString.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping implements Pinger.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		"SELECT value FROM kv_entries WHERE key = $1", key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (@key, @value, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, pgx.NamedArgs{"key": key, "value": value})
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM kv_entries WHERE key = $1", key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// KeysWithPrefix implements Store.
func (s *PostgresStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT key FROM kv_entries WHERE starts_with(key, $1) ORDER BY key", prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning prefix %q: %w", prefix, err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting keys for %q: %w", prefix, err)
	}
	return keys, nil
}
