package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vibesnap/pkg/logger"
)

// PostgresStore implements KV on the kv_entries table.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

const upsertSQL = `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to read key %s: %v", key, err)
		return "", err
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, upsertSQL, key, value)
	if err != nil {
		logger.Sugar.Errorf("Failed to write key %s: %v", key, err)
	}
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM kv_entries WHERE key = $1", key)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete key %s: %v", key, err)
	}
	return err
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent counters on
// several instances do not lose increments. A missing row is not locked; two
// first writers race and the later upsert wins.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update of %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current string
	found := true
	err = tx.QueryRowContext(ctx, "SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE", key).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		logger.Sugar.Errorf("Failed to lock key %s: %v", key, err)
		return err
	}

	next, err := fn(current, found)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, upsertSQL, key, next); err != nil {
		logger.Sugar.Errorf("Failed to update key %s: %v", key, err)
		return err
	}
	return tx.Commit()
}
