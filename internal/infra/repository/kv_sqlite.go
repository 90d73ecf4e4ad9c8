package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	repo "storefront/internal/repository"
)

// SQLite（modernc）上のKV。
type SQLiteKVStore struct {
	db *sql.DB
}

// DI
func NewSQLiteKVStore(ctx context.Context, db *sql.DB) (*SQLiteKVStore, error) {
	const ddl = `CREATE TABLE IF NOT EXISTS kv_entries (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, err
	}
	return &SQLiteKVStore{db: db}, nil
}

func (s *SQLiteKVStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repo.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// 既存キーは上書き
func (s *SQLiteKVStore) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return err
}
