package postgres

import (
	"context"
	"database/sql"
	"errors"
)

const defaultKVTable = "kv_entries"

// KVStore persists opaque values by key. It backs the latest report and billing tokens.
type KVStore struct {
	db    *sql.DB
	table string
}

// KVOption customizes a KVStore.
type KVOption func(*KVStore)

// WithTable overrides the table name.
func WithTable(table string) KVOption {
	return func(s *KVStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewKVStore constructs a store.
func NewKVStore(db *sql.DB, opts ...KVOption) *KVStore {
	s := &KVStore{db: db, table: defaultKVTable}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// EnsureSchema creates the table when missing.
func (s *KVStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("kv store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+s.table+` (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

// Put upserts a value.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if s == nil || s.db == nil {
		return errors.New("kv store: nil db")
	}
	if key == "" {
		return errors.New("kv store: empty key")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO `+s.table+` (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, value)
	return err
}

// Get returns the value for key and whether it exists.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errors.New("kv store: nil db")
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM `+s.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes a key. Missing keys are not an error.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return errors.New("kv store: nil db")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key)
	return err
}
