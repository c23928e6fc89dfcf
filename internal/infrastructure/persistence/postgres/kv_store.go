package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
	"github.com/educa-hub/pei-hub/pkg/retry"
)

// KVStore is a kv.Store backed by the pei_kv table.
type KVStore struct {
	conn *Connection
}

var _ kv.Store = (*KVStore)(nil)

// NewKVStore creates a KVStore. Run the Migrator first.
func NewKVStore(conn *Connection) *KVStore {
	return &KVStore{conn: conn}
}

// Backend implements kv.Named.
func (s *KVStore) Backend() string { return "postgres" }

// Get implements kv.Store.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.conn.withTimeout(ctx)
	defer cancel()

	var value []byte
	err := s.conn.QueryRow(ctx, `SELECT value FROM pei_kv WHERE key = $1`, key).Scan(&value)
	if IsNoRows(err) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, storeError(err, "postgres get %s", key)
	}
	return value, nil
}

// Set implements kv.Store.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.conn.withTimeout(ctx)
	defer cancel()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO pei_kv (key, value, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, string(value))
	if err != nil {
		return storeError(err, "postgres set %s", key)
	}
	return nil
}

// ScanPrefix implements kv.Store.
func (s *KVStore) ScanPrefix(ctx context.Context, prefix string) ([]kv.Entry, error) {
	ctx, cancel := s.conn.withTimeout(ctx)
	defer cancel()

	rows, err := s.conn.Query(ctx, `
		SELECT key, value FROM pei_kv
		WHERE starts_with(key, $1)
		ORDER BY key COLLATE "C"
	`, prefix)
	if err != nil {
		return nil, storeError(err, "postgres scan %s", prefix)
	}
	defer rows.Close()

	entries := make([]kv.Entry, 0)
	for rows.Next() {
		var e kv.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("postgres scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres scan %s: %w", prefix, err)
	}
	return entries, nil
}

// Delete implements kv.Store.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.conn.withTimeout(ctx)
	defer cancel()

	tag, err := s.conn.Exec(ctx, `DELETE FROM pei_kv WHERE key = $1`, key)
	if err != nil {
		return storeError(err, "postgres delete %s", key)
	}
	if tag.RowsAffected() == 0 {
		return kv.ErrKeyNotFound
	}
	return nil
}

// storeError wraps err with context. A closed pool never recovers, so it is
// marked permanent and the retry decorator gives up at once.
func storeError(err error, format string, args ...any) error {
	wrapped := fmt.Errorf(format+": %w", append(args, err)...)
	if errors.Is(err, ErrConnectionClosed) {
		return retry.Permanent(wrapped)
	}
	return wrapped
}

// Ping checks the underlying connection.
func (s *KVStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}
