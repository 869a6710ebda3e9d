package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get reads a value. The boolean is false when the key is absent.
func (s *Storage) Get(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE scope = ? AND key = ?`, scope, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

// Set writes a value, replacing any previous one
func (s *Storage) Set(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE
		SET value = excluded.value,
		    updated_at = excluded.updated_at
	`, scope, key, value, s.clock.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", scope, key, err)
	}
	return nil
}

// ScopedStore is a key/value view limited to one scope, such as a page session
// or a terminal profile.
type ScopedStore struct {
	storage *Storage
	scope   string
}

// Scoped returns a store for one scope
func (s *Storage) Scoped(scope string) *ScopedStore {
	return &ScopedStore{storage: s, scope: scope}
}

// Get reads a key in this scope
func (s *ScopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.storage.Get(ctx, s.scope, key)
}

// Set writes a key in this scope
func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	return s.storage.Set(ctx, s.scope, key, value)
}
