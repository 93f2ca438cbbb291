package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/flipdeck/internal/srs"
)

// GetValue reads a kv entry. A missing key returns nil and no error.
func (db *DB) GetValue(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get value for key %s: %w", key, err)
	}
	return []byte(value), nil
}

// PutValue inserts or overwrites a kv entry.
func (db *DB) PutValue(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), formatTime(db.now()))
	if err != nil {
		return fmt.Errorf("failed to put value for key %s: %w", key, err)
	}
	return nil
}

// SRSStore keeps the study schedule as one JSON document in the kv table.
type SRSStore struct {
	db *DB
}

var _ srs.Store = (*SRSStore)(nil)

// SRSStore returns a schedule store backed by db.
func (db *DB) SRSStore() *SRSStore {
	return &SRSStore{db: db}
}

// Load decodes the stored schedule. Malformed entries fall back to defaults.
func (s *SRSStore) Load(ctx context.Context) (map[string]srs.State, error) {
	raw, err := s.db.GetValue(ctx, srs.StorageKey)
	if err != nil {
		return nil, err
	}
	states, err := srs.DecodeStates(raw)
	if err != nil {
		// An unreadable document is treated as an empty schedule.
		return make(map[string]srs.State), nil
	}
	return states, nil
}

// Save overwrites the stored schedule.
func (s *SRSStore) Save(ctx context.Context, states map[string]srs.State) error {
	raw, err := srs.EncodeStates(states)
	if err != nil {
		return err
	}
	return s.db.PutValue(ctx, srs.StorageKey, raw)
}
