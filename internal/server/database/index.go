package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// IndexRepository persists the shared index aggregate. The index is a
// single record (row id fixed to 1) replaced wholesale on every rebuild.
type IndexRepository struct {
	db *DB
}

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(db *DB) *IndexRepository {
	return &IndexRepository{db: db}
}

// Store replaces the shared index aggregate with the given contents.
func (r *IndexRepository) Store(ctx context.Context, index *SharedIndex) error {
	payload, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode shared index: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO shared_index (id, payload, rebuilt_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, rebuilt_at = EXCLUDED.rebuilt_at
	`, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store shared index: %w", err)
	}
	return nil
}

// Get returns the current shared index aggregate. A missing row (no
// rebuild has ever run) yields an empty index, not an error.
func (r *IndexRepository) Get(ctx context.Context) (*SharedIndex, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx,
		"SELECT payload FROM shared_index WHERE id = 1").Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &SharedIndex{Files: []SharedIndexEntry{}}, nil
		}
		return nil, fmt.Errorf("failed to get shared index: %w", err)
	}

	index := &SharedIndex{}
	if err := json.Unmarshal(payload, index); err != nil {
		return nil, fmt.Errorf("failed to decode shared index: %w", err)
	}
	if index.Files == nil {
		index.Files = []SharedIndexEntry{}
	}
	return index, nil
}
