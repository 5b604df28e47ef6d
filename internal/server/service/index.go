package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"docshare/internal/server/database"
)

// DocumentLister is the read side of the record store the builder projects from.
type DocumentLister interface {
	List(ctx context.Context) ([]*database.Document, error)
}

// IndexStore persists the shared index aggregate.
type IndexStore interface {
	Store(ctx context.Context, index *database.SharedIndex) error
	Get(ctx context.Context) (*database.SharedIndex, error)
}

// IndexBuilder derives the public shared index from the document record
// store. The index is non-authoritative: it is regenerated in full after
// every mutation and must always be rebuildable from the records alone.
type IndexBuilder struct {
	docs    DocumentLister
	index   IndexStore
	baseURL string
}

// NewIndexBuilder creates a new shared index builder.
func NewIndexBuilder(docs DocumentLister, index IndexStore, baseURL string) *IndexBuilder {
	return &IndexBuilder{docs: docs, index: index, baseURL: baseURL}
}

// Rebuild projects every live document record into the shared index and
// stores the aggregate wholesale. One List call is the snapshot; entries
// are de-duplicated by document ID. A record without a creation
// timestamp gets the rebuild time, so it appears to move in time across
// rebuilds. That matches the historical shared-meta behavior and is left
// as is.
func (b *IndexBuilder) Rebuild(ctx context.Context) error {
	docs, err := b.docs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot document records: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(docs))
	entries := make([]database.SharedIndexEntry, 0, len(docs))

	for _, doc := range docs {
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true

		createdAt := now
		if doc.CreatedAt != nil {
			createdAt = *doc.CreatedAt
		}

		entries = append(entries, database.SharedIndexEntry{
			Name:        doc.DisplayName,
			CreatedAt:   createdAt,
			DownloadURL: fmt.Sprintf("%s/d/%s", b.baseURL, doc.ID),
		})
	}

	if err := b.index.Store(ctx, &database.SharedIndex{Files: entries}); err != nil {
		return fmt.Errorf("failed to store shared index: %w", err)
	}

	slog.Info("shared index rebuilt", "entries", len(entries))
	return nil
}

// Shared returns the current shared index aggregate for public consumption.
func (b *IndexBuilder) Shared(ctx context.Context) (*database.SharedIndex, error) {
	return b.index.Get(ctx)
}
