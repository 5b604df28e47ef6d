package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository provides CRUD operations for document records.
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *Document) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO documents (
			id, storage_location, owner_user_id, password_hash, display_name, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`,
		doc.ID,
		doc.StorageLocation,
		doc.OwnerUserID,
		doc.PasswordHash,
		doc.DisplayName,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document record by its ID.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	doc := &Document{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, storage_location, owner_user_id, password_hash, display_name, created_at
		FROM documents WHERE id = $1
	`, id).Scan(
		&doc.ID,
		&doc.StorageLocation,
		&doc.OwnerUserID,
		&doc.PasswordHash,
		&doc.DisplayName,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Rename updates a document's display name.
func (r *DocumentRepository) Rename(ctx context.Context, id, newName string) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE documents SET display_name = $2 WHERE id = $1", id, newName)
	if err != nil {
		return fmt.Errorf("failed to rename document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document record by ID.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// List returns all live document records. A single SELECT gives the
// index builder one consistent snapshot; no ordering is guaranteed.
func (r *DocumentRepository) List(ctx context.Context) ([]*Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, storage_location, owner_user_id, password_hash, display_name, created_at
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{}
		if err := rows.Scan(
			&doc.ID,
			&doc.StorageLocation,
			&doc.OwnerUserID,
			&doc.PasswordHash,
			&doc.DisplayName,
			&doc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
