package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"docshare/internal/server/config"
	"docshare/internal/server/database"
	"docshare/internal/server/qr"
	"docshare/internal/server/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for the service layer.
var (
	ErrValidation          = errors.New("missing required field")
	ErrNotFound            = errors.New("document not found")
	ErrNotOwner            = errors.New("caller does not own this document")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrMissingPasswordHash = errors.New("document has no password hash")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
)

// DocumentStore is the record persistence capability consumed by DocumentService.
type DocumentStore interface {
	Create(ctx context.Context, doc *database.Document) error
	GetByID(ctx context.Context, id string) (*database.Document, error)
	Rename(ctx context.Context, id, newName string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*database.Document, error)
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	DocID           string     `json:"docId"`
	DisplayName     string     `json:"name"`
	CreatedAt       *time.Time `json:"createdAt"`
	DownloadURL     string     `json:"downloadUrl"`
	DownloadPageURL string     `json:"downloadPageUrl"`
	QRImageDataURI  string     `json:"qrImageDataUri"`
}

// FileEntry is one document in the full listing.
type FileEntry struct {
	DocID       string     `json:"docId"`
	Name        string     `json:"name"`
	CreatedAt   *time.Time `json:"createdAt"`
	UserID      string     `json:"userId"`
	QRUrl       string     `json:"qrUrl"`
	DownloadURL string     `json:"downloadUrl"`
}

// DocumentService owns document record lifetime: upload, rename, delete,
// listing, and the password gate for retrieval. Every mutation triggers
// a full shared index rebuild so the index is never more than one
// mutation out of date.
type DocumentService struct {
	docs  DocumentStore
	index *IndexBuilder
	blobs storage.Store
	locks *keyedMutex
	cfg   *config.Config
}

// NewDocumentService creates a new document service.
func NewDocumentService(docs DocumentStore, index *IndexBuilder, blobs storage.Store, cfg *config.Config) *DocumentService {
	return &DocumentService{
		docs:  docs,
		index: index,
		blobs: blobs,
		locks: newKeyedMutex(),
		cfg:   cfg,
	}
}

// Upload stores the blob, creates the document record bound to owner,
// and rebuilds the shared index. The returned QR image encodes the
// owner's share page URL.
func (s *DocumentService) Upload(ctx context.Context, owner, filename string, data io.Reader, size int64, accessPassword string) (*UploadResult, error) {
	if owner == "" || filename == "" || accessPassword == "" || data == nil {
		return nil, ErrValidation
	}
	if size > s.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	docID := uuid.NewString()
	storedName := docID + storedExtension(filename)

	if _, err := s.blobs.Save(storedName, data); err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(accessPassword), bcrypt.DefaultCost)
	if err != nil {
		s.blobs.Delete(storedName)
		return nil, fmt.Errorf("failed to hash access password: %w", err)
	}

	now := time.Now().UTC()
	doc := &database.Document{
		ID:              docID,
		StorageLocation: storedName,
		OwnerUserID:     owner,
		PasswordHash:    string(hash),
		DisplayName:     sanitizeFilename(filename),
		CreatedAt:       &now,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		// No record may point at a blob that has no record: remove the blob.
		s.blobs.Delete(storedName)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	if err := s.index.Rebuild(ctx); err != nil {
		slog.Error("shared index rebuild failed after upload", "doc_id", docID, "error", err)
		return nil, err
	}

	sharePageURL := s.sharePageURL(owner)
	qrDataURI, err := qr.DataURI(sharePageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to render share QR code: %w", err)
	}

	slog.Info("document uploaded",
		"doc_id", docID,
		"owner", owner,
		"display_name", doc.DisplayName,
	)

	return &UploadResult{
		DocID:           docID,
		DisplayName:     doc.DisplayName,
		CreatedAt:       doc.CreatedAt,
		DownloadURL:     s.downloadURL(docID),
		DownloadPageURL: sharePageURL,
		QRImageDataURI:  qrDataURI,
	}, nil
}

// Rename changes a document's display name. Only the owning user may
// rename; the shared index is rebuilt afterwards.
func (s *DocumentService) Rename(ctx context.Context, caller, docID, newName string) error {
	if docID == "" || newName == "" {
		return ErrValidation
	}

	unlock := s.locks.Lock(docID)
	defer unlock()

	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.OwnerUserID != caller {
		return ErrNotOwner
	}

	if err := s.docs.Rename(ctx, docID, newName); err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to rename document: %w", err)
	}

	if err := s.index.Rebuild(ctx); err != nil {
		slog.Error("shared index rebuild failed after rename", "doc_id", docID, "error", err)
		return err
	}

	slog.Info("document renamed", "doc_id", docID, "new_name", newName)
	return nil
}

// Delete removes a document's blob and record, then rebuilds the index.
// The blob goes first; a blob that is already missing is tolerated, but
// a real removal failure surfaces before the record is touched. If
// record removal fails after the blob is gone the error is surfaced
// without rollback and the caller should re-fetch the listing.
func (s *DocumentService) Delete(ctx context.Context, caller, docID string) error {
	if docID == "" {
		return ErrValidation
	}

	unlock := s.locks.Lock(docID)
	defer unlock()

	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.OwnerUserID != caller {
		return ErrNotOwner
	}

	if err := s.blobs.Delete(doc.StorageLocation); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	if err := s.docs.Delete(ctx, docID); err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	if err := s.index.Rebuild(ctx); err != nil {
		slog.Error("shared index rebuild failed after delete", "doc_id", docID, "error", err)
		return err
	}

	slog.Info("document deleted", "doc_id", docID, "display_name", doc.DisplayName)
	return nil
}

// List returns all live documents from a full record scan. No ordering
// is guaranteed.
func (s *DocumentService) List(ctx context.Context) ([]FileEntry, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	entries := make([]FileEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, FileEntry{
			DocID:       doc.ID,
			Name:        doc.DisplayName,
			CreatedAt:   doc.CreatedAt,
			UserID:      doc.OwnerUserID,
			QRUrl:       s.sharePageURL(doc.OwnerUserID),
			DownloadURL: s.downloadURL(doc.ID),
		})
	}
	return entries, nil
}

// VerifyAccess is the access gate: it checks a presented password
// against the document's stored hash. A record with no hash is an
// invariant violation and reported as such.
func (s *DocumentService) VerifyAccess(ctx context.Context, docID, password string) error {
	if docID == "" || password == "" {
		return ErrValidation
	}

	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return err
	}

	if doc.PasswordHash == "" {
		return ErrMissingPasswordHash
	}

	if err := bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// Download verifies the password through the access gate and returns the
// blob path and display name for serving.
func (s *DocumentService) Download(ctx context.Context, docID, password string) (blobPath, displayName string, err error) {
	if err := s.VerifyAccess(ctx, docID, password); err != nil {
		return "", "", err
	}

	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return "", "", err
	}

	path, err := s.blobs.GetPath(doc.StorageLocation)
	if err != nil {
		return "", "", fmt.Errorf("blob missing for document %s: %w", docID, err)
	}
	return path, doc.DisplayName, nil
}

func (s *DocumentService) getDocument(ctx context.Context, docID string) (*database.Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) downloadURL(docID string) string {
	return fmt.Sprintf("%s/d/%s", s.cfg.BaseURL, docID)
}

func (s *DocumentService) sharePageURL(owner string) string {
	return fmt.Sprintf("%s/shared.html?uid=%s", s.cfg.BaseURL, owner)
}

// storedExtension returns a safe file extension for the stored blob name.
func storedExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(sanitizeFilename(filename)))
	if len(ext) > 16 {
		return ""
	}
	return ext
}

// sanitizeFilename strips directory components and limits length.
func sanitizeFilename(name string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// calling filepath.Base, which is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")

	// Take only the base name
	name = filepath.Base(name)

	// Limit length. The extension itself can exceed the limit (a name
	// that is one long extension), so cap it before slicing the base.
	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) >= 255 {
			name = name[:255]
		} else {
			name = name[:255-len(ext)] + ext
		}
	}

	if name == "" || name == "." {
		name = "document"
	}

	return name
}
