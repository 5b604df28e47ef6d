package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store defines the interface for blob storage backends.
// This allows swapping filesystem for S3 or other backends later.
type Store interface {
	Save(name string, data io.Reader) (int64, error)
	GetPath(name string) (string, error)
	Delete(name string) error
	EnsureDir() error
}

// FileSystemStore stores uploaded blobs on the local filesystem.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save writes data to a temp file and renames it into place, so a
// crashed or failed write never leaves a partial blob under name.
// Returns the number of bytes written.
func (fs *FileSystemStore) Save(name string, data io.Reader) (int64, error) {
	filePath, err := fs.blobPath(name)
	if err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(fs.basePath, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move blob into place: %w", err)
	}

	return n, nil
}

// GetPath returns the absolute path to a stored blob.
// Returns an error if the blob does not exist.
func (fs *FileSystemStore) GetPath(name string) (string, error) {
	filePath, err := fs.blobPath(name)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("blob not found: %s", name)
		}
		return "", fmt.Errorf("failed to stat blob: %w", err)
	}

	return filePath, nil
}

// Delete removes a stored blob. A blob that is already gone is not an error.
func (fs *FileSystemStore) Delete(name string) error {
	filePath, err := fs.blobPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// blobPath resolves a stored name inside the base directory and rejects
// names that would escape it.
func (fs *FileSystemStore) blobPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(fs.basePath, name), nil
}
