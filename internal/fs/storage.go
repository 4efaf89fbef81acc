package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pavel-fokin/files-drop/internal/files"
)

// Storage implements files.BlobStore using the filesystem
type Storage struct {
	dataDir string
}

// NewStorage creates a new filesystem storage, creating dataDir if needed
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Storage{dataDir: dataDir}, nil
}

// Put writes content to a temp file, syncs it and links it into place.
// The link fails if key already exists, which makes writes write-once.
func (s *Storage) Put(_ context.Context, key string, content io.Reader) (int64, error) {
	filePath, err := s.path(key)
	if err != nil {
		return 0, err
	}
	tmpPath := filePath + ".tmp-" + uuid.NewString()

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create temp file: %w", files.ErrIOFailure, err)
	}
	defer os.Remove(tmpPath)

	size, err := io.Copy(file, content)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("%w: failed to write file content: %w", files.ErrIOFailure, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return 0, fmt.Errorf("%w: failed to sync file: %w", files.ErrIOFailure, err)
	}

	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("%w: failed to close file: %w", files.ErrIOFailure, err)
	}

	if err := os.Link(tmpPath, filePath); err != nil {
		if errors.Is(err, iofs.ErrExist) {
			return 0, fmt.Errorf("%w: blob %s exists", files.ErrCodeCollision, key)
		}
		return 0, fmt.Errorf("%w: failed to publish file: %w", files.ErrIOFailure, err)
	}

	return size, nil
}

// Get returns a reader for the blob content
func (s *Storage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", files.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: failed to open file: %w", files.ErrIOFailure, err)
	}

	return file, nil
}

// Delete removes a blob by key
func (s *Storage) Delete(_ context.Context, key string) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil // File already deleted
		}
		return fmt.Errorf("%w: failed to delete file: %w", files.ErrIOFailure, err)
	}

	return nil
}

// Exists checks if a blob exists
func (s *Storage) Exists(key string) bool {
	filePath, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(filePath)
	return err == nil
}

// DataDir returns the storage root
func (s *Storage) DataDir() string {
	return s.dataDir
}

// path resolves key inside dataDir, rejecting keys that would escape it
func (s *Storage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: invalid storage key %q", files.ErrIOFailure, key)
	}
	return filepath.Join(s.dataDir, key), nil
}
