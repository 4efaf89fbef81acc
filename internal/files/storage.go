package files

import (
	"context"
	"io"
	"strings"
)

// BlobStore defines the interface for the physical file storage.
//
// Put is write-once: it fails with an error wrapping ErrCodeCollision when
// key already holds a blob, and must not leave a readable blob at key when it
// fails for any other reason. Get returns an error wrapping ErrNotFound when
// the key is absent. Delete of a missing key is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, content io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Journal defines the interface for persisting file metadata across restarts
type Journal interface {
	Save(ctx context.Context, file File) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]File, error)
}

const maxKeyNameLen = 100

// StorageKey derives the blob key for a file from its code and name.
// Codes are unique among live files, so keys never collide.
func StorageKey(code, name string) string {
	return code + "_" + sanitize(name)
}

// sanitize keeps letters, digits, dash, underscore and dot
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), ".")
	if len(s) > maxKeyNameLen {
		s = s[:maxKeyNameLen]
	}
	if s == "" {
		return "file"
	}
	return s
}
