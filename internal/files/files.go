package files

import (
	"errors"
	"time"
)

// Error kinds returned by the service. Callers match them with errors.Is.
var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrNotFound      = errors.New("file not found")
	ErrCodeCollision = errors.New("code already in use")
	ErrIOFailure     = errors.New("storage i/o failure")
)

// File represents the metadata of a stored file, keyed by its access code
type File struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	StorageKey string    `json:"-"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	SessionID  string    `json:"session_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Available  bool      `json:"available"`
}

// Expired reports whether the file is past its expiry at now.
// A file expiring exactly at now is already expired.
func (f File) Expired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}
