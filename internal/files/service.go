package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTTL is how long an uploaded file stays available
const DefaultTTL = 24 * time.Hour

const defaultMaxAttempts = 3

// Service provides application-level file operations
type Service struct {
	blobs       BlobStore
	registry    *Registry
	generator   Generator
	notifier    Notifier
	journal     Journal
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithGenerator replaces the default registry-backed code generator
func WithGenerator(g Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithNotifier sets where transfer progress is reported
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithJournal enables metadata persistence
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxAttempts bounds how many codes an upload tries before giving up
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService creates a new file service
func NewService(blobs BlobStore, registry *Registry, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		blobs:       blobs,
		registry:    registry,
		generator:   NewCodeGenerator(registry.Contains),
		notifier:    nopNotifier{},
		ttl:         ttl,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "files"))
	return s
}

// UploadRequest represents a file upload request
type UploadRequest struct {
	Name      string
	MimeType  string
	SessionID string
	Content   io.Reader
}

// Upload stores the content under a fresh access code and returns its record.
// The blob is durable before the record becomes visible.
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*File, error) {
	file, err := s.upload(ctx, req)
	observe("upload", err)
	return file, err
}

func (s *Service) upload(ctx context.Context, req *UploadRequest) (*File, error) {
	if req.Content == nil {
		return nil, ErrEmptyFile
	}
	data, err := io.ReadAll(req.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read upload: %w", ErrIOFailure, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	s.notifier.NotifyProgress(req.SessionID, 0, PhaseUpload)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code := s.generator.Generate()
		key := StorageKey(code, req.Name)

		size, err := s.blobs.Put(ctx, key, bytes.NewReader(data))
		if errors.Is(err, ErrCodeCollision) {
			s.logger.Warn("Storage key taken, retrying", "code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, ioFailure("failed to write blob", err)
		}
		s.notifier.NotifyProgress(req.SessionID, 50, PhaseUpload)

		now := s.now()
		file := File{
			Code:       code,
			Name:       req.Name,
			StorageKey: key,
			Size:       size,
			MimeType:   mimeType,
			SessionID:  req.SessionID,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.ttl),
			Available:  true,
		}

		if err := s.registry.Insert(file); err != nil {
			// The blob under key was created by this attempt, so it is ours to drop.
			if derr := s.blobs.Delete(ctx, key); derr != nil {
				s.logger.Error("Failed to delete blob of discarded attempt", "error", derr, "storage_key", key)
			}
			if errors.Is(err, ErrCodeCollision) {
				s.logger.Warn("Code collision, retrying", "code", code, "attempt", attempt)
				continue
			}
			return nil, ioFailure("failed to register file", err)
		}

		if s.journal != nil {
			if err := s.journal.Save(ctx, file); err != nil {
				s.logger.Warn("Failed to journal file", "error", err, "code", code)
			}
		}

		s.notifier.NotifyProgress(req.SessionID, 100, PhaseUpload)
		s.notifier.NotifyComplete(req.SessionID, code, file.Name)

		s.logger.Info("File uploaded", "code", code, "name", file.Name, "size", size)
		return &file, nil
	}

	return nil, fmt.Errorf("%w: no free code after %d attempts", ErrIOFailure, s.maxAttempts)
}

// Download returns the record and a reader for the content of code. Expired
// files and files whose blob disappeared are purged and reported as
// ErrNotFound. The caller must close the reader.
func (s *Service) Download(ctx context.Context, code string) (*File, io.ReadCloser, error) {
	file, content, err := s.download(ctx, code)
	observe("download", err)
	return file, content, err
}

func (s *Service) download(ctx context.Context, code string) (*File, io.ReadCloser, error) {
	file, err := s.lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	sessionID := SessionFromContext(ctx)
	if sessionID != "" {
		s.notifier.NotifyProgress(sessionID, 0, PhaseDownload)
	}

	content, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("Blob missing, purging file", "code", code, "storage_key", file.StorageKey)
			if _, err := s.purge(ctx, file); err != nil {
				s.logger.Error("Failed to purge file", "error", err, "code", code)
			}
			return nil, nil, ErrNotFound
		}
		return nil, nil, ioFailure("failed to read blob", err)
	}

	if sessionID != "" {
		s.notifier.NotifyProgress(sessionID, 100, PhaseDownload)
	}
	return &file, content, nil
}

// Info returns the record for code with the same not-found rules as
// Download, without touching the blob.
func (s *Service) Info(ctx context.Context, code string) (*File, error) {
	file, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// Delete removes a file by code. It reports whether this call removed it;
// of several concurrent calls for one code only one reports true.
func (s *Service) Delete(ctx context.Context, code string) (bool, error) {
	file, ok := s.registry.Remove(code)
	if !ok {
		observe("delete", nil)
		return false, nil
	}
	err := s.release(ctx, file)
	observe("delete", err)
	if err == nil {
		s.logger.Info("File deleted", "code", code)
	}
	return true, err
}

// ActiveCount returns the number of live files
func (s *Service) ActiveCount() int {
	return s.registry.Len()
}

// Restore rebuilds the registry from the journal. Expired files and files
// whose blob is gone are dropped. It returns the number of files restored.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s.journal == nil {
		return 0, nil
	}

	journaled, err := s.journal.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list journal: %w", err)
	}

	now := s.now()
	restored := 0
	for _, file := range journaled {
		if file.Expired(now) {
			if err := s.release(ctx, file); err != nil {
				s.logger.Warn("Failed to drop expired journaled file", "error", err, "code", file.Code)
			}
			continue
		}

		content, err := s.blobs.Get(ctx, file.StorageKey)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.forget(ctx, file.Code)
			} else {
				s.logger.Warn("Failed to check blob", "error", err, "code", file.Code)
			}
			continue
		}
		content.Close()

		file.Available = true
		if err := s.registry.Insert(file); err != nil {
			s.logger.Warn("Failed to restore file", "error", err, "code", file.Code)
			continue
		}
		restored++
	}

	s.logger.Info("Registry restored", "restored", restored, "journaled", len(journaled))
	return restored, nil
}

// lookup returns a live record, lazily purging it if expired
func (s *Service) lookup(ctx context.Context, code string) (File, error) {
	file, ok := s.registry.Get(code)
	if !ok {
		return File{}, ErrNotFound
	}
	if file.Expired(s.now()) {
		if _, err := s.purge(ctx, file); err != nil {
			s.logger.Error("Failed to purge expired file", "error", err, "code", code)
		}
		return File{}, ErrNotFound
	}
	return file, nil
}

// purge removes file from the registry only if the registry still holds this
// exact record, then cleans up after it. It reports whether this call removed it.
func (s *Service) purge(ctx context.Context, file File) (bool, error) {
	removed, ok := s.registry.RemoveIf(file.Code, func(current File) bool {
		return current.StorageKey == file.StorageKey && current.CreatedAt.Equal(file.CreatedAt)
	})
	if !ok {
		return false, nil
	}
	return true, s.release(ctx, removed)
}

// release deletes the blob and journal entry of a file already removed from
// the registry
func (s *Service) release(ctx context.Context, file File) error {
	s.forget(ctx, file.Code)
	if err := s.blobs.Delete(ctx, file.StorageKey); err != nil {
		return ioFailure("failed to delete blob", err)
	}
	return nil
}

func (s *Service) forget(ctx context.Context, code string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Delete(ctx, code); err != nil {
		s.logger.Warn("Failed to delete journal entry", "error", err, "code", code)
	}
}

func ioFailure(msg string, err error) error {
	if errors.Is(err, ErrIOFailure) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIOFailure, msg, err)
}
