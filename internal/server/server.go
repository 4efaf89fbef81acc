package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavel-fokin/files-drop/internal/files"
	"github.com/pavel-fokin/files-drop/internal/notify"
)

// FileService is the transfer service the handlers drive
type FileService interface {
	Upload(ctx context.Context, req *files.UploadRequest) (*files.File, error)
	Download(ctx context.Context, code string) (*files.File, io.ReadCloser, error)
	Info(ctx context.Context, code string) (*files.File, error)
	Delete(ctx context.Context, code string) (bool, error)
	ActiveCount() int
}

// New creates the HTTP server
func New(addr string, maxSize int64, fileService FileService, hub *notify.Hub) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewHandler(fileService, hub, maxSize),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// NewHandler wires routes and middleware
func NewHandler(fileService FileService, hub *notify.Hub, maxSize int64) http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware, metricsMiddleware)

	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", hub.Handler(fileService))

	r.Route("/api", func(r chi.Router) {
		r.With(func(next http.Handler) http.Handler {
			return limitBody(next, maxSize)
		}).Post("/upload", uploadFile(fileService))
		r.Get("/download/{code}", downloadFile(fileService))
		r.Get("/file/{code}/info", fileInfo(fileService))
		r.Delete("/file/{code}", deleteFile(fileService))
		r.Get("/stats", stats(fileService))
	})

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type uploadResponse struct {
	Success     bool      `json:"success"`
	Code        string    `json:"code"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type infoResponse struct {
	Success     bool      `json:"success"`
	Code        string    `json:"code"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	UploadTime  time.Time `json:"upload_time"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type statsResponse struct {
	ActiveFiles int   `json:"active_files"`
	Timestamp   int64 `json:"timestamp"`
}

func uploadFile(fileService FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Get file from form
		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeMessage(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeMessage(w, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		sessionID := r.FormValue("session_id")
		if sessionID == "" {
			sessionID = r.Header.Get("X-Session-ID")
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		result, err := fileService.Upload(r.Context(), &files.UploadRequest{
			Name:      header.Filename,
			MimeType:  header.Header.Get("Content-Type"),
			SessionID: sessionID,
			Content:   file,
		})
		if err != nil {
			slog.Error("Upload failed", "error", err, "filename", header.Filename)
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{
			Success:     true,
			Code:        result.Code,
			FileName:    result.Name,
			FileSize:    result.Size,
			ContentType: result.MimeType,
			SessionID:   sessionID,
			ExpiresAt:   result.ExpiresAt,
		})
	}
}

func downloadFile(fileService FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := codeParam(r)

		ctx := r.Context()
		if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
			ctx = files.WithSession(ctx, sessionID)
		}

		file, content, err := fileService.Download(ctx, code)
		if err != nil {
			if !errors.Is(err, files.ErrNotFound) {
				slog.Error("Download failed", "error", err, "code", code)
			}
			writeServiceError(w, err)
			return
		}
		defer content.Close()

		w.Header().Set("Content-Type", file.MimeType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
		w.Header().Set("Content-Length", fmt.Sprintf("%d", file.Size))
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, content); err != nil {
			slog.Warn("Download interrupted", "error", err, "code", code)
		}
	}
}

func fileInfo(fileService FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := fileService.Info(r.Context(), codeParam(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, infoResponse{
			Success:     true,
			Code:        file.Code,
			FileName:    file.Name,
			FileSize:    file.Size,
			ContentType: file.MimeType,
			UploadTime:  file.CreatedAt,
			ExpiresAt:   file.ExpiresAt,
		})
	}
}

func deleteFile(fileService FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := codeParam(r)
		slog.Info("Deleting file", "code", code)

		deleted, err := fileService.Delete(r.Context(), code)
		if err != nil {
			// The registry entry is gone even when blob cleanup fails.
			slog.Error("Delete failed", "error", err, "code", code)
			if !deleted {
				writeServiceError(w, err)
				return
			}
		}
		if !deleted {
			writeMessage(w, http.StatusNotFound, "File not found")
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "File deleted successfully"})
	}
}

func stats(fileService FileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{
			ActiveFiles: fileService.ActiveCount(),
			Timestamp:   time.Now().UnixMilli(),
		})
	}
}

func codeParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrEmptyFile):
		writeMessage(w, http.StatusBadRequest, "File is empty")
	case errors.Is(err, files.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "File not found or expired")
	default:
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
