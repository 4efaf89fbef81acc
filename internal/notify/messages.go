// Package notify delivers transfer progress to client sessions.
package notify

import (
	"log/slog"
	"time"

	"github.com/pavel-fokin/files-drop/internal/files"
)

// ProgressMessage reports how far an upload or download has come
type ProgressMessage struct {
	Type     string      `json:"type"`
	Phase    files.Phase `json:"phase"`
	Progress int         `json:"progress"`
	Status   string      `json:"status"`
}

// CompleteMessage reports a finished upload and its access code
type CompleteMessage struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Code     string `json:"code"`
	FileName string `json:"file_name"`
	Status   string `json:"status"`
}

// FileStatusMessage answers a client's check request
type FileStatusMessage struct {
	Type        string     `json:"type"`
	Success     bool       `json:"success"`
	Code        string     `json:"code"`
	FileName    string     `json:"file_name,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	UploadTime  *time.Time `json:"upload_time,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// StatsMessage answers a client's stats request
type StatsMessage struct {
	Type        string `json:"type"`
	ActiveFiles int    `json:"active_files"`
	Timestamp   int64  `json:"timestamp"`
}

func progressMessage(percent int, phase files.Phase) ProgressMessage {
	status := "uploading"
	if phase == files.PhaseDownload {
		status = "downloading"
	}
	return ProgressMessage{
		Type:     "progress",
		Phase:    phase,
		Progress: percent,
		Status:   status,
	}
}

func completeMessage(code, fileName string) CompleteMessage {
	return CompleteMessage{
		Type:     "complete",
		Success:  true,
		Code:     code,
		FileName: fileName,
		Status:   "completed",
	}
}

// Multi fans every event out to several notifiers
type Multi []files.Notifier

func (m Multi) NotifyProgress(sessionID string, percent int, phase files.Phase) {
	for _, n := range m {
		n.NotifyProgress(sessionID, percent, phase)
	}
}

func (m Multi) NotifyComplete(sessionID, code, fileName string) {
	for _, n := range m {
		n.NotifyComplete(sessionID, code, fileName)
	}
}

// Log writes events to a logger at debug level
type Log struct {
	Logger *slog.Logger
}

func (l Log) NotifyProgress(sessionID string, percent int, phase files.Phase) {
	l.Logger.Debug("Transfer progress", "session_id", sessionID, "phase", phase, "progress", percent)
}

func (l Log) NotifyComplete(sessionID, code, fileName string) {
	l.Logger.Debug("Upload complete", "session_id", sessionID, "code", code, "file_name", fileName)
}
