package files

import "context"

// Phase names the transfer direction a progress event belongs to
type Phase string

const (
	PhaseUpload   Phase = "upload"
	PhaseDownload Phase = "download"
)

// Notifier receives transfer progress for a client session.
// Implementations must not block the caller; delivery is best effort.
type Notifier interface {
	NotifyProgress(sessionID string, percent int, phase Phase)
	NotifyComplete(sessionID, code, fileName string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyProgress(string, int, Phase) {}
func (nopNotifier) NotifyComplete(string, string, string) {}

type sessionKey struct{}

// WithSession attaches a client session to ctx so Download can report progress
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session attached by WithSession, if any
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
