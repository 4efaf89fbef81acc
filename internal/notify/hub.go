package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavel-fokin/files-drop/internal/files"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	maxReadBytes = 4096
)

// FileLookup answers the check and stats requests clients send over the socket
type FileLookup interface {
	Info(ctx context.Context, code string) (*files.File, error)
	ActiveCount() int
}

// Hub pushes notifications to websocket clients subscribed by session id.
// Each client has its own bounded queue; a full queue drops events instead
// of blocking the transfer.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type client struct {
	conn    *websocket.Conn
	session string
	send    chan []byte
}

type request struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// NewHub creates a hub with no subscribers
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(slog.String("component", "notify")),
	}
}

// NotifyProgress implements files.Notifier
func (h *Hub) NotifyProgress(sessionID string, percent int, phase files.Phase) {
	h.broadcast(sessionID, progressMessage(percent, phase))
}

// NotifyComplete implements files.Notifier
func (h *Hub) NotifyComplete(sessionID, code, fileName string) {
	h.broadcast(sessionID, completeMessage(code, fileName))
}

// Subscribers returns the number of clients listening on a session
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Handler upgrades GET /ws?session=<id> to a websocket subscription
func (h *Hub) Handler(lookup FileLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := r.URL.Query().Get("session")
		if session == "" {
			http.Error(w, "session is required", http.StatusBadRequest)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("Failed to upgrade websocket connection", "error", err)
			return
		}

		c := &client{
			conn:    conn,
			session: session,
			send:    make(chan []byte, sendBuffer),
		}
		h.register(c)
		go h.writePump(c)
		h.readPump(c, lookup)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[c.session] == nil {
		h.sessions[c.session] = make(map[*client]struct{})
	}
	h.sessions[c.session][c] = struct{}{}
}

// unregister removes c and closes its queue, which stops its write pump
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[c.session]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, c.session)
	}
	close(c.send)
}

func (h *Hub) broadcast(sessionID string, msg any) {
	if sessionID == "" {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.sessions[sessionID] {
		h.enqueueLocked(c, data)
	}
}

// enqueueLocked must be called with h.mu held
func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Debug("Client queue full, dropping event", "session_id", c.session)
	}
}

func (h *Hub) reply(c *client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.sessions[c.session][c]; ok {
		h.enqueueLocked(c, data)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *Hub) readPump(c *client, lookup FileLookup) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxReadBytes)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		switch req.Type {
		case "check":
			h.reply(c, fileStatus(lookup, req.Code))
		case "stats":
			h.reply(c, StatsMessage{
				Type:        "stats",
				ActiveFiles: lookup.ActiveCount(),
				Timestamp:   time.Now().UnixMilli(),
			})
		}
	}
}

func fileStatus(lookup FileLookup, code string) FileStatusMessage {
	code = strings.ToUpper(strings.TrimSpace(code))
	file, err := lookup.Info(context.Background(), code)
	if err != nil {
		return FileStatusMessage{
			Type:    "file_status",
			Success: false,
			Code:    code,
			Message: "File not found or expired",
		}
	}
	return FileStatusMessage{
		Type:        "file_status",
		Success:     true,
		Code:        file.Code,
		FileName:    file.Name,
		FileSize:    file.Size,
		ContentType: file.MimeType,
		UploadTime:  &file.CreatedAt,
	}
}
