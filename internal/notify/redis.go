package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavel-fokin/files-drop/internal/files"
)

// Publisher is the part of the redis client used for pub/sub
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type envelope struct {
	channel string
	payload []byte
}

// RedisPublisher publishes notifications to <prefix>:session:<id> channels.
// A single worker publishes in order, so per-session progress stays monotonic.
type RedisPublisher struct {
	client  Publisher
	prefix  string
	timeout time.Duration
	logger  *slog.Logger

	queue     chan envelope
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRedisPublisher starts the publishing worker. Call Close to flush and stop it.
func NewRedisPublisher(client Publisher, prefix string, logger *slog.Logger) *RedisPublisher {
	p := &RedisPublisher{
		client:  client,
		prefix:  prefix,
		timeout: 2 * time.Second,
		logger:  logger.With(slog.String("component", "redis_notify")),
		queue:   make(chan envelope, 256),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// NotifyProgress implements files.Notifier
func (p *RedisPublisher) NotifyProgress(sessionID string, percent int, phase files.Phase) {
	p.publish(sessionID, progressMessage(percent, phase))
}

// NotifyComplete implements files.Notifier
func (p *RedisPublisher) NotifyComplete(sessionID, code, fileName string) {
	p.publish(sessionID, completeMessage(code, fileName))
}

// Channel returns the pub/sub channel for a session
func (p *RedisPublisher) Channel(sessionID string) string {
	return p.prefix + ":session:" + sessionID
}

// Close publishes what is queued and stops the worker
func (p *RedisPublisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *RedisPublisher) publish(sessionID string, msg any) {
	if sessionID == "" {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- envelope{channel: p.Channel(sessionID), payload: data}:
	default:
		p.logger.Warn("Notification queue full, dropping event", "session_id", sessionID)
	}
}

func (p *RedisPublisher) run() {
	defer p.wg.Done()

	for env := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.client.Publish(ctx, env.channel, env.payload).Err(); err != nil {
			p.logger.Warn("Failed to publish notification", "error", err, "channel", env.channel)
		}
		cancel()
	}
}
