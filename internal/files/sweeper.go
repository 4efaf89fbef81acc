package files

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired files are purged
const DefaultSweepInterval = time.Hour

// SweepResult summarizes one sweep
type SweepResult struct {
	Candidates int
	Purged     int
	Errors     int
	Duration   time.Duration
}

// Sweeper periodically purges expired files and their blobs.
// It shares the purge path with lazy expiry, so a file is cleaned up once.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // serializes RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper for service
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger.With(slog.String("component", "sweeper")),
	}
}

// Start launches the background sweep loop. The first sweep runs immediately.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(ctx)

	sw.logger.Info("Sweeper started", "interval", sw.interval.String())
}

// Stop cancels the sweep loop and waits for it to exit
func (sw *Sweeper) Stop() {
	if sw.cancel == nil {
		return
	}
	sw.cancel()
	<-sw.done
	sw.cancel = nil
	sw.logger.Info("Sweeper stopped")
}

func (sw *Sweeper) run(ctx context.Context) {
	defer close(sw.done)

	sw.RunOnce(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce purges every file expired at the time of the call.
// A failed blob delete is counted and the sweep moves on.
func (sw *Sweeper) RunOnce(ctx context.Context) SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := time.Now()
	var result SweepResult

	candidates := sw.service.registry.ScanExpired(sw.service.now())
	result.Candidates = len(candidates)

	for _, file := range candidates {
		removed, err := sw.service.purge(ctx, file)
		if err != nil {
			sw.logger.Error("Failed to purge expired file",
				"error", err,
				"code", file.Code,
				"storage_key", file.StorageKey,
			)
			result.Errors++
		}
		if removed {
			result.Purged++
		}
	}

	result.Duration = time.Since(start)

	sweepsTotal.Inc()
	sweptFilesTotal.Add(float64(result.Purged))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDuration.Observe(result.Duration.Seconds())

	sw.logger.Info("Sweep finished",
		"candidates", result.Candidates,
		"purged", result.Purged,
		"errors", result.Errors,
		"duration", result.Duration,
	)
	return result
}
