package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/pavel-fokin/files-drop/internal/config"
	"github.com/pavel-fokin/files-drop/internal/files"
	"github.com/pavel-fokin/files-drop/internal/fs"
	"github.com/pavel-fokin/files-drop/internal/notify"
	"github.com/pavel-fokin/files-drop/internal/s3"
	"github.com/pavel-fokin/files-drop/internal/server"
	"github.com/pavel-fokin/files-drop/internal/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	hub := notify.NewHub(logger)
	notifiers := notify.Multi{hub, notify.Log{Logger: logger}}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is not reachable", "error", err)
		}

		publisher := notify.NewRedisPublisher(client, cfg.RedisPrefix, logger)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	opts := []files.Option{
		files.WithNotifier(notifiers),
		files.WithLogger(logger),
	}
	if cfg.DBPath != "" {
		repo, err := sqlite.NewRepository(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer repo.Close()
		opts = append(opts, files.WithJournal(repo))
	}

	svc := files.NewService(blobs, files.NewRegistry(), cfg.TTL, opts...)
	restored, err := svc.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore files: %w", err)
	}
	if restored > 0 {
		logger.Info("Restored files from journal", "count", restored)
	}

	sweeper := files.NewSweeper(svc, cfg.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := server.New(cfg.Addr, cfg.MaxSize, svc, hub)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", cfg.Addr, "storage", cfg.Storage, "ttl", cfg.TTL.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (files.BlobStore, error) {
	switch cfg.Storage {
	case config.StorageS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		storage, err := fs.NewStorage(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		return storage, nil
	}
}
