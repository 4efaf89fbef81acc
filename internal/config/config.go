// Package config loads files-drop settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

type Config struct {
	Addr            string        `env:"FILES_DROP_ADDR" envDefault:":8080"`
	DataDir         string        `env:"FILES_DROP_DATA_DIR" envDefault:"uploads"`
	MaxSize         int64         `env:"FILES_DROP_MAX_SIZE" envDefault:"104857600"`
	TTL             time.Duration `env:"FILES_DROP_TTL" envDefault:"24h"`
	SweepInterval   time.Duration `env:"FILES_DROP_SWEEP_INTERVAL" envDefault:"1h"`
	DBPath          string        `env:"FILES_DROP_DB_PATH"`
	LogLevel        string        `env:"FILES_DROP_LOG_LEVEL" envDefault:"info"`
	Storage         string        `env:"FILES_DROP_STORAGE" envDefault:"fs"`
	S3Bucket        string        `env:"FILES_DROP_S3_BUCKET"`
	S3Prefix        string        `env:"FILES_DROP_S3_PREFIX"`
	RedisURL        string        `env:"FILES_DROP_REDIS_URL"`
	RedisPrefix     string        `env:"FILES_DROP_REDIS_CHANNEL_PREFIX" envDefault:"files-drop"`
	ShutdownTimeout time.Duration `env:"FILES_DROP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads .env if present, then parses and validates the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.TTL <= 0 {
		errs = append(errs, errors.New("FILES_DROP_TTL must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("FILES_DROP_SWEEP_INTERVAL must be positive"))
	}
	if c.MaxSize <= 0 {
		errs = append(errs, errors.New("FILES_DROP_MAX_SIZE must be positive"))
	}
	switch c.Storage {
	case StorageFS:
		if c.DataDir == "" {
			errs = append(errs, errors.New("FILES_DROP_DATA_DIR is required for fs storage"))
		}
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("FILES_DROP_S3_BUCKET is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown FILES_DROP_STORAGE %q", c.Storage))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger builds the JSON logger at the configured level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown FILES_DROP_LOG_LEVEL %q", s)
}
