package config

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "uploads", cfg.DataDir)
	assert.Equal(t, int64(100<<20), cfg.MaxSize)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, StorageFS, cfg.Storage)
	assert.Empty(t, cfg.DBPath)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "files-drop", cfg.RedisPrefix)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FILES_DROP_ADDR", ":9090")
	t.Setenv("FILES_DROP_TTL", "1ms")
	t.Setenv("FILES_DROP_SWEEP_INTERVAL", "30s")
	t.Setenv("FILES_DROP_STORAGE", "s3")
	t.Setenv("FILES_DROP_S3_BUCKET", "drops")
	t.Setenv("FILES_DROP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, time.Millisecond, cfg.TTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, StorageS3, cfg.Storage)
	assert.Equal(t, "drops", cfg.S3Bucket)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FILES_DROP_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DataDir:       "uploads",
			MaxSize:       1024,
			TTL:           time.Hour,
			SweepInterval: time.Minute,
			Storage:       StorageFS,
			LogLevel:      "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero ttl", func(c *Config) { c.TTL = 0 }, "FILES_DROP_TTL"},
		{"negative interval", func(c *Config) { c.SweepInterval = -time.Second }, "FILES_DROP_SWEEP_INTERVAL"},
		{"zero max size", func(c *Config) { c.MaxSize = 0 }, "FILES_DROP_MAX_SIZE"},
		{"s3 without bucket", func(c *Config) { c.Storage = StorageS3 }, "FILES_DROP_S3_BUCKET"},
		{"unknown storage", func(c *Config) { c.Storage = "tape" }, "FILES_DROP_STORAGE"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "FILES_DROP_LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn"}

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
