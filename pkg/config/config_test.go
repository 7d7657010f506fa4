package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/fb0", cfg.FramebufferDevice)
	assert.Equal(t, "/dev/input/event0", cfg.KeyboardDevice)
	assert.Equal(t, "/dev/input/event1", cfg.MouseDevice)
	assert.Equal(t, "", cfg.Shell)
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 5, cfg.ScrollSpeed)
	assert.Equal(t, 1000, cfg.HistorySize)
	assert.Equal(t, 4096, cfg.ColorCacheSize)
	assert.Equal(t, 16384, cfg.ReadBufferSize)
	assert.Equal(t, 4096, cfg.WriteQueueSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestDefaultConfig_Valid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fbshell.yaml")
	content := `
framebuffer_device: /dev/fb1
shell: /bin/bash
frame_interval: 33ms
scroll_speed: 3
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "/dev/fb1", cfg.FramebufferDevice)
	assert.Equal(t, "/bin/bash", cfg.Shell)
	assert.Equal(t, 33*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, 3, cfg.ScrollSpeed)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched values keep their defaults
	assert.Equal(t, "/dev/input/event0", cfg.KeyboardDevice)
	assert.Equal(t, 1000, cfg.HistorySize)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame_interval: [oops"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty framebuffer device",
			mutate: func(c *Config) { c.FramebufferDevice = "" },
		},
		{
			name:   "empty keyboard device",
			mutate: func(c *Config) { c.KeyboardDevice = "" },
		},
		{
			name:   "zero frame interval",
			mutate: func(c *Config) { c.FrameInterval = 0 },
		},
		{
			name:   "negative scroll speed",
			mutate: func(c *Config) { c.ScrollSpeed = -1 },
		},
		{
			name:   "negative history size",
			mutate: func(c *Config) { c.HistorySize = -1 },
		},
		{
			name:   "zero read buffer",
			mutate: func(c *Config) { c.ReadBufferSize = 0 },
		},
		{
			name:   "zero write queue",
			mutate: func(c *Config) { c.WriteQueueSize = 0 },
		},
		{
			name:   "bogus log level",
			mutate: func(c *Config) { c.LogLevel = "chatty" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_EmptyMouseAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MouseDevice = ""
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			want:     logrus.InfoLevel,
		},
		{
			name:     "creates logger with warn level",
			logLevel: "warning",
			want:     logrus.WarnLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			want:     logrus.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = tt.logLevel

			logger, err := cfg.NewLogger()
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_NewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fbshell.log")
	cfg := DefaultConfig()
	cfg.LogFile = path

	logger, err := cfg.NewLogger()
	require.NoError(t, err)

	logger.Info("session start")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session start")
}

func TestConfig_NewLogger_BadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "nope"

	_, err := cfg.NewLogger()
	assert.Error(t, err)
}
