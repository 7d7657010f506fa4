// Package config holds the runtime configuration for the console host.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values load from an optional
// YAML file and may be overridden by command line flags.
type Config struct {
	FramebufferDevice string `yaml:"framebuffer_device" default:"/dev/fb0"`
	KeyboardDevice    string `yaml:"keyboard_device" default:"/dev/input/event0"`
	// MouseDevice is optional; empty disables scroll input.
	MouseDevice string `yaml:"mouse_device" default:"/dev/input/event1"`

	// Shell overrides $SHELL. Empty falls back to $SHELL, then /bin/sh.
	Shell string `yaml:"shell"`

	FrameInterval  time.Duration `yaml:"frame_interval" default:"16ms"`
	ScrollSpeed    int           `yaml:"scroll_speed" default:"5"`
	HistorySize    int           `yaml:"history_size" default:"1000"`
	ColorCacheSize int           `yaml:"color_cache_size" default:"4096"`
	ReadBufferSize int           `yaml:"read_buffer_size" default:"16384"`
	WriteQueueSize int           `yaml:"write_queue_size" default:"4096"`

	LogLevel string `yaml:"log_level" default:"info"`
	LogFile  string `yaml:"log_file"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the session cannot run with.
func (c *Config) Validate() error {
	if c.FramebufferDevice == "" {
		return fmt.Errorf("framebuffer_device must not be empty")
	}
	if c.KeyboardDevice == "" {
		return fmt.Errorf("keyboard_device must not be empty")
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %v", c.FrameInterval)
	}
	if c.ScrollSpeed < 0 {
		return fmt.Errorf("scroll_speed must not be negative, got %d", c.ScrollSpeed)
	}
	if c.HistorySize < 0 {
		return fmt.Errorf("history_size must not be negative, got %d", c.HistorySize)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("read_buffer_size must be positive, got %d", c.ReadBufferSize)
	}
	if c.WriteQueueSize <= 0 {
		return fmt.Errorf("write_queue_size must be positive, got %d", c.WriteQueueSize)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// NewLogger creates a configured logger instance. The console owns the
// framebuffer, so logs go to a file when configured and to stderr
// otherwise; stdout is the controlling terminal being replaced.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	})

	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", c.LogFile, err)
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stderr)
	}

	return logger, nil
}
