package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/fbshell/internal/console"
	"github.com/srg/fbshell/internal/emu/bitmapfont"
	"github.com/srg/fbshell/internal/emu/grid"
	"github.com/srg/fbshell/internal/fb"
	"github.com/srg/fbshell/internal/input"
	"github.com/srg/fbshell/internal/ptychan"
	"github.com/srg/fbshell/internal/vtcon"
	"github.com/srg/fbshell/pkg/config"
)

var (
	flagConfig        string
	flagFramebuffer   string
	flagKeyboard      string
	flagMouse         string
	flagShell         string
	flagFrameInterval time.Duration
	flagScrollSpeed   int
	flagHistorySize   int
	flagLogLevel      string
	flagLogFile       string
)

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "Config file (YAML)")
	rootCmd.Flags().StringVar(&flagFramebuffer, "fb", "", "Framebuffer device (default /dev/fb0)")
	rootCmd.Flags().StringVar(&flagKeyboard, "keyboard", "", "Keyboard evdev device (default /dev/input/event0)")
	rootCmd.Flags().StringVar(&flagMouse, "mouse", "", "Mouse evdev device, empty disables scrolling (default /dev/input/event1)")
	rootCmd.Flags().StringVar(&flagShell, "shell", "", "Shell to run (default $SHELL, then /bin/sh)")
	rootCmd.Flags().DurationVar(&flagFrameInterval, "frame-interval", 0, "Minimum delay between screen flushes (default 16ms)")
	rootCmd.Flags().IntVar(&flagScrollSpeed, "scroll-speed", 0, "History lines per mouse wheel notch (default 5)")
	rootCmd.Flags().IntVar(&flagHistorySize, "history-size", 0, "Scrollback capacity in lines (default 1000)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Log file; logs go to stderr when unset")
}

// loadConfig merges defaults, the optional config file and explicit flags,
// flags winning.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("fb") {
		cfg.FramebufferDevice = flagFramebuffer
	}
	if flags.Changed("keyboard") {
		cfg.KeyboardDevice = flagKeyboard
	}
	if flags.Changed("mouse") {
		cfg.MouseDevice = flagMouse
	}
	if flags.Changed("shell") {
		cfg.Shell = flagShell
	}
	if flags.Changed("frame-interval") {
		cfg.FrameInterval = flagFrameInterval
	}
	if flags.Changed("scroll-speed") {
		cfg.ScrollSpeed = flagScrollSpeed
	}
	if flags.Changed("history-size") {
		cfg.HistorySize = flagHistorySize
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	return runSession(cfg, logger)
}

func runSession(cfg *config.Config, logger *logrus.Logger) error {
	surface, err := fb.Open(cfg.FramebufferDevice, logger)
	if err != nil {
		return fmt.Errorf("failed to open framebuffer: %w", err)
	}
	defer surface.Close()

	keyboard, err := input.OpenReader(cfg.KeyboardDevice, logger)
	if err != nil {
		return fmt.Errorf("failed to open keyboard device: %w", err)
	}
	defer keyboard.Close()

	// The mouse is a nicety; a missing device only costs scrolling.
	var mouse console.EventSource
	if cfg.MouseDevice != "" {
		reader, err := input.OpenReader(cfg.MouseDevice, logger)
		if err != nil {
			logger.WithError(err).WithField("device", cfg.MouseDevice).
				Warn("Mouse device unavailable, scrolling disabled")
		} else {
			defer reader.Close()
			mouse = reader
		}
	}

	pty, err := ptychan.Spawn(ptychan.Options{
		Shell:          cfg.Shell,
		WriteQueueSize: cfg.WriteQueueSize,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to spawn shell: %w", err)
	}
	defer pty.Close()

	vt, err := vtcon.TakeControl(int(os.Stdout.Fd()), logger)
	if err != nil {
		return fmt.Errorf("failed to take over virtual terminal: %w", err)
	}
	defer vt.Release()

	engine := grid.New(surface)
	session, err := console.New(console.Options{
		Logger:         logger,
		Engine:         engine,
		Surface:        surface,
		Font:           bitmapfont.New(),
		PTY:            pty,
		Keyboard:       keyboard,
		Mouse:          mouse,
		FrameInterval:  cfg.FrameInterval,
		ScrollSpeed:    cfg.ScrollSpeed,
		HistorySize:    cfg.HistorySize,
		ColorCacheSize: cfg.ColorCacheSize,
		ReadBufferSize: cfg.ReadBufferSize,
	})
	if err != nil {
		return err
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		logger.Info("Received interrupt signal, shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"shell": cfg.Shell,
		"pid":   pty.Pid(),
	}).Info("Console session starting")

	return session.Run(ctx)
}
