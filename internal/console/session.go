// Package console wires the PTY, the terminal engine, the display and the
// input devices into one running session. It owns the goroutines and the
// single mutex that serializes access to the engine.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/fbshell/internal/emu"
	"github.com/srg/fbshell/internal/flush"
	"github.com/srg/fbshell/internal/groutine"
	"github.com/srg/fbshell/internal/input"
	"github.com/srg/fbshell/internal/ptychan"
)

// State tracks the session lifecycle for logging and tests.
type State string

const (
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateClosing    State = "closing"
	StateTerminated State = "terminated"
	StateFailed     State = "failed"
)

// PTY is the slice of ptychan.Channel the session drives.
type PTY interface {
	ReadChunk(buf []byte) (int, error)
	WriteBytes(data []byte)
	Resize(rows, cols, pixelWidth, pixelHeight uint16) error
}

// EventSource yields raw input events. input.Reader implements it; tests
// substitute scripted sources.
type EventSource interface {
	Next() (input.Event, error)
}

// Options contains all the configuration for running a session
type Options struct {
	Logger   *logrus.Logger  // Logger instance
	Engine   emu.Engine      // Terminal engine (required)
	Surface  emu.DrawTarget  // Display the engine renders into (required)
	Font     emu.FontManager // Glyph renderer (required)
	PTY      PTY             // Shell channel (required)
	Keyboard EventSource     // Keyboard event source (required)
	Mouse    EventSource     // Mouse event source (nil disables scrolling)

	FrameInterval  time.Duration // Minimum delay between flushes (0 = 16ms)
	ScrollSpeed    int           // History lines per wheel notch
	HistorySize    int           // Scrollback capacity in lines
	ColorCacheSize int           // Engine color blend cache entries
	ReadBufferSize int           // PTY read chunk size (0 = 16384)
}

// DefaultReadBufferSize is the PTY read chunk size when Options leaves it zero.
const DefaultReadBufferSize = 16384

// Session runs one shell on one display until the shell exits or the
// context is canceled.
type Session struct {
	logger *logrus.Logger
	opts   Options

	mu    sync.Mutex // serializes every engine call
	sched *flush.Scheduler

	stateMu sync.Mutex
	state   State

	results chan error
}

// New validates the options, configures the engine and negotiates the
// kernel window size. The engine must not be used by anyone else after
// this call.
func New(opts Options) (*Session, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("failed to create session: engine is required")
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("failed to create session: surface is required")
	}
	if opts.Font == nil {
		return nil, fmt.Errorf("failed to create session: font manager is required")
	}
	if opts.PTY == nil {
		return nil, fmt.Errorf("failed to create session: pty is required")
	}
	if opts.Keyboard == nil {
		return nil, fmt.Errorf("failed to create session: keyboard is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	if opts.FrameInterval == 0 {
		opts.FrameInterval = flush.DefaultInterval
	}
	if opts.ReadBufferSize == 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}

	engine := opts.Engine
	engine.SetAutoFlush(false) // the scheduler decides when pixels move
	if opts.ScrollSpeed > 0 {
		engine.SetScrollSpeed(opts.ScrollSpeed)
	}
	if opts.ColorCacheSize > 0 {
		engine.SetColorCacheSize(opts.ColorCacheSize)
	}
	if opts.HistorySize > 0 {
		engine.SetHistorySize(opts.HistorySize)
	}
	engine.SetPtyWriter(opts.PTY.WriteBytes)
	engine.SetFontManager(opts.Font)

	rows, cols := engine.Rows(), engine.Columns()
	if rows == 0 || cols == 0 {
		w, h := opts.Surface.Size()
		return nil, fmt.Errorf("display %dx%d is smaller than one glyph cell", w, h)
	}

	pixelW, pixelH := opts.Surface.Size()
	if err := opts.PTY.Resize(uint16(rows), uint16(cols), uint16(pixelW), uint16(pixelH)); err != nil {
		return nil, fmt.Errorf("failed to set pty window size: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"rows": rows,
		"cols": cols,
	}).Info("Negotiated terminal geometry")

	return &Session{
		logger:  logger,
		opts:    opts,
		sched:   flush.NewScheduler(opts.FrameInterval, logger),
		state:   StateStarting,
		results: make(chan error, 4),
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = next
	s.stateMu.Unlock()
	s.logger.WithFields(logrus.Fields{
		"from": prev,
		"to":   next,
	}).Debug("Session state changed")
}

// Run blocks until the shell exits, an I/O loop fails, or the context is
// canceled. A clean shell exit and a canceled context both return nil.
//
// Input loops block in device reads and cannot be interrupted from here;
// the caller unblocks them by closing the devices after Run returns.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setState(StateRunning)

	groutine.Go(runCtx, "pty-read-loop", func(context.Context) {
		s.results <- s.readLoop()
	})
	groutine.Go(runCtx, "flush-loop", func(context.Context) {
		s.sched.Run(s.redraw)
	})
	groutine.Go(runCtx, "keyboard-poll", func(context.Context) {
		s.results <- s.keyboardLoop()
	})
	if s.opts.Mouse != nil {
		groutine.Go(runCtx, "mouse-poll", func(context.Context) {
			s.results <- s.mouseLoop()
		})
	}

	var cause error
	select {
	case cause = <-s.results:
	case <-ctx.Done():
		// Shutdown requested from outside (typically a signal).
	}

	s.setState(StateClosing)
	s.sched.Close()

	if cause != nil {
		s.setState(StateFailed)
		return cause
	}
	s.setState(StateTerminated)
	return nil
}

// readLoop pumps shell output into the engine. Returns nil on a clean
// peer close so the session exits gracefully.
func (s *Session) readLoop() error {
	buf := make([]byte, s.opts.ReadBufferSize)
	for {
		n, err := s.opts.PTY.ReadChunk(buf)
		if n > 0 {
			s.mu.Lock()
			s.opts.Engine.Process(buf[:n])
			s.mu.Unlock()
			s.sched.Notify()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ptychan.ErrPeerClosed) {
				s.logger.Info("Shell closed its terminal, shutting down")
				return nil
			}
			return fmt.Errorf("pty read failed: %w", err)
		}
	}
}

func (s *Session) redraw() {
	s.mu.Lock()
	s.opts.Engine.Flush()
	s.mu.Unlock()
}

// keyboardLoop translates evdev key events to scancodes and feeds them to
// the engine byte by byte.
func (s *Session) keyboardLoop() error {
	for {
		ev, err := s.opts.Keyboard.Next()
		if err != nil {
			return fmt.Errorf("keyboard read failed: %w", err)
		}
		if ev.Type != input.EvKey {
			continue
		}
		sc, ok := input.Translate(ev.Code, ev.Pressed())
		if !ok {
			continue
		}

		s.mu.Lock()
		for _, b := range sc.Bytes() {
			s.opts.Engine.HandleKeyboard(b)
		}
		s.mu.Unlock()
		s.sched.Notify()
	}
}

// mouseLoop forwards wheel motion as scroll input.
func (s *Session) mouseLoop() error {
	for {
		ev, err := s.opts.Mouse.Next()
		if err != nil {
			return fmt.Errorf("mouse read failed: %w", err)
		}
		if ev.Type != input.EvRel || ev.Code != input.RelWheel {
			continue
		}

		s.mu.Lock()
		s.opts.Engine.HandleMouse(emu.MouseInput{Scroll: int(ev.Value)})
		s.mu.Unlock()
		s.sched.Notify()
	}
}
