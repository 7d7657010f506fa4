// Package ptychan owns the pseudo-terminal side of the console host: it
// spawns the shell attached to a pty slave, exposes blocking chunk reads
// from the master, negotiates window geometry with the kernel, and queues
// best-effort writes back to the shell through a ring buffer drained by a
// background writer goroutine.
//
// Read-error classification is the session's shutdown signal: EIO from the
// master means the peer process is gone (an expected terminal condition,
// not a failure), anything else is a real I/O error.
package ptychan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"

	"github.com/srg/fbshell/internal/groutine"
)

// ErrPeerClosed reports that the pty peer (the shell) has gone away. The
// session treats it as a graceful end, exit code 0.
var ErrPeerClosed = errors.New("pty peer closed")

// DefaultWriteQueueSize is the ring capacity for the best-effort write path
// (terminal-generated replies and encoded key input).
const DefaultWriteQueueSize = 4096

// DefaultShell is executed when neither the options nor $SHELL name one.
const DefaultShell = "/bin/sh"

// Options configures Spawn. Zero values use defaults.
type Options struct {
	Shell          string         // shell binary ("" = $SHELL, then DefaultShell)
	WriteQueueSize int            // write ring capacity in bytes (0 = default)
	Logger         *logrus.Logger // optional (nil = no-op logger)
}

var noopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Channel is one live pty session: the master fd plus the child handle.
type Channel struct {
	master *os.File
	cmd    *exec.Cmd
	logger *logrus.Logger

	writeBuf    *ringbuffer.RingBuffer
	writeNotify chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed uint32

	// metrics
	droppedWrite uint64
	writeBytes   uint64
	readBytes    uint64
}

// Stats are instantaneous counters for monitoring the write path.
type Stats struct {
	WriteQueueLen     int
	WriteQueueCap     int
	DroppedWriteCount uint64
	WriteBytesTotal   uint64
	ReadBytesTotal    uint64
}

// Spawn forks the shell on a fresh pty. The child execs the resolved shell
// with no arguments and the pty slave as its controlling terminal; a failed
// exec surfaces here as a setup error. The parent keeps only the master.
func Spawn(opts Options) (*Channel, error) {
	shell := opts.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = DefaultShell
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger
	}

	cmd := exec.Command(shell)
	cmd.Env = os.Environ()

	master, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("spawn shell %s on pty: %w", shell, err)
	}

	logger.WithFields(logrus.Fields{
		"shell": shell,
		"pid":   cmd.Process.Pid,
	}).Info("Shell spawned on pty")

	c := newChannel(master, cmd, opts.WriteQueueSize, logger)

	// Reap the child so a shell that exits on its own does not linger as a
	// zombie while the read loop is still draining output.
	groutine.Go(c.ctx, "pty-child-wait", func(ctx context.Context) {
		err := cmd.Wait()
		logger.WithField("pid", cmd.Process.Pid).WithError(err).Debug("Shell process exited")
	})

	return c, nil
}

// newChannel wraps an already-open master fd. Split from Spawn so tests can
// drive the channel over a plain pipe.
func newChannel(master *os.File, cmd *exec.Cmd, queueSize int, logger *logrus.Logger) *Channel {
	if queueSize <= 0 {
		queueSize = DefaultWriteQueueSize
	}
	if logger == nil {
		logger = noopLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		master:      master,
		cmd:         cmd,
		logger:      logger,
		writeBuf:    ringbuffer.New(queueSize),
		writeNotify: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}

	c.wg.Add(1)
	groutine.Go(ctx, "pty-write-loop", func(ctx context.Context) {
		c.writeLoop()
	})

	return c
}

// Resize pushes the window geometry to the kernel pty driver (TIOCSWINSZ).
// Called once after the engine reports its cell grid, and again on any
// later geometry change.
func (c *Channel) Resize(rows, cols, pixelWidth, pixelHeight uint16) error {
	ws := pty.Winsize{
		Rows: rows,
		Cols: cols,
		X:    pixelWidth,
		Y:    pixelHeight,
	}
	if err := pty.Setsize(c.master, &ws); err != nil {
		return fmt.Errorf("set pty window size %dx%d: %w", cols, rows, err)
	}
	c.logger.WithFields(logrus.Fields{
		"rows": rows, "cols": cols, "px": pixelWidth, "py": pixelHeight,
	}).Debug("Pty window size set")
	return nil
}

// ReadChunk blocks until shell output arrives. Returns the classified
// terminal conditions: io.EOF for a graceful close, ErrPeerClosed when the
// peer process exited (EIO), and a wrapped OS error otherwise. A non-zero n
// must be consumed even when err is non-nil.
func (c *Channel) ReadChunk(buf []byte) (int, error) {
	n, err := c.master.Read(buf)
	if n > 0 {
		atomic.AddUint64(&c.readBytes, uint64(n))
	}
	if err == nil {
		return n, nil
	}
	return n, c.classifyReadError(err)
}

func (c *Channel) classifyReadError(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		return io.EOF
	case errors.Is(err, os.ErrClosed):
		// Master closed locally during shutdown; same as a graceful end.
		return io.EOF
	case errors.Is(err, syscall.EIO):
		return fmt.Errorf("pty read: %w", ErrPeerClosed)
	default:
		return fmt.Errorf("pty read: %w", err)
	}
}

// WriteBytes queues terminal-generated bytes for the shell: cursor-position
// replies, encoded keyboard input. Best-effort by contract; when the ring is
// full the overflow is dropped and counted, never surfaced as an error,
// since the shell side may already be gone.
func (c *Channel) WriteBytes(data []byte) {
	if atomic.LoadUint32(&c.closed) == 1 || len(data) == 0 {
		return
	}

	written, err := c.writeBuf.Write(data)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		c.logger.WithError(err).Warn("Pty write queue error")
		return
	}
	if written < len(data) {
		dropped := len(data) - written
		atomic.AddUint64(&c.droppedWrite, uint64(dropped))
		c.logger.WithField("dropped", dropped).Warn("Pty write queue overflow")
	}

	select {
	case c.writeNotify <- struct{}{}:
	default:
	}
}

func (c *Channel) writeLoop() {
	defer c.wg.Done()

	// Capture the fd reference; Close nils nothing until the loop exits.
	master := c.master
	buf := make([]byte, 4096)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.writeNotify:
		}

		for {
			n, err := c.writeBuf.TryRead(buf)
			if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
				c.logger.WithError(err).Warn("Pty write queue read error")
				break
			}
			if n == 0 {
				break
			}

			offset := 0
			for offset < n {
				written, werr := master.Write(buf[offset:n])
				if written > 0 {
					offset += written
					atomic.AddUint64(&c.writeBytes, uint64(written))
				}
				if werr != nil {
					if errors.Is(werr, syscall.EINTR) {
						continue
					}
					if errors.Is(werr, os.ErrClosed) || errors.Is(werr, syscall.EBADF) {
						c.logger.Debug("Pty write loop exiting: master closed")
						return
					}
					// Best-effort path: the shell may be gone already.
					c.logger.WithError(werr).Warn("Pty write failed, dropping chunk")
					break
				}
			}
		}
	}
}

// Pid returns the shell's process id, or 0 when the channel wraps a bare fd.
func (c *Channel) Pid() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Stats returns instantaneous write-path counters.
func (c *Channel) Stats() Stats {
	return Stats{
		WriteQueueLen:     c.writeBuf.Length(),
		WriteQueueCap:     c.writeBuf.Capacity(),
		DroppedWriteCount: atomic.LoadUint64(&c.droppedWrite),
		WriteBytesTotal:   atomic.LoadUint64(&c.writeBytes),
		ReadBytesTotal:    atomic.LoadUint64(&c.readBytes),
	}
}

// Close stops the writer goroutine and closes the master fd. Idempotent.
func (c *Channel) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return nil
	}

	c.cancel()
	err := c.master.Close()
	c.wg.Wait()
	if err != nil {
		return fmt.Errorf("close pty master: %w", err)
	}
	return nil
}
