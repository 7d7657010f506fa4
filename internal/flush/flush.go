// Package flush rate-limits screen redraws. Producers signal "something
// changed" as often as they like; the scheduler collapses bursts into at
// most one redraw per frame interval, bounding redraw cost under
// high-throughput PTY output.
package flush

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval caps redraws at roughly 60 Hz.
const DefaultInterval = 16 * time.Millisecond

// Scheduler coalesces redraw signals and paces redraws to a minimum
// inter-frame interval. Notify never blocks and is safe from any goroutine;
// Run is driven by exactly one goroutine.
type Scheduler struct {
	interval time.Duration
	logger   *logrus.Logger

	// A one-slot channel is all the queue this needs: a pending signal
	// already means "redraw as soon as the interval allows", and further
	// signals are equivalent to it.
	signals chan struct{}
	quit    chan struct{}
	once    sync.Once
}

// NewScheduler creates a scheduler. A non-positive interval falls back to
// DefaultInterval.
func NewScheduler(interval time.Duration, logger *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		logger:   logger,
		signals:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
}

// Interval returns the configured minimum inter-frame interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Notify queues a redraw request. Non-blocking: if a signal is already
// pending the new one coalesces into it.
func (s *Scheduler) Notify() {
	select {
	case s.signals <- struct{}{}:
	default:
	}
}

// Run blocks driving redraws until Close is called. For each wakeup it
// enforces the frame interval, drains any signals that piled up during the
// wait, performs exactly one redraw, and records the new frame time.
func (s *Scheduler) Run(redraw func()) {
	// Start the clock at entry so even the first redraw paces a full
	// interval, giving startup bursts a window to coalesce.
	last := time.Now()

	for {
		select {
		case <-s.quit:
			return
		case <-s.signals:
		}

		if elapsed := time.Since(last); elapsed < s.interval {
			time.Sleep(s.interval - elapsed)
		}

		// Drain signals that arrived while pacing so a burst becomes one
		// redraw instead of N.
		select {
		case <-s.signals:
		default:
		}

		redraw()
		last = time.Now()
	}
}

// Close stops Run. Idempotent; pending signals after Close are discarded.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		close(s.quit)
		if s.logger != nil {
			s.logger.Debug("Flush scheduler closed")
		}
	})
}
