// Package scheduler streams the current control frame to the link at a fixed rate.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/encoder"
	"github.com/srg/rclink/internal/groutine"
)

// FrameSource supplies the frame to send on each tick.
type FrameSource interface {
	CurrentFrame() encoder.Frame
}

// FrameWriter transmits a frame. Streaming writes never wait for an acknowledgement.
type FrameWriter interface {
	WriteFrame(frame []byte, needsResponse bool) error
}

var ErrInvalidPeriod = errors.New("transmit period must be positive")

// Metrics counts scheduler activity.
type Metrics struct {
	Ticks  uint64
	Errors uint64
}

// Scheduler samples a FrameSource every period and hands the frame to a FrameWriter.
// It runs regardless of link state; the writer decides whether a frame goes out.
type Scheduler struct {
	source FrameSource
	writer FrameWriter
	period time.Duration
	logger *logrus.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticks   atomic.Uint64
	errored atomic.Uint64
}

// New creates a stopped scheduler.
func New(source FrameSource, writer FrameWriter, period time.Duration, logger *logrus.Logger) (*Scheduler, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		source: source,
		writer: writer,
		period: period,
		logger: logger,
	}, nil
}

// Period returns the tick interval.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// Start begins ticking until Stop or ctx cancellation. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.WithField("period", s.period).Debug("Transmit scheduler started")
	groutine.GoTracked(ctx, &s.wg, "transmit-scheduler", s.loop)
}

// Stop halts ticking and waits for an in-flight tick to return. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Debug("Transmit scheduler stopped")
}

// Running reports whether the scheduler is ticking.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Metrics returns tick and error counters.
func (s *Scheduler) Metrics() Metrics {
	return Metrics{Ticks: s.ticks.Load(), Errors: s.errored.Load()}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick sends the current frame once. Write errors are counted and dropped.
func (s *Scheduler) Tick() {
	s.ticks.Add(1)
	if err := s.writer.WriteFrame(s.source.CurrentFrame(), false); err != nil {
		s.errored.Add(1)
		s.logger.WithError(err).Debug("Dropped control frame")
	}
}
