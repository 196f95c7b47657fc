package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/srg/rclink/internal/encoder"
	"github.com/srg/rclink/internal/scheduler"
	"github.com/srg/rclink/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (w *recordingWriter) WriteFrame(frame []byte, needsResponse bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if needsResponse {
		return errors.New("streaming MUST NOT ask for a response")
	}
	w.frames = append(w.frames, append([]byte(nil), frame...))
	return w.err
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *recordingWriter) last() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return nil
	}
	return w.frames[len(w.frames)-1]
}

func TestNew_RejectsNonPositivePeriod(t *testing.T) {
	_, err := scheduler.New(encoder.New(encoder.Quad, encoder.DefaultVehicleConfig()), &recordingWriter{}, 0, nil)
	assert.ErrorIs(t, err, scheduler.ErrInvalidPeriod)
}

func TestTick_SendsCurrentFrame(t *testing.T) {
	enc := encoder.New(encoder.Car, encoder.DefaultVehicleConfig())
	w := &recordingWriter{}
	s, err := scheduler.New(enc, w, 20*time.Millisecond, testutils.NewTestHelper(t).Logger)
	require.NoError(t, err)

	enc.LeftStickMoved(0, 0.37)
	s.Tick()

	assert.Equal(t, []byte{0x74, 0x0E, 0x00, 0x00}, w.last(), "throttle 0.37 at scale 10000 MUST encode as 3700")
	assert.Equal(t, scheduler.Metrics{Ticks: 1}, s.Metrics())
}

func TestTick_DropsWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("link busy")}
	s, err := scheduler.New(encoder.New(encoder.Quad, encoder.DefaultVehicleConfig()), w, 20*time.Millisecond, nil)
	require.NoError(t, err)

	assert.NotPanics(t, s.Tick)
	s.Tick()

	assert.Equal(t, scheduler.Metrics{Ticks: 2, Errors: 2}, s.Metrics())
}

func TestStartStop_Idempotent(t *testing.T) {
	w := &recordingWriter{}
	s, err := scheduler.New(encoder.New(encoder.Quad, encoder.DefaultVehicleConfig()), w, 5*time.Millisecond, nil)
	require.NoError(t, err)

	s.Stop()
	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.Running())

	assert.Eventually(t, func() bool { return w.count() >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	stopped := w.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, w.count(), "no tick MAY run after Stop returns")
}

func TestStart_StopsWithContext(t *testing.T) {
	w := &recordingWriter{}
	s, err := scheduler.New(encoder.New(encoder.Quad, encoder.DefaultVehicleConfig()), w, 5*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return w.count() >= 1 }, time.Second, time.Millisecond)

	cancel()
	s.Stop()

	after := w.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, w.count())
}

func TestTicks_NeverSeeTornFrames(t *testing.T) {
	// GOAL: Verify ticks read whole frames while sticks move concurrently
	//
	// TEST SCENARIO: writer goroutine flips both quad sticks between two extremes →
	// scheduler ticks concurrently → every sent frame is one of the two consistent states

	enc := encoder.New(encoder.Quad, encoder.DefaultVehicleConfig())
	w := &recordingWriter{}
	s, err := scheduler.New(enc, w, time.Millisecond, nil)
	require.NoError(t, err)

	enc.LeftStickMoved(1, 1)
	high := enc.CurrentFrame()
	enc.LeftStickMoved(-1, -1)
	low := enc.CurrentFrame()

	s.Start(context.Background())
	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			enc.LeftStickMoved(1, 1)
		} else {
			enc.LeftStickMoved(-1, -1)
		}
		s.Tick()
	}
	s.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range w.frames {
		if !assert.True(t, string(f) == string(high) || string(f) == string(low), "frame %x MUST NOT mix two updates", f) {
			return
		}
	}
}
