package testutils

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/rclink/internal/events"
	"github.com/stretchr/testify/require"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper with a debug-level logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// Collect drains sub until stop returns true for a received value or timeout passes.
// It returns everything received, including the value that satisfied stop.
func Collect[T any](t *testing.T, sub *events.Subscription[T], timeout time.Duration, stop func(T) bool) []T {
	t.Helper()

	var got []T
	deadline := time.After(timeout)
	for {
		select {
		case v, ok := <-sub.C():
			require.True(t, ok, "subscription MUST stay open while collecting")
			got = append(got, v)
			if stop(v) {
				return got
			}
		case <-deadline:
			require.FailNowf(t, "timed out", "condition not met after %s, received %d values", timeout, len(got))
			return got
		}
	}
}

// Drain returns whatever sub delivers until it stays quiet for quiet.
func Drain[T any](sub *events.Subscription[T], quiet time.Duration) []T {
	var got []T
	for {
		select {
		case v, ok := <-sub.C():
			if !ok {
				return got
			}
			got = append(got, v)
		case <-time.After(quiet):
			return got
		}
	}
}
