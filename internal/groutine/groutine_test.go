package groutine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGo_PropagatesName(t *testing.T) {
	names := make(chan string, 1)

	//nolint:staticcheck // nil parent is part of the contract
	Go(nil, "session-loop", func(ctx context.Context) {
		names <- GetName(ctx)
	})

	assert.Equal(t, "session-loop", <-names)
}

func TestGoTracked_WaitsForCompletion(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i := 0; i < 5; i++ {
		GoTracked(context.Background(), &wg, "worker", func(ctx context.Context) {
			mu.Lock()
			done++
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 5, done)
}

func TestGetName_WithoutLabel(t *testing.T) {
	assert.Empty(t, GetName(context.Background()))
	//nolint:staticcheck // nil context is handled
	assert.Empty(t, GetName(nil))
}
