package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSpacesCalls(t *testing.T) {
	l := New(50*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// first permit is immediate, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestWaitSharedAcrossGoroutines(t *testing.T) {
	l := New(40*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Wait(ctx))
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 110*time.Millisecond)
}

func TestWaitBudget(t *testing.T) {
	l := New(0, 2)
	ctx := context.Background()

	assert.NoError(t, l.Wait(ctx))
	assert.NoError(t, l.Wait(ctx))
	assert.ErrorIs(t, l.Wait(ctx), ErrBudgetExhausted)

	stats := l.Stats()
	assert.Equal(t, 2, stats["used"])
	assert.Equal(t, 1, stats["denied"])
}

func TestWaitCancelled(t *testing.T) {
	l := New(time.Hour, 0)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
}
