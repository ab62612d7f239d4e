package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/compliance-guard-backend/internal/domain/compliance"
)

func TestReapOnce(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	reaper := NewReaper(store, zaptest.NewLogger(t),
		WithReaperClock(clock),
		WithSessionTimeout(60*time.Minute))
	ctx := context.Background()

	stale, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	clock.Advance(61 * time.Minute)
	fresh, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	assert.Equal(t, 1, reaper.ReapOnce(ctx))

	record, ok := store.Get(ctx, stale)
	require.True(t, ok)
	assert.Equal(t, StatusTimeout, record.Status)

	record, ok = store.Get(ctx, fresh)
	require.True(t, ok)
	assert.Equal(t, StatusActive, record.Status)
}

func TestReapOnceExactBoundary(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	reaper := NewReaper(store, zaptest.NewLogger(t),
		WithReaperClock(clock),
		WithSessionTimeout(60*time.Minute))
	ctx := context.Background()

	id, err := store.Create(ctx, "acme-corp", "compliance_check")
	require.NoError(t, err)

	// Idle for exactly the timeout: still reaped, the cutoff is inclusive.
	clock.Advance(60 * time.Minute)
	assert.Equal(t, 1, reaper.ReapOnce(ctx))

	record, _ := store.Get(ctx, id)
	assert.Equal(t, StatusTimeout, record.Status)
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	clock := &compliance.MockClock{CurrentTime: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	reaper := NewReaper(store, zaptest.NewLogger(t),
		WithReaperClock(clock),
		WithReapInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}
