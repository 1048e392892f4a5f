package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetention_Sweep(t *testing.T) {
	store := newTestStore(t)
	seedEvents(t, store, "ncr-1", 5)

	// Seeded events are backdated to 2026-03-01, far outside the window.
	NewRetention(store, 24*time.Hour, 0, nil).Sweep()

	_, _, total, err := store.ListByEntity("ncr", "ncr-1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestRetention_SweepKeepsRecentEvents(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(&EventRecord{
		ID:         "evt-recent",
		ProjectID:  "proj-1",
		Actor:      "alice",
		Action:     "ncr.created",
		EntityType: "ncr",
		EntityID:   "ncr-1",
		Outcome:    "success",
	}))

	NewRetention(store, 24*time.Hour, 0, nil).Sweep()

	_, _, total, err := store.ListByEntity("ncr", "ncr-1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRetention_RunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	retention := NewRetention(store, time.Hour, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		retention.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention did not stop after context cancel")
	}
}
