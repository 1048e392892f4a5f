package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func seedEvents(t *testing.T, store *Store, entityID string, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		event := &EventRecord{
			ID:         fmt.Sprintf("evt-%s-%d", entityID, i),
			ProjectID:  "proj-1",
			Actor:      "alice",
			Action:     "ncr.created",
			EntityType: "ncr",
			EntityID:   entityID,
			Outcome:    "success",
			Changes:    JSONAny{"seq": float64(i)},
		}
		require.NoError(t, store.Append(event))
		require.NoError(t, store.db.Model(&EventRecord{}).Where("id = ?", event.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}
}

func TestStore_AppendAndRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append(&EventRecord{
		ID:         "evt-1",
		ProjectID:  "proj-1",
		Actor:      "alice",
		Action:     "ncr.clientNotified",
		EntityType: "ncr",
		EntityID:   "ncr-1",
		Outcome:    "success",
		Changes:    JSONAny{"number": "NCR-0001", "severity": "major"},
	}))

	records, _, total, err := store.ListByEntity("ncr", "ncr-1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "NCR-0001", records[0].Changes["number"])

	event := ToEvent(records[0])
	assert.Equal(t, "ncr.clientNotified", event.Action)
	assert.Equal(t, "major", event.Changes["severity"])
}

func TestStore_ListByEntityPagination(t *testing.T) {
	store := newTestStore(t)
	seedEvents(t, store, "ncr-1", 7)
	seedEvents(t, store, "ncr-2", 2)

	// First page, newest first.
	page, token, total, err := store.ListByEntity("ncr", "ncr-1", 3, "")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, page, 3)
	assert.NotEmpty(t, token)
	assert.Equal(t, "evt-ncr-1-6", page[0].ID)

	// Walk the rest.
	var ids []string
	for _, r := range page {
		ids = append(ids, r.ID)
	}
	for token != "" {
		page, token, _, err = store.ListByEntity("ncr", "ncr-1", 3, token)
		require.NoError(t, err)
		for _, r := range page {
			ids = append(ids, r.ID)
		}
	}
	assert.Len(t, ids, 7)
	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "event %s returned twice", id)
		seen[id] = true
	}

	// Other entities are untouched.
	_, _, total, err = store.ListByEntity("ncr", "ncr-2", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	seedEvents(t, store, "ncr-1", 5)

	cutoff := time.Date(2026, 3, 1, 8, 3, 0, 0, time.UTC)
	deleted, err := store.DeleteOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, _, total, err := store.ListByEntity("ncr", "ncr-1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
