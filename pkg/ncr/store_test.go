package ncr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNCR(t *testing.T, store *Store, projectID, number string, status Status, severity Severity, createdAt time.Time) *NCRRecord {
	t.Helper()
	record := &NCRRecord{
		ProjectID:   projectID,
		Number:      number,
		Status:      string(status),
		Severity:    string(severity),
		Description: "seeded",
		RaisedBy:    "seed",
	}
	require.NoError(t, store.Create(record))
	// Backdate for deterministic pagination ordering.
	require.NoError(t, store.db.Model(&NCRRecord{}).Where("id = ?", record.ID).
		Update("created_at", createdAt).Error)
	record.CreatedAt = createdAt
	return record
}

func TestStore_GetReturnsNilForMissing(t *testing.T) {
	store := NewStore(newTestDB(t))

	record, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, record)

	err = store.Update("nope", map[string]any{"status": "open"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListByProject(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		severity := SeverityMinor
		if i%2 == 0 {
			severity = SeverityMajor
		}
		status := StatusOpen
		if i == 4 {
			status = StatusClosed
		}
		seedNCR(t, store, "proj-a", FormatNumber(i+1), status, severity,
			base.Add(time.Duration(i)*time.Hour))
	}
	seedNCR(t, store, "proj-b", "NCR-0001", StatusOpen, SeverityMinor, base)

	// Unfiltered, newest first.
	records, token, total, err := store.ListByProject("proj-a", "", "", 10, "")
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, 5, total)
	require.Len(t, records, 5)
	assert.Equal(t, "NCR-0005", records[0].Number)
	assert.Equal(t, "NCR-0001", records[4].Number)

	// Status filter.
	records, _, total, err = store.ListByProject("proj-a", StatusOpen, "", 10, "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, records, 4)

	// Severity filter.
	records, _, total, err = store.ListByProject("proj-a", "", SeverityMajor, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, records, 3)

	// Pagination walks the whole set without overlap.
	var collected []string
	pageToken := ""
	for {
		page, next, _, err := store.ListByProject("proj-a", "", "", 2, pageToken)
		require.NoError(t, err)
		for _, r := range page {
			collected = append(collected, r.Number)
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	assert.Equal(t, []string{"NCR-0005", "NCR-0004", "NCR-0003", "NCR-0002", "NCR-0001"}, collected)

	// Bad token.
	_, _, _, err = store.ListByProject("proj-a", "", "", 10, "not-a-time")
	assert.Error(t, err)
}

func TestStore_OpenNCRCountForLot(t *testing.T) {
	store := NewStore(newTestDB(t))
	base := time.Now()

	open := seedNCR(t, store, "proj-a", "NCR-0001", StatusRectification, SeverityMinor, base)
	closed := seedNCR(t, store, "proj-a", "NCR-0002", StatusClosed, SeverityMinor, base)
	concession := seedNCR(t, store, "proj-a", "NCR-0003", StatusClosedConcession, SeverityMinor, base)
	subject := seedNCR(t, store, "proj-a", "NCR-0004", StatusVerification, SeverityMinor, base)

	for _, r := range []*NCRRecord{open, closed, concession, subject} {
		require.NoError(t, store.LinkLot(r.ID, "lot-1"))
	}

	// Both closed states are excluded, as is the NCR being closed itself.
	count, err := store.OpenNCRCountForLot("lot-1", subject.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.OpenNCRCountForLot("lot-1", open.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.OpenNCRCountForLot("lot-2", subject.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
