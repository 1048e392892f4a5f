package reporting

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/juggajay/site-proof-sub003/pkg/lots"
	"github.com/juggajay/site-proof-sub003/pkg/ncr"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, ncr.NewStore(db).AutoMigrate())
	require.NoError(t, lots.NewStore(db).AutoMigrate())
	return db
}

func seed(t *testing.T, db *gorm.DB, number string, status ncr.Status, severity ncr.Severity, revisions int, lessons string, age time.Duration) {
	t.Helper()
	record := &ncr.NCRRecord{
		ProjectID:      "proj-1",
		Number:         number,
		Status:         string(status),
		Severity:       string(severity),
		RevisionCount:  revisions,
		LessonsLearned: lessons,
		Description:    "seeded",
		RaisedBy:       "seed",
	}
	require.NoError(t, ncr.NewStore(db).Create(record))
	require.NoError(t, db.Model(&ncr.NCRRecord{}).Where("id = ?", record.ID).
		Update("created_at", time.Now().Add(-age)).Error)
}

func TestStore_Summarize(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	seed(t, db, "NCR-0001", ncr.StatusOpen, ncr.SeverityMajor, 0, "", 4*24*time.Hour)
	seed(t, db, "NCR-0002", ncr.StatusVerification, ncr.SeverityMajor, 2, "", 2*24*time.Hour)
	seed(t, db, "NCR-0003", ncr.StatusClosed, ncr.SeverityMajor, 1, "", 10*24*time.Hour)
	seed(t, db, "NCR-0004", ncr.StatusRectification, ncr.SeverityMinor, 0,
		"[REOPENED 2026-03-01T10:00:00Z by alice] leak returned", 6*24*time.Hour)
	seed(t, db, "NCR-0005", ncr.StatusClosedConcession, ncr.SeverityMinor, 0, "", 8*24*time.Hour)

	// An NCR on another project must not leak in.
	other := &ncr.NCRRecord{
		ProjectID: "proj-2", Number: "NCR-0001", Status: string(ncr.StatusOpen),
		Severity: string(ncr.SeverityMajor), Description: "x", RaisedBy: "seed",
	}
	require.NoError(t, ncr.NewStore(db).Create(other))

	lotStore := lots.NewStore(db)
	for i, status := range []lots.Status{lots.StatusNCRRaised, lots.StatusNCRRaised, lots.StatusInProgress} {
		require.NoError(t, lotStore.Create(&lots.Lot{
			ID:        fmt.Sprintf("lot-%d", i+1),
			ProjectID: "proj-1",
			Number:    fmt.Sprintf("LOT-%d", i+1),
			Status:    string(status),
		}))
	}

	summary, err := store.Summarize("proj-1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Total)
	assert.Equal(t, int64(1), summary.ByStatus[string(ncr.StatusOpen)])
	assert.Equal(t, int64(1), summary.ByStatus[string(ncr.StatusClosed)])
	assert.Equal(t, int64(3), summary.BySeverity[string(ncr.SeverityMajor)])
	assert.Equal(t, int64(2), summary.BySeverity[string(ncr.SeverityMinor)])
	assert.Equal(t, int64(2), summary.OpenMajor)
	assert.Equal(t, int64(3), summary.TotalRevisions)
	assert.Equal(t, int64(1), summary.Reopened)
	assert.Equal(t, int64(2), summary.BlockedLots)

	// Three open NCRs aged 4, 2 and 6 days.
	assert.InDelta(t, 4.0, summary.AvgOpenAgeDays, 0.1)
}

func TestStore_SummarizeEmptyProject(t *testing.T) {
	store := NewStore(newTestDB(t))

	summary, err := store.Summarize("proj-empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Total)
	assert.Empty(t, summary.ByStatus)
	assert.Zero(t, summary.AvgOpenAgeDays)
	assert.Zero(t, summary.TotalRevisions)
}
