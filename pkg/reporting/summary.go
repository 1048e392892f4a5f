// Package reporting derives per-project NCR analytics from the live tables.
// Everything here is read-only aggregation; nothing mutates workflow state.
package reporting

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/juggajay/site-proof-sub003/pkg/lots"
	"github.com/juggajay/site-proof-sub003/pkg/ncr"
)

// Summary aggregates a project's NCR workload.
type Summary struct {
	ProjectID      string           `json:"projectId"`
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"byStatus"`
	BySeverity     map[string]int64 `json:"bySeverity"`
	OpenMajor      int64            `json:"openMajor"`
	TotalRevisions int64            `json:"totalRevisions"`
	AvgOpenAgeDays float64          `json:"avgOpenAgeDays"`
	Reopened       int64            `json:"reopened"`
	BlockedLots    int64            `json:"blockedLots"`
	GeneratedAt    string           `json:"generatedAt"`
}

// Store computes NCR summaries.
type Store struct {
	db *gorm.DB
}

// NewStore creates a reporting Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var closedStatuses = []string{
	string(ncr.StatusClosed),
	string(ncr.StatusClosedConcession),
}

// Summarize builds the project summary in a handful of aggregate queries.
func (s *Store) Summarize(projectID string) (*Summary, error) {
	summary := &Summary{
		ProjectID:   projectID,
		ByStatus:    make(map[string]int64),
		BySeverity:  make(map[string]int64),
		GeneratedAt: time.Now().Format(time.RFC3339),
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	err := s.db.Model(&ncr.NCRRecord{}).
		Select("status AS key, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, b := range byStatus {
		summary.ByStatus[b.Key] = b.Count
		summary.Total += b.Count
	}

	var bySeverity []bucket
	err = s.db.Model(&ncr.NCRRecord{}).
		Select("severity AS key, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("severity").
		Scan(&bySeverity).Error
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	for _, b := range bySeverity {
		summary.BySeverity[b.Key] = b.Count
	}

	err = s.db.Model(&ncr.NCRRecord{}).
		Where("project_id = ? AND severity = ? AND status NOT IN ?",
			projectID, string(ncr.SeverityMajor), closedStatuses).
		Count(&summary.OpenMajor).Error
	if err != nil {
		return nil, fmt.Errorf("count open major: %w", err)
	}

	var totalRevisions *int64
	err = s.db.Model(&ncr.NCRRecord{}).
		Select("SUM(revision_count)").
		Where("project_id = ?", projectID).
		Scan(&totalRevisions).Error
	if err != nil {
		return nil, fmt.Errorf("sum revisions: %w", err)
	}
	if totalRevisions != nil {
		summary.TotalRevisions = *totalRevisions
	}

	var openCreated []time.Time
	err = s.db.Model(&ncr.NCRRecord{}).
		Where("project_id = ? AND status NOT IN ?", projectID, closedStatuses).
		Pluck("created_at", &openCreated).Error
	if err != nil {
		return nil, fmt.Errorf("list open ages: %w", err)
	}
	if len(openCreated) > 0 {
		now := time.Now()
		var totalDays float64
		for _, created := range openCreated {
			totalDays += now.Sub(created).Hours() / 24
		}
		summary.AvgOpenAgeDays = totalDays / float64(len(openCreated))
	}

	// A reopen annotates lessons_learned; count records carrying the marker.
	err = s.db.Model(&ncr.NCRRecord{}).
		Where("project_id = ? AND lessons_learned LIKE ?", projectID, "[REOPENED %").
		Count(&summary.Reopened).Error
	if err != nil {
		return nil, fmt.Errorf("count reopened: %w", err)
	}

	err = s.db.Model(&lots.Lot{}).
		Where("project_id = ? AND status = ?", projectID, string(lots.StatusNCRRaised)).
		Count(&summary.BlockedLots).Error
	if err != nil {
		return nil, fmt.Errorf("count blocked lots: %w", err)
	}

	return summary, nil
}
