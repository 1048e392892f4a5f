package ncr

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an NCR, lot or evidence record does not exist.
var ErrNotFound = errors.New("not found")

// Store provides persistence for NCR records and their lot links.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new NCR Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the NCR tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&NCRRecord{}); err != nil {
		return fmt.Errorf("auto-migrate ncrs: %w", err)
	}
	if err := s.db.AutoMigrate(&LotLink{}); err != nil {
		return fmt.Errorf("auto-migrate ncr_lots: %w", err)
	}
	if err := s.db.AutoMigrate(&EvidenceLink{}); err != nil {
		return fmt.Errorf("auto-migrate ncr_evidence: %w", err)
	}
	if err := s.db.AutoMigrate(&ProjectSequence{}); err != nil {
		return fmt.Errorf("auto-migrate ncr_sequences: %w", err)
	}
	return nil
}

// withTx returns a Store bound to the given transaction handle.
func (s *Store) withTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Transaction runs fn inside a database transaction with a tx-bound store.
func (s *Store) Transaction(fn func(txStore *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(s.withTx(tx))
	})
}

// Create inserts a new NCR record.
func (s *Store) Create(record *NCRRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("create ncr: %w", err)
	}
	return nil
}

// Get retrieves an NCR by ID. Returns nil, nil if no record exists.
func (s *Store) Get(id string) (*NCRRecord, error) {
	var record NCRRecord
	err := s.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get ncr: %w", err)
	}
	return &record, nil
}

// GetForUpdate retrieves an NCR with a row lock, pinning it for the duration
// of the enclosing transaction so concurrent transitions serialize.
func (s *Store) GetForUpdate(id string) (*NCRRecord, error) {
	var record NCRRecord
	err := lockForUpdate(s.db).Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get ncr for update: %w", err)
	}
	return &record, nil
}

// Update applies a partial update to the NCR. Transitions write only the
// fields their contract changes, never a blanket overwrite.
func (s *Store) Update(id string, updates map[string]any) error {
	result := s.db.Model(&NCRRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update ncr: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ncr %s: %w", id, ErrNotFound)
	}
	return nil
}

// LinkLot joins the NCR to a lot.
func (s *Store) LinkLot(ncrID, lotID string) error {
	link := &LotLink{ID: uuid.New().String(), NCRID: ncrID, LotID: lotID}
	if err := s.db.Create(link).Error; err != nil {
		return fmt.Errorf("link lot: %w", err)
	}
	return nil
}

// LotIDs returns the IDs of lots linked to the NCR.
func (s *Store) LotIDs(ncrID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&LotLink{}).Where("ncr_id = ?", ncrID).Pluck("lot_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list ncr lots: %w", err)
	}
	return ids, nil
}

// OpenNCRCountForLot counts NCRs against the lot that are not closed,
// excluding the given NCR. Used on close to decide whether the lot can
// revert to in_progress.
func (s *Store) OpenNCRCountForLot(lotID, excludeNCRID string) (int64, error) {
	var count int64
	err := s.db.Model(&LotLink{}).
		Joins("JOIN ncrs ON ncrs.id = ncr_lots.ncr_id").
		Where("ncr_lots.lot_id = ?", lotID).
		Where("ncr_lots.ncr_id <> ?", excludeNCRID).
		Where("ncrs.status NOT IN ?", []string{string(StatusClosed), string(StatusClosedConcession)}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count open ncrs for lot: %w", err)
	}
	return count, nil
}

// ListByProject returns paginated NCRs for a project, newest first,
// optionally filtered by status and/or severity.
// pageToken is an RFC3339Nano created_at timestamp from the previous page.
func (s *Store) ListByProject(projectID string, status Status, severity Severity, pageSize int, pageToken string) ([]NCRRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	baseQuery := s.db.Model(&NCRRecord{}).Where("project_id = ?", projectID)
	if status != "" {
		baseQuery = baseQuery.Where("status = ?", string(status))
	}
	if severity != "" {
		baseQuery = baseQuery.Where("severity = ?", string(severity))
	}

	var totalSize int64
	if err := baseQuery.Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count ncrs: %w", err)
	}

	query := s.db.Where("project_id = ?", projectID).Order("created_at DESC").Limit(pageSize + 1)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	if severity != "" {
		query = query.Where("severity = ?", string(severity))
	}
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var records []NCRRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list ncrs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}
