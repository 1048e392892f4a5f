// Package lots tracks construction lot records and their inspection status.
// The NCR engine flips a lot to ncr_raised while a defect blocks it and back
// to in_progress once the last open NCR against it closes.
package lots

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Status is a lot's workflow status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusNCRRaised  Status = "ncr_raised"
	StatusCompleted  Status = "completed"
)

// Lot is a GORM model for a construction lot.
type Lot struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	ProjectID   string    `gorm:"column:project_id;index;not null"`
	Number      string    `gorm:"column:number;not null"`
	Description string    `gorm:"column:description"`
	Status      string    `gorm:"column:status;default:pending;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (Lot) TableName() string { return "lots" }

// Store provides CRUD operations for lot records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new lot Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the lots table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Lot{}); err != nil {
		return fmt.Errorf("auto-migrate lots: %w", err)
	}
	return nil
}

// Create inserts a new lot.
func (s *Store) Create(lot *Lot) error {
	if lot.Status == "" {
		lot.Status = string(StatusPending)
	}
	if err := s.db.Create(lot).Error; err != nil {
		return fmt.Errorf("create lot: %w", err)
	}
	return nil
}

// Get retrieves a lot by ID. Returns nil, nil if no record exists.
func (s *Store) Get(id string) (*Lot, error) {
	var lot Lot
	err := s.db.Where("id = ?", id).First(&lot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

// ListByIDs retrieves lots for the given IDs.
func (s *Store) ListByIDs(ids []string) ([]Lot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var lotsOut []Lot
	if err := s.db.Where("id IN ?", ids).Find(&lotsOut).Error; err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lotsOut, nil
}

// SetStatus updates a lot's status using the given DB handle, which may be a
// transaction owned by the caller.
func SetStatus(db *gorm.DB, lotID string, status Status) error {
	result := db.Model(&Lot{}).Where("id = ?", lotID).Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("set lot status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lot %s not found", lotID)
	}
	return nil
}
