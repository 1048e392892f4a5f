package ncr

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberStore assigns per-project sequential NCR numbers (NCR-0001, ...).
// It uses a dedicated counter row incremented under a row lock, so two
// simultaneous creators never compute the same number. Numbers are never
// reused: the counter only moves forward.
type NumberStore struct {
	db *gorm.DB
}

// NewNumberStore creates a new NumberStore.
func NewNumberStore(db *gorm.DB) *NumberStore {
	return &NumberStore{db: db}
}

// AutoMigrate creates or updates the sequence table.
func (s *NumberStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ProjectSequence{}); err != nil {
		return fmt.Errorf("auto-migrate ncr_sequences: %w", err)
	}
	return nil
}

// Next returns the next number for the project, formatted NCR-0001.
func (s *NumberStore) Next(projectID string) (string, error) {
	var assigned int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		n, err := s.nextInTx(tx, projectID)
		if err != nil {
			return err
		}
		assigned = n
		return nil
	})
	if err != nil {
		return "", err
	}
	return FormatNumber(assigned), nil
}

// nextInTx increments and returns the counter inside an existing transaction.
func (s *NumberStore) nextInTx(tx *gorm.DB, projectID string) (int, error) {
	var seq ProjectSequence
	err := lockForUpdate(tx).Where("project_id = ?", projectID).First(&seq).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return 0, fmt.Errorf("read ncr sequence: %w", err)
		}
		// Two first creators on a fresh project can both miss the row;
		// DO NOTHING lets the loser fall through to the locked re-read
		// instead of failing on the unique key.
		seq = ProjectSequence{ProjectID: projectID, NextNumber: 1}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
			return 0, fmt.Errorf("create ncr sequence: %w", err)
		}
		if err := lockForUpdate(tx).Where("project_id = ?", projectID).First(&seq).Error; err != nil {
			return 0, fmt.Errorf("reread ncr sequence: %w", err)
		}
	}
	assigned := seq.NextNumber
	if err := tx.Model(&ProjectSequence{}).
		Where("project_id = ?", projectID).
		Update("next_number", assigned+1).Error; err != nil {
		return 0, fmt.Errorf("advance ncr sequence: %w", err)
	}
	return assigned, nil
}

// FormatNumber renders a sequence value as the human-readable NCR number.
func FormatNumber(n int) string {
	return fmt.Sprintf("NCR-%04d", n)
}

// lockForUpdate applies a FOR UPDATE row lock on dialects that support it.
// SQLite has no row locks; its single-writer model already serializes the
// read-modify-write window.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
