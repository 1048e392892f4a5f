// Package docstore tracks document records backing NCR evidence attachments.
// It stores metadata only; the bytes live in external object storage under
// the recorded storage key.
package docstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is a GORM model for an uploaded file's metadata.
type Document struct {
	ID          string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	ProjectID   string    `gorm:"column:project_id;index;not null"`
	FileName    string    `gorm:"column:file_name;not null"`
	ContentType string    `gorm:"column:content_type"`
	SizeBytes   int64     `gorm:"column:size_bytes"`
	StorageKey  string    `gorm:"column:storage_key;not null"`
	UploadedBy  string    `gorm:"column:uploaded_by;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Document) TableName() string { return "documents" }

// Store provides CRUD operations for document records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new document Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the documents table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("auto-migrate documents: %w", err)
	}
	return nil
}

// CreateDocument records an uploaded document and returns its ID.
func (s *Store) CreateDocument(doc *Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.StorageKey == "" {
		doc.StorageKey = fmt.Sprintf("projects/%s/documents/%s", doc.ProjectID, doc.ID)
	}
	if err := s.db.Create(doc).Error; err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return doc.ID, nil
}

// Get retrieves a document by ID. Returns nil, nil if no record exists.
func (s *Store) Get(id string) (*Document, error) {
	var doc Document
	err := s.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// ListByIDs retrieves documents for the given IDs, keyed by ID.
func (s *Store) ListByIDs(ids []string) (map[string]Document, error) {
	out := make(map[string]Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var docs []Document
	if err := s.db.Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}
