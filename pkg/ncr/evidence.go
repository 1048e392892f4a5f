package ncr

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juggajay/site-proof-sub003/pkg/docstore"
)

// EvidenceStore manages the evidence links between NCRs and documents.
// The closed-status guard lives in the engine, which owns the NCR record.
type EvidenceStore struct {
	db *gorm.DB
}

// NewEvidenceStore creates a new EvidenceStore.
func NewEvidenceStore(db *gorm.DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

// Link attaches a document to the NCR with the given evidence type.
func (s *EvidenceStore) Link(ncrID, documentID string, evidenceType EvidenceType) (*EvidenceLink, error) {
	if evidenceType == "" {
		evidenceType = EvidenceOther
	}
	link := &EvidenceLink{
		ID:           uuid.New().String(),
		NCRID:        ncrID,
		DocumentID:   documentID,
		EvidenceType: string(evidenceType),
	}
	if err := s.db.Create(link).Error; err != nil {
		return nil, fmt.Errorf("link evidence: %w", err)
	}
	return link, nil
}

// Get retrieves an evidence link by ID. Returns nil, nil if no record exists.
func (s *EvidenceStore) Get(id string) (*EvidenceLink, error) {
	var link EvidenceLink
	err := s.db.Where("id = ?", id).First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get evidence link: %w", err)
	}
	return &link, nil
}

// ListByNCR returns the NCR's evidence links, oldest first.
func (s *EvidenceStore) ListByNCR(ncrID string) ([]EvidenceLink, error) {
	var links []EvidenceLink
	if err := s.db.Where("ncr_id = ?", ncrID).Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return links, nil
}

// Count returns how many evidence links the NCR has.
func (s *EvidenceStore) Count(ncrID string) (int64, error) {
	var count int64
	if err := s.db.Model(&EvidenceLink{}).Where("ncr_id = ?", ncrID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count evidence: %w", err)
	}
	return count, nil
}

// Unlink removes an evidence link.
func (s *EvidenceStore) Unlink(id string) error {
	result := s.db.Where("id = ?", id).Delete(&EvidenceLink{})
	if result.Error != nil {
		return fmt.Errorf("unlink evidence: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("evidence %s: %w", id, ErrNotFound)
	}
	return nil
}

// resolveItems joins evidence links with their documents.
func resolveItems(links []EvidenceLink, docs map[string]docstore.Document) []EvidenceItem {
	items := make([]EvidenceItem, 0, len(links))
	for _, link := range links {
		item := EvidenceItem{
			ID:           link.ID,
			EvidenceType: EvidenceType(link.EvidenceType),
			CreatedAt:    link.CreatedAt.Format(time.RFC3339),
		}
		if doc, ok := docs[link.DocumentID]; ok {
			d := doc
			item.Document = &d
		}
		items = append(items, item)
	}
	return items
}

// GroupItems buckets evidence items by type for UI rendering.
func GroupItems(items []EvidenceItem) EvidenceGroups {
	groups := EvidenceGroups{
		Photos:       []EvidenceItem{},
		Certificates: []EvidenceItem{},
		Other:        []EvidenceItem{},
	}
	for _, item := range items {
		switch item.EvidenceType {
		case EvidencePhoto:
			groups.Photos = append(groups.Photos, item)
		case EvidenceCertificate:
			groups.Certificates = append(groups.Certificates, item)
		default:
			groups.Other = append(groups.Other, item)
		}
	}
	return groups
}
