package ncr

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/juggajay/site-proof-sub003/pkg/audit"
	"github.com/juggajay/site-proof-sub003/pkg/docstore"
)

// AddEvidence records an uploaded document and links it to the NCR as
// evidence. Evidence may be attached in any non-closed status; the ≥1
// precondition is enforced on submit-for-verification, not here.
func (e *Engine) AddEvidence(ctx context.Context, actorID, ncrID string, in EvidenceInput) (*EvidenceItem, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireProjectAccess(ctx, actorID, record.ProjectID); err != nil {
		return nil, err
	}
	if in.FileName == "" {
		return nil, fmt.Errorf("%w: fileName is required", ErrInvalidInput)
	}
	if Status(record.Status).IsClosed() {
		return nil, &TransitionError{
			Code:    CodeClosed,
			From:    Status(record.Status),
			Message: "cannot attach evidence to a closed NCR",
		}
	}

	var item *EvidenceItem
	err = e.db.Transaction(func(tx *gorm.DB) error {
		doc := &docstore.Document{
			ProjectID:   record.ProjectID,
			FileName:    in.FileName,
			ContentType: in.ContentType,
			SizeBytes:   in.SizeBytes,
			UploadedBy:  actorID,
		}
		docID, err := docstore.NewStore(tx).CreateDocument(doc)
		if err != nil {
			return err
		}
		link, err := (&EvidenceStore{db: tx}).Link(ncrID, docID, in.EvidenceType)
		if err != nil {
			return err
		}
		item = &EvidenceItem{
			ID:           link.ID,
			EvidenceType: EvidenceType(link.EvidenceType),
			Document:     doc,
			CreatedAt:    link.CreatedAt.Format(time.RFC3339),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.evidenceAdded", ncrID, audit.JSONAny{
		"evidenceId":   item.ID,
		"evidenceType": string(item.EvidenceType),
		"fileName":     in.FileName,
	})
	return item, nil
}

// ListEvidence returns the NCR's evidence grouped by type.
func (e *Engine) ListEvidence(ctx context.Context, actorID, ncrID string) (*EvidenceGroups, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireProjectAccess(ctx, actorID, record.ProjectID); err != nil {
		return nil, err
	}

	links, err := e.evidence.ListByNCR(ncrID)
	if err != nil {
		return nil, err
	}
	docIDs := make([]string, 0, len(links))
	for _, link := range links {
		docIDs = append(docIDs, link.DocumentID)
	}
	docs, err := e.docs.ListByIDs(docIDs)
	if err != nil {
		return nil, err
	}
	groups := GroupItems(resolveItems(links, docs))
	return &groups, nil
}

// DeleteEvidence removes an evidence link. Blocked once the NCR is closed so
// the closure record stays intact.
func (e *Engine) DeleteEvidence(ctx context.Context, actorID, ncrID, evidenceID string) error {
	record, err := e.load(ncrID)
	if err != nil {
		return err
	}
	if err := e.requireProjectAccess(ctx, actorID, record.ProjectID); err != nil {
		return err
	}
	if Status(record.Status).IsClosed() {
		return &TransitionError{
			Code:    CodeClosed,
			From:    Status(record.Status),
			Message: "cannot remove evidence from a closed NCR",
		}
	}

	link, err := e.evidence.Get(evidenceID)
	if err != nil {
		return err
	}
	if link == nil || link.NCRID != ncrID {
		return fmt.Errorf("evidence %s: %w", evidenceID, ErrNotFound)
	}
	if err := e.evidence.Unlink(evidenceID); err != nil {
		return err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.evidenceRemoved", ncrID, audit.JSONAny{
		"evidenceId": evidenceID,
	})
	return nil
}
