// Package ncr implements the Non-Conformance Report lifecycle engine: the
// state machine tracking a quality defect from raise through investigation,
// rectification, verification and closure, with revision loops, a QM approval
// gate for major defects, client notification, and reopening.
package ncr

import (
	"github.com/juggajay/site-proof-sub003/pkg/docstore"
	"github.com/juggajay/site-proof-sub003/pkg/lots"
)

// Status is an NCR's workflow status.
type Status string

const (
	StatusOpen             Status = "open"
	StatusInvestigating    Status = "investigating"
	StatusRectification    Status = "rectification"
	StatusVerification     Status = "verification"
	StatusClosed           Status = "closed"
	StatusClosedConcession Status = "closed_concession"
)

// Statuses lists every defined status value.
var Statuses = []Status{
	StatusOpen,
	StatusInvestigating,
	StatusRectification,
	StatusVerification,
	StatusClosed,
	StatusClosedConcession,
}

// IsClosed reports whether the status is one of the two closed states.
func (s Status) IsClosed() bool {
	return s == StatusClosed || s == StatusClosedConcession
}

// Severity classifies a defect. Major defects require QM approval before
// closure and a client notification.
type Severity string

const (
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

// EvidenceType tags an evidence attachment.
type EvidenceType string

const (
	EvidencePhoto       EvidenceType = "photo"
	EvidenceCertificate EvidenceType = "certificate"
	EvidenceOther       EvidenceType = "other"
)

// CreateInput is the payload for raising a new NCR.
type CreateInput struct {
	Category          string   `json:"category"`
	Severity          Severity `json:"severity"`
	Description       string   `json:"description"`
	ResponsibleUserID string   `json:"responsibleUserId,omitempty"`
	DueDate           string   `json:"dueDate,omitempty"` // RFC3339
	LotIDs            []string `json:"lotIds,omitempty"`
}

// RespondInput is the payload for submitting the initial investigation response.
type RespondInput struct {
	RootCauseCategory    string `json:"rootCauseCategory"`
	RootCauseDescription string `json:"rootCauseDescription"`
	ProposedAction       string `json:"proposedAction"`
}

// ReviewDecision is the QM's verdict on a submitted response.
type ReviewDecision string

const (
	ReviewAccept          ReviewDecision = "accept"
	ReviewRequestRevision ReviewDecision = "request_revision"
)

// ReviewInput is the payload for the QM review transition.
type ReviewInput struct {
	Decision ReviewDecision `json:"decision"`
	Comments string         `json:"comments,omitempty"`
}

// RectifyInput is the payload for recording rectification work.
type RectifyInput struct {
	Notes string `json:"notes"`
}

// RejectInput is the payload for rejecting a submitted rectification.
type RejectInput struct {
	Feedback string `json:"feedback"`
}

// CloseInput is the payload for the close transition.
type CloseInput struct {
	Concession               bool   `json:"concession,omitempty"`
	ConcessionJustification  string `json:"concessionJustification,omitempty"`
	ConcessionRiskAssessment string `json:"concessionRiskAssessment,omitempty"`
	LessonsLearned           string `json:"lessonsLearned,omitempty"`
}

// ReopenInput is the payload for reopening a closed NCR.
type ReopenInput struct {
	Reason string `json:"reason"`
}

// ReassignInput is the payload for changing the responsible party.
type ReassignInput struct {
	ResponsibleUserID string `json:"responsibleUserId"`
}

// EvidenceInput is the payload for attaching evidence.
type EvidenceInput struct {
	EvidenceType EvidenceType `json:"evidenceType"`
	FileName     string       `json:"fileName"`
	ContentType  string       `json:"contentType,omitempty"`
	SizeBytes    int64        `json:"sizeBytes,omitempty"`
}

// EvidenceItem is an API-facing evidence attachment with its document.
type EvidenceItem struct {
	ID           string             `json:"id"`
	EvidenceType EvidenceType       `json:"evidenceType"`
	Document     *docstore.Document `json:"document,omitempty"`
	CreatedAt    string             `json:"createdAt"`
}

// EvidenceGroups lists evidence grouped by type.
type EvidenceGroups struct {
	Photos       []EvidenceItem `json:"photos"`
	Certificates []EvidenceItem `json:"certificates"`
	Other        []EvidenceItem `json:"other"`
}

// Resolved is the full NCR with the associations the UI needs.
type Resolved struct {
	NCR      NCRRecord      `json:"ncr"`
	Lots     []lots.Lot     `json:"lots"`
	Evidence []EvidenceItem `json:"evidence"`
}

// List is a paginated list of NCRs.
type List struct {
	NCRs          []NCRRecord `json:"ncrs"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
	TotalSize     int         `json:"totalSize"`
}
