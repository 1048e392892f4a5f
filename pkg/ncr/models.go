package ncr

import (
	"time"
)

// NCRRecord is the GORM model for a Non-Conformance Report.
//
// qm_approval_required and client_notification_required are derived from
// severity at creation and never change afterwards; severity itself is
// immutable post-creation.
type NCRRecord struct {
	ID        string `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	ProjectID string `gorm:"column:project_id;index;uniqueIndex:idx_ncr_project_number,priority:1;not null" json:"projectId"`
	Number    string `gorm:"column:number;uniqueIndex:idx_ncr_project_number,priority:2;not null" json:"number"`

	Category          string     `gorm:"column:category" json:"category"`
	Severity          string     `gorm:"column:severity;not null" json:"severity"`
	RootCauseCategory *string    `gorm:"column:root_cause_category" json:"rootCauseCategory,omitempty"`
	Status            string     `gorm:"column:status;index;default:open;not null" json:"status"`
	DueDate           *time.Time `gorm:"column:due_date" json:"dueDate,omitempty"`
	RevisionCount     int        `gorm:"column:revision_count;default:0;not null" json:"revisionCount"`
	RevisionRequested bool       `gorm:"column:revision_requested;default:false;not null" json:"revisionRequested"`

	QMApprovalRequired         bool       `gorm:"column:qm_approval_required;default:false;not null" json:"qmApprovalRequired"`
	QMApprovedAt               *time.Time `gorm:"column:qm_approved_at" json:"qmApprovedAt,omitempty"`
	QMApprovedBy               string     `gorm:"column:qm_approved_by" json:"qmApprovedBy,omitempty"`
	ClientNotificationRequired bool       `gorm:"column:client_notification_required;default:false;not null" json:"clientNotificationRequired"`
	ClientNotifiedAt           *time.Time `gorm:"column:client_notified_at" json:"clientNotifiedAt,omitempty"`

	Description              string  `gorm:"column:description;type:text;not null" json:"description"`
	RootCauseDescription     *string `gorm:"column:root_cause_description;type:text" json:"rootCauseDescription,omitempty"`
	ProposedAction           *string `gorm:"column:proposed_action;type:text" json:"proposedAction,omitempty"`
	RectificationNotes       string  `gorm:"column:rectification_notes;type:text" json:"rectificationNotes,omitempty"`
	VerificationNotes        string  `gorm:"column:verification_notes;type:text" json:"verificationNotes,omitempty"`
	LessonsLearned           string  `gorm:"column:lessons_learned;type:text" json:"lessonsLearned,omitempty"`
	ConcessionJustification  string  `gorm:"column:concession_justification;type:text" json:"concessionJustification,omitempty"`
	ConcessionRiskAssessment string  `gorm:"column:concession_risk_assessment;type:text" json:"concessionRiskAssessment,omitempty"`
	ReviewComments           string  `gorm:"column:review_comments;type:text" json:"reviewComments,omitempty"`

	RaisedBy          string `gorm:"column:raised_by;not null" json:"raisedBy"`
	ResponsibleUserID string `gorm:"column:responsible_user_id;index" json:"responsibleUserId,omitempty"`
	ReviewedBy        string `gorm:"column:reviewed_by" json:"reviewedBy,omitempty"`
	VerifiedBy        string `gorm:"column:verified_by" json:"verifiedBy,omitempty"`
	ClosedBy          string `gorm:"column:closed_by" json:"closedBy,omitempty"`

	ResponseSubmittedAt      *time.Time `gorm:"column:response_submitted_at" json:"responseSubmittedAt,omitempty"`
	ReviewedAt               *time.Time `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	RectificationSubmittedAt *time.Time `gorm:"column:rectification_submitted_at" json:"rectificationSubmittedAt,omitempty"`
	VerifiedAt               *time.Time `gorm:"column:verified_at" json:"verifiedAt,omitempty"`
	ClosedAt                 *time.Time `gorm:"column:closed_at" json:"closedAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the GORM table name.
func (NCRRecord) TableName() string { return "ncrs" }

// LotLink joins an NCR to a lot it blocks. An NCR may block zero or more
// lots; a lot may be subject to zero or more concurrent NCRs.
type LotLink struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	NCRID     string    `gorm:"column:ncr_id;uniqueIndex:idx_ncr_lot,priority:1;not null"`
	LotID     string    `gorm:"column:lot_id;uniqueIndex:idx_ncr_lot,priority:2;index;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (LotLink) TableName() string { return "ncr_lots" }

// EvidenceLink joins an NCR to a document, tagged with an evidence type.
// Append-only while the NCR is open; deletion is blocked once closed.
type EvidenceLink struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	NCRID        string    `gorm:"column:ncr_id;index;not null" json:"ncrId"`
	DocumentID   string    `gorm:"column:document_id;not null" json:"documentId"`
	EvidenceType string    `gorm:"column:evidence_type;default:other;not null" json:"evidenceType"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

// TableName returns the GORM table name.
func (EvidenceLink) TableName() string { return "ncr_evidence" }

// ProjectSequence is the per-project counter backing NCR numbering.
type ProjectSequence struct {
	ProjectID  string    `gorm:"primaryKey;column:project_id;type:varchar(36)"`
	NextNumber int       `gorm:"column:next_number;default:1;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (ProjectSequence) TableName() string { return "ncr_sequences" }
