package ncr

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/juggajay/site-proof-sub003/pkg/audit"
	"github.com/juggajay/site-proof-sub003/pkg/authz"
	"github.com/juggajay/site-proof-sub003/pkg/lots"
	"github.com/juggajay/site-proof-sub003/pkg/notify"
)

// Rectify records rectification work and moves the NCR into verification.
// Unlike SubmitForVerification it carries no evidence requirement; both paths
// are preserved as alternate entries into verification.
func (e *Engine) Rectify(ctx context.Context, actorID, ncrID string, in RectifyInput) (*Resolved, error) {
	return e.submitRectification(ctx, actorID, ncrID, in, ActionRectify)
}

// SubmitForVerification moves the NCR into verification and requires at
// least one evidence attachment.
func (e *Engine) SubmitForVerification(ctx context.Context, actorID, ncrID string, in RectifyInput) (*Resolved, error) {
	return e.submitRectification(ctx, actorID, ncrID, in, ActionSubmitVerification)
}

func (e *Engine) submitRectification(ctx context.Context, actorID, ncrID string, in RectifyInput, action Action) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireProjectAccess(ctx, actorID, record.ProjectID); err != nil {
		return nil, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		if err := e.machine.Validate(action, Status(current.Status)); err != nil {
			return err
		}
		if action == ActionSubmitVerification {
			count, err := (&EvidenceStore{db: tx}).Count(ncrID)
			if err != nil {
				return err
			}
			if count == 0 {
				return &TransitionError{
					Code:    CodeEvidenceRequired,
					Action:  action,
					From:    Status(current.Status),
					Message: "at least one evidence item required before submitting for verification",
				}
			}
		}
		now := time.Now()
		return txStore.Update(ncrID, map[string]any{
			"status":                     string(StatusVerification),
			"rectification_notes":        in.Notes,
			"rectification_submitted_at": &now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr."+string(action), ncrID, nil)
	return e.resolve(ncrID)
}

// RejectRectification bounces a submitted rectification back for rework,
// storing the reviewer's feedback as verification notes and incrementing the
// revision count.
func (e *Engine) RejectRectification(ctx context.Context, actorID, ncrID string, in RejectInput) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(ctx, actorID, record.ProjectID, authz.RejecterRoles...); err != nil {
		return nil, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		if err := e.machine.Validate(ActionRejectRectification, Status(current.Status)); err != nil {
			return err
		}
		return txStore.Update(ncrID, map[string]any{
			"status":             string(StatusRectification),
			"verification_notes": in.Feedback,
			"verified_at":        nil,
			"verified_by":        "",
			"revision_count":     gorm.Expr("revision_count + 1"),
		})
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.rectificationRejected", ncrID, audit.JSONAny{
		"feedback": in.Feedback,
	})
	if record.ResponsibleUserID != "" && record.ResponsibleUserID != actorID {
		e.notifyUser(ctx, record.ResponsibleUserID, record, notify.TypeRectifyRejected,
			fmt.Sprintf("%s rectification rejected", record.Number), in.Feedback)
	}

	return e.resolve(ncrID)
}

// QMApprove records the quality manager's closure approval on a major NCR.
// It is an attribute update, not a status transition: the approval flag can
// coexist with either verification or rectification.
func (e *Engine) QMApprove(ctx context.Context, actorID, ncrID string) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(ctx, actorID, record.ProjectID, authz.ReviewerRoles...); err != nil {
		return nil, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		if !current.QMApprovalRequired {
			return &TransitionError{
				Code:     CodeApprovalNotRequired,
				From:     Status(current.Status),
				Severity: Severity(current.Severity),
				Message:  "QM approval is not required for this NCR",
			}
		}
		if current.QMApprovedAt != nil {
			return &TransitionError{
				Code:     CodeAlreadyApproved,
				From:     Status(current.Status),
				Severity: Severity(current.Severity),
				Message:  fmt.Sprintf("already approved by %s", current.QMApprovedBy),
			}
		}
		now := time.Now()
		return txStore.Update(ncrID, map[string]any{
			"qm_approved_by": actorID,
			"qm_approved_at": &now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.qmApproved", ncrID, nil)
	return e.resolve(ncrID)
}

// Close verifies and closes the NCR in a single act, stamping verifier and
// closer with the same actor and instant. Major NCRs are hard-blocked until
// QM approval is granted; the error carries a distinct code plus the current
// status and severity so the caller can route to the approval step. Each
// linked lot reverts to in_progress when no other open NCR remains on it.
func (e *Engine) Close(ctx context.Context, actorID, ncrID string, in CloseInput) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireProjectAccess(ctx, actorID, record.ProjectID); err != nil {
		return nil, err
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		target, err := e.machine.Target(ActionClose, Status(current.Status), in.Concession)
		if err != nil {
			return err
		}
		if Severity(current.Severity) == SeverityMajor && current.QMApprovalRequired && current.QMApprovedAt == nil {
			return &TransitionError{
				Code:     CodeQMApprovalRequired,
				Action:   ActionClose,
				From:     Status(current.Status),
				Severity: SeverityMajor,
				Message:  "major NCR requires QM approval before closure",
			}
		}
		if in.Concession && (in.ConcessionJustification == "" || in.ConcessionRiskAssessment == "") {
			return &TransitionError{
				Code:    CodeConcessionIncomplete,
				Action:  ActionClose,
				From:    Status(current.Status),
				Message: "concession closure requires justification and risk assessment",
			}
		}

		now := time.Now()
		updates := map[string]any{
			"status":      string(target),
			"verified_by": actorID,
			"verified_at": &now,
			"closed_by":   actorID,
			"closed_at":   &now,
		}
		if in.LessonsLearned != "" {
			updates["lessons_learned"] = in.LessonsLearned
		}
		if in.Concession {
			updates["concession_justification"] = in.ConcessionJustification
			updates["concession_risk_assessment"] = in.ConcessionRiskAssessment
		}
		if err := txStore.Update(ncrID, updates); err != nil {
			return err
		}

		lotIDs, err := txStore.LotIDs(ncrID)
		if err != nil {
			return err
		}
		for _, lotID := range lotIDs {
			open, err := txStore.OpenNCRCountForLot(lotID, ncrID)
			if err != nil {
				return err
			}
			if open == 0 {
				if err := lots.SetStatus(tx, lotID, lots.StatusInProgress); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.closed", ncrID, audit.JSONAny{
		"concession": in.Concession,
	})
	return e.resolve(ncrID)
}

// Reopen moves a closed NCR back into rectification, clearing the
// verification, closure and QM-approval stamps and annotating the
// lessons-learned trail with the reopen reason. Linked lots go back to
// ncr_raised.
func (e *Engine) Reopen(ctx context.Context, actorID, ncrID string, in ReopenInput) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(ctx, actorID, record.ProjectID, authz.ReviewerRoles...); err != nil {
		return nil, err
	}
	if in.Reason == "" {
		return nil, fmt.Errorf("%w: reopen reason is required", ErrInvalidInput)
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		if err := e.machine.Validate(ActionReopen, Status(current.Status)); err != nil {
			return err
		}

		annotation := fmt.Sprintf("[REOPENED %s by %s] %s",
			time.Now().Format(time.RFC3339), actorID, in.Reason)
		lessons := annotation
		if current.LessonsLearned != "" {
			lessons = annotation + "\n\n" + current.LessonsLearned
		}

		if err := txStore.Update(ncrID, map[string]any{
			"status":          string(StatusRectification),
			"verified_by":     "",
			"verified_at":     nil,
			"closed_by":       "",
			"closed_at":       nil,
			"qm_approved_by":  "",
			"qm_approved_at":  nil,
			"lessons_learned": lessons,
		}); err != nil {
			return err
		}

		lotIDs, err := txStore.LotIDs(ncrID)
		if err != nil {
			return err
		}
		for _, lotID := range lotIDs {
			if err := lots.SetStatus(tx, lotID, lots.StatusNCRRaised); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.reopened", ncrID, audit.JSONAny{
		"reason": in.Reason,
	})
	return e.resolve(ncrID)
}

// NotifyClient dispatches the client notification package for a major NCR.
// Idempotent-guarded: a second call fails with an already-notified error and
// does not re-dispatch. The audit entry stores the full package for
// compliance traceability and commits atomically with the stamp.
func (e *Engine) NotifyClient(ctx context.Context, actorID, ncrID string) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(ctx, actorID, record.ProjectID, authz.ClientNotifyRoles...); err != nil {
		return nil, err
	}

	var pkg audit.JSONAny
	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		if !current.ClientNotificationRequired {
			return &TransitionError{
				Code:     CodeNotificationNotRequired,
				From:     Status(current.Status),
				Severity: Severity(current.Severity),
				Message:  "client notification is not required for this NCR",
			}
		}
		if current.ClientNotifiedAt != nil {
			return &TransitionError{
				Code:     CodeAlreadyNotified,
				From:     Status(current.Status),
				Severity: Severity(current.Severity),
				Message:  fmt.Sprintf("client already notified at %s", current.ClientNotifiedAt.Format(time.RFC3339)),
			}
		}

		lotIDs, err := txStore.LotIDs(ncrID)
		if err != nil {
			return err
		}
		now := time.Now()
		pkg = audit.JSONAny{
			"number":      current.Number,
			"severity":    current.Severity,
			"status":      current.Status,
			"description": current.Description,
			"lotIds":      lotIDs,
			"raisedAt":    current.CreatedAt.Format(time.RFC3339),
			"notifiedAt":  now.Format(time.RFC3339),
		}

		if err := txStore.Update(ncrID, map[string]any{
			"client_notified_at": &now,
		}); err != nil {
			return err
		}

		// The compliance record commits with the stamp.
		if e.audit != nil {
			return e.audit.WithTx(tx).Append(&audit.EventRecord{
				ID:         newEventID(),
				ProjectID:  current.ProjectID,
				Actor:      actorID,
				Action:     "ncr.clientNotified",
				EntityType: "ncr",
				EntityID:   ncrID,
				Outcome:    "success",
				Changes:    pkg,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.fanOutRoles(ctx, actorID, record, authz.ClientNotifyRoles, notify.TypeClientNotified,
		fmt.Sprintf("%s client notification sent", record.Number), record.Description)

	return e.resolve(ncrID)
}

// Reassign changes the responsible party without touching status. Rejected
// once the NCR is closed.
func (e *Engine) Reassign(ctx context.Context, actorID, ncrID string, in ReassignInput) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireProjectAccess(ctx, actorID, record.ProjectID); err != nil {
		return nil, err
	}
	if in.ResponsibleUserID == "" {
		return nil, fmt.Errorf("%w: responsibleUserId is required", ErrInvalidInput)
	}

	var changed bool
	err = e.db.Transaction(func(tx *gorm.DB) error {
		txStore := e.store.withTx(tx)
		current, err := txStore.GetForUpdate(ncrID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
		}
		if Status(current.Status).IsClosed() {
			return &TransitionError{
				Code:    CodeClosed,
				From:    Status(current.Status),
				Message: "cannot reassign a closed NCR",
			}
		}
		changed = current.ResponsibleUserID != in.ResponsibleUserID
		if !changed {
			return nil
		}
		return txStore.Update(ncrID, map[string]any{
			"responsible_user_id": in.ResponsibleUserID,
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.auditEvent(record.ProjectID, actorID, "ncr.reassigned", ncrID, audit.JSONAny{
			"from": record.ResponsibleUserID,
			"to":   in.ResponsibleUserID,
		})
		if in.ResponsibleUserID != actorID {
			e.notifyUser(ctx, in.ResponsibleUserID, record, notify.TypeNCRReassigned,
				fmt.Sprintf("%s assigned to you", record.Number), record.Description)
		}
	}

	return e.resolve(ncrID)
}
