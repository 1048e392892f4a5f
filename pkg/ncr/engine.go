package ncr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/juggajay/site-proof-sub003/pkg/audit"
	"github.com/juggajay/site-proof-sub003/pkg/authz"
	"github.com/juggajay/site-proof-sub003/pkg/docstore"
	"github.com/juggajay/site-proof-sub003/pkg/lots"
	"github.com/juggajay/site-proof-sub003/pkg/notify"
)

// ErrInvalidInput is returned for malformed transition payloads.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoProjectAccess is returned when the actor is not a member of the
// project at all, as opposed to lacking a specific elevated role.
var ErrNoProjectAccess = errors.New("no project access")

// Engine executes NCR transitions. Each operation loads the current record
// under a row lock inside one transaction, validates the precondition against
// status and severity, applies a partial mutation plus closely-coupled side
// effects (lot status sync), and only then fires best-effort audit and
// notification fan-out.
type Engine struct {
	db       *gorm.DB
	store    *Store
	evidence *EvidenceStore
	numbers  *NumberStore
	lots     *lots.Store
	docs     *docstore.Store
	authz    authz.Authorizer
	sink     notify.Sink
	audit    *audit.Store
	logger   *slog.Logger
	machine  *Machine
}

// NewEngine creates an Engine wired to its collaborators.
func NewEngine(db *gorm.DB, authorizer authz.Authorizer, sink notify.Sink, auditStore *audit.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:       db,
		store:    NewStore(db),
		evidence: NewEvidenceStore(db),
		numbers:  NewNumberStore(db),
		lots:     lots.NewStore(db),
		docs:     docstore.NewStore(db),
		authz:    authorizer,
		sink:     sink,
		audit:    auditStore,
		logger:   logger,
		machine:  NewMachine(),
	}
}

// Store exposes the engine's NCR store for read paths (list endpoints).
func (e *Engine) Store() *Store { return e.store }

// Machine exposes the transition rule table.
func (e *Engine) Machine() *Machine { return e.machine }

// requireProjectAccess rejects actors who are not project members.
func (e *Engine) requireProjectAccess(ctx context.Context, actorID, projectID string) error {
	ok, err := e.authz.HasProjectAccess(ctx, actorID, projectID)
	if err != nil {
		return fmt.Errorf("check project access: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s on project %s: %w", actorID, projectID, ErrNoProjectAccess)
	}
	return nil
}

// requireRole rejects actors who lack all of the given roles on the project.
func (e *Engine) requireRole(ctx context.Context, actorID, projectID string, roles ...authz.Role) error {
	ok, err := e.authz.HasRole(ctx, actorID, projectID, roles...)
	if err != nil {
		return fmt.Errorf("check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %s needs one of %v on project %s: %w", actorID, roles, projectID, authz.ErrForbidden)
	}
	return nil
}

// load fetches the NCR or returns ErrNotFound.
func (e *Engine) load(ncrID string) (*NCRRecord, error) {
	record, err := e.store.Get(ncrID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("ncr %s: %w", ncrID, ErrNotFound)
	}
	return record, nil
}

// Create raises a new NCR. Any project member may raise one. Severity
// derives the approval and client-notification flags, which are fixed for
// the record's lifetime. Linked lots are flipped to ncr_raised.
func (e *Engine) Create(ctx context.Context, actorID, projectID string, in CreateInput) (*Resolved, error) {
	if err := e.requireProjectAccess(ctx, actorID, projectID); err != nil {
		return nil, err
	}
	if in.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	severity := in.Severity
	if severity == "" {
		severity = SeverityMinor
	}
	if severity != SeverityMinor && severity != SeverityMajor {
		return nil, fmt.Errorf("%w: severity must be minor or major", ErrInvalidInput)
	}

	var dueDate *time.Time
	if in.DueDate != "" {
		t, err := time.Parse(time.RFC3339, in.DueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: dueDate must be RFC3339", ErrInvalidInput)
		}
		dueDate = &t
	}

	record := &NCRRecord{
		ID:                         uuid.New().String(),
		ProjectID:                  projectID,
		Category:                   in.Category,
		Severity:                   string(severity),
		Status:                     string(StatusOpen),
		DueDate:                    dueDate,
		Description:                in.Description,
		RaisedBy:                   actorID,
		ResponsibleUserID:          in.ResponsibleUserID,
		QMApprovalRequired:         severity == SeverityMajor,
		ClientNotificationRequired: severity == SeverityMajor,
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		seq, err := e.numbers.nextInTx(tx, projectID)
		if err != nil {
			return err
		}
		record.Number = FormatNumber(seq)

		txStore := e.store.withTx(tx)
		if err := txStore.Create(record); err != nil {
			return err
		}

		for _, lotID := range in.LotIDs {
			var lot lots.Lot
			if err := tx.Where("id = ?", lotID).First(&lot).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return fmt.Errorf("lot %s: %w", lotID, ErrNotFound)
				}
				return fmt.Errorf("get lot: %w", err)
			}
			if lot.ProjectID != projectID {
				return fmt.Errorf("%w: lot %s belongs to another project", ErrInvalidInput, lotID)
			}
			if err := txStore.LinkLot(record.ID, lotID); err != nil {
				return err
			}
			if err := lots.SetStatus(tx, lotID, lots.StatusNCRRaised); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(projectID, actorID, "ncr.created", record.ID, audit.JSONAny{
		"number":   record.Number,
		"severity": record.Severity,
		"lotIds":   in.LotIDs,
	})
	e.notifyOnCreate(ctx, actorID, record)

	return e.resolve(record.ID)
}

// Respond submits the initial investigation response, moving the NCR from
// open to investigating.
func (e *Engine) Respond(ctx context.Context, actorID, ncrID string, in RespondInput) (*Resolved, error) {
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
		if err := e.machine.Validate(ActionRespond, Status(current.Status)); err != nil {
			return err
		}
		now := time.Now()
		return txStore.Update(ncrID, map[string]any{
			"status":                 string(StatusInvestigating),
			"root_cause_category":    nullableString(in.RootCauseCategory),
			"root_cause_description": nullableString(in.RootCauseDescription),
			"proposed_action":        nullableString(in.ProposedAction),
			"response_submitted_at":  &now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.responded", ncrID, audit.JSONAny{
		"rootCauseCategory": in.RootCauseCategory,
	})

	return e.resolve(ncrID)
}

// Review records the QM verdict on a submitted response: accept moves the
// NCR into rectification, request-revision bounces it back to open, clears
// the response fields for re-entry and increments the revision count.
func (e *Engine) Review(ctx context.Context, actorID, ncrID string, in ReviewInput) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(ctx, actorID, record.ProjectID, authz.ReviewerRoles...); err != nil {
		return nil, err
	}
	if in.Decision != ReviewAccept && in.Decision != ReviewRequestRevision {
		return nil, fmt.Errorf("%w: decision must be accept or request_revision", ErrInvalidInput)
	}

	action := ActionReviewAccept
	if in.Decision == ReviewRequestRevision {
		action = ActionRequestRevision
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
		now := time.Now()
		if action == ActionReviewAccept {
			return txStore.Update(ncrID, map[string]any{
				"status":             string(StatusRectification),
				"reviewed_by":        actorID,
				"reviewed_at":        &now,
				"review_comments":    in.Comments,
				"revision_requested": false,
			})
		}
		return txStore.Update(ncrID, map[string]any{
			"status":                 string(StatusOpen),
			"revision_count":         gorm.Expr("revision_count + 1"),
			"revision_requested":     true,
			"root_cause_category":    nil,
			"root_cause_description": nil,
			"proposed_action":        nil,
			"reviewed_by":            actorID,
			"reviewed_at":            &now,
			"review_comments":        in.Comments,
		})
	})
	if err != nil {
		return nil, err
	}

	e.auditEvent(record.ProjectID, actorID, "ncr.reviewed", ncrID, audit.JSONAny{
		"decision": string(in.Decision),
	})

	if record.ResponsibleUserID != "" && record.ResponsibleUserID != actorID {
		notifType := notify.TypeNCRReviewed
		title := fmt.Sprintf("%s response accepted", record.Number)
		if action == ActionRequestRevision {
			notifType = notify.TypeRevisionNeeded
			title = fmt.Sprintf("%s needs a revised response", record.Number)
		}
		e.notifyUser(ctx, record.ResponsibleUserID, record, notifType, title, in.Comments)
	}

	return e.resolve(ncrID)
}

// resolve returns the NCR with its lots and evidence resolved.
func (e *Engine) resolve(ncrID string) (*Resolved, error) {
	record, err := e.load(ncrID)
	if err != nil {
		return nil, err
	}

	lotIDs, err := e.store.LotIDs(ncrID)
	if err != nil {
		return nil, err
	}
	linkedLots, err := e.lots.ListByIDs(lotIDs)
	if err != nil {
		return nil, err
	}
	if linkedLots == nil {
		linkedLots = []lots.Lot{}
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

	return &Resolved{
		NCR:      *record,
		Lots:     linkedLots,
		Evidence: resolveItems(links, docs),
	}, nil
}

// auditEvent appends an audit entry, best-effort.
func (e *Engine) auditEvent(projectID, actorID, action, ncrID string, changes audit.JSONAny) {
	if e.audit == nil {
		return
	}
	err := e.audit.Append(&audit.EventRecord{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Actor:      actorID,
		Action:     action,
		EntityType: "ncr",
		EntityID:   ncrID,
		Outcome:    "success",
		Changes:    changes,
	})
	if err != nil {
		e.logger.Error("audit append failed", "action", action, "ncrID", ncrID, "error", err)
	}
}

// nullableString maps "" to NULL so cleared fields read back as absent.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
