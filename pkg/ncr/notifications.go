package ncr

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/juggajay/site-proof-sub003/pkg/authz"
	"github.com/juggajay/site-proof-sub003/pkg/notify"
)

// messageLimit caps notification message bodies.
const messageLimit = 120

// notifyOnCreate fans out notifications for a freshly raised NCR: the
// responsible user learns of the assignment, and when a subcontractor raised
// the NCR the head-contractor side of the project is alerted as well.
func (e *Engine) notifyOnCreate(ctx context.Context, actorID string, record *NCRRecord) {
	if e.sink == nil {
		return
	}

	if record.ResponsibleUserID != "" && record.ResponsibleUserID != actorID {
		e.notifyUser(ctx, record.ResponsibleUserID, record, notify.TypeNCRAssigned,
			fmt.Sprintf("%s assigned to you", record.Number), record.Description)
	}

	isSub, err := e.authz.HasRole(ctx, actorID, record.ProjectID, authz.RoleSubcontractor)
	if err != nil {
		e.logger.Warn("role lookup for fan-out failed", "ncrID", record.ID, "error", err)
		return
	}
	if isSub {
		e.fanOutRoles(ctx, actorID, record, authz.HeadContractorRoles, notify.TypeNCRRaised,
			fmt.Sprintf("%s raised by subcontractor", record.Number), record.Description)
	}
}

// notifyUser sends a single notification, best-effort.
func (e *Engine) notifyUser(ctx context.Context, userID string, record *NCRRecord, notifType, title, message string) {
	if e.sink == nil {
		return
	}
	e.sink.Send(ctx, notify.Notification{
		UserID:    userID,
		ProjectID: record.ProjectID,
		Type:      notifType,
		Title:     title,
		Message:   truncate(message, messageLimit),
		LinkURL:   deepLink(record),
	})
}

// fanOutRoles notifies every project member holding one of the roles,
// skipping the acting user. Recipient lookup failures are logged and
// swallowed so a transition never fails on fan-out.
func (e *Engine) fanOutRoles(ctx context.Context, actorID string, record *NCRRecord, roles []authz.Role, notifType, title, message string) {
	if e.sink == nil {
		return
	}
	members, err := e.authz.MembersWithRoles(ctx, record.ProjectID, roles...)
	if err != nil {
		e.logger.Warn("member lookup for fan-out failed", "ncrID", record.ID, "error", err)
		return
	}
	for _, userID := range members {
		if userID == actorID {
			continue
		}
		e.notifyUser(ctx, userID, record, notifType, title, message)
	}
}

// deepLink builds the in-app URL for an NCR.
func deepLink(record *NCRRecord) string {
	return fmt.Sprintf("/projects/%s/ncrs/%s", record.ProjectID, record.ID)
}

// truncate clamps s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func newEventID() string {
	return uuid.New().String()
}
