package ncr

import "fmt"

// Action names an NCR transition.
type Action string

const (
	ActionRespond             Action = "respond"
	ActionReviewAccept        Action = "review.accept"
	ActionRequestRevision     Action = "review.requestRevision"
	ActionRectify             Action = "rectify"
	ActionSubmitVerification  Action = "submitVerification"
	ActionRejectRectification Action = "rejectRectification"
	ActionClose               Action = "close"
	ActionReopen              Action = "reopen"
)

// Machine-checkable error codes for rejected transitions.
const (
	CodeInvalidTransition       = "NCR_INVALID_TRANSITION"
	CodeQMApprovalRequired      = "NCR_QM_APPROVAL_REQUIRED"
	CodeEvidenceRequired        = "NCR_EVIDENCE_REQUIRED"
	CodeAlreadyNotified         = "NCR_ALREADY_NOTIFIED"
	CodeAlreadyApproved         = "NCR_ALREADY_APPROVED"
	CodeApprovalNotRequired     = "NCR_APPROVAL_NOT_REQUIRED"
	CodeConcessionIncomplete    = "NCR_CONCESSION_INCOMPLETE"
	CodeNotificationNotRequired = "NCR_NOTIFICATION_NOT_REQUIRED"
	CodeClosed                  = "NCR_CLOSED"
)

// TransitionRule defines an allowed edge for an action.
type TransitionRule struct {
	Action Action
	From   Status
	To     Status
}

// DefaultTransitions defines the allowed NCR transitions. Close targets one
// of two statuses depending on whether a concession was requested; both
// edges appear here. qm-approve, notify-client and reassign are attribute
// updates, not status transitions, so they have no rules.
var DefaultTransitions = []TransitionRule{
	{Action: ActionRespond, From: StatusOpen, To: StatusInvestigating},
	{Action: ActionReviewAccept, From: StatusInvestigating, To: StatusRectification},
	{Action: ActionRequestRevision, From: StatusInvestigating, To: StatusOpen},
	{Action: ActionRectify, From: StatusInvestigating, To: StatusVerification},
	{Action: ActionRectify, From: StatusRectification, To: StatusVerification},
	{Action: ActionSubmitVerification, From: StatusInvestigating, To: StatusVerification},
	{Action: ActionSubmitVerification, From: StatusRectification, To: StatusVerification},
	{Action: ActionRejectRectification, From: StatusVerification, To: StatusRectification},
	{Action: ActionClose, From: StatusVerification, To: StatusClosed},
	{Action: ActionClose, From: StatusVerification, To: StatusClosedConcession},
	{Action: ActionClose, From: StatusRectification, To: StatusClosed},
	{Action: ActionClose, From: StatusRectification, To: StatusClosedConcession},
	{Action: ActionReopen, From: StatusClosed, To: StatusRectification},
	{Action: ActionReopen, From: StatusClosedConcession, To: StatusRectification},
}

// Machine validates NCR transitions against the rule table.
type Machine struct {
	transitions []TransitionRule
}

// NewMachine creates a machine with default rules.
func NewMachine() *Machine {
	return &Machine{transitions: DefaultTransitions}
}

// Validate checks whether the action is legal from the given status.
// Returns nil if allowed, a TransitionError with a machine-readable code if not.
func (m *Machine) Validate(action Action, from Status) error {
	for _, t := range m.transitions {
		if t.Action == action && t.From == from {
			return nil
		}
	}
	return &TransitionError{
		Code:    CodeInvalidTransition,
		Action:  action,
		From:    from,
		Message: fmt.Sprintf("%s is not allowed from status %s", action, from),
	}
}

// Target returns the destination status for an action from a status.
// For close, concession selects between the two closed states.
func (m *Machine) Target(action Action, from Status, concession bool) (Status, error) {
	if err := m.Validate(action, from); err != nil {
		return "", err
	}
	if action == ActionClose {
		if concession {
			return StatusClosedConcession, nil
		}
		return StatusClosed, nil
	}
	for _, t := range m.transitions {
		if t.Action == action && t.From == from {
			return t.To, nil
		}
	}
	return "", &TransitionError{
		Code:    CodeInvalidTransition,
		Action:  action,
		From:    from,
		Message: fmt.Sprintf("no transition defined for %s from %s", action, from),
	}
}

// AllowedActions returns the actions legal from the given status.
func (m *Machine) AllowedActions(from Status) []Action {
	var allowed []Action
	seen := map[Action]bool{}
	for _, t := range m.transitions {
		if t.From == from && !seen[t.Action] {
			allowed = append(allowed, t.Action)
			seen[t.Action] = true
		}
	}
	return allowed
}

// TransitionError is a structured error for rejected transitions. Status and
// Severity carry the record's current values so the caller can decide the
// next legal action instead of retrying blindly.
type TransitionError struct {
	Code     string   `json:"code"`
	Action   Action   `json:"action,omitempty"`
	From     Status   `json:"from,omitempty"`
	Severity Severity `json:"severity,omitempty"`
	Message  string   `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}
