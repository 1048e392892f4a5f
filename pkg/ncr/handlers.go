package ncr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/juggajay/site-proof-sub003/pkg/actor"
	"github.com/juggajay/site-proof-sub003/pkg/audit"
	"github.com/juggajay/site-proof-sub003/pkg/authz"
)

// createNCRHandler returns a handler that raises a new NCR on a project.
func createNCRHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		actorID := actor.FromContext(r.Context())

		var in CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Create(r.Context(), actorID, projectID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resolved)
	}
}

// listNCRsHandler returns a handler that lists a project's NCRs with optional
// status and severity filters.
func listNCRsHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		actorID := actor.FromContext(r.Context())

		if err := engine.requireProjectAccess(r.Context(), actorID, projectID); err != nil {
			writeEngineError(w, err)
			return
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := engine.Store().ListByProject(
			projectID,
			Status(r.URL.Query().Get("status")),
			Severity(r.URL.Query().Get("severity")),
			pageSize,
			r.URL.Query().Get("pageToken"),
		)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list ncrs: %v", err))
			return
		}
		if records == nil {
			records = []NCRRecord{}
		}

		writeJSON(w, http.StatusOK, List{
			NCRs:          records,
			NextPageToken: nextToken,
			TotalSize:     total,
		})
	}
}

// getNCRHandler returns a handler that retrieves an NCR with its linked lots,
// evidence, and the actions legal from its current status.
func getNCRHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		record, err := engine.load(ncrID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if err := engine.requireProjectAccess(r.Context(), actorID, record.ProjectID); err != nil {
			writeEngineError(w, err)
			return
		}

		resolved, err := engine.resolve(ncrID)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			*Resolved
			AllowedActions []Action `json:"allowedActions"`
		}{
			Resolved:       resolved,
			AllowedActions: engine.Machine().AllowedActions(Status(resolved.NCR.Status)),
		})
	}
}

// respondHandler returns a handler for the investigation response transition.
func respondHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in RespondInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Respond(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// reviewHandler returns a handler for the QM review transition.
func reviewHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in ReviewInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Review(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// rectifyHandler returns a handler for recording rectification work.
func rectifyHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in RectifyInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Rectify(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// submitVerificationHandler returns a handler for the evidence-gated
// submit-for-verification transition.
func submitVerificationHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in RectifyInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.SubmitForVerification(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// rejectRectificationHandler returns a handler for bouncing a rectification.
func rejectRectificationHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in RejectInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.RejectRectification(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// qmApproveHandler returns a handler for the QM closure approval.
func qmApproveHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		resolved, err := engine.QMApprove(r.Context(), actorID, ncrID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// closeHandler returns a handler for the close transition.
func closeHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in CloseInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Close(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// notifyClientHandler returns a handler for dispatching the client
// notification package.
func notifyClientHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		resolved, err := engine.NotifyClient(r.Context(), actorID, ncrID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// reopenHandler returns a handler for reopening a closed NCR.
func reopenHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in ReopenInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Reopen(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// reassignHandler returns a handler for changing the responsible party.
func reassignHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in ReassignInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		resolved, err := engine.Reassign(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// listEvidenceHandler returns a handler that lists an NCR's evidence grouped
// by type.
func listEvidenceHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		groups, err := engine.ListEvidence(r.Context(), actorID, ncrID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

// addEvidenceHandler returns a handler that attaches evidence to an NCR.
func addEvidenceHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		var in EvidenceInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		item, err := engine.AddEvidence(r.Context(), actorID, ncrID, in)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

// deleteEvidenceHandler returns a handler that removes an evidence link.
func deleteEvidenceHandler(engine *Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		evidenceID := chi.URLParam(r, "evidenceID")
		actorID := actor.FromContext(r.Context())

		if err := engine.DeleteEvidence(r.Context(), actorID, ncrID, evidenceID); err != nil {
			writeEngineError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// getHistoryHandler returns a handler that lists paginated audit events for
// an NCR.
func getHistoryHandler(engine *Engine, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ncrID := chi.URLParam(r, "ncrID")
		actorID := actor.FromContext(r.Context())

		record, err := engine.load(ncrID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if err := engine.requireProjectAccess(r.Context(), actorID, record.ProjectID); err != nil {
			writeEngineError(w, err)
			return
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := auditStore.ListByEntity("ncr", ncrID, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]audit.Event, len(records))
		for i, rec := range records {
			events[i] = audit.ToEvent(rec)
		}

		writeJSON(w, http.StatusOK, audit.EventList{
			Events:        events,
			NextPageToken: nextToken,
			TotalSize:     total,
		})
	}
}

// writeEngineError maps engine errors to HTTP responses. Transition errors
// carry their machine-readable code in the body.
func writeEngineError(w http.ResponseWriter, err error) {
	var te *TransitionError
	switch {
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, te)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoProjectAccess), errors.Is(err, authz.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
