package reporting

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juggajay/site-proof-sub003/pkg/actor"
	"github.com/juggajay/site-proof-sub003/pkg/authz"
)

// NewRouter creates a chi router with the reporting routes. Mounted under a
// path that carries the {projectID} parameter.
func NewRouter(store *Store, authorizer authz.Authorizer) chi.Router {
	r := chi.NewRouter()
	r.Get("/ncr-summary", summaryHandler(store, authorizer))
	return r
}

// summaryHandler returns a handler that serves the project NCR summary.
func summaryHandler(store *Store, authorizer authz.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		actorID := actor.FromContext(r.Context())

		ok, err := authorizer.HasProjectAccess(r.Context(), actorID, projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("check project access: %v", err))
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "no project access")
			return
		}

		summary, err := store.Summarize(projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build summary: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
