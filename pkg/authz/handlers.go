package authz

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juggajay/site-proof-sub003/pkg/actor"
)

// NewRouter creates a chi router with the membership routes. Mounted under a
// path that carries the {projectID} parameter.
func NewRouter(store *MembershipStore) chi.Router {
	r := chi.NewRouter()
	r.Get("/role", roleHandler(store))
	return r
}

// roleHandler returns a handler that reports the acting user's role on the
// project, so clients can gate workflow actions without trial requests.
func roleHandler(store *MembershipStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")
		userID := actor.FromContext(r.Context())

		role, err := store.RoleOf(r.Context(), userID, projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("get role: %v", err))
			return
		}
		if role == "" {
			writeError(w, http.StatusNotFound, fmt.Sprintf("user %s is not a member of project %s", userID, projectID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"userId":    userID,
			"projectId": projectID,
			"role":      string(role),
		})
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
