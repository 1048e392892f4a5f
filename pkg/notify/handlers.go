package notify

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/juggajay/site-proof-sub003/pkg/actor"
)

// NewRouter creates a chi router for the in-app notification inbox.
func NewRouter(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/notifications", listNotificationsHandler(store))
	r.Post("/notifications/{notificationID}/read", markReadHandler(store))
	return r
}

// listNotificationsHandler returns a handler that lists the acting user's
// inbox, newest first.
func listNotificationsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := actor.FromContext(r.Context())
		unreadOnly := r.URL.Query().Get("unread") == "true"

		records, err := store.ListForUser(userID, unreadOnly, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list notifications: %v", err))
			return
		}
		if records == nil {
			records = []Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"notifications": records})
	}
}

// markReadHandler returns a handler that marks one notification read.
func markReadHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "notificationID")
		if err := store.MarkRead(id); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to mark read: %v", err))
			return
		}
		w.WriteHeader(http.StatusNoContent)
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
