package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juggajay/site-proof-sub003/pkg/actor"
)

func roleRequest(t *testing.T, store *MembershipStore, userID, projectID string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	router.Mount("/projects/{projectID}/access", NewRouter(store))

	req := httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/access/role", nil)
	req = req.WithContext(actor.WithActor(req.Context(), userID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoleHandler(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)

	rec := roleRequest(t, store, "alice", "proj-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(RoleQualityManager), body["role"])
	assert.Equal(t, "alice", body["userId"])
	assert.Equal(t, "proj-1", body["projectId"])
}

func TestRoleHandler_NonMember(t *testing.T) {
	store := newTestStore(t)
	seedMemberships(t, store)

	rec := roleRequest(t, store, "stranger", "proj-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = roleRequest(t, store, "alice", "proj-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
