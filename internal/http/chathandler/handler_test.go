package chathandler

import (
	"chatrelay/internal/services/presence"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticClients []string

func (s staticClients) Identifiers() []string { return s }

type fakeSessions struct {
	presence.IPresenceService
	out       []presence.SessionDTO
	err       error
	lastLimit int
}

func (f *fakeSessions) Recent(_ context.Context, limit int) ([]presence.SessionDTO, error) {
	f.lastLimit = limit
	return f.out, f.err
}

func newEngine(clients ClientLister, sessions presence.IPresenceService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(clients, sessions).Register(r)
	return r
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStatus(t *testing.T) {
	rec := get(t, newEngine(staticClients{}, presence.NewNopService()), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Cloud Chat Backend is running!"}`, rec.Body.String())
}

func TestListClients(t *testing.T) {
	rec := get(t, newEngine(staticClients{"alice", "bob", "alice"}, presence.NewNopService()), "/clients")

	require.Equal(t, http.StatusOK, rec.Code)
	var body ClientsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, []string{"alice", "bob", "alice"}, body.Clients)
}

func TestListSessions(t *testing.T) {
	sessions := &fakeSessions{out: []presence.SessionDTO{{ID: "s-1", ClientID: "alice"}}}
	r := newEngine(staticClients{}, sessions)

	rec := get(t, r, "/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, sessions.lastLimit)

	var out []presence.SessionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "alice", out[0].ClientID)

	rec = get(t, r, "/sessions?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, sessions.lastLimit)
}

func TestListSessions_BadLimit(t *testing.T) {
	r := newEngine(staticClients{}, &fakeSessions{})

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/sessions?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/sessions?limit=500").Code)
}

func TestListSessions_Disabled(t *testing.T) {
	rec := get(t, newEngine(staticClients{}, presence.NewNopService()), "/sessions")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListSessions_Error(t *testing.T) {
	rec := get(t, newEngine(staticClients{}, &fakeSessions{err: errors.New("db down")}), "/sessions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
