package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlab/tokencore/pkg/changelog"
	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/registry"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg, err := registry.New()
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return NewServer(reg, zerolog.Nop()), reg
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, section := range []string{"storage", "changelog", "sessions", "performance", "cache"} {
		assert.Contains(t, body, section)
	}
}

func TestChanges(t *testing.T) {
	srv, reg := newTestServer(t)

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "d"}
	_, err := reg.Tracker.TrackChange(changelog.ChangeCreate, domain.TypeToken, "tok-1", doc)
	require.NoError(t, err)

	rec := doRequest(t, srv, http.MethodGet, "/changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var changes []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "tok-1", changes[0]["entity_id"])

	rec = doRequest(t, srv, http.MethodGet, "/changes/token/tok-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	assert.Len(t, changes, 1)

	rec = doRequest(t, srv, http.MethodGet, "/changes/token/unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	assert.Empty(t, changes)
}

func TestBaselineLifecycle(t *testing.T) {
	srv, reg := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/baselines", map[string]string{
		"name":        "v1",
		"description": "first checkpoint",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	baselineID, _ := created["id"].(string)
	require.NotEmpty(t, baselineID)

	rec = doRequest(t, srv, http.MethodPost, "/baselines/"+baselineID+"/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	current := reg.Tracker.GetCurrentBaseline()
	require.NotNil(t, current)
	assert.Equal(t, baselineID, current.ID)

	rec = doRequest(t, srv, http.MethodPost, "/baselines/"+baselineID+"/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/baselines", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var baselines []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &baselines))
	assert.Len(t, baselines, 1)
}

func TestCreateBaseline_RequiresName(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/baselines", map[string]string{"description": "nameless"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivateBaseline_UnknownIDIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/baselines/nonexistent/activate", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Code)
}

func TestSessions(t *testing.T) {
	srv, reg := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Empty(t, sessions)

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "d"}
	reg.Sessions.StartEditSession("token", domain.TypeToken, "tok-1", "edit", doc)

	rec = doRequest(t, srv, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "tok-1", sessions[0]["entity_id"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)

	// Complete one monitored operation so a counter is registered and set.
	id := reg.Monitor.StartOperation("test-op", "test")
	reg.Monitor.EndOperation(id, true, nil)

	rec := doRequest(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tokencore_operations_total")
}

func TestUnknownRouteIs404JSON(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Code)
}
