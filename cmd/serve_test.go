package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/store"
)

type recordingEnricher struct {
	ch chan string
}

func newRecordingEnricher() *recordingEnricher {
	return &recordingEnricher{ch: make(chan string, 1)}
}

func (r *recordingEnricher) EnrichOne(_ context.Context, id string) {
	r.ch <- id
}

func newServeTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestBuildRouter_HealthEndpoint(t *testing.T) {
	router := buildRouter(context.Background(), newServeTestStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_WebhookEnrich_Accepted(t *testing.T) {
	enr := newRecordingEnricher()
	router := buildRouter(context.Background(), newServeTestStore(t), enr)

	payload, _ := json.Marshal(map[string]string{"lead_id": "lead-42"})
	req := httptest.NewRequest(http.MethodPost, "/webhook/enrich", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "lead-42", resp["lead_id"])

	// The run happens after the response; wait for the goroutine.
	assert.Equal(t, "lead-42", <-enr.ch)
}

func TestBuildRouter_WebhookEnrich_MissingLeadID(t *testing.T) {
	router := buildRouter(context.Background(), newServeTestStore(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/enrich", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "lead_id is required")
}

func TestBuildRouter_WebhookEnrich_InvalidJSON(t *testing.T) {
	router := buildRouter(context.Background(), newServeTestStore(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/enrich", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestBuildRouter_GetLead(t *testing.T) {
	st := newServeTestStore(t)
	lead, err := st.CreateLead(context.Background(), &model.Lead{BusinessName: "Acme Plumbing"})
	require.NoError(t, err)

	router := buildRouter(context.Background(), st, nil)

	req := httptest.NewRequest(http.MethodGet, "/leads/"+lead.ID, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got model.Lead
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Acme Plumbing", got.BusinessName)
	assert.Equal(t, model.EnrichmentNotEnriched, got.EnrichmentStatus)
}

func TestBuildRouter_GetLead_NotFound(t *testing.T) {
	router := buildRouter(context.Background(), newServeTestStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/leads/ghost", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "lead not found")
}
