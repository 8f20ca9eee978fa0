package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/openhydro/era5-shetran-etl/internal/adapter/http"
)

type mockRun struct {
	readyErr error
	steps    int
	total    int
	records  int64
}

func (m *mockRun) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockRun) Status() (int, int, int64) { return m.steps, m.total, m.records }

func newTestServer(run *mockRun) *httpadapter.Server {
	return httpadapter.NewServer(":0", run, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(&mockRun{readyErr: fmt.Errorf("no timesteps yet")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no timesteps yet", body["error"])
}

func TestStatuszReportsProgress(t *testing.T) {
	srv := newTestServer(&mockRun{steps: 120, total: 8760, records: 40920})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 120.0, body["timesteps_done"])
	assert.Equal(t, 8760.0, body["timesteps_total"])
	assert.Equal(t, 40920.0, body["records_written"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&mockRun{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
