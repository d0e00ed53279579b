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

	httpadapter "github.com/couchcryptid/storm-claims-risk/internal/adapter/http"
	"github.com/couchcryptid/storm-claims-risk/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	report *domain.Report
}

func (m *mockReports) LatestReport() (domain.Report, bool) {
	if m.report == nil {
		return domain.Report{}, false
	}
	return *m.report, true
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockReports{}, slog.Default())
}

func testReport() *domain.Report {
	return &domain.Report{
		ID:         "r-1",
		Scope:      domain.ReportScope{Metric: domain.MetricTotal, SplitYear: 1991, LogBase: "ln"},
		ClaimsRead: 12,
		Branches: []domain.BranchReport{
			{Name: "all", Status: domain.StatusOK},
			{Name: "before_1991", Status: domain.StatusFailed, Error: "insufficient data", ErrorKind: "insufficient_data"},
		},
	}
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("no report published yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no report published yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLatestReport(t *testing.T) {
	t.Run("not yet published", func(t *testing.T) {
		rec := serve(newTestServer(nil), "/reports/latest")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("published", func(t *testing.T) {
		srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockReports{report: testReport()}, slog.Default())
		rec := serve(srv, "/reports/latest")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got domain.Report
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "r-1", got.ID)
		assert.Equal(t, 12, got.ClaimsRead)
		assert.Len(t, got.Branches, 2)
	})
}

func TestLatestBranch(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockReports{report: testReport()}, slog.Default())

	rec := serve(srv, "/reports/latest/branches/before_1991")
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.BranchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "insufficient_data", got.ErrorKind)

	rec = serve(srv, "/reports/latest/branches/after_2050")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(newTestServer(nil), "/reports/latest/branches/all")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
