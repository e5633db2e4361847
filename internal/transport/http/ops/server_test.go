package opshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketsync/internal/ingest"
	"marketsync/internal/market"
	"marketsync/internal/store"
	"marketsync/internal/store/runlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	healthy bool
	report  ingest.ProgressReport
}

func (s *stubEngine) HealthCheck(context.Context) bool { return s.healthy }

func (s *stubEngine) Progress(context.Context, time.Time, time.Time) (*ingest.ProgressReport, error) {
	r := s.report
	return &r, nil
}

type stubStore struct {
	checkpoints []store.Checkpoint
	symbols     []market.Symbol
}

func (s *stubStore) ListCheckpoints(context.Context) ([]store.Checkpoint, error) {
	return s.checkpoints, nil
}

func (s *stubStore) ListSymbols(context.Context) ([]market.Symbol, error) {
	return s.symbols, nil
}

type stubRuns struct {
	records []runlog.Record
}

func (s *stubRuns) Recent(_ context.Context, limit int) ([]runlog.Record, error) {
	if limit > 0 && limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func newTestServer(t *testing.T, engine *stubEngine) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Addr:   ":0",
		Engine: engine,
		Store: &stubStore{
			symbols: []market.Symbol{{Code: "AAPL", Status: market.SymbolActive}},
		},
		RunLog: &stubRuns{records: []runlog.Record{{RunID: "r1", Total: 2, Successful: 2}}},
	})
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubEngine{healthy: true})
	rec := do(srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = newTestServer(t, &stubEngine{healthy: false})
	rec = do(srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProgressEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubEngine{
		healthy: true,
		report:  ingest.ProgressReport{TotalSymbols: 4, SymbolsWithData: 2, TotalRecords: 100, ProgressPercent: 50},
	})
	rec := do(srv, http.MethodGet, "/api/ops/progress")
	require.Equal(t, http.StatusOK, rec.Code)

	var report ingest.ProgressReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 4, report.TotalSymbols)
	assert.InDelta(t, 50.0, report.ProgressPercent, 0.001)
}

func TestSymbolsAndRunsEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubEngine{healthy: true})

	rec := do(srv, http.MethodGet, "/api/ops/symbols")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "AAPL")

	rec = do(srv, http.MethodGet, "/api/ops/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "r1")
}

func TestMissingStoreRejected(t *testing.T) {
	_, err := NewServer(ServerConfig{Engine: &stubEngine{}})
	require.Error(t, err)
}
