package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microstructmon/internal/config"
	"microstructmon/internal/model"
	"microstructmon/internal/store"
	"microstructmon/internal/telemetry"
)

func newTestServer(t *testing.T, basePath string) *Server {
	t.Helper()
	st, err := store.Open(t.TempDir(), nil, telemetry.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Config{
		Symbols:           []model.Symbol{"AAABUSDT"},
		Depth:             50,
		BaseMMNotional:    30000,
		LargeMoveNotional: 30000,
		SizeBins:          []float64{500, 1000},
		BasePath:          basePath,
		LiveMonitoring:    true,
	}
	return New(st, cfg)
}

func TestHandleConfig(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(50), body["depth"])
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"liveMonitoring":true}`, rec.Body.String())
}

func TestHandleHistory_RespectsBasePath(t *testing.T) {
	s := newTestServer(t, "/mon")
	s.store.Metrics.Append(model.MetricsPoint{Ts: time.Now().UnixMilli(), Symbol: "AAABUSDT"})

	req := httptest.NewRequest(http.MethodGet, "/mon/api/history?limit=5&symbol=AAABUSDT", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []model.MetricsPoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, model.Symbol("AAABUSDT"), got[0].Symbol)

	// Without the base path prefix the router must not match.
	req2 := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec2 := httptest.NewRecorder()
	s.Router().ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusNotFound, rec2.Code)
}

func TestReportEndpoints_NotImplemented(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/outliers/report.pdf", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
