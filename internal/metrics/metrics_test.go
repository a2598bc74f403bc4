package metrics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func TestCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.CountSignal("entropy", "BUY")
	m.CountSignal("entropy", "BUY")
	m.CountRejected("macd", "stop_inside_atr")
	m.ObserveEvaluation("macd", "NO_SIGNAL", false, time.Millisecond)
	m.ObserveEvaluation("macd", "NO_SIGNAL", true, time.Millisecond)

	assert.Equal(t, 2.0, value(t, m.SignalsTotal.WithLabelValues("entropy", "BUY")))
	assert.Equal(t, 1.0, value(t, m.RejectedUnsafeTotal.WithLabelValues("macd", "stop_inside_atr")))
	assert.Equal(t, 1.0, value(t, m.EvaluationsTotal.WithLabelValues("macd", "NO_SIGNAL")))
	assert.Equal(t, 1.0, value(t, m.EvaluationsTotal.WithLabelValues("macd", "error")))
	assert.Equal(t, 1.0, value(t, m.EvaluationErrors.WithLabelValues("macd")))

	m.SetMarketOpen(true)
	assert.Equal(t, 1.0, value(t, m.MarketState))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

func TestServer_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.CountSignal("entropy", "SELL")

	health := NewHealthStatus("entropy")
	health.SetRedisConnected(true)
	health.SetSQLiteOK(true)
	health.RecordRun(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), 2)

	srv := httptest.NewServer(NewServer(":0", reg, health).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "entropy", body["robot"])
	assert.Equal(t, float64(2), body["last_run_signals"])

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `fxsignal_signals_total{action="SELL",strategy="entropy"} 1`)
}

func TestHealth_Degraded(t *testing.T) {
	health := NewHealthStatus("macd")
	health.SetSQLiteOK(true)

	rec := httptest.NewRecorder()
	health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}
