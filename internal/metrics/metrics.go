package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the signal robot.
type Metrics struct {
	// Evaluation
	EvaluationsTotal    *prometheus.CounterVec   // labels: strategy, outcome
	EvaluationErrors    *prometheus.CounterVec   // labels: strategy
	EvaluationDur       *prometheus.HistogramVec // labels: strategy
	SignalsTotal        *prometheus.CounterVec   // labels: strategy, action
	RejectedUnsafeTotal *prometheus.CounterVec   // labels: strategy, veto
	RunDur              prometheus.Histogram

	// Sinks
	PublishErrors *prometheus.CounterVec // labels: sink
	PaperFills    prometheus.Counter

	// Redis circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Live feed
	WSClients prometheus.Gauge

	// Market session
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers all metrics on reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_evaluations_total",
			Help: "Strategy evaluations by outcome",
		}, []string{"strategy", "outcome"}),
		EvaluationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_evaluation_errors_total",
			Help: "Evaluations that returned an error (short history, bad precision)",
		}, []string{"strategy"}),
		EvaluationDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fxsignal_evaluation_duration_seconds",
			Help:    "Single-instrument evaluation latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}, []string{"strategy"}),
		SignalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_signals_total",
			Help: "Emitted trade signals",
		}, []string{"strategy", "action"}),
		RejectedUnsafeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_rejected_unsafe_total",
			Help: "Signals found but vetoed by a safety check",
		}, []string{"strategy", "veto"}),
		RunDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxsignal_run_duration_seconds",
			Help:    "Full robot run latency (load, evaluate, dispatch)",
			Buckets: prometheus.DefBuckets,
		}),

		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxsignal_publish_errors_total",
			Help: "Signal sink failures",
		}, []string{"sink"}),
		PaperFills: f.NewCounter(prometheus.CounterOpts{
			Name: "fxsignal_paper_fills_total",
			Help: "Signals filled by the paper executor",
		}),

		RedisCircuitBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxsignal_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: f.NewCounter(prometheus.CounterOpts{
			Name: "fxsignal_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		WSClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxsignal_ws_clients",
			Help: "Connected signal feed clients",
		}),

		MarketState: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxsignal_market_state",
			Help: "Forex session state (0=closed, 1=open)",
		}),
	}
}

// ObserveEvaluation records one instrument result.
// outcome is the decision outcome, or "error" when err is set.
func (m *Metrics) ObserveEvaluation(strategy, outcome string, failed bool, d time.Duration) {
	if failed {
		m.EvaluationErrors.WithLabelValues(strategy).Inc()
		outcome = "error"
	}
	m.EvaluationsTotal.WithLabelValues(strategy, outcome).Inc()
	m.EvaluationDur.WithLabelValues(strategy).Observe(d.Seconds())
}

// CountSignal increments the emitted-signal counter.
func (m *Metrics) CountSignal(strategy, action string) {
	m.SignalsTotal.WithLabelValues(strategy, action).Inc()
}

// CountRejected increments the unsafe-rejection counter.
func (m *Metrics) CountRejected(strategy, veto string) {
	m.RejectedUnsafeTotal.WithLabelValues(strategy, veto).Inc()
}

// SetMarketOpen updates the session gauge.
func (m *Metrics) SetMarketOpen(open bool) {
	if open {
		m.MarketState.Set(1)
		return
	}
	m.MarketState.Set(0)
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	Robot          string    `json:"robot"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	MarketOpen     bool      `json:"market_open"`
	LastRunAt      time.Time `json:"last_run_at"`
	LastRunSignals int       `json:"last_run_signals"`

	// Liveness check results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(robot string) *HealthStatus {
	return &HealthStatus{
		Robot:     robot,
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

// RecordRun stores the time and signal count of the latest robot run.
func (h *HealthStatus) RecordRun(at time.Time, signals int) {
	h.mu.Lock()
	h.LastRunAt = at
	h.LastRunSignals = signals
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(checkCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(checkCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	lastRun := ""
	if !h.LastRunAt.IsZero() {
		lastRun = h.LastRunAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Robot           string  `json:"robot"`
		Uptime          string  `json:"uptime"`
		MarketOpen      bool    `json:"market_open"`
		LastRunAt       string  `json:"last_run_at"`
		LastRunSignals  int     `json:"last_run_signals"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Robot:           h.Robot,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		MarketOpen:      h.MarketOpen,
		LastRunAt:       lastRun,
		LastRunSignals:  h.LastRunSignals,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server for the metrics in gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
