// Package api serves the robot's state over HTTP: recent signals, paper
// trades, stored candles, the instrument table and the live /ws feed.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"fxsignal/internal/execution"
	"fxsignal/internal/gateway"
	"fxsignal/internal/markethours"
	"fxsignal/internal/model"
	redisstore "fxsignal/internal/store/redis"
	"fxsignal/internal/strategy"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// SignalReader lists stored signals, newest first.
type SignalReader interface {
	Signals(ctx context.Context, instrument string, limit int) ([]strategy.Signal, error)
}

// TradeReader lists paper trades, newest first.
type TradeReader interface {
	GetTrades(limit int) ([]execution.TradeRecord, error)
}

// CandleReader returns up to n candles, newest-first.
type CandleReader interface {
	Latest(ctx context.Context, instrument string, tf model.Timeframe, n int) ([]model.Candle, error)
}

// FeedStatter reports the signal feed state.
type FeedStatter interface {
	Stats() gateway.FeedStats
}

// BreakerState reports the Redis circuit breaker state.
type BreakerState interface {
	CurrentState() redisstore.State
}

// Deps are the router's collaborators. Nil readers disable their endpoint
// (503). Feed, when set, is mounted at /ws.
type Deps struct {
	Robot       string
	Instruments model.Instruments
	Signals     SignalReader
	Trades      TradeReader
	Candles     CandleReader
	Feed        http.Handler
	FeedStats   FeedStatter  // optional, reported by /health
	Breaker     BreakerState // optional, reported by /health
	Now         func() time.Time
}

// NewRouter sets up HTTP routes for the API server.
func NewRouter(d Deps) *http.ServeMux {
	if d.Now == nil {
		d.Now = time.Now
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		out := map[string]interface{}{"status": "ok", "robot": d.Robot}
		if d.FeedStats != nil {
			out["feed"] = d.FeedStats.Stats()
		}
		if d.Breaker != nil {
			out["redis_breaker"] = d.Breaker.CurrentState().String()
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("/api/v1/market", func(w http.ResponseWriter, r *http.Request) {
		now := d.Now()
		out := map[string]interface{}{"status": markethours.StatusString(now)}
		if markethours.IsMarketOpen(now) {
			out["open"] = true
			out["closes_in_s"] = int64(markethours.TimeUntilClose(now).Seconds())
		} else {
			out["open"] = false
			out["opens_in_s"] = int64(markethours.TimeUntilOpen(now).Seconds())
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("/api/v1/instruments", func(w http.ResponseWriter, r *http.Request) {
		type instrument struct {
			Symbol  string  `json:"symbol"`
			Digits  int     `json:"digits"`
			PipSize float64 `json:"pip_size"`
		}
		out := make([]instrument, 0, len(d.Instruments))
		for _, s := range d.Instruments.Symbols() {
			digits, _ := d.Instruments.Digits(s)
			out = append(out, instrument{Symbol: s, Digits: digits, PipSize: model.PipSize(digits)})
		}
		writeJSON(w, http.StatusOK, out)
	})

	// GET /api/v1/signals?instrument=EURUSDb&limit=20
	mux.HandleFunc("/api/v1/signals", func(w http.ResponseWriter, r *http.Request) {
		if d.Signals == nil {
			writeError(w, http.StatusServiceUnavailable, "signal journal not configured")
			return
		}
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		out, err := d.Signals.Signals(r.Context(), r.URL.Query().Get("instrument"), limit)
		if err != nil {
			log.Printf("[api] signals: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to read signals")
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	// GET /api/v1/trades?limit=20
	mux.HandleFunc("/api/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		if d.Trades == nil {
			writeError(w, http.StatusServiceUnavailable, "trade journal not configured")
			return
		}
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		out, err := d.Trades.GetTrades(limit)
		if err != nil {
			log.Printf("[api] trades: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to read trades")
			return
		}
		if out == nil {
			out = []execution.TradeRecord{}
		}
		writeJSON(w, http.StatusOK, out)
	})

	// GET /api/v1/candles?instrument=EURUSDb&tf=15m&limit=100
	mux.HandleFunc("/api/v1/candles", func(w http.ResponseWriter, r *http.Request) {
		if d.Candles == nil {
			writeError(w, http.StatusServiceUnavailable, "candle store not configured")
			return
		}
		q := r.URL.Query()
		instrument, tf := q.Get("instrument"), model.Timeframe(q.Get("tf"))
		if _, ok := d.Instruments.Digits(instrument); !ok {
			writeError(w, http.StatusNotFound, "unknown instrument")
			return
		}
		if tf.Duration() == 0 {
			writeError(w, http.StatusBadRequest, "unknown timeframe")
			return
		}
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		out, err := d.Candles.Latest(r.Context(), instrument, tf, limit)
		if err != nil {
			log.Printf("[api] candles %s %s: %v", instrument, tf, err)
			writeError(w, http.StatusInternalServerError, "failed to read candles")
			return
		}
		if out == nil {
			out = []model.Candle{}
		}
		writeJSON(w, http.StatusOK, out)
	})

	if d.Feed != nil {
		mux.Handle("/ws", d.Feed)
	}

	return mux
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
