package portfolio

import (
	"log"
	"sync"
	"time"
)

// RiskLimits defines configurable risk management thresholds.
type RiskLimits struct {
	MaxOpenPositions int     `json:"max_open_positions"` // concurrent positions across instruments
	MaxDailyLoss     float64 `json:"max_daily_loss"`     // account currency, per UTC day
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`   // from peak equity (0-100)
}

// DefaultRiskLimits returns conservative default limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxOpenPositions: 5,
		MaxDailyLoss:     50,
		MaxDrawdownPct:   10,
	}
}

// RiskManager validates new positions against risk limits and tracks equity.
// Times passed in are market times, so backtests reset the daily loss on
// simulated days.
type RiskManager struct {
	mu     sync.RWMutex
	limits RiskLimits

	day        time.Time // UTC date dailyPnL belongs to
	dailyPnL   float64
	equity     float64
	peakEquity float64
}

// NewRiskManager creates a RiskManager with the given limits and starting equity.
func NewRiskManager(limits RiskLimits, initialEquity float64) *RiskManager {
	return &RiskManager{
		limits:     limits,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

func dayOf(t time.Time) time.Time { return t.UTC().Truncate(24 * time.Hour) }

// CanOpen checks whether one more position may be opened at time at.
// Returns true if allowed, false with a reason if not.
func (rm *RiskManager) CanOpen(openPositions int, at time.Time) (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if openPositions >= rm.limits.MaxOpenPositions {
		return false, "max open positions reached"
	}
	if dayOf(at).Equal(rm.day) && rm.dailyPnL <= -rm.limits.MaxDailyLoss {
		return false, "max daily loss reached"
	}
	if rm.peakEquity > 0 {
		drawdown := (rm.peakEquity - rm.equity) / rm.peakEquity * 100
		if drawdown > rm.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded"
		}
	}
	return true, ""
}

// RecordPnL books a closed trade's result at time at.
func (rm *RiskManager) RecordPnL(pnl float64, at time.Time) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if d := dayOf(at); !d.Equal(rm.day) {
		rm.day, rm.dailyPnL = d, 0
	}
	rm.dailyPnL += pnl
	rm.equity += pnl
	if rm.equity > rm.peakEquity {
		rm.peakEquity = rm.equity
	}

	log.Printf("[risk] daily P&L: %.2f, equity: %.2f, peak: %.2f", rm.dailyPnL, rm.equity, rm.peakEquity)
}

// RiskStatus is a snapshot of the risk state.
type RiskStatus struct {
	DailyPnL    float64    `json:"daily_pnl"`
	Equity      float64    `json:"equity"`
	PeakEquity  float64    `json:"peak_equity"`
	DrawdownPct float64    `json:"drawdown_pct"`
	Limits      RiskLimits `json:"limits"`
}

// GetStatus returns current risk status.
func (rm *RiskManager) GetStatus() RiskStatus {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	drawdown := 0.0
	if rm.peakEquity > 0 {
		drawdown = (rm.peakEquity - rm.equity) / rm.peakEquity * 100
	}
	return RiskStatus{
		DailyPnL:    rm.dailyPnL,
		Equity:      rm.equity,
		PeakEquity:  rm.peakEquity,
		DrawdownPct: drawdown,
		Limits:      rm.limits,
	}
}
