package portfolio

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is how a position was closed.
type Outcome string

const (
	TargetHit Outcome = "TARGET"
	StopHit   Outcome = "STOP"
)

// Trade is a closed position.
type Trade struct {
	Position
	ExitPrice float64   `json:"exit_price"`
	ExitTime  time.Time `json:"exit_time"`
	Outcome   Outcome   `json:"outcome"`
	Pips      int       `json:"pips"` // signed
	PnL       float64   `json:"pnl"`  // account currency, lots x pips
}

func newTrade(p Position, exit float64, at time.Time, outcome Outcome) Trade {
	pips := signedPips(p.Type, p.Entry, exit, p.Digits)
	pnl := decimal.NewFromFloat(p.Lots).Mul(decimal.NewFromInt(int64(pips))).Round(2).InexactFloat64()
	p.LastPrice = exit
	return Trade{Position: p, ExitPrice: exit, ExitTime: at, Outcome: outcome, Pips: pips, PnL: pnl}
}

// PnLTracker accumulates closed trades.
type PnLTracker struct {
	mu     sync.RWMutex
	trades []Trade

	realized    decimal.Decimal
	peak        decimal.Decimal
	maxDrawdown decimal.Decimal
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{trades: make([]Trade, 0, 500)}
}

// RecordTrade records a closed trade.
func (p *PnLTracker) RecordTrade(t Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades = append(p.trades, t)
	p.realized = p.realized.Add(decimal.NewFromFloat(t.PnL))
	if p.realized.GreaterThan(p.peak) {
		p.peak = p.realized
	}
	if dd := p.peak.Sub(p.realized); dd.GreaterThan(p.maxDrawdown) {
		p.maxDrawdown = dd
	}
}

// GetTrades returns a snapshot of all trades.
func (p *PnLTracker) GetTrades() []Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Trade, len(p.trades))
	copy(cp, p.trades)
	return cp
}

// PnLSummary aggregates closed trades.
type PnLSummary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // percent
	NetPips     int     `json:"net_pips"`
	RealizedPnL float64 `json:"realized_pnl"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// GetSummary returns the current P&L summary.
func (p *PnLTracker) GetSummary() PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := PnLSummary{
		TotalTrades: len(p.trades),
		RealizedPnL: p.realized.InexactFloat64(),
		MaxDrawdown: p.maxDrawdown.InexactFloat64(),
	}
	for _, t := range p.trades {
		s.NetPips += t.Pips
		if t.Outcome == TargetHit {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins * 100)).
			Div(decimal.NewFromInt(int64(s.TotalTrades))).
			Round(2).InexactFloat64()
	}
	return s
}
