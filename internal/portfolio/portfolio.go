// Package portfolio tracks paper positions opened from signals, closes them
// when price reaches the stop or the target, and keeps P&L and risk limits.
package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"fxsignal/internal/execution"
	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

var (
	// ErrPositionOpen is returned when the instrument already has a position.
	ErrPositionOpen = errors.New("position already open")
	// ErrRiskLimit is returned when a new position would breach a limit.
	ErrRiskLimit = errors.New("risk limit")
)

// Position is one open paper trade.
type Position struct {
	OrderID    string          `json:"order_id"`
	Strategy   string          `json:"strategy"`
	Instrument string          `json:"instrument"`
	Type       strategy.Action `json:"type"`
	Digits     int             `json:"digits"`
	Lots       float64         `json:"lots"`
	Entry      float64         `json:"entry"`
	StopLoss   float64         `json:"stop_loss"`
	Target     float64         `json:"target"`
	OpenedAt   time.Time       `json:"opened_at"` // start of the signal candle
	LastPrice  float64         `json:"last_price"`
}

// UnrealizedPips returns the open profit in pips at LastPrice.
func (p *Position) UnrealizedPips() int {
	return signedPips(p.Type, p.Entry, p.LastPrice, p.Digits)
}

func signedPips(action strategy.Action, entry, exit float64, digits int) int {
	pips := model.ToPips(exit-entry, digits)
	if (action == strategy.ActionBuy && exit < entry) || (action == strategy.ActionSell && exit > entry) {
		return -pips
	}
	return pips
}

// Portfolio tracks at most one open position per instrument.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*Position // key = instrument
	pnl       *PnLTracker
	risk      *RiskManager
}

// New creates an empty Portfolio. risk may be nil to disable limits.
func New(risk *RiskManager) *Portfolio {
	return &Portfolio{
		positions: make(map[string]*Position),
		pnl:       NewPnLTracker(),
		risk:      risk,
	}
}

// Admit reports whether a position for sig may be opened.
func (pf *Portfolio) Admit(sig *strategy.Signal) error {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return pf.admit(sig)
}

func (pf *Portfolio) admit(sig *strategy.Signal) error {
	if _, ok := pf.positions[sig.Instrument]; ok {
		return fmt.Errorf("%s: %w", sig.Instrument, ErrPositionOpen)
	}
	if pf.risk != nil {
		if ok, reason := pf.risk.CanOpen(len(pf.positions), sig.Time); !ok {
			return fmt.Errorf("%s: %w: %s", sig.Instrument, ErrRiskLimit, reason)
		}
	}
	return nil
}

// Open records fill as a new position.
func (pf *Portfolio) Open(fill execution.Fill) error {
	sig := fill.Signal
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if err := pf.admit(&sig); err != nil {
		return err
	}
	pf.positions[sig.Instrument] = &Position{
		OrderID:    fill.OrderID,
		Strategy:   sig.Strategy,
		Instrument: sig.Instrument,
		Type:       sig.Type,
		Digits:     sig.Digits,
		Lots:       fill.Lots,
		Entry:      fill.FillPrice,
		StopLoss:   sig.StopLoss,
		Target:     sig.Target,
		OpenedAt:   sig.Time,
		LastPrice:  fill.FillPrice,
	}
	return nil
}

// Mark applies a closed raw candle to the instrument's position. When the
// candle reaches the stop the position closes there, else at the target if
// reached. A candle touching both is counted as a stop. Candles that do not
// start after the signal candle are ignored.
func (pf *Portfolio) Mark(c model.Candle) (Trade, bool) {
	pf.mu.Lock()
	pos, ok := pf.positions[c.Instrument]
	if !ok || !c.StartTime.After(pos.OpenedAt) {
		pf.mu.Unlock()
		return Trade{}, false
	}
	pos.LastPrice = c.Close

	var exit float64
	var outcome Outcome
	switch {
	case pos.Type == strategy.ActionBuy && c.Low <= pos.StopLoss,
		pos.Type == strategy.ActionSell && c.High >= pos.StopLoss:
		exit, outcome = pos.StopLoss, StopHit
	case pos.Type == strategy.ActionBuy && c.High >= pos.Target,
		pos.Type == strategy.ActionSell && c.Low <= pos.Target:
		exit, outcome = pos.Target, TargetHit
	default:
		pf.mu.Unlock()
		return Trade{}, false
	}
	delete(pf.positions, c.Instrument)
	pf.mu.Unlock()

	t := newTrade(*pos, exit, c.StartTime.Add(c.Timeframe.Duration()), outcome)
	pf.pnl.RecordTrade(t)
	if pf.risk != nil {
		pf.risk.RecordPnL(t.PnL, t.ExitTime)
	}
	return t, true
}

// GetPositions returns a snapshot of all positions.
func (pf *Portfolio) GetPositions() []Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	return result
}

// PnL returns the tracker of closed trades.
func (pf *Portfolio) PnL() *PnLTracker { return pf.pnl }
