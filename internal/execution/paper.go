// Package execution sizes positions for emitted signals and fills them on a
// paper account.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

// Fill represents a simulated order fill.
type Fill struct {
	OrderID    string          `json:"order_id"`
	Signal     strategy.Signal `json:"signal"`
	Lots       float64         `json:"lots"`
	RiskAmount float64         `json:"risk_amount"`
	FillPrice  float64         `json:"fill_price"`
	Slippage   float64         `json:"slippage"` // price units
	FilledAt   time.Time       `json:"filled_at"`
}

// FillRecorder persists fills.
type FillRecorder interface {
	RecordFill(fill Fill) error
}

// PaperExecutor simulates order execution without real broker calls.
// It implements the signal sink interface so the robot can treat it like
// any other notifier.
type PaperExecutor struct {
	mu       sync.RWMutex
	fills    []Fill
	orderSeq int64

	riskAmount   float64
	slippagePips float64
	journal      FillRecorder

	// OnFill is called after every fill is recorded in memory.
	OnFill func(Fill)
}

// NewPaperExecutor creates a paper trading executor risking riskAmount per
// trade. slippagePips worsens each fill; journal may be nil.
func NewPaperExecutor(riskAmount, slippagePips float64, journal FillRecorder) *PaperExecutor {
	return &PaperExecutor{
		fills:        make([]Fill, 0, 1000),
		riskAmount:   riskAmount,
		slippagePips: slippagePips,
		journal:      journal,
	}
}

// GetFills returns a snapshot of all fills.
func (p *PaperExecutor) GetFills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

func (p *PaperExecutor) Name() string { return "paper" }

// Notify sizes and fills sig.
func (p *PaperExecutor) Notify(ctx context.Context, sig *strategy.Signal) error {
	_, err := p.Execute(sig)
	return err
}

// Execute sizes sig with LotSize and records a fill at entry plus slippage.
func (p *PaperExecutor) Execute(sig *strategy.Signal) (Fill, error) {
	lots, err := LotSize(p.riskAmount, sig.RiskInPips)
	if err != nil {
		return Fill{}, fmt.Errorf("paper %s: %w", sig.Instrument, err)
	}

	slippage := model.FromPips(p.slippagePips, sig.Digits)
	price := sig.Entry + slippage
	if sig.Type == strategy.ActionSell {
		price = sig.Entry - slippage
	}

	p.mu.Lock()
	p.orderSeq++
	fill := Fill{
		OrderID:    fmt.Sprintf("PAPER-%d", p.orderSeq),
		Signal:     *sig,
		Lots:       lots,
		RiskAmount: p.riskAmount,
		FillPrice:  model.RoundPrice(price, sig.Digits),
		Slippage:   slippage,
		FilledAt:   time.Now().UTC(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s lots=%.2f price=%.*f order=%s",
		sig.Type, sig.Strategy, sig.Instrument, lots, sig.Digits, fill.FillPrice, fill.OrderID)

	if p.OnFill != nil {
		p.OnFill(fill)
	}
	if p.journal != nil {
		if err := p.journal.RecordFill(fill); err != nil {
			return fill, fmt.Errorf("paper journal: %w", err)
		}
	}
	return fill, nil
}
