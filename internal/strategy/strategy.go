// Package strategy turns indicator output into trade signals.
//
// A Strategy evaluates one instrument's candle windows and returns a
// Decision. A missing signal is a normal outcome, not an error: errors are
// reserved for windows that are too short or carry unsupported precision.
// The Engine fans evaluations for many instruments out over a bounded pool.
package strategy

import (
	"fmt"
	"time"

	"fxsignal/internal/model"
	"fxsignal/internal/trend"
)

// Action is the direction of a trade.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Signal is a fully specified trade plan.
type Signal struct {
	Strategy          string          `json:"strategy"`
	Type              Action          `json:"type"`
	Instrument        string          `json:"instrument"`
	Timeframe         model.Timeframe `json:"timeframe"`
	Time              time.Time       `json:"time"`
	Digits            int             `json:"digits"`
	Entry             float64         `json:"entry"`
	StopLoss          float64         `json:"stop_loss"`
	Target            float64         `json:"target"`
	RiskInPips        int             `json:"risk_in_pips"`
	RewardInPips      int             `json:"reward_in_pips"`
	RewardToRiskRatio float64         `json:"reward_to_risk_ratio"`
}

// Validate checks that stop and target sit on the correct sides of entry.
func (s *Signal) Validate() error {
	switch s.Type {
	case ActionBuy:
		if !(s.StopLoss < s.Entry && s.Entry < s.Target) {
			return fmt.Errorf("buy %s: want stop %.*f < entry %.*f < target %.*f",
				s.Instrument, s.Digits, s.StopLoss, s.Digits, s.Entry, s.Digits, s.Target)
		}
	case ActionSell:
		if !(s.Target < s.Entry && s.Entry < s.StopLoss) {
			return fmt.Errorf("sell %s: want target %.*f < entry %.*f < stop %.*f",
				s.Instrument, s.Digits, s.Target, s.Digits, s.Entry, s.Digits, s.StopLoss)
		}
	default:
		return fmt.Errorf("signal %s: unknown type %q", s.Instrument, s.Type)
	}
	if s.RiskInPips < 1 {
		return fmt.Errorf("signal %s: risk rounds to zero pips", s.Instrument)
	}
	return nil
}

// Outcome is the kind of result an evaluation produced.
type Outcome string

const (
	NoSignal       Outcome = "NO_SIGNAL"
	Emitted        Outcome = "EMITTED"
	RejectedUnsafe Outcome = "REJECTED_UNSAFE"
)

// Veto names the safety check that rejected a plan.
type Veto string

const (
	VetoStopInsideATR     Veto = "stop_inside_atr"
	VetoTargetBeyondSwing Veto = "target_beyond_swing"
	VetoNoSwing           Veto = "no_macd_phase"
)

// Decision is the result of one evaluation. Signal is set for Emitted and,
// for inspection only, for RejectedUnsafe.
type Decision struct {
	Outcome Outcome     `json:"outcome"`
	Trend   trend.Trend `json:"trend"`
	Signal  *Signal     `json:"signal,omitempty"`
	Veto    Veto        `json:"veto,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

func none(t trend.Trend, reason string) Decision {
	return Decision{Outcome: NoSignal, Trend: t, Reason: reason}
}

func emit(t trend.Trend, s *Signal) Decision {
	return Decision{Outcome: Emitted, Trend: t, Signal: s}
}

func reject(t trend.Trend, s *Signal, veto Veto, reason string) Decision {
	return Decision{Outcome: RejectedUnsafe, Trend: t, Signal: s, Veto: veto, Reason: reason}
}

// Window is one instrument's input. Candles is the evaluated timeframe,
// newest-first. Trend and Raw are only read by strategies that confirm on
// a higher timeframe or measure raw prices.
type Window struct {
	Instrument string
	Candles    []model.Candle
	Trend      []model.Candle
	Raw        []model.Candle
}

// Strategy is the interface every evaluator implements.
type Strategy interface {
	Name() string
	Evaluate(w Window) (Decision, error)
}

// actionFor maps a directional trend to its trade action.
func actionFor(t trend.Trend) Action {
	if t == trend.Bearish {
		return ActionSell
	}
	return ActionBuy
}
