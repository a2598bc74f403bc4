package strategy

import (
	"fmt"
	"math"

	"fxsignal/internal/indicator"
	"fxsignal/internal/model"
	"fxsignal/internal/trend"
)

// EntropyConfig holds the Entropy parameters.
type EntropyConfig struct {
	FastEMA           int
	SlowEMA           int
	RetracementWindow int
	FreshnessWindow   int
	WrapThreshold     float64
	StopClearancePips float64
	RewardToRiskRatio float64
}

// DefaultEntropyConfig returns the production parameters.
func DefaultEntropyConfig() EntropyConfig {
	return EntropyConfig{
		FastEMA:           21,
		SlowEMA:           50,
		RetracementWindow: 3,
		FreshnessWindow:   4,
		WrapThreshold:     0.6,
		StopClearancePips: 2,
		RewardToRiskRatio: 1.1,
	}
}

// Entropy is a single-timeframe trend pullback strategy on Heiken-Ashi
// candles. In a trend it waits for price to dip into the fast EMA, for a
// recent counter-trend candle, and for a decisive candle in the trend
// direction.
type Entropy struct {
	cfg EntropyConfig
	ta  indicator.Provider
}

// NewEntropy creates an Entropy strategy.
func NewEntropy(ta indicator.Provider, cfg EntropyConfig) *Entropy {
	return &Entropy{cfg: cfg, ta: ta}
}

func (e *Entropy) Name() string { return "entropy" }

// Evaluate reads w.Candles (Heiken-Ashi, newest-first).
func (e *Entropy) Evaluate(w Window) (Decision, error) {
	candles := w.Candles
	if err := model.NeedCandles(e.Name(), len(candles), max(e.cfg.RetracementWindow, e.cfg.FreshnessWindow, 1)); err != nil {
		return Decision{}, err
	}

	fast, err := e.ta.EMA(candles, e.cfg.FastEMA, model.FieldClose)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: fast ema: %w", e.Name(), w.Instrument, err)
	}
	slow, err := e.ta.EMA(candles, e.cfg.SlowEMA, model.FieldClose)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: slow ema: %w", e.Name(), w.Instrument, err)
	}

	window := int(math.Ceil(float64(e.cfg.SlowEMA) / 2))
	t, err := trend.Classify(fast, slow, candles, window, e.cfg.WrapThreshold)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: %w", e.Name(), w.Instrument, err)
	}
	want, ok := t.Color()
	if !ok {
		return none(t, "flat trend"), nil
	}

	last := candles[0]
	if (t == trend.Bullish && last.Type() != model.Bull) || (t == trend.Bearish && last.Type() != model.Bear) {
		return none(t, "last candle is "+string(last.Type())), nil
	}
	if !e.hasRetraced(t, candles, fast) {
		return none(t, "no retracement into fast ema"), nil
	}
	if !isFresh(want, candles, e.cfg.FreshnessWindow) {
		return none(t, "no counter-trend candle in freshness window"), nil
	}

	action := actionFor(t)
	stop := stopBeyondSwing(action, candles, e.cfg.FreshnessWindow, e.cfg.StopClearancePips, last.Digits)
	sig := plan(e.Name(), action, last, stop, e.cfg.RewardToRiskRatio)
	sig.RewardToRiskRatio = e.cfg.RewardToRiskRatio
	if err := sig.Validate(); err != nil {
		return none(t, err.Error()), nil
	}
	return emit(t, sig), nil
}

func (e *Entropy) hasRetraced(t trend.Trend, candles []model.Candle, fast indicator.Series) bool {
	n := min(e.cfg.RetracementWindow, len(candles), len(fast))
	for i := 0; i < n; i++ {
		if t == trend.Bullish && candles[i].Low <= fast[i] {
			return true
		}
		if t == trend.Bearish && candles[i].High >= fast[i] {
			return true
		}
	}
	return false
}

// isFresh reports whether a candle against the trend color closed within
// the newest n candles.
func isFresh(trendColor model.Color, candles []model.Candle, n int) bool {
	for _, c := range candles[:min(n, len(candles))] {
		if c.Color() != trendColor {
			return true
		}
	}
	return false
}
