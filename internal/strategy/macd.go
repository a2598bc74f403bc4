package strategy

import (
	"fmt"
	"math"

	"fxsignal/internal/indicator"
	"fxsignal/internal/model"
	"fxsignal/internal/trend"
)

// MacdConfig holds the MacdTrendFollower parameters.
type MacdConfig struct {
	FastEMA              int
	SlowEMA              int
	RetracementWindow    int
	RetracementTolerance float64 // pips
	WrapWindow           int
	MaxWraps             int
	StopLookback         int
	StopClearancePips    float64
	RewardToRiskRatio    float64
	MaxCandlesPerPhase   int
	ATRPeriod            int
}

// DefaultMacdConfig returns the production parameters.
func DefaultMacdConfig() MacdConfig {
	return MacdConfig{
		FastEMA:              21,
		SlowEMA:              50,
		RetracementWindow:    3,
		RetracementTolerance: 0.5,
		WrapWindow:           5,
		MaxWraps:             3,
		StopLookback:         3,
		StopClearancePips:    1,
		RewardToRiskRatio:    1.05,
		MaxCandlesPerPhase:   2,
		ATRPeriod:            indicator.DefaultATRPeriod,
	}
}

// Macd follows a higher-timeframe trend and enters on the lower timeframe
// when MACD has reset against the trend and the Heiken-Ashi candles have
// just flipped back into it. Plans with a stop tighter than ATR or a target
// past the last MACD swing are rejected as unsafe.
type Macd struct {
	cfg MacdConfig
	ta  indicator.Provider
}

// NewMacd creates a Macd strategy.
func NewMacd(ta indicator.Provider, cfg MacdConfig) *Macd {
	return &Macd{cfg: cfg, ta: ta}
}

func (m *Macd) Name() string { return "macd" }

// Evaluate reads w.Trend (higher timeframe Heiken-Ashi), w.Candles (signal
// timeframe Heiken-Ashi) and w.Raw (signal timeframe raw candles), all
// newest-first and index-aligned between Candles and Raw.
func (m *Macd) Evaluate(w Window) (Decision, error) {
	if err := model.NeedCandles(m.Name()+" signal", len(w.Candles), 2); err != nil {
		return Decision{}, err
	}
	if err := model.NeedCandles(m.Name()+" raw", len(w.Raw), m.cfg.StopLookback); err != nil {
		return Decision{}, err
	}

	t, err := m.trend(w)
	if err != nil {
		return Decision{}, err
	}

	signalFast, err := m.ta.EMA(w.Candles, m.cfg.FastEMA, model.FieldClose)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: signal fast ema: %w", m.Name(), w.Instrument, err)
	}
	signalSlow, err := m.ta.EMA(w.Candles, m.cfg.SlowEMA, model.FieldClose)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: signal slow ema: %w", m.Name(), w.Instrument, err)
	}
	colors, err := m.ta.MACDColor(w.Candles)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: macd: %w", m.Name(), w.Instrument, err)
	}
	atr, err := m.ta.ATR(w.Raw, m.cfg.ATRPeriod)
	if err != nil {
		return Decision{}, fmt.Errorf("%s %s: atr: %w", m.Name(), w.Instrument, err)
	}

	want, ok := t.Color()
	if !ok {
		return none(t, "flat trend"), nil
	}

	last := w.Raw[0]
	if (t == trend.Bullish && last.Type() != model.Bull) || (t == trend.Bearish && last.Type() != model.Bear) {
		return none(t, "last raw candle is "+string(last.Type())), nil
	}
	if (t == trend.Bullish && signalFast[0] < signalSlow[0]) || (t == trend.Bearish && signalFast[0] > signalSlow[0]) {
		return none(t, "signal timeframe emas disagree with trend"), nil
	}
	if !m.hasRetraced(t, w.Candles, signalFast) {
		return none(t, "no retracement into signal fast ema"), nil
	}
	if colors[0] != want.Opposite() {
		return none(t, "macd has not reset"), nil
	}
	if w.Candles[0].Color() != want || w.Candles[1].Color() != want.Opposite() {
		return none(t, "signal candles did not just change color"), nil
	}
	if m.isStalling(want, w.Candles, colors) {
		return none(t, "stalling"), nil
	}

	action := actionFor(t)
	stop := stopBeyondSwing(action, w.Raw, m.cfg.StopLookback, m.cfg.StopClearancePips, last.Digits)
	sig := plan(m.Name(), action, last, stop, m.cfg.RewardToRiskRatio)
	if err := sig.Validate(); err != nil {
		return none(t, err.Error()), nil
	}
	sig.RewardToRiskRatio = model.RoundPrice(float64(sig.RewardInPips)/float64(sig.RiskInPips), 2)

	if dist := math.Abs(sig.Entry - sig.StopLoss); dist < atr[0] {
		return reject(t, sig, VetoStopInsideATR, fmt.Sprintf("stop distance %.*f below atr %.*f", last.Digits, dist, last.Digits, atr[0])), nil
	}
	extreme, found := swingExtreme(action, want, colors, w.Raw)
	if !found {
		return reject(t, sig, VetoNoSwing, "no completed macd phase"), nil
	}
	if (action == ActionBuy && sig.Target > extreme) || (action == ActionSell && sig.Target < extreme) {
		return reject(t, sig, VetoTargetBeyondSwing, fmt.Sprintf("target beyond swing %.*f", last.Digits, extreme)), nil
	}
	return emit(t, sig), nil
}

func (m *Macd) trend(w Window) (trend.Trend, error) {
	fast, err := m.ta.EMA(w.Trend, m.cfg.FastEMA, model.FieldClose)
	if err != nil {
		return trend.Flat, fmt.Errorf("%s %s: trend fast ema: %w", m.Name(), w.Instrument, err)
	}
	slow, err := m.ta.EMA(w.Trend, m.cfg.SlowEMA, model.FieldClose)
	if err != nil {
		return trend.Flat, fmt.Errorf("%s %s: trend slow ema: %w", m.Name(), w.Instrument, err)
	}
	t, err := trend.ClassifyConfirmed(fast, slow, w.Trend, m.cfg.WrapWindow, m.cfg.MaxWraps)
	if err != nil {
		return trend.Flat, fmt.Errorf("%s %s: %w", m.Name(), w.Instrument, err)
	}
	return t, nil
}

func (m *Macd) hasRetraced(t trend.Trend, candles []model.Candle, fast indicator.Series) bool {
	tol := model.PipSize(candles[0].Digits) * m.cfg.RetracementTolerance
	n := min(m.cfg.RetracementWindow, len(candles), len(fast))
	for i := 0; i < n; i++ {
		if t == trend.Bullish && candles[i].Low-tol <= fast[i] {
			return true
		}
		if t == trend.Bearish && candles[i].High+tol >= fast[i] {
			return true
		}
	}
	return false
}

// isStalling counts trend-colored signal candles printed since the most
// recent trend-colored MACD bar. More than MaxCandlesPerPhase means the move
// has already been traded.
func (m *Macd) isStalling(want model.Color, candles []model.Candle, colors []model.Color) bool {
	end := len(colors)
	for i, c := range colors {
		if c == want {
			end = i
			break
		}
	}
	n := 0
	for _, c := range candles[:min(end, len(candles))] {
		if c.Color() == want {
			n++
		}
	}
	return n > m.cfg.MaxCandlesPerPhase
}

// swingExtreme finds the newest run of trend-colored MACD bars after index 0
// and returns the highest raw high (buy) or lowest raw low (sell) across it.
func swingExtreme(action Action, want model.Color, colors []model.Color, raw []model.Candle) (float64, bool) {
	start := -1
	for i := 1; i < len(colors); i++ {
		if colors[i] == want {
			start = i
			break
		}
	}
	if start < 0 || start >= len(raw) {
		return 0, false
	}
	end := start
	for end+1 < len(colors) && end+1 < len(raw) && colors[end+1] == want {
		end++
	}

	phase := raw[start : end+1]
	if action == ActionBuy {
		return highestHigh(phase, len(phase)), true
	}
	return lowestLow(phase, len(phase)), true
}
