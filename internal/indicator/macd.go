package indicator

import (
	"fmt"

	"fxsignal/internal/model"
)

// macdLines returns the MACD and signal lines oldest-first, trimmed so both
// start at the first bar where the signal line is defined.
func macdLines(closes []float64, cfg MACDConfig) (macd, signal []float64) {
	fast := emaValues(closes, cfg.Fast)
	slow := emaValues(closes, cfg.Slow)

	// fast starts cfg.Fast-1 bars in, slow cfg.Slow-1 bars in.
	offset := cfg.Slow - cfg.Fast
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	signal = emaValues(line, cfg.Signal)
	return line[cfg.Signal-1:], signal
}

// MACDColor classifies each bar GREEN when the MACD line is above its signal
// line and RED otherwise. The result has len(candles)-(slow+signal-2) values
// and needs at least slow+signal candles.
func (l *Library) MACDColor(candles []model.Candle) ([]model.Color, error) {
	cfg := l.MACD
	if cfg.Fast < 1 || cfg.Slow <= cfg.Fast || cfg.Signal < 1 {
		return nil, fmt.Errorf("macd: invalid periods %d/%d/%d", cfg.Fast, cfg.Slow, cfg.Signal)
	}
	if err := model.NeedCandles("macd", len(candles), cfg.Slow+cfg.Signal); err != nil {
		return nil, err
	}
	if _, err := precision(candles); err != nil {
		return nil, err
	}

	line, signal := macdLines(chronological(candles, model.FieldClose), cfg)
	out := make([]model.Color, len(line))
	for i := range line {
		c := model.Red
		if line[i] > signal[i] {
			c = model.Green
		}
		out[len(line)-1-i] = c
	}
	return out, nil
}
