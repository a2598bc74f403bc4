// Package trend classifies market direction from a fast/slow EMA pair and how
// congested price is around the fast EMA.
package trend

import (
	"fmt"

	"fxsignal/internal/indicator"
	"fxsignal/internal/model"
)

// Trend is the market direction used to gate signals.
type Trend string

const (
	Bullish Trend = "BULLISH"
	Bearish Trend = "BEARISH"
	Flat    Trend = "FLAT"
)

// Color returns the candle color that agrees with t. ok is false for Flat.
func (t Trend) Color() (c model.Color, ok bool) {
	switch t {
	case Bullish:
		return model.Green, true
	case Bearish:
		return model.Red, true
	}
	return "", false
}

// WrapCount counts how many of the newest window candles have fast[i]
// inside their [low, high] range.
func WrapCount(fast indicator.Series, candles []model.Candle, window int) (int, error) {
	if window < 1 {
		return 0, fmt.Errorf("wrap: invalid window %d", window)
	}
	if err := model.NeedCandles("wrap", min(len(fast), len(candles)), window); err != nil {
		return 0, err
	}
	n := 0
	for i := 0; i < window; i++ {
		if candles[i].Low <= fast[i] && fast[i] <= candles[i].High {
			n++
		}
	}
	return n, nil
}

// WrapRatio is WrapCount divided by window.
func WrapRatio(fast indicator.Series, candles []model.Candle, window int) (float64, error) {
	n, err := WrapCount(fast, candles, window)
	if err != nil {
		return 0, err
	}
	return float64(n) / float64(window), nil
}

// Classify returns Flat when the wrap ratio over window is strictly above
// threshold, otherwise orders the newest fast and slow values.
func Classify(fast, slow indicator.Series, candles []model.Candle, window int, threshold float64) (Trend, error) {
	if len(slow) == 0 {
		return Flat, fmt.Errorf("trend: slow ema: %w", model.ErrInsufficientData)
	}
	ratio, err := WrapRatio(fast, candles, window)
	if err != nil {
		return Flat, fmt.Errorf("trend: %w", err)
	}
	if ratio > threshold {
		return Flat, nil
	}
	return order(fast[0], slow[0]), nil
}

// ClassifyConfirmed is the higher-timeframe rule: Flat when more than
// maxWraps of the newest window candles wrap the fast EMA, otherwise the EMA
// order must agree with the newest candle's color.
func ClassifyConfirmed(fast, slow indicator.Series, candles []model.Candle, window, maxWraps int) (Trend, error) {
	if len(slow) == 0 {
		return Flat, fmt.Errorf("trend: slow ema: %w", model.ErrInsufficientData)
	}
	n, err := WrapCount(fast, candles, window)
	if err != nil {
		return Flat, fmt.Errorf("trend: %w", err)
	}
	if n > maxWraps {
		return Flat, nil
	}
	t := order(fast[0], slow[0])
	if want, ok := t.Color(); ok && candles[0].Color() == want {
		return t, nil
	}
	return Flat, nil
}

func order(fast, slow float64) Trend {
	switch {
	case fast > slow:
		return Bullish
	case fast < slow:
		return Bearish
	}
	return Flat
}
