// Package indicator provides technical indicator calculations over candle data.
//
// Every public function takes candles newest-first and returns a Series in the
// same order. Recurrences run chronologically through the streaming EMA and
// SMMA accumulators below. Leading periods that cannot be computed are
// omitted, so index i of a series always describes candle i and the series is
// shorter than the input at its oldest end.
package indicator

import (
	"fmt"

	"fxsignal/internal/model"
)

// Series is a newest-first indicator output aligned with its input candles.
type Series []float64

// Provider is the indicator surface the strategies depend on.
type Provider interface {
	EMA(candles []model.Candle, length int, field model.Field) (Series, error)
	MACDColor(candles []model.Candle) ([]model.Color, error)
	ATR(candles []model.Candle, period int) (Series, error)
}

// MACDConfig holds the MACD periods.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACD is the 12/26/9 configuration.
var DefaultMACD = MACDConfig{Fast: 12, Slow: 26, Signal: 9}

// DefaultATRPeriod is the classic Wilder period.
const DefaultATRPeriod = 14

// Library is the default stateless Provider.
type Library struct {
	MACD MACDConfig
}

// NewLibrary returns a Library using DefaultMACD.
func NewLibrary() *Library {
	return &Library{MACD: DefaultMACD}
}

var _ Provider = (*Library)(nil)

// precision validates the digits shared by the window and returns them.
func precision(candles []model.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	d := candles[0].Digits
	if err := model.ValidateDigits(d); err != nil {
		return 0, fmt.Errorf("indicator %s: %w", candles[0].Instrument, err)
	}
	return d, nil
}

// chronological returns the chosen field oldest-first.
func chronological(candles []model.Candle, field model.Field) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[len(candles)-1-i] = c.Price(field)
	}
	return out
}

// newestFirst reverses chronological values into a Series, rounding when digits > 0.
func newestFirst(values []float64, digits int) Series {
	out := make(Series, len(values))
	for i, v := range values {
		if digits > 0 {
			v = model.RoundPrice(v, digits)
		}
		out[len(values)-1-i] = v
	}
	return out
}
