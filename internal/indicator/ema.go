package indicator

import (
	"fmt"

	"fxsignal/internal/model"
)

// EMA calculates Exponential Moving Average.
// O(1) per update — no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA accumulator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Update feeds the next chronological price.
func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = (Price * multiplier) + (EMA_prev * (1 - multiplier))
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// emaValues runs an EMA over chronological prices and returns only the
// defined values (len(prices)-period+1 of them), oldest-first.
func emaValues(prices []float64, period int) []float64 {
	e := NewEMA(period)
	out := make([]float64, 0, len(prices))
	for _, p := range prices {
		e.Update(p)
		if e.Ready() {
			out = append(out, e.Value())
		}
	}
	return out
}

// EMA returns the SMA-seeded exponential moving average of field, rounded to
// the candles' digits. It needs at least length+1 candles.
func (l *Library) EMA(candles []model.Candle, length int, field model.Field) (Series, error) {
	if length < 1 {
		return nil, fmt.Errorf("ema: invalid length %d", length)
	}
	if err := model.NeedCandles(fmt.Sprintf("ema(%d)", length), len(candles), length+1); err != nil {
		return nil, err
	}
	digits, err := precision(candles)
	if err != nil {
		return nil, err
	}
	return newestFirst(emaValues(chronological(candles, field), length), digits), nil
}
