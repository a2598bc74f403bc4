package indicator

import (
	"fmt"
	"math"

	"fxsignal/internal/model"
)

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(c model.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ATR returns the Wilder average true range rounded to the candles' digits.
// The oldest candle only supplies a previous close, so the result has
// len(candles)-period values and needs at least period+1 candles.
func (l *Library) ATR(candles []model.Candle, period int) (Series, error) {
	if period < 1 {
		return nil, fmt.Errorf("atr: invalid period %d", period)
	}
	if err := model.NeedCandles(fmt.Sprintf("atr(%d)", period), len(candles), period+1); err != nil {
		return nil, err
	}
	digits, err := precision(candles)
	if err != nil {
		return nil, err
	}

	chrono := model.Reversed(candles)
	smma := NewSMMA(period)
	values := make([]float64, 0, len(chrono)-period)
	for i := 1; i < len(chrono); i++ {
		smma.Update(trueRange(chrono[i], chrono[i-1].Close))
		if smma.Ready() {
			values = append(values, smma.Value())
		}
	}
	return newestFirst(values, digits), nil
}
