package strategy

import (
	"math"

	"fxsignal/internal/model"
)

func lowestLow(candles []model.Candle, n int) float64 {
	low := math.Inf(1)
	for _, c := range candles[:min(n, len(candles))] {
		low = math.Min(low, c.Low)
	}
	return low
}

func highestHigh(candles []model.Candle, n int) float64 {
	high := math.Inf(-1)
	for _, c := range candles[:min(n, len(candles))] {
		high = math.Max(high, c.High)
	}
	return high
}

// stopBeyondSwing places the stop clearancePips past the swing extreme of
// the newest lookback candles: below the lowest low for a buy, above the
// highest high for a sell.
func stopBeyondSwing(action Action, candles []model.Candle, lookback int, clearancePips float64, digits int) float64 {
	clearance := model.FromPips(clearancePips, digits)
	if action == ActionBuy {
		return model.RoundPrice(lowestLow(candles, lookback)-clearance, digits)
	}
	return model.RoundPrice(highestHigh(candles, lookback)+clearance, digits)
}

// plan builds a signal from an entry and stop, placing the target at
// ratio times the risk.
func plan(name string, action Action, last model.Candle, stop, ratio float64) *Signal {
	digits := last.Digits
	entry := model.RoundPrice(last.Close, digits)
	risk := math.Abs(entry - stop)

	target := entry + risk*ratio
	if action == ActionSell {
		target = entry - risk*ratio
	}
	target = model.RoundPrice(target, digits)

	return &Signal{
		Strategy:     name,
		Type:         action,
		Instrument:   last.Instrument,
		Timeframe:    last.Timeframe,
		Time:         last.StartTime,
		Digits:       digits,
		Entry:        entry,
		StopLoss:     stop,
		Target:       target,
		RiskInPips:   model.ToPips(entry-stop, digits),
		RewardInPips: model.ToPips(target-entry, digits),
	}
}
