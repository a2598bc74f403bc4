package robot

import (
	"fmt"

	"fxsignal/internal/marketdata/heikenashi"
	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

// Profile describes the candles a robot feeds its strategy.
type Profile struct {
	Strategy       string
	Timeframe      model.Timeframe
	TrendTimeframe model.Timeframe // empty for single-timeframe robots
	Bars           int
}

// EntropyProfile trades 5-minute Heiken-Ashi candles.
func EntropyProfile() Profile {
	return Profile{Strategy: "entropy", Timeframe: model.TF5m, Bars: 100}
}

// MacdProfile reads the trend from hourly Heiken-Ashi candles and times
// entries on 15-minute candles.
func MacdProfile() Profile {
	return Profile{Strategy: "macd", Timeframe: model.TF15m, TrendTimeframe: model.TF1h, Bars: 200}
}

// ProfileFor returns the default profile of a robot name.
func ProfileFor(name string) (Profile, error) {
	switch name {
	case "entropy":
		return EntropyProfile(), nil
	case "macd":
		return MacdProfile(), nil
	}
	return Profile{}, fmt.Errorf("unknown robot %q", name)
}

// Timeframes lists the timeframes to load, evaluated timeframe first.
func (p Profile) Timeframes() []model.Timeframe {
	if p.TrendTimeframe == "" {
		return []model.Timeframe{p.Timeframe}
	}
	return []model.Timeframe{p.Timeframe, p.TrendTimeframe}
}

// BuildWindow turns raw newest-first candles per timeframe into a strategy
// window: Heiken-Ashi on every timeframe, raw candles kept alongside.
func (p Profile) BuildWindow(instrument string, byTF map[model.Timeframe][]model.Candle) (strategy.Window, error) {
	w := strategy.Window{Instrument: instrument, Raw: byTF[p.Timeframe]}

	ha, err := heikenashi.Transform(w.Raw)
	if err != nil {
		return w, fmt.Errorf("%s %s: %w", instrument, p.Timeframe, err)
	}
	w.Candles = ha

	if p.TrendTimeframe != "" {
		trendHA, err := heikenashi.Transform(byTF[p.TrendTimeframe])
		if err != nil {
			return w, fmt.Errorf("%s %s: %w", instrument, p.TrendTimeframe, err)
		}
		w.Trend = trendHA
	}
	return w, nil
}
