package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/execution"
	"fxsignal/internal/model"
	"fxsignal/internal/portfolio"
	"fxsignal/internal/strategy"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func step(inst string, minute int, high float64, withSignal bool) event {
	start := t0.Add(time.Duration(minute) * time.Minute)
	ev := event{
		at: start.Add(5 * time.Minute),
		bar: model.Candle{
			Instrument: inst, Timeframe: model.TF5m, StartTime: start,
			Open: 1.1, High: high, Low: 1.0995, Close: 1.1, Digits: 5,
		},
	}
	if withSignal {
		ev.signal = &strategy.Signal{
			Strategy: "entropy", Type: strategy.ActionBuy, Instrument: inst,
			Timeframe: model.TF5m, Time: start, Digits: 5,
			Entry: 1.1, StopLoss: 1.098, Target: 1.103, RiskInPips: 20,
		}
	}
	return ev
}

type outcome struct {
	refused int
	fills   []string
	pnl     portfolio.PnLSummary
	trades  []string
	open    []string
}

func runSettle(events []event) outcome {
	book := portfolio.New(portfolio.NewRiskManager(portfolio.RiskLimits{
		MaxOpenPositions: 1, MaxDailyLoss: 100, MaxDrawdownPct: 50,
	}, 1000))
	paper := execution.NewPaperExecutor(10, 0, nil)

	out := outcome{refused: settle(events, book, paper), pnl: book.PnL().GetSummary()}
	for _, f := range paper.GetFills() {
		out.fills = append(out.fills, f.OrderID+" "+f.Signal.Instrument)
	}
	for _, tr := range book.PnL().GetTrades() {
		out.trades = append(out.trades, tr.OrderID+" "+string(tr.Outcome))
	}
	for _, p := range book.GetPositions() {
		out.open = append(out.open, p.Instrument)
	}
	return out
}

func TestSettle_MergesInstrumentsByTime(t *testing.T) {
	eur := []event{
		step("EURUSD", 0, 1.1005, true),
		step("EURUSD", 10, 1.1035, false), // target
	}
	gbp := []event{
		step("GBPUSD", 5, 1.1005, true),  // refused: EURUSD holds the only slot
		step("GBPUSD", 15, 1.1005, true), // admitted after EURUSD closed
	}

	a := runSettle(append(append([]event{}, eur...), gbp...))
	b := runSettle(append(append([]event{}, gbp...), eur...))

	assert.Equal(t, a, b, "result must not depend on evaluation order")
	assert.Equal(t, 1, a.refused)
	assert.Equal(t, []string{"PAPER-1 EURUSD", "PAPER-2 GBPUSD"}, a.fills)
	assert.Equal(t, []string{"GBPUSD"}, a.open)
	assert.Equal(t, []string{"PAPER-1 TARGET"}, a.trades)
	require.Equal(t, 1, a.pnl.TotalTrades)
	assert.Equal(t, 30, a.pnl.NetPips)
	assert.Equal(t, 15.0, a.pnl.RealizedPnL)
}

func TestSettle_StepsWithoutSignalOnlyMark(t *testing.T) {
	out := runSettle([]event{step("EURUSD", 0, 1.2, false)})
	assert.Zero(t, out.refused)
	assert.Empty(t, out.fills)
	assert.Empty(t, out.trades)
	assert.Zero(t, out.pnl.TotalTrades)
}
