package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/execution"
	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func buyFill(inst string) execution.Fill {
	return execution.Fill{
		OrderID: "PAPER-1",
		Signal: strategy.Signal{
			Strategy: "entropy", Type: strategy.ActionBuy, Instrument: inst,
			Timeframe: model.TF5m, Time: t0, Digits: 5,
			Entry: 1.1000, StopLoss: 1.0980, Target: 1.1030,
		},
		Lots:      0.5,
		FillPrice: 1.1000,
	}
}

func sellFill(inst string) execution.Fill {
	return execution.Fill{
		OrderID: "PAPER-2",
		Signal: strategy.Signal{
			Strategy: "macd", Type: strategy.ActionSell, Instrument: inst,
			Timeframe: model.TF5m, Time: t0, Digits: 3,
			Entry: 150.000, StopLoss: 150.200, Target: 149.700,
		},
		Lots:      2,
		FillPrice: 150.000,
	}
}

func bar(inst string, start time.Time, high, low, close float64) model.Candle {
	return model.Candle{
		Instrument: inst, Timeframe: model.TF5m, StartTime: start,
		Open: close, High: high, Low: low, Close: close, Digits: 5,
	}
}

func TestMark_TargetHit(t *testing.T) {
	pf := New(nil)
	require.NoError(t, pf.Open(buyFill("EURUSD")))

	_, closed := pf.Mark(bar("EURUSD", t0.Add(5*time.Minute), 1.1010, 1.0990, 1.1005))
	assert.False(t, closed)
	require.Len(t, pf.GetPositions(), 1)
	assert.Equal(t, 5, pf.GetPositions()[0].UnrealizedPips())

	tr, closed := pf.Mark(bar("EURUSD", t0.Add(10*time.Minute), 1.1035, 1.0995, 1.1020))
	require.True(t, closed)
	assert.Equal(t, TargetHit, tr.Outcome)
	assert.Equal(t, 1.1030, tr.ExitPrice)
	assert.Equal(t, 30, tr.Pips)
	assert.Equal(t, 15.0, tr.PnL)
	assert.Equal(t, t0.Add(15*time.Minute), tr.ExitTime)
	assert.Empty(t, pf.GetPositions())
}

func TestMark_SellStopHit(t *testing.T) {
	pf := New(nil)
	require.NoError(t, pf.Open(sellFill("USDJPY")))

	tr, closed := pf.Mark(bar("USDJPY", t0.Add(5*time.Minute), 150.250, 149.950, 150.100))
	require.True(t, closed)
	assert.Equal(t, StopHit, tr.Outcome)
	assert.Equal(t, -20, tr.Pips)
	assert.Equal(t, -40.0, tr.PnL)
}

func TestMark_BothTouchedCountsAsStop(t *testing.T) {
	pf := New(nil)
	require.NoError(t, pf.Open(buyFill("EURUSD")))

	tr, closed := pf.Mark(bar("EURUSD", t0.Add(5*time.Minute), 1.1040, 1.0970, 1.1000))
	require.True(t, closed)
	assert.Equal(t, StopHit, tr.Outcome)
	assert.Equal(t, -20, tr.Pips)
}

func TestMark_IgnoresSignalCandleAndOtherInstruments(t *testing.T) {
	pf := New(nil)
	require.NoError(t, pf.Open(buyFill("EURUSD")))

	_, closed := pf.Mark(bar("EURUSD", t0, 1.2, 1.0, 1.1))
	assert.False(t, closed)
	_, closed = pf.Mark(bar("GBPUSD", t0.Add(5*time.Minute), 1.2, 1.0, 1.1))
	assert.False(t, closed)
	assert.Len(t, pf.GetPositions(), 1)
}

func TestOpen_OnePositionPerInstrument(t *testing.T) {
	pf := New(nil)
	require.NoError(t, pf.Open(buyFill("EURUSD")))

	err := pf.Open(buyFill("EURUSD"))
	assert.True(t, errors.Is(err, ErrPositionOpen))
	sig := buyFill("EURUSD").Signal
	assert.ErrorIs(t, pf.Admit(&sig), ErrPositionOpen)

	sig.Instrument = "GBPUSD"
	assert.NoError(t, pf.Admit(&sig))
}

func TestOpen_MaxOpenPositions(t *testing.T) {
	rm := NewRiskManager(RiskLimits{MaxOpenPositions: 1, MaxDailyLoss: 100, MaxDrawdownPct: 50}, 1000)
	pf := New(rm)
	require.NoError(t, pf.Open(buyFill("EURUSD")))

	err := pf.Open(sellFill("USDJPY"))
	assert.ErrorIs(t, err, ErrRiskLimit)
	assert.Contains(t, err.Error(), "max open positions")
}

func TestPnLSummary(t *testing.T) {
	pf := New(nil)
	require.NoError(t, pf.Open(buyFill("EURUSD")))
	require.NoError(t, pf.Open(sellFill("USDJPY")))

	pf.Mark(bar("EURUSD", t0.Add(5*time.Minute), 1.1035, 1.0995, 1.1020))  // +15
	pf.Mark(bar("USDJPY", t0.Add(5*time.Minute), 150.250, 149.950, 150.1)) // -40

	s := pf.PnL().GetSummary()
	assert.Equal(t, 2, s.TotalTrades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 50.0, s.WinRate)
	assert.Equal(t, 10, s.NetPips)
	assert.Equal(t, -25.0, s.RealizedPnL)
	assert.Equal(t, 40.0, s.MaxDrawdown)
	assert.Len(t, pf.PnL().GetTrades(), 2)
}

func TestRiskManager_DailyLossResetsNextDay(t *testing.T) {
	rm := NewRiskManager(RiskLimits{MaxOpenPositions: 5, MaxDailyLoss: 10, MaxDrawdownPct: 50}, 1000)
	rm.RecordPnL(-12, t0)

	ok, reason := rm.CanOpen(0, t0.Add(time.Hour))
	assert.False(t, ok)
	assert.Equal(t, "max daily loss reached", reason)

	ok, _ = rm.CanOpen(0, t0.Add(24*time.Hour))
	assert.True(t, ok)

	rm.RecordPnL(5, t0.Add(24*time.Hour))
	assert.Equal(t, 5.0, rm.GetStatus().DailyPnL)
	assert.Equal(t, 993.0, rm.GetStatus().Equity)
}

func TestRiskManager_Drawdown(t *testing.T) {
	rm := NewRiskManager(RiskLimits{MaxOpenPositions: 5, MaxDailyLoss: 1000, MaxDrawdownPct: 10}, 100)
	rm.RecordPnL(20, t0)
	rm.RecordPnL(-15, t0.Add(48*time.Hour))

	st := rm.GetStatus()
	assert.Equal(t, 120.0, st.PeakEquity)
	assert.InDelta(t, 12.5, st.DrawdownPct, 1e-9)

	ok, reason := rm.CanOpen(0, t0.Add(72*time.Hour))
	assert.False(t, ok)
	assert.Equal(t, "max drawdown exceeded", reason)
}
