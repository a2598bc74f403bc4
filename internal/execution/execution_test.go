package execution

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

func TestLotSize(t *testing.T) {
	cases := []struct {
		risk  float64
		pips  int
		want  float64
		isErr bool
	}{
		{10, 20, 0.5, false},
		{10, 3, 3.33, false},
		{100, 7, 14.29, false},
		{0, 20, 0, true},
		{10, 0, 0, true},
		{-5, 10, 0, true},
	}
	for _, c := range cases {
		got, err := LotSize(c.risk, c.pips)
		if c.isErr {
			assert.ErrorIs(t, err, ErrInvalidRisk)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "LotSize(%v, %d)", c.risk, c.pips)
	}
}

func sellSignal() *strategy.Signal {
	return &strategy.Signal{
		Strategy: "macd", Type: strategy.ActionSell, Instrument: "USDJPYb",
		Timeframe: model.TF15m, Time: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Digits: 3, Entry: 150.25, StopLoss: 150.45, Target: 150.04,
		RiskInPips: 20, RewardInPips: 21, RewardToRiskRatio: 1.05,
	}
}

func TestPaperExecutor_FillsWithSlippage(t *testing.T) {
	p := NewPaperExecutor(10, 0.5, nil)

	fill, err := p.Execute(sellSignal())
	require.NoError(t, err)
	assert.Equal(t, "PAPER-1", fill.OrderID)
	assert.Equal(t, 0.5, fill.Lots)
	assert.Equal(t, 150.245, fill.FillPrice)

	require.NoError(t, p.Notify(context.Background(), sellSignal()))
	fills := p.GetFills()
	require.Len(t, fills, 2)
	assert.Equal(t, "PAPER-2", fills[1].OrderID)
	assert.Equal(t, "paper", p.Name())
}

func TestPaperExecutor_RejectsZeroRisk(t *testing.T) {
	p := NewPaperExecutor(10, 0, nil)
	sig := sellSignal()
	sig.RiskInPips = 0

	_, err := p.Execute(sig)
	assert.ErrorIs(t, err, ErrInvalidRisk)
	assert.Empty(t, p.GetFills())
}

func TestJournal_RecordsFills(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	p := NewPaperExecutor(25, 0, j)
	_, err = p.Execute(sellSignal())
	require.NoError(t, err)

	buy := sellSignal()
	buy.Type = strategy.ActionBuy
	buy.Instrument = "EURUSDb"
	_, err = p.Execute(buy)
	require.NoError(t, err)

	trades, err := j.GetTrades(10)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "EURUSDb", trades[0].Instrument)
	assert.Equal(t, "BUY", trades[0].Action)
	assert.Equal(t, 1.25, trades[1].Lots)
	assert.Equal(t, 150.45, trades[1].StopLoss)
}
