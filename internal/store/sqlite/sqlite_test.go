package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func openTemp(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	r, err := NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return w, r
}

func TestNew_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "fx.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNew_ParentIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := New(WriterConfig{DBPath: filepath.Join(blocker, "fx.db")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite dir")
}

func candles(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		p := 1.1 + float64(i)*0.0001
		out[i] = model.Candle{
			Instrument: "EURUSDb", Timeframe: model.TF5m,
			StartTime: t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:      p, High: p + 0.0005, Low: p - 0.0005, Close: p + 0.0001, Digits: 5,
		}
	}
	return out
}

func TestLatest_NewestFirst(t *testing.T) {
	w, r := openTemp(t)
	require.NoError(t, w.InsertCandles(candles(10)))

	got, err := r.Latest(context.Background(), "EURUSDb", model.TF5m, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(45*time.Minute), got[0].StartTime)
	assert.Equal(t, t0.Add(35*time.Minute), got[2].StartTime)
	assert.Equal(t, model.TF5m, got[0].Timeframe)
	assert.Equal(t, 5, got[0].Digits)

	other, err := r.Latest(context.Background(), "GBPUSDb", model.TF5m, 3)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInsertCandles_Upserts(t *testing.T) {
	w, r := openTemp(t)
	cs := candles(2)
	require.NoError(t, w.InsertCandles(cs))

	cs[1].Close = 1.2
	require.NoError(t, w.InsertCandles(cs[1:]))

	got, err := r.Latest(context.Background(), "EURUSDb", model.TF5m, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.2, got[0].Close)
}

func TestRange_Chronological(t *testing.T) {
	w, r := openTemp(t)
	require.NoError(t, w.InsertCandles(candles(10)))

	got, err := r.Range(context.Background(), "EURUSDb", model.TF5m, t0.Add(10*time.Minute), t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, t0.Add(10*time.Minute), got[0].StartTime)
	assert.Equal(t, t0.Add(25*time.Minute), got[3].StartTime)
}

func TestRun_FlushesOnClose(t *testing.T) {
	w, r := openTemp(t)
	ch := make(chan model.Candle, 5)
	for _, c := range candles(5) {
		ch <- c
	}
	close(ch)

	w.Run(context.Background(), ch)

	last, err := w.GetLastTimestamp("EURUSDb", model.TF5m)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(20*time.Minute), last)

	got, err := r.Latest(context.Background(), "EURUSDb", model.TF5m, 100)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestGetLastTimestamp_Empty(t *testing.T) {
	w, _ := openTemp(t)
	last, err := w.GetLastTimestamp("EURUSDb", model.TF5m)
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestSignals(t *testing.T) {
	w, r := openTemp(t)
	ctx := context.Background()

	for i, inst := range []string{"EURUSDb", "USDJPYb", "EURUSDb"} {
		sig := &strategy.Signal{
			Strategy: "macd", Type: strategy.ActionBuy, Instrument: inst,
			Timeframe: model.TF15m, Time: t0.Add(time.Duration(i) * time.Hour),
			Digits: 5, Entry: 1.1, StopLoss: 1.099, Target: 1.101, RiskInPips: 10,
		}
		require.NoError(t, w.Notify(ctx, sig))
	}
	assert.Equal(t, "sqlite", w.Name())

	all, err := r.Signals(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, t0.Add(2*time.Hour), all[0].Time.UTC())

	eur, err := r.Signals(ctx, "EURUSDb", 10)
	require.NoError(t, err)
	require.Len(t, eur, 2)
	assert.Equal(t, 1.099, eur[0].StopLoss)
	assert.Equal(t, strategy.ActionBuy, eur[0].Type)
}
