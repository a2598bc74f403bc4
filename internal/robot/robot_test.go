package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/indicator"
	"fxsignal/internal/metrics"
	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
	"fxsignal/internal/trend"
)

var monday = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

// ── Fakes ──────────────────────────────────────────────────────

type fakeSource struct {
	err   error
	calls int
}

func (f *fakeSource) Latest(_ context.Context, instrument string, tf model.Timeframe, n int) ([]model.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			StartTime: monday.Add(-time.Duration(i+1) * tf.Duration()),
			Open:      1.1000, High: 1.1010, Low: 1.0990, Close: 1.1000,
		}
	}
	return out, nil
}

// scripted returns a fixed decision per instrument and records what it saw.
type scripted struct {
	decisions map[string]strategy.Decision
	seen      chan strategy.Window
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Evaluate(w strategy.Window) (strategy.Decision, error) {
	s.seen <- w
	if d, ok := s.decisions[w.Instrument]; ok {
		return d, nil
	}
	return strategy.Decision{}, errors.New("no script")
}

type recordingSink struct {
	got []*strategy.Signal
	err error
}

func (r *recordingSink) Name() string { return "recording" }
func (r *recordingSink) Notify(_ context.Context, sig *strategy.Signal) error {
	r.got = append(r.got, sig)
	return r.err
}

func counter(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func instruments(t *testing.T) model.Instruments {
	t.Helper()
	reg, err := model.ParseInstruments("EURUSDb:5,USDJPYb:3,GBPUSDb:5")
	require.NoError(t, err)
	return reg
}

// ── RunOnce ────────────────────────────────────────────────────

func TestRunOnce_DispatchesAndCounts(t *testing.T) {
	sig := &strategy.Signal{Strategy: "scripted", Type: strategy.ActionBuy, Instrument: "EURUSDb", RiskInPips: 10}
	s := &scripted{
		seen: make(chan strategy.Window, 3),
		decisions: map[string]strategy.Decision{
			"EURUSDb": {Outcome: strategy.Emitted, Trend: trend.Bullish, Signal: sig},
			"USDJPYb": {Outcome: strategy.RejectedUnsafe, Veto: strategy.VetoStopInsideATR},
		},
	}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	health := metrics.NewHealthStatus("scripted")
	sink := &recordingSink{}

	r := New(Options{
		Profile:     EntropyProfile(),
		Instruments: instruments(t),
		Source:      &fakeSource{},
		Engine:      strategy.NewEngine(s, 2),
		Sink:        sink,
		Metrics:     m,
		Health:      health,
		Now:         func() time.Time { return monday },
	})

	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Evaluated)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 1, sum.Errors, "GBPUSDb has no script")
	require.Len(t, sum.Signals, 1)
	assert.Same(t, sig, sum.Signals[0])
	assert.Equal(t, []*strategy.Signal{sig}, sink.got)
	assert.Contains(t, sum.TraceID, "scripted-")

	assert.Equal(t, 1.0, counter(t, m.SignalsTotal.WithLabelValues("scripted", "BUY")))
	assert.Equal(t, 1.0, counter(t, m.RejectedUnsafeTotal.WithLabelValues("scripted", "stop_inside_atr")))
	assert.Equal(t, 1.0, counter(t, m.EvaluationErrors.WithLabelValues("scripted")))

	close(s.seen)
	for w := range s.seen {
		digits, _ := instruments(t).Digits(w.Instrument)
		require.Len(t, w.Candles, 100)
		require.Len(t, w.Raw, 100)
		assert.Nil(t, w.Trend)
		assert.Equal(t, digits, w.Candles[0].Digits)
		assert.Equal(t, w.Instrument, w.Candles[0].Instrument)
	}
}

func TestRunOnce_SinkFailureDoesNotFailRun(t *testing.T) {
	sig := &strategy.Signal{Strategy: "scripted", Type: strategy.ActionSell, Instrument: "EURUSDb"}
	s := &scripted{
		seen:      make(chan strategy.Window, 1),
		decisions: map[string]strategy.Decision{"EURUSDb": {Outcome: strategy.Emitted, Signal: sig}},
	}
	reg, _ := model.ParseInstruments("EURUSDb:5")
	sink := &recordingSink{err: errors.New("down")}

	r := New(Options{
		Profile: EntropyProfile(), Instruments: reg, Source: &fakeSource{},
		Engine: strategy.NewEngine(s, 1), Sink: sink,
	})
	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, sum.Signals, 1)
	assert.Len(t, sink.got, 1)
}

func TestRunOnce_SameCandleDispatchedOnce(t *testing.T) {
	sig := &strategy.Signal{Strategy: "scripted", Type: strategy.ActionBuy, Instrument: "EURUSDb", Time: monday.Add(-15 * time.Minute)}
	s := &scripted{
		seen:      make(chan strategy.Window, 3),
		decisions: map[string]strategy.Decision{"EURUSDb": {Outcome: strategy.Emitted, Signal: sig}},
	}
	reg, _ := model.ParseInstruments("EURUSDb:5")
	sink := &recordingSink{}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	r := New(Options{
		Profile: MacdProfile(), Instruments: reg, Source: &fakeSource{},
		Engine: strategy.NewEngine(s, 1), Sink: sink, Metrics: m,
	})

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Signals, 1)

	second, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Signals)
	assert.Equal(t, 1, second.Repeated)
	assert.Len(t, sink.got, 1)
	assert.Equal(t, 1.0, counter(t, m.SignalsTotal.WithLabelValues("scripted", "BUY")))

	next := *sig
	next.Time = monday
	s.decisions["EURUSDb"] = strategy.Decision{Outcome: strategy.Emitted, Signal: &next}
	third, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, third.Signals, 1)
	assert.Len(t, sink.got, 2)
}

func TestNew_IntervalDefaultsToTimeframe(t *testing.T) {
	r := New(Options{Profile: MacdProfile()})
	assert.Equal(t, 15*time.Minute, r.opts.Interval)
}

func TestRunOnce_MacdProfileLoadsTrend(t *testing.T) {
	s := &scripted{
		seen:      make(chan strategy.Window, 1),
		decisions: map[string]strategy.Decision{"EURUSDb": {Outcome: strategy.NoSignal}},
	}
	reg, _ := model.ParseInstruments("EURUSDb:5")
	src := &fakeSource{}

	r := New(Options{Profile: MacdProfile(), Instruments: reg, Source: src, Engine: strategy.NewEngine(s, 1)})
	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)

	w := <-s.seen
	require.Len(t, w.Trend, 200)
	assert.Equal(t, model.TF1h, w.Trend[0].Timeframe)
	assert.Equal(t, model.TF15m, w.Candles[0].Timeframe)
}

func TestRunOnce_FallbackSource(t *testing.T) {
	s := &scripted{
		seen:      make(chan strategy.Window, 1),
		decisions: map[string]strategy.Decision{"EURUSDb": {Outcome: strategy.NoSignal}},
	}
	reg, _ := model.ParseInstruments("EURUSDb:5")
	primary := &fakeSource{err: errors.New("redis circuit breaker is open")}
	fallback := &fakeSource{}

	r := New(Options{
		Profile: EntropyProfile(), Instruments: reg, Source: primary, Fallback: fallback,
		Engine: strategy.NewEngine(s, 1),
	})
	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Zero(t, sum.Errors)
	assert.Equal(t, 1, sum.Evaluated)
}

func TestRunOnce_LoadErrorIsCountedNotFatal(t *testing.T) {
	reg, _ := model.ParseInstruments("EURUSDb:5")
	r := New(Options{
		Profile: EntropyProfile(), Instruments: reg,
		Source: &fakeSource{err: errors.New("boom")},
		Engine: strategy.NewEngine(strategy.NewEntropy(indicator.NewLibrary(), strategy.DefaultEntropyConfig()), 1),
	})
	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Zero(t, sum.Evaluated)
}

func TestRunOnce_RealEntropyOnFlatMarket(t *testing.T) {
	r := New(Options{
		Profile:     EntropyProfile(),
		Instruments: instruments(t),
		Source:      &fakeSource{},
		Engine:      strategy.NewEngine(strategy.NewEntropy(indicator.NewLibrary(), strategy.DefaultEntropyConfig()), 4),
	})
	sum, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Evaluated)
	assert.Empty(t, sum.Signals)
	assert.Zero(t, sum.Errors)
}

// ── Scheduling ─────────────────────────────────────────────────

func TestTick_SkipsWhenMarketClosed(t *testing.T) {
	saturday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.MarketState.Set(1)

	r := New(Options{
		Profile: EntropyProfile(), Instruments: instruments(t), Source: src,
		Engine:  strategy.NewEngine(strategy.NewEntropy(indicator.NewLibrary(), strategy.DefaultEntropyConfig()), 1),
		Metrics: m,
		Now:     func() time.Time { return saturday },
	})
	r.tick(context.Background())
	assert.Zero(t, src.calls)
	assert.Equal(t, 0.0, counter(t, m.MarketState))
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{}
	r := New(Options{
		Profile: EntropyProfile(), Instruments: instruments(t), Source: src,
		Engine:            strategy.NewEngine(strategy.NewEntropy(indicator.NewLibrary(), strategy.DefaultEntropyConfig()), 1),
		Interval:          time.Hour,
		IgnoreMarketHours: true,
	})
	cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProfileFor(t *testing.T) {
	p, err := ProfileFor("macd")
	require.NoError(t, err)
	assert.Equal(t, []model.Timeframe{model.TF15m, model.TF1h}, p.Timeframes())

	p, err = ProfileFor("entropy")
	require.NoError(t, err)
	assert.Equal(t, []model.Timeframe{model.TF5m}, p.Timeframes())

	_, err = ProfileFor("scalper")
	assert.Error(t, err)
}
