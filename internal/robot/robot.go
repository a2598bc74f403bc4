// Package robot runs a strategy on a schedule: load candles for every
// instrument, evaluate them through the Engine, dispatch emitted signals to
// the sinks and record what happened.
package robot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fxsignal/internal/logger"
	"fxsignal/internal/markethours"
	"fxsignal/internal/metrics"
	"fxsignal/internal/model"
	"fxsignal/internal/notification"
	"fxsignal/internal/strategy"
)

// CandleSource returns up to n closed candles, newest-first.
type CandleSource interface {
	Latest(ctx context.Context, instrument string, tf model.Timeframe, n int) ([]model.Candle, error)
}

// Options wires a Robot. Fallback, Sink, Metrics and Health are optional.
type Options struct {
	Profile     Profile
	Instruments model.Instruments
	Source      CandleSource
	Fallback    CandleSource // read when Source fails
	Engine      *strategy.Engine
	Sink        notification.Notifier
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus

	Interval          time.Duration
	IgnoreMarketHours bool
	Now               func() time.Time
}

// Robot evaluates every configured instrument once per Interval.
type Robot struct {
	opts Options

	mu         sync.Mutex
	lastSignal map[string]time.Time // instrument -> newest dispatched candle start
}

// New creates a Robot.
func New(opts Options) *Robot {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = opts.Profile.Timeframe.Duration()
	}
	return &Robot{opts: opts, lastSignal: make(map[string]time.Time)}
}

// Summary describes one run.
type Summary struct {
	TraceID   string
	At        time.Time
	Evaluated int
	Signals   []*strategy.Signal
	Rejected  int
	Errors    int
	Repeated  int // signals already dispatched for the same candle
}

// Run evaluates immediately and then on every tick until ctx is cancelled.
// Runs are skipped while the FX market is closed.
func (r *Robot) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Robot) tick(ctx context.Context) {
	now := r.opts.Now()
	open := r.opts.IgnoreMarketHours || markethours.IsMarketOpen(now)
	if r.opts.Metrics != nil {
		r.opts.Metrics.SetMarketOpen(open)
	}
	if r.opts.Health != nil {
		r.opts.Health.SetMarketOpen(open)
	}
	if !open {
		slog.Info("market closed, skipping run", slog.String("status", markethours.StatusString(now)))
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		slog.Error("robot run failed", slog.Any("error", err))
	}
}

// RunOnce performs a single load-evaluate-dispatch cycle. Per-instrument
// failures are logged and counted, never returned; the error is reserved
// for a cancelled context.
func (r *Robot) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	now := r.opts.Now()
	name := r.opts.Engine.Strategy().Name()
	traceID := logger.GenerateTraceID(name, now)
	ctx = logger.WithTraceID(ctx, traceID)

	sum := Summary{TraceID: traceID, At: now}

	var windows []strategy.Window
	for _, symbol := range r.opts.Instruments.Symbols() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		w, err := r.load(ctx, symbol)
		if err != nil {
			sum.Errors++
			slog.Error("load candles failed", append(logger.LogWithTrace(ctx),
				slog.String("instrument", symbol), slog.Any("error", err))...)
			if r.opts.Metrics != nil {
				r.opts.Metrics.ObserveEvaluation(name, "", true, 0)
			}
			continue
		}
		windows = append(windows, w)
	}

	for _, res := range r.opts.Engine.Run(ctx, windows) {
		sum.Evaluated++
		if r.opts.Metrics != nil {
			r.opts.Metrics.ObserveEvaluation(name, string(res.Decision.Outcome), res.Err != nil, res.Elapsed)
		}
		switch {
		case res.Err != nil:
			sum.Errors++
		case res.Decision.Outcome == strategy.RejectedUnsafe:
			sum.Rejected++
			if r.opts.Metrics != nil {
				r.opts.Metrics.CountRejected(name, string(res.Decision.Veto))
			}
		case res.Decision.Outcome == strategy.Emitted:
			sig := res.Decision.Signal
			if !r.claim(sig) {
				sum.Repeated++
				continue
			}
			sum.Signals = append(sum.Signals, sig)
			if r.opts.Metrics != nil {
				r.opts.Metrics.CountSignal(name, string(sig.Type))
			}
			r.dispatch(ctx, sig)
		}
	}

	if r.opts.Metrics != nil {
		r.opts.Metrics.RunDur.Observe(time.Since(start).Seconds())
	}
	if r.opts.Health != nil {
		r.opts.Health.RecordRun(now, len(sum.Signals))
	}
	slog.Info("robot run complete", append(logger.LogWithTrace(ctx),
		slog.String("strategy", name),
		slog.Int("evaluated", sum.Evaluated),
		slog.Int("signals", len(sum.Signals)),
		slog.Int("rejected", sum.Rejected),
		slog.Int("errors", sum.Errors),
		slog.Int("repeated", sum.Repeated),
		slog.Duration("elapsed", time.Since(start)))...)

	return sum, ctx.Err()
}

// load reads every timeframe of one instrument and builds its window.
// Candle digits are taken from the instrument registry.
func (r *Robot) load(ctx context.Context, symbol string) (strategy.Window, error) {
	digits, _ := r.opts.Instruments.Digits(symbol)
	byTF := make(map[model.Timeframe][]model.Candle, 2)

	for _, tf := range r.opts.Profile.Timeframes() {
		loaded, err := r.latest(ctx, symbol, tf)
		if err != nil {
			return strategy.Window{}, err
		}
		candles := make([]model.Candle, len(loaded))
		copy(candles, loaded)
		for i := range candles {
			candles[i].Instrument = symbol
			candles[i].Timeframe = tf
			candles[i].Digits = digits
		}
		byTF[tf] = candles
	}
	return r.opts.Profile.BuildWindow(symbol, byTF)
}

func (r *Robot) latest(ctx context.Context, symbol string, tf model.Timeframe) ([]model.Candle, error) {
	n := r.opts.Profile.Bars
	candles, err := r.opts.Source.Latest(ctx, symbol, tf, n)
	if err == nil || r.opts.Fallback == nil {
		return candles, err
	}
	slog.Warn("primary candle source failed, using fallback", append(logger.LogWithTrace(ctx),
		slog.String("instrument", symbol), slog.Any("error", err))...)

	candles, ferr := r.opts.Fallback.Latest(ctx, symbol, tf, n)
	if ferr != nil {
		return nil, fmt.Errorf("%w (fallback: %v)", err, ferr)
	}
	return candles, nil
}

// claim records sig as dispatched and reports false when a signal for the
// same or an older candle of the instrument already went out.
func (r *Robot) claim(sig *strategy.Signal) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastSignal[sig.Instrument]; ok && !sig.Time.After(last) {
		return false
	}
	r.lastSignal[sig.Instrument] = sig.Time
	return true
}

func (r *Robot) dispatch(ctx context.Context, sig *strategy.Signal) {
	if r.opts.Sink == nil {
		return
	}
	if err := r.opts.Sink.Notify(ctx, sig); err != nil {
		slog.Error("signal dispatch failed", append(logger.LogWithTrace(ctx),
			slog.String("instrument", sig.Instrument), slog.Any("error", err))...)
	}
}
