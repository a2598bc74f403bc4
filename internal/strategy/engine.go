package strategy

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fxsignal/internal/logger"
)

// Result is the outcome of evaluating one instrument.
type Result struct {
	Instrument string
	Decision   Decision
	Err        error
	Elapsed    time.Duration
}

// Engine evaluates many instruments with one strategy on a bounded pool of
// goroutines. An error for one instrument never stops the others.
type Engine struct {
	strategy Strategy
	workers  int
}

// NewEngine creates an engine running at most workers evaluations at once.
func NewEngine(s Strategy, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{strategy: s, workers: workers}
}

// Strategy returns the engine's strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// Run evaluates every window and returns results in input order. Windows not
// yet started when ctx is cancelled get ctx.Err() as their error.
func (e *Engine) Run(ctx context.Context, windows []Window) []Result {
	results := make([]Result, len(windows))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i, w := range windows {
		g.Go(func() error {
			results[i] = e.evaluate(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) evaluate(ctx context.Context, w Window) Result {
	res := Result{Instrument: w.Instrument}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	res.Decision, res.Err = e.strategy.Evaluate(w)
	res.Elapsed = time.Since(start)

	attrs := append(logger.LogWithTrace(ctx),
		slog.String("strategy", e.strategy.Name()),
		slog.String("instrument", w.Instrument),
	)
	switch {
	case res.Err != nil:
		slog.Error("evaluation failed", append(attrs, slog.Any("error", res.Err))...)
	case res.Decision.Outcome == RejectedUnsafe:
		slog.Warn("found signal but unsafe", append(attrs,
			slog.String("reason", res.Decision.Reason),
			slog.Any("signal", res.Decision.Signal))...)
	case res.Decision.Outcome == Emitted:
		slog.Info("signal", append(attrs, slog.Any("signal", res.Decision.Signal))...)
	default:
		slog.Debug("no signal", append(attrs,
			slog.String("trend", string(res.Decision.Trend)),
			slog.String("reason", res.Decision.Reason))...)
	}
	return res
}
