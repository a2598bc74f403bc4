// Package replay walks stored candle history and hands out the sliding,
// newest-first windows a robot would have seen at each candle close. It
// drives backtests.
package replay

import (
	"context"
	"fmt"
	"log"
	"time"

	"fxsignal/internal/model"
)

// maxStepSleep caps paced playback between two steps.
const maxStepSleep = 5 * time.Second

// History returns candles with from <= start < to in chronological order.
type History interface {
	Range(ctx context.Context, instrument string, tf model.Timeframe, from, to time.Time) ([]model.Candle, error)
}

// Step is the state of the market when a base-timeframe candle closes.
type Step struct {
	Instrument string
	Time       time.Time                          // close time of the newest base candle
	Windows    map[model.Timeframe][]model.Candle // newest-first, bars long
}

// Replayer reads history and replays it at a configurable speed multiplier.
type Replayer struct {
	history History
	speed   float64
}

// New creates a Replayer. speed controls pacing: 1.0 = real-time,
// 10.0 = 10x, 0 = as fast as possible.
func New(history History, speed float64) *Replayer {
	return &Replayer{history: history, speed: speed}
}

// Run calls fn once for every base candle in [from, to) for which every
// timeframe in tfs has at least bars closed candles. tfs[0] is the base
// timeframe. A higher timeframe candle is visible only once it has closed.
// Returns the number of steps delivered.
func (r *Replayer) Run(ctx context.Context, instrument string, tfs []model.Timeframe, from, to time.Time, bars int, fn func(Step) error) (int, error) {
	if len(tfs) == 0 || bars < 1 {
		return 0, fmt.Errorf("replay %s: need a timeframe and a positive window", instrument)
	}

	series := make([][]model.Candle, len(tfs))
	for i, tf := range tfs {
		// Warm-up history before from feeds the first windows.
		lead := time.Duration(bars) * tf.Duration()
		candles, err := r.history.Range(ctx, instrument, tf, from.Add(-lead), to)
		if err != nil {
			return 0, fmt.Errorf("replay %s %s: %w", instrument, tf, err)
		}
		series[i] = candles
	}

	base, baseDur := series[0], tfs[0].Duration()
	if len(base) == 0 {
		log.Printf("[replay] no %s candles for %s", tfs[0], instrument)
		return 0, nil
	}
	log.Printf("[replay] %s: %d %s candles, speed=%.1fx", instrument, len(base), tfs[0], r.speed)

	// visible[i] counts candles of tfs[i] closed by the current step.
	visible := make([]int, len(tfs))
	steps := 0
	for i, c := range base {
		closeAt := c.StartTime.Add(baseDur)
		visible[0] = i + 1

		ready := !c.StartTime.Before(from)
		for k := 1; k < len(tfs); k++ {
			d := tfs[k].Duration()
			for visible[k] < len(series[k]) && !series[k][visible[k]].StartTime.Add(d).After(closeAt) {
				visible[k]++
			}
		}
		for k := range tfs {
			if visible[k] < bars {
				ready = false
			}
		}
		if !ready {
			continue
		}

		if err := ctx.Err(); err != nil {
			log.Printf("[replay] cancelled after %d steps", steps)
			return steps, err
		}
		if steps > 0 && r.speed > 0 {
			if err := sleep(ctx, pace(baseDur, r.speed)); err != nil {
				return steps, err
			}
		}

		step := Step{Instrument: instrument, Time: closeAt, Windows: make(map[model.Timeframe][]model.Candle, len(tfs))}
		for k, tf := range tfs {
			step.Windows[tf] = model.Reversed(series[k][visible[k]-bars : visible[k]])
		}
		if err := fn(step); err != nil {
			return steps, err
		}
		steps++
	}

	log.Printf("[replay] %s: %d steps", instrument, steps)
	return steps, nil
}

func pace(d time.Duration, speed float64) time.Duration {
	scaled := time.Duration(float64(d) / speed)
	if scaled > maxStepSleep {
		scaled = maxStepSleep
	}
	return scaled
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
