// Package tfbuilder provides an incremental timeframe resampler.
// It consumes closed base candles (for example 1m) in chronological order
// and keeps one forming candle per (instrument, timeframe). When a base
// candle lands in a new bucket, the previous bucket is finalized and
// emitted as a closed candle of the higher timeframe.
package tfbuilder

import (
	"context"
	"fmt"
	"time"

	"fxsignal/internal/model"
)

// tfState holds the forming candle state for one (instrument, TF) pair.
type tfState struct {
	bucket  time.Time // bucket start, aligned to the TF
	covered time.Time // end of the last base candle merged into the bucket
	candle  model.Candle
}

// Builder resamples base candles into higher timeframes.
// Not goroutine-safe: run it from a single consumer.
type Builder struct {
	tfs []model.Timeframe

	// states[tfIdx][instrument]
	states []map[string]*tfState

	OnTFCandle    func(c model.Candle) // called on every finalized candle (optional)
	OnStaleCandle func(c model.Candle) // called when an out-of-order candle is rejected (optional)
}

// New creates a builder for the given target timeframes.
func New(tfs []model.Timeframe) (*Builder, error) {
	states := make([]map[string]*tfState, len(tfs))
	for i, tf := range tfs {
		if tf.Duration() == 0 {
			return nil, fmt.Errorf("tfbuilder: unknown timeframe %q", tf)
		}
		states[i] = make(map[string]*tfState, 8)
	}
	return &Builder{tfs: tfs, states: states}, nil
}

// Run consumes base candles from in, and sends finalized candles to out.
// It returns when in is closed (after flushing complete buckets) or ctx is
// cancelled.
func (b *Builder) Run(ctx context.Context, in <-chan model.Candle, out chan<- model.Candle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-in:
			if !ok {
				return b.send(ctx, out, b.Flush())
			}
			if err := b.send(ctx, out, b.Add(c)); err != nil {
				return err
			}
		}
	}
}

func (b *Builder) send(ctx context.Context, out chan<- model.Candle, candles []model.Candle) error {
	for _, c := range candles {
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Add merges one base candle into every target timeframe longer than the
// candle's own and returns the candles it finalized.
func (b *Builder) Add(c model.Candle) []model.Candle {
	base := c.Timeframe.Duration()
	end := c.StartTime.Add(base)
	var closed []model.Candle

	for i, tf := range b.tfs {
		dur := tf.Duration()
		if dur <= base {
			continue
		}
		bucket := c.StartTime.Truncate(dur)
		st, exists := b.states[i][c.Instrument]

		if exists && bucket.Before(st.bucket) {
			if b.OnStaleCandle != nil {
				b.OnStaleCandle(c)
			}
			continue // buckets never reopen
		}

		if exists && bucket.After(st.bucket) {
			closed = append(closed, b.finalize(st))
			exists = false
		}

		if !exists {
			fc := c
			fc.Timeframe = tf
			fc.StartTime = bucket
			b.states[i][c.Instrument] = &tfState{bucket: bucket, covered: end, candle: fc}
			continue
		}

		// Same bucket: merge OHLC.
		fc := &st.candle
		if c.High > fc.High {
			fc.High = c.High
		}
		if c.Low < fc.Low {
			fc.Low = c.Low
		}
		fc.Close = c.Close
		st.covered = end
	}
	return closed
}

// Flush finalizes forming candles whose bucket has been fully covered by
// base candles and drops the rest, since a partial bucket is not a closed
// candle.
func (b *Builder) Flush() []model.Candle {
	var closed []model.Candle
	for i, tf := range b.tfs {
		for key, st := range b.states[i] {
			if !st.covered.Before(st.bucket.Add(tf.Duration())) {
				closed = append(closed, b.finalize(st))
			}
			delete(b.states[i], key)
		}
	}
	return closed
}

func (b *Builder) finalize(st *tfState) model.Candle {
	if b.OnTFCandle != nil {
		b.OnTFCandle(st.candle)
	}
	return st.candle
}
