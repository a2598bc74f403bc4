package strategy

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/indicator"
	"fxsignal/internal/model"
)

func TestEngine_FiftyFlatInstrumentsProduceNoSignal(t *testing.T) {
	windows := make([]Window, 50)
	for i := range windows {
		sym := fmt.Sprintf("PAIR%02d", i)
		windows[i] = Window{Instrument: sym, Candles: flatCandles(sym, 60)}
	}

	eng := NewEngine(NewEntropy(indicator.NewLibrary(), DefaultEntropyConfig()), 8)
	results := eng.Run(context.Background(), windows)

	require.Len(t, results, 50)
	for i, r := range results {
		assert.Equal(t, windows[i].Instrument, r.Instrument)
		assert.NoError(t, r.Err)
		assert.Equal(t, NoSignal, r.Decision.Outcome)
	}
}

func TestEngine_ErrorDoesNotAbortOthers(t *testing.T) {
	windows := []Window{
		{Instrument: "EURUSDb", Candles: pullbackUptrend()},
		{Instrument: "SHORT", Candles: pullbackUptrend()[:10]},
		{Instrument: "GBPUSDb", Candles: flatCandles("GBPUSDb", 60)},
	}

	results := NewEngine(NewEntropy(indicator.NewLibrary(), DefaultEntropyConfig()), 2).Run(context.Background(), windows)

	require.Len(t, results, 3)
	assert.Equal(t, Emitted, results[0].Decision.Outcome)
	assert.ErrorIs(t, results[1].Err, model.ErrInsufficientData)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, NoSignal, results[2].Decision.Outcome)
}

type countingStrategy struct{ calls atomic.Int32 }

func (c *countingStrategy) Name() string { return "counting" }

func (c *countingStrategy) Evaluate(Window) (Decision, error) {
	c.calls.Add(1)
	return none("", "counted"), nil
}

func TestEngine_CancelledContextSkipsEvaluation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &countingStrategy{}
	results := NewEngine(s, 4).Run(ctx, []Window{{Instrument: "A"}, {Instrument: "B"}})

	assert.Equal(t, int32(0), s.calls.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestEngine_WorkersFloor(t *testing.T) {
	s := &countingStrategy{}
	results := NewEngine(s, 0).Run(context.Background(), []Window{{Instrument: "A"}, {Instrument: "B"}, {Instrument: "C"}})
	assert.Len(t, results, 3)
	assert.Equal(t, int32(3), s.calls.Load())
}
