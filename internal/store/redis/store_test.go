package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

// deadClient points at a port nothing listens on.
func deadClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "candles:EURUSDb:15m", CandleKey("EURUSDb", model.TF15m))
	assert.Equal(t, "signals:macd", SignalStream("macd"))
	assert.Equal(t, "pub:signal:USDJPYb", SignalChannel("USDJPYb"))
}

func TestCandleStore_BreakerTripsOnDeadServer(t *testing.T) {
	client := deadClient()
	defer client.Close()

	cb := NewCircuitBreaker(2, time.Minute)
	store := NewCandleStore(client, cb, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Latest(ctx, "EURUSDb", model.TF5m, 100)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis lrange candles:EURUSDb:5m")
	}

	_, err := store.Latest(ctx, "EURUSDb", model.TF5m, 100)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	err = store.Push(ctx, model.Candle{Instrument: "EURUSDb", Timeframe: model.TF5m})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestPublisher_FailsFastWhenOpen(t *testing.T) {
	client := deadClient()
	defer client.Close()

	cb := NewCircuitBreaker(1, time.Minute)
	pub := NewPublisher(client, cb)
	sig := &strategy.Signal{Strategy: "entropy", Type: strategy.ActionBuy, Instrument: "EURUSDb"}

	err := pub.Notify(context.Background(), sig)
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.CurrentState())

	err = pub.Notify(context.Background(), sig)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "redis", pub.Name())
}
