package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"fxsignal/internal/model"
)

// defaultMaxCandles bounds each candle list; the largest robot window is 200.
const defaultMaxCandles = 1000

// CandleKey returns the list key for an instrument and timeframe.
func CandleKey(instrument string, tf model.Timeframe) string {
	return "candles:" + instrument + ":" + string(tf)
}

// CandleStore keeps a bounded newest-first list of closed candles per
// instrument and timeframe. All calls go through the circuit breaker.
type CandleStore struct {
	client  goredis.UniversalClient
	breaker *CircuitBreaker
	maxLen  int64
}

// NewCandleStore creates a CandleStore. maxLen <= 0 uses the default bound.
func NewCandleStore(client goredis.UniversalClient, breaker *CircuitBreaker, maxLen int64) *CandleStore {
	if maxLen <= 0 {
		maxLen = defaultMaxCandles
	}
	return &CandleStore{client: client, breaker: breaker, maxLen: maxLen}
}

// Push prepends a closed candle and trims the list.
func (s *CandleStore) Push(ctx context.Context, c model.Candle) error {
	key := CandleKey(c.Instrument, c.Timeframe)
	return s.breaker.Execute(func() error {
		_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.LPush(ctx, key, c.JSON())
			pipe.LTrim(ctx, key, 0, s.maxLen-1)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis push %s: %w", key, err)
		}
		return nil
	})
}

// Latest returns up to n candles, newest-first. Fewer are returned when the
// list is shorter; callers decide whether that is enough.
func (s *CandleStore) Latest(ctx context.Context, instrument string, tf model.Timeframe, n int) ([]model.Candle, error) {
	key := CandleKey(instrument, tf)
	var raw []string
	err := s.breaker.Execute(func() error {
		var err error
		raw, err = s.client.LRange(ctx, key, 0, int64(n)-1).Result()
		if err != nil && err != goredis.Nil {
			return fmt.Errorf("redis lrange %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(raw))
	for _, r := range raw {
		var c model.Candle
		if err := json.Unmarshal([]byte(r), &c); err != nil {
			return nil, fmt.Errorf("redis decode %s: %w", key, err)
		}
		out = append(out, c)
	}
	return out, nil
}
