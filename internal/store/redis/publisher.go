package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"fxsignal/internal/strategy"
)

// signalStreamMaxLen keeps roughly a month of signals per strategy.
const signalStreamMaxLen = 10000

// SignalStream returns the stream key for a strategy.
func SignalStream(strategyName string) string { return "signals:" + strategyName }

// SignalChannel returns the pub/sub channel for an instrument.
func SignalChannel(instrument string) string { return "pub:signal:" + instrument }

// Publisher appends emitted signals to a Redis stream and announces them on
// a per-instrument pub/sub channel in one pipeline.
type Publisher struct {
	client  goredis.UniversalClient
	breaker *CircuitBreaker
}

// NewPublisher creates a signal Publisher.
func NewPublisher(client goredis.UniversalClient, breaker *CircuitBreaker) *Publisher {
	return &Publisher{client: client, breaker: breaker}
}

func (p *Publisher) Name() string { return "redis" }

// Notify publishes sig.
func (p *Publisher) Notify(ctx context.Context, sig *strategy.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("redis marshal signal: %w", err)
	}
	return p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: SignalStream(sig.Strategy),
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		})
		pipe.Publish(ctx, SignalChannel(sig.Instrument), string(data))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis publish %s: %w", sig.Instrument, err)
		}
		return nil
	})
}
