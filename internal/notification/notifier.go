// Package notification delivers emitted signals to external channels
// (chat, webhooks, message queues) and fans one signal out to many sinks.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fxsignal/internal/strategy"
)

// Notifier is a signal sink.
type Notifier interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Notify delivers one emitted signal. Returns error if delivery fails.
	Notify(ctx context.Context, sig *strategy.Signal) error
}

// LogNotifier logs signals (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, sig *strategy.Signal) error {
	log.Printf("[notify] %s", Summary(sig))
	return nil
}

// Summary renders a signal as a single human-readable line.
func Summary(sig *strategy.Signal) string {
	d := sig.Digits
	return fmt.Sprintf("%s %s %s entry=%.*f stop=%.*f target=%.*f risk=%dp reward=%dp rr=%.2f",
		sig.Strategy, sig.Type, sig.Instrument,
		d, sig.Entry, d, sig.StopLoss, d, sig.Target,
		sig.RiskInPips, sig.RewardInPips, sig.RewardToRiskRatio)
}

// Fanout delivers each signal to every sink. A failing sink does not stop
// the others; their errors are joined.
type Fanout struct {
	sinks []Notifier

	// OnError is called once per failed sink.
	OnError func(sink string, err error)
}

// NewFanout creates a Fanout over sinks. Nil sinks are skipped.
func NewFanout(sinks ...Notifier) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Name() string { return "fanout" }

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

func (f *Fanout) Notify(ctx context.Context, sig *strategy.Signal) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, sig); err != nil {
			if f.OnError != nil {
				f.OnError(s.Name(), err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
