package main

import (
	"log"
	"sort"
	"time"

	"fxsignal/internal/execution"
	"fxsignal/internal/model"
	"fxsignal/internal/portfolio"
	"fxsignal/internal/strategy"
)

// event is one evaluated replay step, kept small so a whole backtest can be
// merged across instruments before positions are settled.
type event struct {
	at     time.Time    // close time of bar
	bar    model.Candle // newest raw base candle
	signal *strategy.Signal
}

// settle applies events to the book in time order (ties by instrument), so
// positions and risk limits see one market timeline whatever order the
// instruments were evaluated in. It returns the number of signals refused.
func settle(events []event, book *portfolio.Portfolio, paper *execution.PaperExecutor) int {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		return events[i].bar.Instrument < events[j].bar.Instrument
	})

	refused := 0
	for _, ev := range events {
		if tr, ok := book.Mark(ev.bar); ok {
			log.Printf("[backtest] %s %s closed %s %+dp", tr.OrderID, tr.Instrument, tr.Outcome, tr.Pips)
		}
		if ev.signal == nil {
			continue
		}
		if err := book.Admit(ev.signal); err != nil {
			refused++
			continue
		}
		fill, err := paper.Execute(ev.signal)
		if err != nil {
			log.Printf("[backtest] %v", err)
			continue
		}
		if err := book.Open(fill); err != nil {
			log.Printf("[backtest] %v", err)
		}
	}
	return refused
}
