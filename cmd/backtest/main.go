// cmd/backtest replays historical candles from SQLite through a robot's
// strategy, one window per closed candle. Instruments are evaluated in
// parallel; the resulting steps are then merged by time and settled on one
// portfolio, which paper-fills admitted signals and closes positions when
// later candles reach the stop or the target.
//
// Usage:
//
//	go run ./cmd/backtest --robot=macd --instruments=EURUSDb:5,USDJPYb:3 --from=2024-01-01 --to=2024-03-01
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fxsignal/internal/execution"
	"fxsignal/internal/indicator"
	"fxsignal/internal/marketdata/replay"
	"fxsignal/internal/model"
	"fxsignal/internal/portfolio"
	"fxsignal/internal/robot"
	sqlitestore "fxsignal/internal/store/sqlite"
	"fxsignal/internal/strategy"
)

type tally struct {
	mu       sync.Mutex
	steps    int
	outcomes map[strategy.Outcome]int
	vetoes   map[strategy.Veto]int
	errors   int
}

func (t *tally) add(d strategy.Decision, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps++
	if err != nil {
		t.errors++
		return
	}
	t.outcomes[d.Outcome]++
	if d.Veto != "" {
		t.vetoes[d.Veto]++
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	robotName := flag.String("robot", "entropy", "Robot to test: entropy or macd")
	instStr := flag.String("instruments", "EURUSDb:5", "SYMBOL:DIGITS,...")
	fromStr := flag.String("from", "", "Start date (YYYY-MM-DD)")
	toStr := flag.String("to", "", "End date (YYYY-MM-DD), default now")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	risk := flag.Float64("risk", 10, "Risk per trade in account currency")
	equity := flag.Float64("equity", 1000, "Starting equity for risk limits")
	maxPositions := flag.Int("max-positions", portfolio.DefaultRiskLimits().MaxOpenPositions, "Maximum concurrent positions")
	dbPath := flag.String("db", "data/fxsignal.db", "Path to SQLite database")
	listTrades := flag.Bool("trades", false, "Print every closed trade after the summary")
	flag.Parse()

	profile, err := robot.ProfileFor(*robotName)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}
	instruments, err := model.ParseInstruments(*instStr)
	if err != nil {
		log.Fatalf("[backtest] --instruments: %v", err)
	}
	from, to := parseDate(*fromStr, time.Time{}), parseDate(*toStr, time.Now().UTC())

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ta := indicator.NewLibrary()
	var strat strategy.Strategy = strategy.NewEntropy(ta, strategy.DefaultEntropyConfig())
	if profile.Strategy == "macd" {
		strat = strategy.NewMacd(ta, strategy.DefaultMacdConfig())
	}

	paper := execution.NewPaperExecutor(*risk, 0, nil)
	limits := portfolio.DefaultRiskLimits()
	limits.MaxOpenPositions = *maxPositions
	limits.MaxDailyLoss = 5 * *risk
	riskMgr := portfolio.NewRiskManager(limits, *equity)
	book := portfolio.New(riskMgr)
	replayer := replay.New(reader, *speed)
	t := &tally{outcomes: map[strategy.Outcome]int{}, vetoes: map[strategy.Veto]int{}}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		events []event
	)
	for _, symbol := range instruments.Symbols() {
		digits, _ := instruments.Digits(symbol)
		g.Go(func() error {
			var local []event
			_, err := replayer.Run(ctx, symbol, profile.Timeframes(), from, to, profile.Bars, func(step replay.Step) error {
				for _, candles := range step.Windows {
					for i := range candles {
						candles[i].Digits = digits
					}
				}
				ev := event{at: step.Time, bar: step.Windows[profile.Timeframe][0]}
				w, err := profile.BuildWindow(symbol, step.Windows)
				if err != nil {
					t.add(strategy.Decision{}, err)
					local = append(local, ev)
					return nil
				}
				d, err := strat.Evaluate(w)
				t.add(d, err)
				if err == nil && d.Outcome == strategy.Emitted {
					ev.signal = d.Signal
				}
				local = append(local, ev)
				return nil
			})
			mu.Lock()
			events = append(events, local...)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[backtest] replay error: %v", err)
	}
	refused := settle(events, book, paper)

	fills := paper.GetFills()
	buys := 0
	for _, f := range fills {
		if f.Signal.Type == strategy.ActionBuy {
			buys++
		}
	}

	pnl := book.PnL().GetSummary()
	status := riskMgr.GetStatus()
	held := book.GetPositions()
	heldPips := 0
	for i := range held {
		heldPips += held[i].UnrealizedPips()
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Robot:             %-16s ║\n", profile.Strategy)
	fmt.Printf("║  Windows evaluated: %-16d ║\n", t.steps)
	fmt.Printf("║  No signal:         %-16d ║\n", t.outcomes[strategy.NoSignal])
	fmt.Printf("║  Signals:           %-16d ║\n", t.outcomes[strategy.Emitted])
	fmt.Printf("║    buy / sell:      %-16s ║\n", fmt.Sprintf("%d / %d", buys, len(fills)-buys))
	fmt.Printf("║  Rejected unsafe:   %-16d ║\n", t.outcomes[strategy.RejectedUnsafe])
	for veto, n := range t.vetoes {
		fmt.Printf("║    %-20s %-11d ║\n", veto, n)
	}
	fmt.Printf("║  Refused by risk:   %-16d ║\n", refused)
	fmt.Printf("║  Errors:            %-16d ║\n", t.errors)
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Closed trades:     %-16d ║\n", pnl.TotalTrades)
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.2f%%", pnl.WinRate))
	fmt.Printf("║  Net pips:          %-16d ║\n", pnl.NetPips)
	fmt.Printf("║  Realized P&L:      %-16.2f ║\n", pnl.RealizedPnL)
	fmt.Printf("║  Max drawdown:      %-16.2f ║\n", pnl.MaxDrawdown)
	fmt.Printf("║  Final equity:      %-16.2f ║\n", status.Equity)
	fmt.Printf("║  Drawdown now:      %-16s ║\n", fmt.Sprintf("%.2f%%", status.DrawdownPct))
	fmt.Printf("║  Still open:        %-16s ║\n", fmt.Sprintf("%d (%+dp)", len(held), heldPips))
	fmt.Println("╚══════════════════════════════════════╝")

	if *listTrades {
		for _, tr := range book.PnL().GetTrades() {
			fmt.Printf("%s %-4s %-10s %s -> %s %-6s %+5dp %+8.2f\n",
				tr.OrderID, tr.Type, tr.Instrument,
				tr.OpenedAt.Format("2006-01-02 15:04"), tr.ExitTime.Format("2006-01-02 15:04"),
				tr.Outcome, tr.Pips, tr.PnL)
		}
	}
}

func parseDate(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatalf("[backtest] bad date %q: %v", s, err)
	}
	return t
}
