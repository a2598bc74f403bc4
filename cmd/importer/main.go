// cmd/importer loads closed candles from a CSV export into the SQLite
// candle table and, when Redis is reachable, into the robots' Redis lists.
//
// CSV columns: time,open,high,low,close where time is RFC3339 or Unix
// seconds. A header row is skipped. With --resample the base candles are
// also aggregated into the listed higher timeframes.
//
// Usage:
//
//	go run ./cmd/importer --file=eurusd_1m.csv --instrument=EURUSDb --tf=1m --digits=5 --resample=5m,15m,1h
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fxsignal/internal/marketdata/tfbuilder"
	"fxsignal/internal/model"
	redisstore "fxsignal/internal/store/redis"
	sqlitestore "fxsignal/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	file := flag.String("file", "", "CSV file to import")
	instrument := flag.String("instrument", "", "Instrument symbol, e.g. EURUSDb")
	tfStr := flag.String("tf", "15m", "Candle timeframe")
	digits := flag.Int("digits", 5, "Quote precision")
	dbPath := flag.String("db", "data/fxsignal.db", "Path to SQLite database")
	redisAddr := flag.String("redis", "", "Redis address; empty skips Redis")
	resample := flag.String("resample", "", "Higher timeframes to build from the base candles, e.g. 5m,15m,1h")
	flag.Parse()

	tf := model.Timeframe(*tfStr)
	if *file == "" || *instrument == "" {
		log.Fatal("[importer] --file and --instrument are required")
	}
	if tf.Duration() == 0 {
		log.Fatalf("[importer] unknown timeframe %q", *tfStr)
	}
	if err := model.ValidateDigits(*digits); err != nil {
		log.Fatalf("[importer] --digits: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("[importer] %v", err)
	}
	defer f.Close()

	candles, err := readCSV(f, *instrument, tf, *digits)
	if err != nil {
		log.Fatalf("[importer] %s: %v", *file, err)
	}
	log.Printf("[importer] parsed %d candles", len(candles))

	tfs, err := parseTimeframes(*resample)
	if err != nil {
		log.Fatalf("[importer] --resample: %v", err)
	}
	builder, err := tfbuilder.New(tfs)
	if err != nil {
		log.Fatalf("[importer] %v", err)
	}
	derived := make(map[model.Timeframe][]model.Candle, len(tfs))
	builder.OnTFCandle = func(c model.Candle) { derived[c.Timeframe] = append(derived[c.Timeframe], c) }
	builder.OnStaleCandle = func(c model.Candle) {
		log.Printf("[importer] out-of-order candle %s at %s", c.Key(), c.StartTime.Format(time.RFC3339))
	}

	w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[importer] sqlite init failed: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	ch := make(chan model.Candle, 1000)
	in := make(chan model.Candle, 1000)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, ch)
		close(done)
	}()

	var g errgroup.Group
	g.Go(func() error { return builder.Run(ctx, in, ch) })
	for _, c := range candles {
		ch <- c
		in <- c
	}
	close(in)
	if err := g.Wait(); err != nil {
		log.Fatalf("[importer] resample: %v", err)
	}
	close(ch)
	<-done
	for _, tf := range tfs {
		log.Printf("[importer] built %d %s candles", len(derived[tf]), tf)
	}

	if *redisAddr != "" {
		rdb, err := redisstore.Connect(redisstore.Config{Addr: *redisAddr})
		if err != nil {
			log.Fatalf("[importer] %v", err)
		}
		defer rdb.Close()

		store := redisstore.NewCandleStore(rdb, redisstore.NewCircuitBreaker(3, 10*time.Second), 0)
		series := map[model.Timeframe][]model.Candle{tf: candles}
		for k, v := range derived {
			series[k] = v
		}
		for k, list := range series {
			// Pushed oldest first so the newest ends up at the head of the list.
			for _, c := range list {
				if err := store.Push(ctx, c); err != nil {
					log.Fatalf("[importer] %v", err)
				}
			}
			log.Printf("[importer] pushed %d candles to %s", len(list), redisstore.CandleKey(*instrument, k))
		}
	}

	last, _ := w.GetLastTimestamp(*instrument, tf)
	fmt.Printf("imported %d %s %s candles, newest %s\n", len(candles), *instrument, tf, last.Format(time.RFC3339))
}

// readCSV parses rows into chronologically sorted candles.
func readCSV(r io.Reader, instrument string, tf model.Timeframe, digits int) ([]model.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	cr.TrimLeadingSpace = true

	var out []model.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var px [4]float64
		for i := range px {
			if px[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		raw := model.RawOHLC{Time: ts, Open: px[0], High: px[1], Low: px[2], Close: px[3]}
		out = append(out, model.NewCandle(raw, digits, instrument, tf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// parseTimeframes parses a comma separated timeframe list. Empty yields none.
func parseTimeframes(s string) ([]model.Timeframe, error) {
	var out []model.Timeframe
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tf := model.Timeframe(part)
		if tf.Duration() == 0 {
			return nil, fmt.Errorf("unknown timeframe %q", part)
		}
		out = append(out, tf)
	}
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
