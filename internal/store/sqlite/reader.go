package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fxsignal/internal/model"
	"fxsignal/internal/strategy"
)

// Reader provides read-only access for backtests, fallback reads and the API.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Latest returns up to n candles, newest-first.
func (r *Reader) Latest(ctx context.Context, instrument string, tf model.Timeframe, n int) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT instrument, timeframe, ts, open, high, low, close, digits
		FROM candles
		WHERE instrument = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?
	`, instrument, string(tf), n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// Range returns candles with from <= start < to in chronological order.
func (r *Reader) Range(ctx context.Context, instrument string, tf model.Timeframe, from, to time.Time) ([]model.Candle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT instrument, timeframe, ts, open, high, low, close, digits
		FROM candles
		WHERE instrument = ? AND timeframe = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, instrument, string(tf), from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query candle range: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]model.Candle, error) {
	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tf string
		var tsUnix int64
		if err := rows.Scan(&c.Instrument, &tf, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Digits); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.Timeframe = model.Timeframe(tf)
		c.StartTime = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Signals returns the last limit signals, newest first. An empty instrument
// matches all.
func (r *Reader) Signals(ctx context.Context, instrument string, limit int) ([]strategy.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT data FROM signals
		WHERE ? = '' OR instrument = ?
		ORDER BY id DESC
		LIMIT ?
	`, instrument, instrument, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	signals := make([]strategy.Signal, 0, limit)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		var s strategy.Signal
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, fmt.Errorf("unmarshal signal: %w", err)
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
