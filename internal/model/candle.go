package model

import (
	"encoding/json"
	"time"
)

// Timeframe is a candle bucket size as quoted by the market feed ("5m", "1h").
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Duration returns the bucket length, or 0 for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF30m:
		return 30 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	}
	return 0
}

// Color is the direction a candle closed in.
type Color string

const (
	Green Color = "GREEN"
	Red   Color = "RED"
)

// Opposite returns the other color.
func (c Color) Opposite() Color {
	if c == Green {
		return Red
	}
	return Green
}

// CandleType classifies a candle by how decisively it closed.
type CandleType string

const (
	Bull   CandleType = "BULL"
	Bear   CandleType = "BEAR"
	Lizard CandleType = "LIZARD" // indecisive
)

// Field selects one of the OHLC prices of a candle.
type Field string

const (
	FieldOpen  Field = "open"
	FieldHigh  Field = "high"
	FieldLow   Field = "low"
	FieldClose Field = "close"
)

// RawOHLC is a candle as delivered by the market-data feed.
type RawOHLC struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Candle is a closed OHLC bar for one instrument and timeframe.
// Digits is the instrument's quote precision and drives pip conversion.
// Candles are values: copy them, never mutate a shared one.
type Candle struct {
	Instrument string    `json:"instrument"`
	Timeframe  Timeframe `json:"timeframe"`
	StartTime  time.Time `json:"start_time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Digits     int       `json:"digits"`
}

// NewCandle builds a Candle from a raw feed bar.
func NewCandle(raw RawOHLC, digits int, instrument string, tf Timeframe) Candle {
	return Candle{
		Instrument: instrument,
		Timeframe:  tf,
		StartTime:  raw.Time,
		Open:       raw.Open,
		High:       raw.High,
		Low:        raw.Low,
		Close:      raw.Close,
		Digits:     digits,
	}
}

// Key returns "instrument:timeframe".
func (c Candle) Key() string {
	return c.Instrument + ":" + string(c.Timeframe)
}

// Price returns the requested OHLC field.
func (c Candle) Price(f Field) float64 {
	switch f {
	case FieldOpen:
		return c.Open
	case FieldHigh:
		return c.High
	case FieldLow:
		return c.Low
	default:
		return c.Close
	}
}

// Color is GREEN when the candle closed above its open. A doji counts as RED.
func (c Candle) Color() Color {
	if c.Close > c.Open {
		return Green
	}
	return Red
}

// Body is the open-close distance in pips.
func (c Candle) Body() int {
	return ToPips(c.Close-c.Open, c.Digits)
}

// Range is the high-low distance in pips.
func (c Candle) Range() int {
	return ToPips(c.High-c.Low, c.Digits)
}

// UpperWick is the distance from the top of the body to the high, in pips.
func (c Candle) UpperWick() int {
	if c.Color() == Green {
		return ToPips(c.High-c.Close, c.Digits)
	}
	return ToPips(c.High-c.Open, c.Digits)
}

// LowerWick is the distance from the bottom of the body to the low, in pips.
func (c Candle) LowerWick() int {
	if c.Color() == Green {
		return ToPips(c.Low-c.Open, c.Digits)
	}
	return ToPips(c.Low-c.Close, c.Digits)
}

// Type is BULL for a higher close with no lower wick, BEAR for a lower close
// with no upper wick, LIZARD otherwise.
func (c Candle) Type() CandleType {
	if c.Close > c.Open && c.LowerWick() < 1 {
		return Bull
	}
	if c.Close < c.Open && c.UpperWick() < 1 {
		return Bear
	}
	return Lizard
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Reversed returns a reversed copy of candles. Used to flip between
// newest-first and chronological order.
func Reversed(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	for i, c := range candles {
		out[len(candles)-1-i] = c
	}
	return out
}
