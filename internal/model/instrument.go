package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Instrument is a tradeable symbol and its quote precision.
type Instrument struct {
	Symbol string `json:"symbol"`
	Digits int    `json:"digits"`
}

// Instruments maps symbol → quote digits. It is built from configuration and
// handed to whoever needs it; there is no package-level table.
type Instruments map[string]int

// NewInstruments validates every entry and returns the registry.
func NewInstruments(list ...Instrument) (Instruments, error) {
	reg := make(Instruments, len(list))
	for _, inst := range list {
		if inst.Symbol == "" {
			return nil, fmt.Errorf("instrument with empty symbol")
		}
		if err := ValidateDigits(inst.Digits); err != nil {
			return nil, fmt.Errorf("instrument %s: %w", inst.Symbol, err)
		}
		reg[inst.Symbol] = inst.Digits
	}
	return reg, nil
}

// ParseInstruments parses "EURUSDb:5,USDJPYb:3".
func ParseInstruments(s string) (Instruments, error) {
	var list []Instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, digits, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("instrument %q: expected SYMBOL:DIGITS", part)
		}
		d, err := strconv.Atoi(strings.TrimSpace(digits))
		if err != nil {
			return nil, fmt.Errorf("instrument %q: bad digits: %w", part, err)
		}
		list = append(list, Instrument{Symbol: strings.TrimSpace(sym), Digits: d})
	}
	return NewInstruments(list...)
}

// Digits returns the precision for symbol.
func (r Instruments) Digits(symbol string) (int, bool) {
	d, ok := r[symbol]
	return d, ok
}

// Symbols returns all symbols in sorted order.
func (r Instruments) Symbols() []string {
	out := make([]string, 0, len(r))
	for s := range r {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
