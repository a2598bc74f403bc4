// Package heikenashi recomputes candles as Heiken-Ashi (averaged) bars.
//
// Each synthetic bar depends on its chronological predecessor, so the
// recurrence always runs oldest to newest. The oldest bar is seeded with its
// own raw open and close standing in for the previous synthetic bar.
package heikenashi

import (
	"fmt"
	"math"

	"fxsignal/internal/model"
)

// Transform converts newest-first candles into newest-first Heiken-Ashi
// candles of the same length.
func Transform(candles []model.Candle) ([]model.Candle, error) {
	out, err := TransformChronological(model.Reversed(candles))
	if err != nil {
		return nil, err
	}
	return model.Reversed(out), nil
}

// TransformChronological is Transform for oldest-first input and output.
func TransformChronological(candles []model.Candle) ([]model.Candle, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("heiken-ashi: %w", model.ErrInsufficientData)
	}
	digits := candles[0].Digits
	if err := model.ValidateDigits(digits); err != nil {
		return nil, fmt.Errorf("heiken-ashi %s: %w", candles[0].Instrument, err)
	}

	out := make([]model.Candle, len(candles))
	prevOpen, prevClose := candles[0].Open, candles[0].Close
	for i, c := range candles {
		haOpen := (prevOpen + prevClose) / 2
		haClose := (c.Open + c.High + c.Low + c.Close) / 4

		ha := c
		ha.Open = model.RoundPrice(haOpen, digits)
		ha.Close = model.RoundPrice(haClose, digits)
		ha.High = model.RoundPrice(math.Max(c.High, math.Max(haOpen, haClose)), digits)
		ha.Low = model.RoundPrice(math.Min(c.Low, math.Min(haOpen, haClose)), digits)
		out[i] = ha

		prevOpen, prevClose = haOpen, haClose
	}
	return out, nil
}
