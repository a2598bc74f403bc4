package model

import (
	"errors"
	"strconv"
)

var (
	// ErrInsufficientData is returned when fewer candles are supplied than a
	// computation needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidPrecision is returned for instrument digits outside the
	// supported pip mapping.
	ErrInvalidPrecision = errors.New("invalid instrument precision")
)

// NeedCandles returns a wrapped ErrInsufficientData when have < need.
func NeedCandles(what string, have, need int) error {
	if have < need {
		return &InsufficientDataError{What: what, Have: have, Need: need}
	}
	return nil
}

// InsufficientDataError carries how many candles a computation wanted.
type InsufficientDataError struct {
	What string
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return e.What + ": " + ErrInsufficientData.Error() + " (have " + strconv.Itoa(e.Have) + ", need " + strconv.Itoa(e.Need) + ")"
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
