package execution

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidRisk is returned when a lot cannot be sized.
var ErrInvalidRisk = errors.New("risk amount and risk in pips must be positive")

// LotSize returns the position size that loses riskAmount (account currency)
// if the stop, riskInPips away, is hit. Rounded to 2 decimals.
func LotSize(riskAmount float64, riskInPips int) (float64, error) {
	if riskAmount <= 0 || riskInPips <= 0 {
		return 0, ErrInvalidRisk
	}
	return decimal.NewFromFloat(riskAmount).
		Div(decimal.NewFromInt(int64(riskInPips))).
		Round(2).
		InexactFloat64(), nil
}
