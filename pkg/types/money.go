package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are stored as integer paise. Rupee strings only exist at the HTTP edge.
var maxPaise = decimal.NewFromInt(1 << 53)

// RupeesFromPaise renders paise as a two-decimal rupee string, e.g. 12345 -> "123.45".
func RupeesFromPaise(paise int64) string {
	return decimal.NewFromInt(paise).Shift(-2).StringFixed(2)
}

// PaiseFromRupees parses a rupee amount with at most two decimal places.
func PaiseFromRupees(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	paise := amount.Shift(2)
	if !paise.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}
	if paise.Abs().GreaterThan(maxPaise) {
		return 0, fmt.Errorf("amount %q out of range", raw)
	}
	return paise.IntPart(), nil
}
