package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the number of fractional digits of the settlement token
// (wei per ether).
const TokenDecimals = 18

var (
	// ErrNotInteger is returned for amounts with a fractional part.
	ErrNotInteger = errors.New("amount must be a whole number of base units")
	// ErrNegative is returned for amounts below zero.
	ErrNegative = errors.New("amount must not be negative")
)

// ParseWei parses a non-negative integer amount in base units. Exponent
// forms such as "1e18" are accepted as long as the result is whole.
func ParseWei(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if err := CheckWei(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckWei validates an already-parsed amount.
func CheckWei(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegative
	}
	if !d.Equal(d.Truncate(0)) {
		return ErrNotInteger
	}
	return nil
}

// FormatUnits renders a base-unit amount in whole-token units, trimming
// trailing zeros ("1500000000000000000" -> "1.5").
func FormatUnits(wei decimal.Decimal, decimals int32) string {
	return wei.Shift(-decimals).String()
}
