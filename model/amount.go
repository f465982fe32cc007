package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places held by an Amount.
// All supported currencies (CHF, EUR) use cents.
const minorUnitExponent = 2

// Amount is a signed money value in minor units (cents). Money never travels
// through binary floating point; decimals are only used at the boundaries.
type Amount int64

// ParseAmount converts a decimal string such as "145.00" or "-12.5" into an Amount.
// Values with more than two decimal places are rejected instead of being rounded.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return AmountFromDecimal(d)
}

// AmountFromDecimal converts a decimal into minor units.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(minorUnitExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorUnitExponent)
	}
	return Amount(scaled.IntPart()), nil
}

// MustAmount is ParseAmount for constants and fixtures. It panics on malformed input.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorUnitExponent)
}

// String formats the amount with exactly two decimal places.
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorUnitExponent)
}

// Units returns the amount in currency units. It is only used for scoring,
// never for arithmetic on money.
func (a Amount) Units() float64 {
	f, _ := a.Decimal().Float64()
	return f
}

func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int {
	switch {
	case a < 0:
		return -1
	case a > 0:
		return 1
	}
	return 0
}

// Sum adds up a list of amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// MarshalJSON encodes the amount as a fixed point decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both decimal strings and JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := AmountFromDecimal(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
