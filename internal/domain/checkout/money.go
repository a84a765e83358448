package checkout

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is a lower-case ISO-4217 code as understood by the payment gateway.
type Currency string

// minorUnitExponent lists the currencies the gateway accepts and their number of decimals.
var minorUnitExponent = map[Currency]int32{
	"inr": 2,
	"usd": 2,
	"eur": 2,
	"gbp": 2,
	"aud": 2,
	"cad": 2,
	"sgd": 2,
	"aed": 2,
	"jpy": 0,
	"krw": 0,
	"bhd": 3,
	"kwd": 3,
	"omr": 3,
}

// DefaultCurrency is used when a caller does not name one.
const DefaultCurrency Currency = "inr"

// ParseCurrency normalises a currency code and checks it is supported.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := minorUnitExponent[c]; !ok {
		return "", NewFailure(KindInvalidAmount, fmt.Sprintf("unsupported currency %q", code), nil)
	}
	return c, nil
}

// Exponent returns the number of minor-unit decimals for c.
func (c Currency) Exponent() int32 { return minorUnitExponent[c] }

// Money is an exact amount in minor currency units. MinorUnits is always >= 1.
type Money struct {
	MinorUnits int64
	Currency   Currency
}

// NewMoney builds Money from an amount already expressed in minor units.
func NewMoney(minorUnits int64, currency string) (Money, error) {
	c, err := ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	if minorUnits < 1 {
		return Money{}, NewFailure(KindInvalidAmount, "amount must be greater than zero", nil)
	}
	return Money{MinorUnits: minorUnits, Currency: c}, nil
}

// Normalize converts a displayed price into minor units.
//
// The value is read at its shortest decimal representation (the digits the buyer saw),
// scaled by the currency factor and rounded half away from zero, so 0.125 INR becomes 13 paise.
func Normalize(displayValue float64, currency string) (Money, error) {
	if math.IsNaN(displayValue) || math.IsInf(displayValue, 0) {
		return Money{}, NewFailure(KindInvalidAmount, "amount must be a finite number", nil)
	}
	if displayValue <= 0 {
		return Money{}, NewFailure(KindInvalidAmount, "amount must be greater than zero", nil)
	}
	c, err := ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}

	minor := decimal.NewFromFloat(displayValue).Shift(c.Exponent()).Round(0)
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Money{}, NewFailure(KindInvalidAmount, "amount is too large", nil)
	}
	units := minor.IntPart()
	if units < 1 {
		return Money{}, NewFailure(KindInvalidAmount, "amount rounds to zero", nil)
	}
	return Money{MinorUnits: units, Currency: c}, nil
}

// Major returns the amount in major units as an exact decimal.
func (m Money) Major() decimal.Decimal {
	return decimal.NewFromInt(m.MinorUnits).Shift(-m.Currency.Exponent())
}

// Display renders the amount for buyers, e.g. "19.99 INR".
func (m Money) Display() string {
	return m.Major().StringFixed(m.Currency.Exponent()) + " " + strings.ToUpper(string(m.Currency))
}
