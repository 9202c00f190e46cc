// Package money implements an exact fixed-point monetary value.
// Amounts are stored in minor currency units (cents) to avoid
// floating point errors.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch is returned when two values with different
	// currencies are combined or compared.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrUnknownCurrency is returned for currency codes without a known
	// decimal precision.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// fractionDigits maps ISO 4217 codes to the number of decimal places of
// their minor unit. Currencies with non-decimal minor units are not
// supported.
var fractionDigits = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"BRL": 2,
	"CAD": 2,
	"AUD": 2,
	"SGD": 2,
	"CHF": 2,
	"CNY": 2,
	"INR": 2,
	"NGN": 2,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// Money is an immutable amount in minor units tied to a currency.
// The zero value is not usable; construct values with FromMinor,
// FromMajor or Zero.
type Money struct {
	amountMinor int64
	currency    string
}

// Zero returns a zero value for the given currency.
func Zero(currency string) (Money, error) {
	return FromMinor(0, currency)
}

// FromMinor builds a Money from an amount already expressed in minor
// units.
func FromMinor(amountMinor int64, currency string) (Money, error) {
	if _, ok := fractionDigits[currency]; !ok {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return Money{amountMinor: amountMinor, currency: currency}, nil
}

// FromMajor builds a Money from a major-unit amount (e.g. dollars),
// scaling by the currency precision with round-half-to-even.
func FromMajor(amount decimal.Decimal, currency string) (Money, error) {
	scale, ok := fractionDigits[currency]
	if !ok {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	minor := amount.RoundBank(scale).Shift(scale)
	return Money{amountMinor: minor.IntPart(), currency: currency}, nil
}

// Add returns the sum of both values. Fails if the currencies differ.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amountMinor: m.amountMinor + other.amountMinor, currency: m.currency}, nil
}

// Subtract returns the difference of both values. Fails if the
// currencies differ.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amountMinor: m.amountMinor - other.amountMinor, currency: m.currency}, nil
}

// Negate returns a copy with the amount negated.
func (m Money) Negate() Money {
	return Money{amountMinor: -m.amountMinor, currency: m.currency}
}

// Compare returns -1, 0 or 1 like the usual comparators. Fails if the
// currencies differ.
func (m Money) Compare(other Money) (int, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.amountMinor < other.amountMinor:
		return -1, nil
	case m.amountMinor > other.amountMinor:
		return 1, nil
	default:
		return 0, nil
	}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.amountMinor == 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.amountMinor < 0
}

// IsPositive reports whether the amount is above zero.
func (m Money) IsPositive() bool {
	return m.amountMinor > 0
}

// MinorUnits returns the amount in minor currency units.
func (m Money) MinorUnits() int64 {
	return m.amountMinor
}

// MajorUnits returns the amount in major units as an exact decimal.
func (m Money) MajorUnits() decimal.Decimal {
	return decimal.New(m.amountMinor, -fractionDigits[m.currency])
}

// Currency returns the ISO currency code of the amount.
func (m Money) Currency() string {
	return m.currency
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.currency, m.MajorUnits().StringFixed(fractionDigits[m.currency]))
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}
