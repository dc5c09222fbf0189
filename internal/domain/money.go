package domain

import (
	"fmt"
)

// Money is an immutable amount in minor units (cents) of a single currency.
// Arithmetic across currencies is rejected rather than silently coerced.
type Money struct {
	amount   int64
	currency string
}

// NewMoney creates a non-negative amount in minor units.
func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if currency == "" {
		return Money{}, fmt.Errorf("%w: currency is required", ErrValidation)
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustMoney is a constructor for literals in tests and seed data. It panics
// on invalid input.
func MustMoney(amount int64, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns a zero amount in the given currency.
func ZeroMoney(currency string) Money {
	return Money{amount: 0, currency: currency}
}

func (m Money) Amount() int64 {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

func (m Money) IsZero() bool {
	return m.amount == 0
}

// Add returns m + other, failing on a currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrValidation, other.currency, m.currency)
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

// MultiplyBy returns m scaled by a non-negative integer factor.
func (m Money) MultiplyBy(n int) (Money, error) {
	if n < 0 {
		return Money{}, fmt.Errorf("%w: multiplier must not be negative", ErrValidation)
	}
	return Money{amount: m.amount * int64(n), currency: m.currency}, nil
}

func (m Money) Equals(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// String renders the amount with two decimal places, e.g. "12.50 USD".
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.amount/100, m.amount%100, m.currency)
}
