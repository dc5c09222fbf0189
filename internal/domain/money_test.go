package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyRejectsNegativeAmount(t *testing.T) {
	_, err := NewMoney(-1, "USD")
	require.ErrorIs(t, err, ErrValidation)
}

func TestNewMoneyRequiresCurrency(t *testing.T) {
	_, err := NewMoney(100, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestMoneyAddSameCurrency(t *testing.T) {
	a := MustMoney(1250, "USD")
	b := MustMoney(750, "USD")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), sum.Amount())
	assert.Equal(t, "USD", sum.Currency())
}

func TestMoneyAddRejectsCurrencyMismatch(t *testing.T) {
	a := MustMoney(1250, "USD")
	b := MustMoney(750, "EUR")

	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrValidation)
}

func TestMoneyMultiplyBy(t *testing.T) {
	price := MustMoney(1250, "USD")

	total, err := price.MultiplyBy(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), total.Amount())

	_, err = price.MultiplyBy(-1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "12.50 USD", MustMoney(1250, "USD").String())
	assert.Equal(t, "0.05 USD", MustMoney(5, "USD").String())
}
