package valueobject

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("100.50"), BDT)
		require.NoError(t, err)
		assert.Equal(t, BDT, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("100.5")))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.ErrorContains(t, err, "currency cannot be empty")
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", BDT)
		assert.Error(t, err)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	a := MustBDT("1000.10")
	b := MustBDT("0.20")

	t.Run("add keeps full precision", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.Equal(t, "1000.3", sum.Amount().String())
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := b.Subtract(a)
		require.NoError(t, err)
		assert.True(t, diff.IsNegative())
		assert.Equal(t, "-999.9", diff.Amount().String())
	})

	t.Run("multiply does not round", func(t *testing.T) {
		vat := MustBDT("333.33").Multiply(decimal.RequireFromString("0.075"))
		assert.Equal(t, "24.99975", vat.Amount().String())
		assert.Equal(t, "25", vat.Round(2).Amount().String())
	})

	t.Run("rejects mixed currencies", func(t *testing.T) {
		usd, err := NewMoneyFromInt(5, USD)
		require.NoError(t, err)

		_, err = a.Add(usd)
		var mismatch *CurrencyMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, BDT, mismatch.Left)
		assert.Equal(t, USD, mismatch.Right)

		_, err = a.Subtract(usd)
		assert.Error(t, err)
		_, err = a.Cmp(usd)
		assert.Error(t, err)
		assert.Panics(t, func() { a.MustAdd(usd) })
	})

	t.Run("sum of nothing is zero", func(t *testing.T) {
		total, err := Sum(BDT)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
		assert.Equal(t, BDT, total.Currency())
	})
}

func TestMoneyComparisons(t *testing.T) {
	five := MustBDT("5000")
	four := MustBDT("4000.00")

	gt, err := five.GreaterThan(four)
	require.NoError(t, err)
	assert.True(t, gt)

	assert.True(t, MustBDT("4000").Equals(four))
	assert.False(t, five.Equals(four))
	assert.Equal(t, "5000 BDT", five.String())
	assert.Equal(t, "4000.00", four.StringFixed(2))
}

func TestMoneyJSON(t *testing.T) {
	t.Run("amount is serialized as a string", func(t *testing.T) {
		data, err := json.Marshal(MustBDT("3150.075"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":"3150.075","currency":"BDT"}`, string(data))
	})

	t.Run("unmarshal from string", func(t *testing.T) {
		var m Money
		require.NoError(t, json.Unmarshal([]byte(`{"amount":"123.45","currency":"USD"}`), &m))
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("123.45")))
	})

	t.Run("unmarshal from number", func(t *testing.T) {
		var m Money
		require.NoError(t, json.Unmarshal([]byte(`{"amount":0.1,"currency":"BDT"}`), &m))
		assert.Equal(t, "0.1", m.Amount().String())
	})

	t.Run("round trip", func(t *testing.T) {
		original := MustBDT("0.000001")
		data, err := json.Marshal(original)
		require.NoError(t, err)
		var back Money
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, original.Equals(back))
	})
}
