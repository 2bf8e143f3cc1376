package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	BDT Currency = "BDT" // Bangladeshi Taka (default)
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// DefaultCurrency is the ledger's functional currency
const DefaultCurrency = BDT

// Money is an immutable decimal amount tagged with a currency.
// Arithmetic between different currencies is rejected.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// CurrencyMismatchError is returned when two amounts in different currencies are combined
type CurrencyMismatchError struct {
	Op          string
	Left, Right Currency
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("cannot %s money with different currencies: %s and %s", e.Op, e.Left, e.Right)
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromInt creates Money from a whole amount
func NewMoneyFromInt(amount int64, currency Currency) (Money, error) {
	return NewMoney(decimal.NewFromInt(amount), currency)
}

// NewMoneyFromString creates Money from a decimal string such as "1500.75"
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// BDTAmount creates Money in BDT
func BDTAmount(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: BDT}
}

// MustBDT parses a BDT amount and panics on malformed input. Intended for constants and tests.
func MustBDT(amount string) Money {
	m, err := NewMoneyFromString(amount, BDT)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, &CurrencyMismatchError{Op: "add", Left: m.currency, Right: other.currency}
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns the difference of both amounts
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, &CurrencyMismatchError{Op: "subtract", Left: m.currency, Right: other.currency}
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// MustSubtract subtracts two Money values, panics if currencies don't match
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Multiply returns the amount scaled by factor without rounding
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Round returns a new Money rounded half away from zero to places
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

// Equals returns true if both values have the same currency and numerically equal amounts
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Cmp compares two amounts of the same currency: -1, 0 or +1
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, &CurrencyMismatchError{Op: "compare", Left: m.currency, Right: other.currency}
	}
	return m.amount.Cmp(other.amount), nil
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c > 0, err
}

// String returns the canonical decimal amount followed by the currency
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.String(), m.currency)
}

// StringFixed returns the amount as a string with fixed decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// MarshalJSON encodes as {"amount":"<decimal string>","currency":"BDT"}
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON accepts the amount as a decimal string or a JSON number
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid money: %w", err)
	}
	m.amount = v.Amount
	m.currency = v.Currency
	return nil
}

// Sum adds amounts in the given currency. An empty slice sums to zero.
func Sum(currency Currency, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
