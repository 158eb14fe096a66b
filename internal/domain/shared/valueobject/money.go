package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	INR Currency = "INR" // Indian Rupee (default)
	USD Currency = "USD" // US Dollar
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = INR

// PaymentTolerance is the rounding allowance applied when comparing a payment
// against an outstanding balance (0.01 currency unit).
var PaymentTolerance = decimal.NewFromFloat(0.01)

// Money is a value object representing monetary amounts.
// It is immutable - all operations return new Money instances.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyINR creates Money in INR (Indian Rupee)
func NewMoneyINR(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: INR}
}

// NewMoneyINRFromFloat creates Money in INR from float64
func NewMoneyINRFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: INR}
}

// NewMoneyINRFromString creates Money in INR from string
func NewMoneyINRFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d, currency: INR}, nil
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// ZeroINR returns a zero-value Money in INR
func ZeroINR() Money {
	return Zero(INR)
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts.
// Returns error if currencies don't match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: m.currency,
	}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference.
// Returns error if currencies don't match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Sub(other.amount),
		currency: m.currency,
	}, nil
}

// MustSubtract subtracts two Money values, panics if currencies don't match
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Multiply returns a new Money multiplied by the given factor
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(factor),
		currency: m.currency,
	}
}

// Round returns a new Money rounded to the specified decimal places
func (m Money) Round(places int32) Money {
	return Money{
		amount:   m.amount.Round(places),
		currency: m.currency,
	}
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// LessThan returns true if this Money is less than the other.
// Returns error if currencies don't match.
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.amount.LessThan(other.amount), nil
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.amount.GreaterThan(other.amount), nil
}

// ExceedsWithTolerance returns true if this Money is greater than the other by
// more than the payment tolerance. Used for overpayment checks so that UI
// rounding does not reject an exact payoff.
func (m Money) ExceedsWithTolerance(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.amount.GreaterThan(other.amount.Add(PaymentTolerance)), nil
}

// CalculatePercentage returns the percentage of this Money
func (m Money) CalculatePercentage(percent decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(percent).Div(decimal.NewFromInt(100)),
		currency: m.currency,
	}
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// StringFixed returns the amount as a string with fixed decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	m.currency = v.Currency
	return nil
}

// Value implements driver.Valuer for database storage.
// Stores as a numeric value (amount only).
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
// Currency defaults to DefaultCurrency if not already set.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		m.currency = DefaultCurrency
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}

	amount, err := decimal.NewFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	m.amount = amount
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
