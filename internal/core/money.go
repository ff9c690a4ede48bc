// Package core holds the bookkeeping domain: money pairs, transactions,
// reference entities, summaries and the structured error taxonomy.
//
// This file contains the MoneyPair type and the helpers used to parse
// amounts coming from forms and CSV files.
package core

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrAmountTooLarge = errors.New("amount exceeds 999999999999.99")
)

// MaxAmount is the largest magnitude a single component may hold; it is the
// range of the NUMERIC(14,2) columns.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// MoneyPair is an amount split into its declared (official) and undeclared
// (unofficial) parts. Components never carry into each other.
type MoneyPair struct {
	Official   decimal.Decimal
	Unofficial decimal.Decimal
}

// Zero returns a pair with both components set to zero.
func Zero() MoneyPair {
	return MoneyPair{Official: decimal.Zero, Unofficial: decimal.Zero}
}

// NewPair builds a pair from two decimal strings. It panics on malformed
// input and is meant for literals in tests and fixtures.
func NewPair(official, unofficial string) MoneyPair {
	return MoneyPair{
		Official:   decimal.RequireFromString(official),
		Unofficial: decimal.RequireFromString(unofficial),
	}
}

// Add returns a + b componentwise.
func Add(a, b MoneyPair) MoneyPair {
	return MoneyPair{
		Official:   a.Official.Add(b.Official),
		Unofficial: a.Unofficial.Add(b.Unofficial),
	}
}

// Sub returns a - b componentwise.
func Sub(a, b MoneyPair) MoneyPair {
	return MoneyPair{
		Official:   a.Official.Sub(b.Official),
		Unofficial: a.Unofficial.Sub(b.Unofficial),
	}
}

// Add is the method form of Add.
func (m MoneyPair) Add(o MoneyPair) MoneyPair { return Add(m, o) }

// Sub is the method form of Sub.
func (m MoneyPair) Sub(o MoneyPair) MoneyPair { return Sub(m, o) }

// Total is always derived from the two components.
func (m MoneyPair) Total() decimal.Decimal {
	return m.Official.Add(m.Unofficial)
}

// IsZero reports whether both components are zero.
func (m MoneyPair) IsZero() bool {
	return m.Official.IsZero() && m.Unofficial.IsZero()
}

// Equal compares numerically, so 10 and 10.00 are equal.
func (m MoneyPair) Equal(o MoneyPair) bool {
	return m.Official.Equal(o.Official) && m.Unofficial.Equal(o.Unofficial)
}

// Validate checks the invariant for a single transaction amount: both
// components are non-negative and within MaxAmount.
func (m MoneyPair) Validate() error {
	if m.Official.IsNegative() || m.Unofficial.IsNegative() {
		return ErrNegativeAmount
	}
	if m.Official.GreaterThan(MaxAmount) || m.Unofficial.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

type moneyPairJSON struct {
	Official   string `json:"official"`
	Unofficial string `json:"unofficial"`
	Total      string `json:"total,omitempty"`
}

// MarshalJSON renders components as fixed two-digit strings so clients never
// see binary floating point values.
func (m MoneyPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyPairJSON{
		Official:   m.Official.StringFixed(2),
		Unofficial: m.Unofficial.StringFixed(2),
		Total:      m.Total().StringFixed(2),
	})
}

// UnmarshalJSON accepts the same shape; total is ignored because it is derived.
func (m *MoneyPair) UnmarshalJSON(b []byte) error {
	var raw moneyPairJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	official, err := ParseAmount(raw.Official)
	if err != nil {
		return err
	}
	unofficial, err := ParseAmount(raw.Unofficial)
	if err != nil {
		return err
	}
	m.Official, m.Unofficial = official, unofficial
	return nil
}

// ParseAmount parses a plain decimal with "." as separator and at most two
// fraction digits. An empty string is zero. Negative values parse
// successfully; callers decide whether they are acceptable.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("")      -> 0, nil
//	ParseAmount("12,34") -> error
//	ParseAmount("1.234") -> error
//	ParseAmount("1000000000000") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.ContainsAny(s, ",eE_ ") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParsePair parses both components and rejects negative values.
func ParsePair(official, unofficial string) (MoneyPair, error) {
	o, err := ParseAmount(official)
	if err != nil {
		return MoneyPair{}, err
	}
	u, err := ParseAmount(unofficial)
	if err != nil {
		return MoneyPair{}, err
	}
	p := MoneyPair{Official: o, Unofficial: u}
	if err := p.Validate(); err != nil {
		return MoneyPair{}, err
	}
	return p, nil
}
