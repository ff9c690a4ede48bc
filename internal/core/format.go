package core

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// FormattedPair is the display form of a MoneyPair.
type FormattedPair struct {
	Official   string `json:"official"`
	Unofficial string `json:"unofficial"`
	Total      string `json:"total"`
}

// FormattedSummary is the display form of a Summary.
type FormattedSummary struct {
	Income  FormattedPair `json:"income"`
	Expense FormattedPair `json:"expense"`
	Balance FormattedPair `json:"balance"`
}

// Formatter renders amounts for one locale and currency.
type Formatter struct {
	printer *message.Printer
	symbol  string
}

// NewFormatter parses a BCP 47 locale (e.g. "pt-PT") and an ISO 4217 code
// (e.g. "EUR").
func NewFormatter(locale, code string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	p := message.NewPrinter(tag)
	return &Formatter{
		printer: p,
		symbol:  p.Sprint(currency.Symbol(unit)),
	}, nil
}

// Amount renders a single value with two fraction digits followed by the
// currency symbol, as in "1 234,50 €".
func (f *Formatter) Amount(v decimal.Decimal) string {
	n := f.printer.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(2)))
	if f.symbol == "" {
		return n
	}
	return n + " " + f.symbol
}

// Pair renders each component and the derived total.
func (f *Formatter) Pair(m MoneyPair) FormattedPair {
	return FormattedPair{
		Official:   f.Amount(m.Official),
		Unofficial: f.Amount(m.Unofficial),
		Total:      f.Amount(m.Total()),
	}
}

// Summary renders every pair of a Summary.
func (f *Formatter) Summary(s Summary) FormattedSummary {
	return FormattedSummary{
		Income:  f.Pair(s.Income),
		Expense: f.Pair(s.Expense),
		Balance: f.Pair(s.Balance),
	}
}

// Format is a one-shot helper around NewFormatter and Pair.
func Format(m MoneyPair, locale, code string) (FormattedPair, error) {
	f, err := NewFormatter(locale, code)
	if err != nil {
		return FormattedPair{}, err
	}
	return f.Pair(m), nil
}
