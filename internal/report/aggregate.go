// Package report folds transaction records into summaries, optionally
// grouped by company, counterparty or calendar month.
//
// Everything here is a pure function of its arguments: callers fetch the
// records, report only filters and folds them.
package report

import (
	"fmt"
	"time"

	"contas/internal/core"
)

// Ungrouped is the group key used for records without the grouped reference.
const Ungrouped = "_ungrouped"

type GroupBy int

const (
	GroupNone GroupBy = iota
	GroupCompany
	GroupCounterparty
	GroupMonth
)

func (g GroupBy) String() string {
	switch g {
	case GroupCompany:
		return "company"
	case GroupCounterparty:
		return "counterparty"
	case GroupMonth:
		return "month"
	}
	return "none"
}

// DateRange is inclusive on both ends. A zero bound is open.
type DateRange struct {
	From core.Date
	To   core.Date
}

// Contains reports whether d falls within the range.
func (r DateRange) Contains(d core.Date) bool {
	if !r.From.IsZero() && d.Before(r.From.Time) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To.Time) {
		return false
	}
	return true
}

// Validate rejects a range whose start is after its end.
func (r DateRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To.Time) {
		return core.Validation("from", "start date is after end date")
	}
	return nil
}

// Filter selects records. Nil pointers skip their criterion; a non-nil
// pointer matches exactly, so a pointer to "" selects records that have no
// such reference.
type Filter struct {
	Window         DateRange
	CompanyID      *string
	CounterpartyID *string
	CategoryID     *string
	Kind           *core.Kind
}

// Ref is a convenience for building filters.
func Ref(s string) *string { return &s }

// Match reports whether t passes every supplied criterion.
func (f Filter) Match(t core.Transaction) bool {
	if !f.Window.Contains(t.OccurredOn) {
		return false
	}
	if f.CompanyID != nil && *f.CompanyID != t.CompanyID {
		return false
	}
	if f.CounterpartyID != nil && *f.CounterpartyID != t.CounterpartyID {
		return false
	}
	if f.CategoryID != nil && *f.CategoryID != t.CategoryID {
		return false
	}
	if f.Kind != nil && *f.Kind != t.Kind {
		return false
	}
	return true
}

// Apply returns the records that match f, preserving order.
func (f Filter) Apply(records []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(records))
	for _, t := range records {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Query describes one aggregation. Year is required for GroupMonth.
type Query struct {
	Filter  Filter
	GroupBy GroupBy
	Year    int
}

// Result holds the overall Summary and, unless GroupBy is GroupNone, one
// Summary per group key.
type Result struct {
	Total  core.Summary
	Groups map[string]core.Summary
}

// Summarize folds every matching record into one Summary.
func Summarize(records []core.Transaction, f Filter) core.Summary {
	acc := core.NewAccumulator()
	for _, t := range records {
		if f.Match(t) {
			acc.Add(t)
		}
	}
	return acc.Summary()
}

// Aggregate filters and folds records according to q.
func Aggregate(records []core.Transaction, q Query) (Result, error) {
	if err := q.Filter.Window.Validate(); err != nil {
		return Result{}, err
	}

	var key func(core.Transaction) string
	f := q.Filter
	switch q.GroupBy {
	case GroupNone:
		return Result{Total: Summarize(records, f)}, nil
	case GroupCompany:
		key = func(t core.Transaction) string { return refKey(t.CompanyID) }
	case GroupCounterparty:
		key = func(t core.Transaction) string { return refKey(t.CounterpartyID) }
	case GroupMonth:
		if q.Year < 1 || q.Year > 9999 {
			return Result{}, core.Validation("year", "a year is required for monthly grouping")
		}
		f.Window = intersect(f.Window, yearRange(q.Year))
		key = func(t core.Transaction) string { return MonthKey(t.OccurredOn.Month()) }
	default:
		return Result{}, core.Validation("group_by", fmt.Sprintf("unknown grouping %d", q.GroupBy))
	}

	total := core.NewAccumulator()
	groups := map[string]*core.Accumulator{}
	if q.GroupBy == GroupMonth {
		for m := time.January; m <= time.December; m++ {
			groups[MonthKey(m)] = core.NewAccumulator()
		}
	}
	for _, t := range records {
		if !f.Match(t) {
			continue
		}
		total.Add(t)
		k := key(t)
		acc, ok := groups[k]
		if !ok {
			acc = core.NewAccumulator()
			groups[k] = acc
		}
		acc.Add(t)
	}

	out := Result{Total: total.Summary(), Groups: make(map[string]core.Summary, len(groups))}
	for k, acc := range groups {
		out.Groups[k] = acc.Summary()
	}
	return out, nil
}

// MonthKey is the two-digit group key of a month ("01".."12").
func MonthKey(m time.Month) string {
	return fmt.Sprintf("%02d", int(m))
}

func refKey(id string) string {
	if id == "" {
		return Ungrouped
	}
	return id
}

func yearRange(year int) DateRange {
	return DateRange{From: core.NewDate(year, 1, 1), To: core.NewDate(year, 12, 31)}
}

// intersect narrows a to the overlap with b. An empty overlap yields a range
// whose From is after its To, which matches nothing.
func intersect(a, b DateRange) DateRange {
	out := b
	if !a.From.IsZero() && a.From.After(b.From.Time) {
		out.From = a.From
	}
	if !a.To.IsZero() && a.To.Before(b.To.Time) {
		out.To = a.To
	}
	return out
}
