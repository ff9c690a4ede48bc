package report

import (
	"strings"
	"time"

	"contas/internal/core"
)

type Period string

const (
	PeriodDay    Period = "day"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
	PeriodCustom Period = "custom"
)

// ParsePeriod accepts the English names and the Portuguese ones
// (dia, mes, ano, personalizado). Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "month", "mes", "mês":
		return PeriodMonth, nil
	case "day", "dia":
		return PeriodDay, nil
	case "year", "ano":
		return PeriodYear, nil
	case "custom", "personalizado":
		return PeriodCustom, nil
	}
	return "", core.Validation("period", "period must be day, month, year or custom")
}

// PeriodWindow resolves a period relative to now. For PeriodCustom the
// from/to strings are parsed as ISO dates; either may be empty.
func PeriodWindow(p Period, now time.Time, from, to string) (DateRange, error) {
	today := core.DateOf(now)
	switch p {
	case PeriodDay:
		return DateRange{From: today, To: today}, nil
	case PeriodMonth:
		first := core.NewDate(today.Year(), int(today.Month()), 1)
		return DateRange{From: first, To: core.Date{Time: first.AddDate(0, 1, -1)}}, nil
	case PeriodYear:
		return yearRange(today.Year()), nil
	case PeriodCustom:
		var r DateRange
		var err error
		if strings.TrimSpace(from) != "" {
			if r.From, err = core.ParseDate(from); err != nil {
				return DateRange{}, core.Validation("from", err.Error())
			}
		}
		if strings.TrimSpace(to) != "" {
			if r.To, err = core.ParseDate(to); err != nil {
				return DateRange{}, core.Validation("to", err.Error())
			}
		}
		return r, r.Validate()
	}
	return DateRange{}, core.Validation("period", "unknown period "+string(p))
}
