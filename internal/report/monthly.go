package report

import (
	"time"

	"contas/internal/core"
)

// MonthSummary is one point of a yearly series.
type MonthSummary struct {
	Year    int          `json:"year"`
	Month   int          `json:"month"`
	Summary core.Summary `json:"summary"`
}

// Monthly returns exactly twelve entries for year, January first, with
// zero Summaries for months without records.
func Monthly(records []core.Transaction, year int, f Filter) ([]MonthSummary, error) {
	res, err := Aggregate(records, Query{Filter: f, GroupBy: GroupMonth, Year: year})
	if err != nil {
		return nil, err
	}
	out := make([]MonthSummary, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, MonthSummary{Year: year, Month: int(m), Summary: res.Groups[MonthKey(m)]})
	}
	return out, nil
}
