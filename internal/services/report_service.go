package services

import (
	"context"
	"sort"
	"time"

	"contas/internal/core"
	"contas/internal/report"
	"contas/internal/storage"
)

// SummaryParams selects the window of a summary: a named period relative
// to now, or PeriodCustom with From/To.
type SummaryParams struct {
	Period    report.Period
	From, To  string
	CompanyID *string
	Formatted bool
}

type SummaryReport struct {
	Period    report.Period          `json:"period"`
	From      core.Date              `json:"from"`
	To        core.Date              `json:"to"`
	Summary   core.Summary           `json:"summary"`
	Formatted *core.FormattedSummary `json:"formatted,omitempty"`
}

// GroupRow is one line of a by-company or by-counterparty breakdown.
// Ungrouped is set on the line collecting records without a reference.
type GroupRow struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Ungrouped bool                   `json:"ungrouped,omitempty"`
	Summary   core.Summary           `json:"summary"`
	Formatted *core.FormattedSummary `json:"formatted,omitempty"`
}

type ReportService struct {
	store  Ledger
	format *core.Formatter
	now    func() time.Time
}

// NewReportService builds the service. format may be nil, in which case
// formatted output is never produced.
func NewReportService(store Ledger, format *core.Formatter) *ReportService {
	return &ReportService{store: store, format: format, now: time.Now}
}

func (s *ReportService) Summary(ctx context.Context, ownerID string, p SummaryParams) (SummaryReport, error) {
	window, err := report.PeriodWindow(p.Period, s.now(), p.From, p.To)
	if err != nil {
		return SummaryReport{}, err
	}
	f := report.Filter{Window: window, CompanyID: p.CompanyID}
	records, err := s.records(ctx, ownerID, f)
	if err != nil {
		return SummaryReport{}, err
	}
	out := SummaryReport{
		Period:  p.Period,
		From:    window.From,
		To:      window.To,
		Summary: report.Summarize(records, f),
	}
	if p.Formatted && s.format != nil {
		fs := s.format.Summary(out.Summary)
		out.Formatted = &fs
	}
	return out, nil
}

func (s *ReportService) ByCompany(ctx context.Context, ownerID string, window report.DateRange, formatted bool) ([]GroupRow, error) {
	return s.grouped(ctx, ownerID, window, report.GroupCompany, core.EntityCompany, formatted)
}

func (s *ReportService) ByCounterparty(ctx context.Context, ownerID string, window report.DateRange, formatted bool) ([]GroupRow, error) {
	return s.grouped(ctx, ownerID, window, report.GroupCounterparty, core.EntityCounterparty, formatted)
}

// Monthly returns twelve points for year, optionally for one company.
func (s *ReportService) Monthly(ctx context.Context, ownerID string, year int, companyID *string) ([]report.MonthSummary, error) {
	if year < 1 || year > 9999 {
		return nil, core.Validation("year", "year must be between 1 and 9999")
	}
	f := report.Filter{
		Window:    report.DateRange{From: core.NewDate(year, 1, 1), To: core.NewDate(year, 12, 31)},
		CompanyID: companyID,
	}
	records, err := s.records(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return report.Monthly(records, year, report.Filter{CompanyID: companyID})
}

func (s *ReportService) grouped(ctx context.Context, ownerID string, window report.DateRange, by report.GroupBy, typ core.EntityType, formatted bool) ([]GroupRow, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	f := report.Filter{Window: window}
	records, err := s.records(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	res, err := report.Aggregate(records, report.Query{Filter: f, GroupBy: by})
	if err != nil {
		return nil, err
	}
	entities, err := s.store.ListEntities(ctx, ownerID, typ)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(entities))
	for _, e := range entities {
		names[e.ID] = e.Name
	}

	rows := make([]GroupRow, 0, len(res.Groups))
	var ungrouped *GroupRow
	for key, sum := range res.Groups {
		row := GroupRow{ID: key, Name: names[key], Summary: sum}
		if key == report.Ungrouped {
			row = GroupRow{Ungrouped: true, Summary: sum}
		}
		if formatted && s.format != nil {
			fs := s.format.Summary(sum)
			row.Formatted = &fs
		}
		if row.Ungrouped {
			ungrouped = &row
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID < rows[j].ID
	})
	if ungrouped != nil {
		rows = append(rows, *ungrouped)
	}
	return rows, nil
}

// records loads every transaction in the filter's window; the remaining
// criteria are applied by the aggregator.
func (s *ReportService) records(ctx context.Context, ownerID string, f report.Filter) ([]core.Transaction, error) {
	page, err := s.store.ListTransactions(ctx, ownerID, storage.TransactionQuery{Filter: f})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
