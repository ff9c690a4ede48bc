package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"contas/internal/report"
	"contas/internal/services"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := report.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// an explicit window without a period means a custom one
	if strings.TrimSpace(q.Get("period")) == "" && (q.Get("from") != "" || q.Get("to") != "") {
		period = report.PeriodCustom
	}
	rep, err := s.deps.Reports.Summary(r.Context(), ownerID(r), services.SummaryParams{
		Period:    period,
		From:      q.Get("from"),
		To:        q.Get("to"),
		CompanyID: optionalRef(q, "company_id"),
		Formatted: parseBool(q, "format"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleByCompany(w http.ResponseWriter, r *http.Request) {
	s.grouped(w, r, s.deps.Reports.ByCompany)
}

func (s *Server) handleByCounterparty(w http.ResponseWriter, r *http.Request) {
	s.grouped(w, r, s.deps.Reports.ByCounterparty)
}

type groupFunc func(ctx context.Context, ownerID string, window report.DateRange, formatted bool) ([]services.GroupRow, error)

func (s *Server) grouped(w http.ResponseWriter, r *http.Request, fn groupFunc) {
	q := r.URL.Query()
	window, err := parseWindow(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := fn(r.Context(), ownerID(r), window, parseBool(q, "format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := parsePositive(q, "year", time.Now().Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	months, err := s.deps.Reports.Monthly(r.Context(), ownerID(r), year, optionalRef(q, "company_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, months)
}
