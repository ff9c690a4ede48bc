package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"contas/internal/core"
)

// Reason is the machine-readable cause of a rejected row.
type Reason string

const (
	ReasonMalformedRow         Reason = "malformed_row"
	ReasonInvalidType          Reason = "invalid_type"
	ReasonInvalidDate          Reason = "invalid_date"
	ReasonInvalidAmount        Reason = "invalid_amount"
	ReasonNegativeAmount       Reason = "negative_amount"
	ReasonUnknownCompany       Reason = "unknown_company"
	ReasonUnknownCounterparty  Reason = "unknown_counterparty"
	ReasonUnknownCategory      Reason = "unknown_category"
	ReasonCategoryKindMismatch Reason = "category_kind_mismatch"
	ReasonInvalidDescription   Reason = "invalid_description"
)

// RowError describes one rejected row. Row is 1-based over data rows; the
// header, when present, is not counted.
type RowError struct {
	Row     int    `json:"row"`
	Reason  Reason `json:"reason"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// AsError converts the row error into the shared validation error shape.
func (e RowError) AsError() *core.Error {
	return &core.Error{Kind: core.KindValidation, Message: e.Message, Field: e.Field, Row: e.Row}
}

type DecodeOptions struct {
	// DefaultCompanyID, when set, replaces the company column of every row.
	// The column is not resolved at all in that case.
	DefaultCompanyID string
}

// Result holds the accepted transactions (not yet persisted, without ids or
// owner) and the rejected rows. CreatedRows[i] is the row number of
// Created[i].
type Result struct {
	Created     []core.Transaction
	CreatedRows []int
	Rejected    []RowError
}

// Decode parses every row independently. A row-level problem never aborts
// the batch; the returned error is reserved for an unreadable stream.
func Decode(r io.Reader, dir *Directory, opts DecodeOptions) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var res Result
	row := 0
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return Result{}, fmt.Errorf("read csv: %w", err)
			}
			first = false
			row++
			res.Rejected = append(res.Rejected, RowError{
				Row:     row,
				Reason:  ReasonMalformedRow,
				Message: pe.Err.Error(),
			})
			continue
		}

		if first {
			first = false
			rec[0] = strings.TrimPrefix(rec[0], bom)
			if isHeader(rec) {
				continue
			}
		}
		row++

		if blank(rec) {
			continue
		}
		t, rowErr := decodeRow(rec, dir, opts)
		if rowErr != nil {
			rowErr.Row = row
			res.Rejected = append(res.Rejected, *rowErr)
			continue
		}
		res.Created = append(res.Created, t)
		res.CreatedRows = append(res.CreatedRows, row)
	}
	return res, nil
}

func decodeRow(rec []string, dir *Directory, opts DecodeOptions) (core.Transaction, *RowError) {
	if len(rec) < columnCount-1 || len(rec) > columnCount {
		return core.Transaction{}, &RowError{
			Reason:  ReasonMalformedRow,
			Message: fmt.Sprintf("expected %d columns, got %d", columnCount, len(rec)),
		}
	}
	cell := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var t core.Transaction
	kind, err := core.ParseKind(cell(colType))
	if err != nil {
		return t, &RowError{Reason: ReasonInvalidType, Field: Header[colType],
			Message: fmt.Sprintf("type %q is neither receita nor despesa", cell(colType))}
	}
	t.Kind = kind

	date, err := core.ParseDate(cell(colDate))
	if err != nil {
		return t, &RowError{Reason: ReasonInvalidDate, Field: Header[colDate],
			Message: fmt.Sprintf("date %q is not a valid YYYY-MM-DD date", cell(colDate))}
	}
	t.OccurredOn = date

	for _, c := range []int{colOfficial, colUnofficial} {
		v, err := core.ParseAmount(cell(c))
		if err != nil {
			return t, &RowError{Reason: ReasonInvalidAmount, Field: Header[c],
				Message: fmt.Sprintf("amount %q is not a plain decimal", cell(c))}
		}
		if v.IsNegative() {
			return t, &RowError{Reason: ReasonNegativeAmount, Field: Header[c],
				Message: fmt.Sprintf("amount %s is negative", cell(c))}
		}
		if c == colOfficial {
			t.Amount.Official = v
		} else {
			t.Amount.Unofficial = v
		}
	}

	if opts.DefaultCompanyID != "" {
		t.CompanyID = opts.DefaultCompanyID
	} else if name := cell(colCompany); name != "" {
		e, ok := dir.Lookup(core.EntityCompany, name)
		if !ok {
			return t, &RowError{Reason: ReasonUnknownCompany, Field: Header[colCompany],
				Message: fmt.Sprintf("company %q does not exist", name)}
		}
		t.CompanyID = e.ID
	}

	if name := cell(colCounterparty); name != "" {
		e, ok := dir.Lookup(core.EntityCounterparty, name)
		if !ok {
			return t, &RowError{Reason: ReasonUnknownCounterparty, Field: Header[colCounterparty],
				Message: fmt.Sprintf("counterparty %q does not exist", name)}
		}
		t.CounterpartyID = e.ID
	}

	if name := cell(colCategory); name != "" {
		e, ok := dir.Lookup(core.EntityCategory, name)
		if !ok {
			return t, &RowError{Reason: ReasonUnknownCategory, Field: Header[colCategory],
				Message: fmt.Sprintf("category %q does not exist", name)}
		}
		if e.Kind != t.Kind {
			return t, &RowError{Reason: ReasonCategoryKindMismatch, Field: Header[colCategory],
				Message: fmt.Sprintf("category %q is for %s, row is %s", name, e.Kind.Label(), t.Kind.Label())}
		}
		t.CategoryID = e.ID
	}

	// the description is kept verbatim so it survives a round trip
	if colDescription < len(rec) {
		t.Description = rec[colDescription]
	}
	if err := t.Validate(); err != nil {
		return t, validationRowError(err)
	}
	return t, nil
}

// validationRowError maps a failed Transaction.Validate to a rejection.
func validationRowError(err error) *RowError {
	re := &RowError{Reason: ReasonMalformedRow, Message: err.Error()}
	var ce *core.Error
	if !errors.As(err, &ce) {
		return re
	}
	re.Message = ce.Message
	switch ce.Field {
	case "description":
		re.Reason, re.Field = ReasonInvalidDescription, Header[colDescription]
	case "amount":
		re.Reason, re.Field = ReasonInvalidAmount, Header[colOfficial]
	}
	return re
}

func isHeader(rec []string) bool {
	switch strings.ToLower(strings.TrimSpace(rec[0])) {
	case "data", "date":
		return true
	}
	return false
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
