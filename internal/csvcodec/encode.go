// Package csvcodec reads and writes the hand-editable CSV exchange format
// for transactions.
//
// Columns, in order: date, type, company, counterparty, category, official
// amount, unofficial amount, description. References travel by name.
package csvcodec

import (
	"encoding/csv"
	"fmt"
	"io"

	"contas/internal/core"
)

// Header is the first row written by Encode.
var Header = []string{
	"data",
	"tipo",
	"empresa",
	"contraparte",
	"categoria",
	"valor_oficial",
	"valor_nao_oficial",
	"descricao",
}

const (
	colDate = iota
	colType
	colCompany
	colCounterparty
	colCategory
	colOfficial
	colUnofficial
	colDescription
	columnCount
)

const bom = "\ufeff"

type EncodeOptions struct {
	// BOM prefixes the output with a UTF-8 byte order mark so spreadsheet
	// applications detect the encoding.
	BOM bool
	// OmitHeader skips the header row.
	OmitHeader bool
}

// EncodeRow renders one transaction as CSV fields.
func EncodeRow(t core.Transaction, dir *Directory) []string {
	row := make([]string, columnCount)
	row[colDate] = t.OccurredOn.String()
	row[colType] = t.Kind.Label()
	row[colCompany] = dir.Name(core.EntityCompany, t.CompanyID)
	row[colCounterparty] = dir.Name(core.EntityCounterparty, t.CounterpartyID)
	row[colCategory] = dir.Name(core.EntityCategory, t.CategoryID)
	row[colOfficial] = t.Amount.Official.StringFixed(2)
	row[colUnofficial] = t.Amount.Unofficial.StringFixed(2)
	row[colDescription] = t.Description
	return row
}

// Encode writes records in the given order.
func Encode(w io.Writer, records []core.Transaction, dir *Directory, opts EncodeOptions) error {
	if opts.BOM {
		if _, err := io.WriteString(w, bom); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	if !opts.OmitHeader {
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, t := range records {
		if err := cw.Write(EncodeRow(t, dir)); err != nil {
			return fmt.Errorf("write record %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Template is a header plus one example row, offered to users as a
// starting point for imports.
func Template(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		Header,
		{"2024-03-01", "receita", "Empresa Exemplo", "Cliente Exemplo", "Vendas", "100.00", "50.00", "Fatura 123"},
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
