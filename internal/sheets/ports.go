// Package sheets mirrors transactions into a spreadsheet, one row per
// transaction, for owners who keep reviewing their books there.
package sheets

import (
	"context"

	"contas/internal/core"
	"contas/internal/csvcodec"
)

// Header is the first row of the mirror sheet: identity columns, the CSV
// exchange columns and the derived total.
var Header = append(append([]string{"id", "owner"}, csvcodec.Header...), "total")

// Row is one mirrored transaction.
type Row struct {
	ID      string
	OwnerID string
	// Cells are the CSV exchange columns, references already resolved to
	// names.
	Cells []string
	Total string
}

// NewRow renders t using the names in dir.
func NewRow(t core.Transaction, dir *csvcodec.Directory) Row {
	return Row{
		ID:      t.ID,
		OwnerID: t.OwnerID,
		Cells:   csvcodec.EncodeRow(t, dir),
		Total:   t.Amount.Total().StringFixed(2),
	}
}

// Values returns the row in Header order.
func (r Row) Values() []string {
	out := make([]string, 0, len(Header))
	out = append(out, r.ID, r.OwnerID)
	out = append(out, r.Cells...)
	return append(out, r.Total)
}

// Ports for outbound adapters.
type (
	// RowWriter keeps one row per transaction id.
	RowWriter interface {
		// Upsert overwrites the row with the same id or appends a new one.
		Upsert(ctx context.Context, row Row) error
		// Remove clears the row with the id. A missing row is not an error.
		Remove(ctx context.Context, id string) error
	}
)
