package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contas/internal/core"
	"contas/internal/csvcodec"
	"contas/internal/sheets"
)

func TestStoreUpsertAndRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.Error(t, s.Upsert(ctx, sheets.Row{}))

	require.NoError(t, s.Upsert(ctx, sheets.Row{ID: "b", Total: "1.00"}))
	require.NoError(t, s.Upsert(ctx, sheets.Row{ID: "a", Total: "2.00"}))
	require.NoError(t, s.Upsert(ctx, sheets.Row{ID: "b", Total: "3.00"}))

	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].ID)
	assert.Equal(t, "3.00", rows[0].Total)

	require.NoError(t, s.Remove(ctx, "b"))
	require.NoError(t, s.Remove(ctx, "missing"))
	assert.Equal(t, []string{"a"}, s.IDs())
}

func TestNewRowValues(t *testing.T) {
	acme := core.Entity{ID: "c1", Type: core.EntityCompany, Name: "Acme"}
	tx := core.Transaction{
		ID:         "tx-1",
		OwnerID:    "u1",
		Kind:       core.Income,
		Amount:     core.NewPair("100", "50.5"),
		OccurredOn: core.NewDate(2024, 3, 1),
		CompanyID:  "c1",
	}
	row := sheets.NewRow(tx, csvcodec.NewDirectory([]core.Entity{acme}))

	assert.Equal(t, []string{
		"tx-1", "u1", "2024-03-01", "receita", "Acme", "", "", "100.00", "50.50", "", "150.50",
	}, row.Values())
	assert.Len(t, row.Values(), len(sheets.Header))
}
