package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contas/internal/core"
	"contas/internal/storage"
)

func TestStoreRowSource(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	company := core.Entity{OwnerID: "u1", Type: core.EntityCompany, Name: "Acme"}
	require.NoError(t, store.InsertEntity(ctx, &company))
	category := core.Entity{OwnerID: "u1", Type: core.EntityCategory, Name: "Vendas", Kind: core.Income}
	require.NoError(t, store.InsertEntity(ctx, &category))

	tx := core.Transaction{
		OwnerID:     "u1",
		Kind:        core.Income,
		Amount:      core.NewPair("100.00", "50.00"),
		OccurredOn:  core.NewDate(2024, 3, 1),
		Description: "Fatura 1",
		CompanyID:   company.ID,
		CategoryID:  category.ID,
	}
	require.NoError(t, store.InsertTransaction(ctx, &tx))

	src := NewStoreRowSource(store)

	row, err := src.Row(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		tx.ID, "u1", "2024-03-01", "receita", "Acme", "", "Vendas", "100.00", "50.00", "Fatura 1", "150.00",
	}, row.Values())

	_, err = src.Row(ctx, "someone-else", tx.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))

	rows, err := src.Rows(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tx.ID, rows[0].ID)
}
