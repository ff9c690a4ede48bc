package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"contas/internal/core"
	"contas/internal/report"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"memory": NewMemoryStore()}

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "contas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	out["sqlite"] = repo

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		pg, err := NewPostgresRepository(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) { fn(t, s) })
	}
}

// Each run uses a fresh owner so shared Postgres databases stay isolated.
func newOwner(t *testing.T) string {
	return strings.ReplaceAll(t.Name(), "/", "-") + "-" + uuid.NewString()[:8]
}

func TestStore_EntityCRUD(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := newOwner(t)

		acme := core.Entity{OwnerID: owner, Type: core.EntityCompany, Name: "Acme", TaxID: "PT500000000"}
		require.NoError(t, s.InsertEntity(ctx, &acme))
		require.NotEmpty(t, acme.ID)

		beta := core.Entity{OwnerID: owner, Type: core.EntityCompany, Name: "Beta"}
		require.NoError(t, s.InsertEntity(ctx, &beta))

		dup := core.Entity{OwnerID: owner, Type: core.EntityCompany, Name: "Acme"}
		err := s.InsertEntity(ctx, &dup)
		assert.True(t, core.IsKind(err, core.KindValidation), "duplicate name: %v", err)

		other := core.Entity{OwnerID: owner + "-other", Type: core.EntityCompany, Name: "Acme"}
		require.NoError(t, s.InsertEntity(ctx, &other), "names are unique per owner only")

		list, err := s.ListEntities(ctx, owner, core.EntityCompany)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Acme", list[0].Name)
		assert.Equal(t, "PT500000000", list[0].TaxID)

		got, err := s.GetEntity(ctx, owner, core.EntityCompany, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, acme.Name, got.Name)

		_, err = s.GetEntity(ctx, owner+"-other", core.EntityCompany, acme.ID)
		assert.True(t, core.IsKind(err, core.KindNotFound))

		acme.Name = "Acme SA"
		require.NoError(t, s.UpdateEntity(ctx, &acme))
		got, err = s.GetEntity(ctx, owner, core.EntityCompany, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme SA", got.Name)

		ghost := core.Entity{ID: "missing", OwnerID: owner, Type: core.EntityCompany, Name: "x"}
		assert.True(t, core.IsKind(s.UpdateEntity(ctx, &ghost), core.KindNotFound))

		cat := core.Entity{OwnerID: owner, Type: core.EntityCategory, Name: "Renda", Kind: core.Expense}
		require.NoError(t, s.InsertEntity(ctx, &cat))
		cats, err := s.ListEntities(ctx, owner, core.EntityCategory)
		require.NoError(t, err)
		require.Len(t, cats, 1)
		assert.Equal(t, core.Expense, cats[0].Kind)

		require.NoError(t, s.DeleteEntity(ctx, owner, core.EntityCompany, beta.ID))
		assert.True(t, core.IsKind(s.DeleteEntity(ctx, owner, core.EntityCompany, beta.ID), core.KindNotFound))

		_, err = s.ListEntities(ctx, owner, "vendor")
		assert.True(t, core.IsKind(err, core.KindValidation))
	})
}

func TestStore_TransactionCRUD(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := newOwner(t)

		acme := core.Entity{OwnerID: owner, Type: core.EntityCompany, Name: "Acme"}
		require.NoError(t, s.InsertEntity(ctx, &acme))

		tx := core.Transaction{
			OwnerID:     owner,
			Kind:        core.Income,
			Amount:      core.NewPair("100.00", "50.50"),
			OccurredOn:  core.NewDate(2024, 3, 1),
			Description: "Fatura 1",
			CompanyID:   acme.ID,
			ReceiptRef:  owner + "/r.png",
		}
		require.NoError(t, s.InsertTransaction(ctx, &tx))
		require.NotEmpty(t, tx.ID)
		assert.False(t, tx.CreatedAt.IsZero())

		got, err := s.GetTransaction(ctx, owner, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, core.Income, got.Kind)
		assert.True(t, got.Amount.Equal(tx.Amount))
		assert.Equal(t, "2024-03-01", got.OccurredOn.String())
		assert.Equal(t, "Fatura 1", got.Description)
		assert.Equal(t, acme.ID, got.CompanyID)
		assert.Empty(t, got.CounterpartyID)
		assert.Equal(t, tx.ReceiptRef, got.ReceiptRef)
		assert.WithinDuration(t, tx.CreatedAt, got.CreatedAt, time.Millisecond)

		_, err = s.GetTransaction(ctx, "intruder", tx.ID)
		assert.True(t, core.IsKind(err, core.KindNotFound))

		got.Kind = core.Expense
		got.Amount = core.NewPair("1", "2")
		got.Description = ""
		got.ReceiptRef = ""
		require.NoError(t, s.UpdateTransaction(ctx, &got))
		again, err := s.GetTransaction(ctx, owner, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, core.Expense, again.Kind)
		assert.Equal(t, "3.00", again.Amount.Total().StringFixed(2))
		assert.Empty(t, again.Description)
		assert.Empty(t, again.ReceiptRef)

		intruder := again
		intruder.OwnerID = "intruder"
		assert.True(t, core.IsKind(s.UpdateTransaction(ctx, &intruder), core.KindNotFound))
		assert.True(t, core.IsKind(s.DeleteTransaction(ctx, "intruder", tx.ID), core.KindNotFound))

		require.NoError(t, s.DeleteEntity(ctx, owner, core.EntityCompany, acme.ID))
		orphan, err := s.GetTransaction(ctx, owner, tx.ID)
		require.NoError(t, err)
		assert.Empty(t, orphan.CompanyID, "deleting a company clears the reference")

		require.NoError(t, s.DeleteTransaction(ctx, owner, tx.ID))
		_, err = s.GetTransaction(ctx, owner, tx.ID)
		assert.True(t, core.IsKind(err, core.KindNotFound))
	})
}

func TestStore_ListTransactionsFiltersAndPages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		owner := newOwner(t)

		acme := core.Entity{OwnerID: owner, Type: core.EntityCompany, Name: "Acme"}
		require.NoError(t, s.InsertEntity(ctx, &acme))

		days := []int{5, 1, 20, 15, 10}
		for i, d := range days {
			tx := core.Transaction{
				OwnerID:    owner,
				Kind:       core.Expense,
				Amount:     core.NewPair("1", "0"),
				OccurredOn: core.NewDate(2024, 3, d),
			}
			if i%2 == 0 {
				tx.CompanyID = acme.ID
				tx.Kind = core.Income
			}
			require.NoError(t, s.InsertTransaction(ctx, &tx))
		}
		noise := core.Transaction{OwnerID: owner + "-other", Kind: core.Income, Amount: core.NewPair("9", "9"), OccurredOn: core.NewDate(2024, 3, 2)}
		require.NoError(t, s.InsertTransaction(ctx, &noise))

		all, err := s.ListTransactions(ctx, owner, TransactionQuery{})
		require.NoError(t, err)
		require.Equal(t, 5, all.Total)
		var order []string
		for _, tx := range all.Items {
			order = append(order, tx.OccurredOn.String())
		}
		assert.Equal(t, []string{"2024-03-20", "2024-03-15", "2024-03-10", "2024-03-05", "2024-03-01"}, order)

		page, err := s.ListTransactions(ctx, owner, TransactionQuery{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "2024-03-10", page.Items[0].OccurredOn.String())

		window := report.Filter{Window: report.DateRange{From: core.NewDate(2024, 3, 5), To: core.NewDate(2024, 3, 15)}}
		res, err := s.ListTransactions(ctx, owner, TransactionQuery{Filter: window})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)

		res, err = s.ListTransactions(ctx, owner, TransactionQuery{Filter: report.Filter{CompanyID: report.Ref(acme.ID)}})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)

		res, err = s.ListTransactions(ctx, owner, TransactionQuery{Filter: report.Filter{CompanyID: report.Ref("")}})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)

		expense := core.Expense
		res, err = s.ListTransactions(ctx, owner, TransactionQuery{Filter: report.Filter{Kind: &expense}})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)

		empty, err := s.ListTransactions(ctx, "nobody", TransactionQuery{})
		require.NoError(t, err)
		assert.Equal(t, 0, empty.Total)
		assert.NotNil(t, empty.Items)
	})
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT a FROM t WHERE a = ? AND b = ? LIMIT ?"
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE a = $1 AND b = $2 LIMIT $3", DialectPostgres.rebind(q))
}

func TestTimeValue_Scan(t *testing.T) {
	var v timeValue
	require.NoError(t, v.Scan("2024-03-01T10:00:00.000000000Z"))
	assert.Equal(t, 10, v.Hour())
	require.NoError(t, v.Scan([]byte("2024-03-01 10:00:00")))
	assert.Error(t, v.Scan("yesterday"))
	assert.Error(t, v.Scan(3.5))
}
