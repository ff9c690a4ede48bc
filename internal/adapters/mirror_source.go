// Package adapters connects the store to the spreadsheet mirror.
package adapters

import (
	"context"

	"golang.org/x/sync/errgroup"

	"contas/internal/core"
	"contas/internal/csvcodec"
	"contas/internal/sheets"
	"contas/internal/storage"
)

// Ledger is the read side of the store the mirror needs.
type Ledger interface {
	storage.TransactionStore
	storage.EntityStore
}

// StoreRowSource renders stored transactions as mirror rows, resolving
// references to names the same way the CSV export does.
type StoreRowSource struct {
	store Ledger
}

func NewStoreRowSource(store Ledger) *StoreRowSource {
	return &StoreRowSource{store: store}
}

// Row loads one transaction. A deleted transaction yields core.NotFound.
func (s *StoreRowSource) Row(ctx context.Context, ownerID, id string) (sheets.Row, error) {
	var (
		t   core.Transaction
		dir *csvcodec.Directory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.store.GetTransaction(gctx, ownerID, id)
		return err
	})
	g.Go(func() error {
		var err error
		dir, err = s.directory(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return sheets.Row{}, err
	}
	return sheets.NewRow(t, dir), nil
}

// Rows renders every transaction of an owner, newest first.
func (s *StoreRowSource) Rows(ctx context.Context, ownerID string) ([]sheets.Row, error) {
	dir, err := s.directory(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	page, err := s.store.ListTransactions(ctx, ownerID, storage.TransactionQuery{})
	if err != nil {
		return nil, err
	}
	rows := make([]sheets.Row, len(page.Items))
	for i, t := range page.Items {
		rows[i] = sheets.NewRow(t, dir)
	}
	return rows, nil
}

func (s *StoreRowSource) directory(ctx context.Context, ownerID string) (*csvcodec.Directory, error) {
	types := []core.EntityType{core.EntityCompany, core.EntityCounterparty, core.EntityCategory}
	lists := make([][]core.Entity, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, typ := range types {
		g.Go(func() error {
			list, err := s.store.ListEntities(gctx, ownerID, typ)
			lists[i] = list
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return csvcodec.NewDirectory(lists...), nil
}
