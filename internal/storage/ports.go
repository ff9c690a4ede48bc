// Package storage persists transactions and reference entities. Every
// operation is scoped by owner id: a row owned by someone else behaves
// exactly like a missing row.
package storage

import (
	"context"

	"contas/internal/core"
	"contas/internal/report"
)

// TransactionQuery selects a page of transactions. Limit 0 means no limit.
type TransactionQuery struct {
	Filter report.Filter
	Limit  int
	Offset int
}

// TransactionPage is one page of results plus the number of rows matching
// the filter across all pages.
type TransactionPage struct {
	Items []core.Transaction
	Total int
}

// TransactionStore lists transactions ordered by date, newest first.
type TransactionStore interface {
	ListTransactions(ctx context.Context, ownerID string, q TransactionQuery) (TransactionPage, error)
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
	InsertTransaction(ctx context.Context, t *core.Transaction) error
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, ownerID, id string) error
}

// EntityStore lists entities ordered by name.
type EntityStore interface {
	ListEntities(ctx context.Context, ownerID string, typ core.EntityType) ([]core.Entity, error)
	GetEntity(ctx context.Context, ownerID string, typ core.EntityType, id string) (core.Entity, error)
	InsertEntity(ctx context.Context, e *core.Entity) error
	UpdateEntity(ctx context.Context, e *core.Entity) error
	DeleteEntity(ctx context.Context, ownerID string, typ core.EntityType, id string) error
}

// Store is what the backends provide.
type Store interface {
	TransactionStore
	EntityStore
	Ping(ctx context.Context) error
	Close() error
}
