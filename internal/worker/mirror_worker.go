// Package worker keeps the spreadsheet mirror in step with the store by
// consuming transaction events.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/metrics"
	"contas/internal/sheets"
)

// RowSource renders stored transactions as mirror rows.
type RowSource interface {
	Row(ctx context.Context, ownerID, id string) (sheets.Row, error)
	Rows(ctx context.Context, ownerID string) ([]sheets.Row, error)
}

// MirrorWorker applies transaction events to a RowWriter. Events carry
// only ids, so every write reflects the store at the time it is handled,
// which makes redelivered or reordered events harmless.
type MirrorWorker struct {
	source RowSource
	sheet  sheets.RowWriter
	logger *slog.Logger
}

func NewMirrorWorker(source RowSource, sheet sheets.RowWriter, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{source: source, sheet: sheet, logger: logger.With("component", "mirror")}
}

// HandleEvent is the AMQP consumer callback. A returned error requeues the
// event.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		"type", ev.Type,
		"transaction_id", ev.TransactionID)

	if ev.Type == amqp.TransactionDeleted {
		return w.remove(ctx, ev.TransactionID)
	}

	row, err := w.source.Row(ctx, ev.OwnerID, ev.TransactionID)
	switch {
	case core.IsKind(err, core.KindNotFound):
		// Deleted after the event was published.
		return w.remove(ctx, ev.TransactionID)
	case err != nil:
		return fmt.Errorf("load transaction %s: %w", ev.TransactionID, err)
	}

	err = w.sheet.Upsert(ctx, row)
	metrics.MirrorWrite("upsert", err)
	if err != nil {
		return fmt.Errorf("upsert row %s: %w", ev.TransactionID, err)
	}
	return nil
}

func (w *MirrorWorker) remove(ctx context.Context, id string) error {
	err := w.sheet.Remove(ctx, id)
	metrics.MirrorWrite("remove", err)
	if err != nil {
		return fmt.Errorf("remove row %s: %w", id, err)
	}
	return nil
}

// Resync writes every transaction of an owner, recovering from events lost
// while the worker was down. Rows of transactions deleted in the meantime
// are left for their delete events.
func (w *MirrorWorker) Resync(ctx context.Context, ownerID string) (int, error) {
	rows, err := w.source.Rows(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	synced, failed := 0, 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		err := w.sheet.Upsert(ctx, row)
		metrics.MirrorWrite("upsert", err)
		if err != nil {
			failed++
			w.logger.ErrorContext(ctx, "Failed to mirror transaction", "transaction_id", row.ID, "error", err)
			continue
		}
		synced++
	}
	w.logger.InfoContext(ctx, "Resync completed",
		"owner_id", ownerID,
		"total", len(rows),
		"synced", synced,
		"errors", failed)
	return synced, nil
}
