package services

import (
	"context"
	"log/slog"

	"contas/internal/amqp"
	"contas/internal/metrics"
)

// EventPublisher announces transaction changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// publish never fails the caller: the change is already committed.
func publish(ctx context.Context, p EventPublisher, typ amqp.EventType, ownerID, transactionID string) {
	if p == nil {
		return
	}
	if err := p.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(typ, ownerID, transactionID)); err != nil {
		metrics.EventPublishFailed()
		slog.WarnContext(ctx, "Failed to publish transaction event",
			"component", "ledger",
			"type", typ,
			"transaction_id", transactionID,
			"error", err)
	}
}
