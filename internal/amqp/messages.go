package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent announces a change to one transaction. It carries only
// identifiers; consumers fetch the current row from the store.
type TransactionEvent struct {
	Type          EventType `json:"type"`
	OwnerID       string    `json:"owner_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionEvent stamps an event with the current time.
func NewTransactionEvent(typ EventType, ownerID, transactionID string) *TransactionEvent {
	return &TransactionEvent{
		Type:          typ,
		OwnerID:       ownerID,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
	default:
		return nil, errors.New("unknown event type " + string(msg.Type))
	}
	if msg.OwnerID == "" || msg.TransactionID == "" {
		return nil, errors.New("event without owner or transaction id")
	}
	return &msg, nil
}
