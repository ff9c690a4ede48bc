package services

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"contas/internal/amqp"
	"contas/internal/blob"
	"contas/internal/core"
	"contas/internal/report"
	"contas/internal/storage"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Ledger is the part of the store the services need.
type Ledger interface {
	storage.TransactionStore
	storage.EntityStore
}

// TransactionInput is the editable part of a transaction. Update replaces
// every field; omitted references are cleared.
type TransactionInput struct {
	Kind           core.Kind      `json:"kind"`
	Amount         core.MoneyPair `json:"amount"`
	OccurredOn     core.Date      `json:"occurred_on"`
	Description    string         `json:"description"`
	CompanyID      string         `json:"company_id"`
	CounterpartyID string         `json:"counterparty_id"`
	CategoryID     string         `json:"category_id"`
}

// TransactionView is a transaction as returned to clients.
type TransactionView struct {
	core.Transaction
	ReceiptURL string `json:"receipt_url,omitempty"`
}

type ListParams struct {
	Filter  report.Filter
	Page    int
	PerPage int
}

type ListResult struct {
	Items   []core.Transaction `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
}

type TransactionOptions struct {
	ReceiptTTL     time.Duration
	MaxUploadBytes int64
}

// TransactionService owns the transaction lifecycle, including receipts and
// change events.
type TransactionService struct {
	store  Ledger
	blobs  blob.Store
	events EventPublisher
	opts   TransactionOptions
}

// NewTransactionService wires the service. events may be nil.
func NewTransactionService(store Ledger, blobs blob.Store, events EventPublisher, opts TransactionOptions) *TransactionService {
	if opts.ReceiptTTL <= 0 {
		opts.ReceiptTTL = 60 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &TransactionService{store: store, blobs: blobs, events: events, opts: opts}
}

func (s *TransactionService) List(ctx context.Context, ownerID string, p ListParams) (ListResult, error) {
	if err := p.Filter.Window.Validate(); err != nil {
		return ListResult{}, err
	}
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage <= 0:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}

	page, err := s.store.ListTransactions(ctx, ownerID, storage.TransactionQuery{
		Filter: p.Filter,
		Limit:  p.PerPage,
		Offset: (p.Page - 1) * p.PerPage,
	})
	if err != nil {
		return ListResult{}, err
	}
	items := page.Items
	if items == nil {
		items = []core.Transaction{}
	}
	return ListResult{Items: items, Total: page.Total, Page: p.Page, PerPage: p.PerPage}, nil
}

// Get returns a transaction with a fresh receipt link when it has one. A
// link that cannot be signed is left out rather than failing the read.
func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (TransactionView, error) {
	t, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return TransactionView{}, err
	}
	return s.view(ctx, t), nil
}

func (s *TransactionService) view(ctx context.Context, t core.Transaction) TransactionView {
	v := TransactionView{Transaction: t}
	if t.ReceiptRef == "" {
		return v
	}
	u, err := s.blobs.SignedURL(ctx, t.ReceiptRef, s.opts.ReceiptTTL)
	if err != nil {
		slog.WarnContext(ctx, "Cannot sign receipt URL",
			"transaction_id", t.ID,
			"receipt_key", t.ReceiptRef,
			"error", err)
		return v
	}
	v.ReceiptURL = u
	return v
}

func (s *TransactionService) Create(ctx context.Context, ownerID string, in TransactionInput) (core.Transaction, error) {
	t := in.transaction(ownerID)
	if err := s.check(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.InsertTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID,
		"kind", t.Kind,
		"total", t.Amount.Total().StringFixed(2))
	publish(ctx, s.events, amqp.TransactionCreated, ownerID, t.ID)
	return t, nil
}

// Update replaces amount, date, description and references. The receipt is
// untouched.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, in TransactionInput) (core.Transaction, error) {
	existing, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	t := in.transaction(ownerID)
	t.ID = id
	t.ReceiptRef = existing.ReceiptRef
	t.CreatedAt = existing.CreatedAt
	if err := s.check(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	publish(ctx, s.events, amqp.TransactionUpdated, ownerID, t.ID)
	return t, nil
}

// Delete removes the row, then its receipt. A receipt that cannot be
// removed is logged; the row is already gone.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	existing, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	if existing.ReceiptRef != "" {
		s.discard(ctx, existing.ReceiptRef, id)
	}
	publish(ctx, s.events, amqp.TransactionDeleted, ownerID, id)
	return nil
}

// ReplaceReceipt uploads a new receipt and links it. The previous receipt
// is deleted only after the upload and the row update succeed, so a failed
// upload leaves the old attachment in place.
func (s *TransactionService) ReplaceReceipt(ctx context.Context, ownerID, id string, r io.Reader) (TransactionView, error) {
	t, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return TransactionView{}, err
	}

	br := bufio.NewReaderSize(blob.LimitReader(r, s.opts.MaxUploadBytes), 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return TransactionView{}, receiptInputError(err)
	}
	if len(head) == 0 {
		return TransactionView{}, core.Validation("file", "receipt file is empty")
	}
	contentType, ext, err := blob.DetectType(head)
	if err != nil {
		return TransactionView{}, receiptInputError(err)
	}

	key := blob.NewKey(ownerID, ext)
	if err := s.blobs.Put(ctx, key, contentType, br); err != nil {
		if errors.Is(err, blob.ErrTooLarge) {
			return TransactionView{}, receiptInputError(err)
		}
		return TransactionView{}, core.AttachmentFailure("upload receipt", err)
	}

	old := t.ReceiptRef
	t.ReceiptRef = key
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		s.discard(ctx, key, id)
		return TransactionView{}, err
	}
	if old != "" {
		s.discard(ctx, old, id)
	}

	slog.InfoContext(ctx, "Receipt attached",
		"transaction_id", id,
		"receipt_key", key,
		"content_type", contentType)
	publish(ctx, s.events, amqp.TransactionUpdated, ownerID, id)
	return s.view(ctx, t), nil
}

// RemoveReceipt unlinks the receipt and deletes the object.
func (s *TransactionService) RemoveReceipt(ctx context.Context, ownerID, id string) error {
	t, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if t.ReceiptRef == "" {
		return core.NotFound("receipt", id)
	}
	old := t.ReceiptRef
	t.ReceiptRef = ""
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		return err
	}
	s.discard(ctx, old, id)
	publish(ctx, s.events, amqp.TransactionUpdated, ownerID, id)
	return nil
}

// ReceiptURL returns a time-limited link to the receipt.
func (s *TransactionService) ReceiptURL(ctx context.Context, ownerID, id string) (string, error) {
	t, err := s.store.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if t.ReceiptRef == "" {
		return "", core.NotFound("receipt", id)
	}
	u, err := s.blobs.SignedURL(ctx, t.ReceiptRef, s.opts.ReceiptTTL)
	if blob.IsNotFound(err) {
		return "", core.NotFound("receipt", id)
	}
	if err != nil {
		return "", core.AttachmentFailure("sign receipt url", err)
	}
	return u, nil
}

func (s *TransactionService) discard(ctx context.Context, key, transactionID string) {
	if err := s.blobs.Delete(ctx, key); err != nil && !blob.IsNotFound(err) {
		slog.WarnContext(ctx, "Failed to delete receipt object",
			"transaction_id", transactionID,
			"receipt_key", key,
			"error", err)
	}
}

// check validates t and the references it points to.
func (s *TransactionService) check(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	refs := []struct {
		typ   core.EntityType
		id    string
		field string
	}{
		{core.EntityCompany, t.CompanyID, "company_id"},
		{core.EntityCounterparty, t.CounterpartyID, "counterparty_id"},
		{core.EntityCategory, t.CategoryID, "category_id"},
	}
	for _, ref := range refs {
		if ref.id == "" {
			continue
		}
		e, err := s.store.GetEntity(ctx, t.OwnerID, ref.typ, ref.id)
		if core.IsKind(err, core.KindNotFound) {
			return core.Validation(ref.field, "unknown "+string(ref.typ)+" "+ref.id)
		}
		if err != nil {
			return err
		}
		if ref.typ == core.EntityCategory {
			if err := t.CheckCategory(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (in TransactionInput) transaction(ownerID string) core.Transaction {
	return core.Transaction{
		OwnerID:        ownerID,
		Kind:           in.Kind,
		Amount:         in.Amount,
		OccurredOn:     in.OccurredOn,
		Description:    core.NormalizeDescription(in.Description),
		CompanyID:      strings.TrimSpace(in.CompanyID),
		CounterpartyID: strings.TrimSpace(in.CounterpartyID),
		CategoryID:     strings.TrimSpace(in.CategoryID),
	}
}

func receiptInputError(err error) *core.Error {
	e := core.Validation("file", err.Error())
	e.Err = err
	return e
}
