package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"contas/internal/amqp"
	"contas/internal/core"
	"contas/internal/csvcodec"
	"contas/internal/metrics"
	"contas/internal/report"
	"contas/internal/storage"
)

type ImportOptions struct {
	// DefaultCompanyID replaces the company column of every row.
	DefaultCompanyID string
}

type ImportResult struct {
	Imported int                 `json:"imported"`
	Rejected []csvcodec.RowError `json:"rejected"`
}

// ImportAbortedError reports an import stopped by a failed insert. Result
// holds the rows committed before the failure and every rejected row.
type ImportAbortedError struct {
	Result ImportResult
	Err    error
}

func (e *ImportAbortedError) Error() string {
	return fmt.Sprintf("import stopped after %d rows: %v", e.Result.Imported, e.Err)
}

func (e *ImportAbortedError) Unwrap() error { return e.Err }

// ExchangeService moves transactions in and out as CSV.
type ExchangeService struct {
	store  Ledger
	events EventPublisher
}

func NewExchangeService(store Ledger, events EventPublisher) *ExchangeService {
	return &ExchangeService{store: store, events: events}
}

// Export writes every transaction matching f, newest first, with a BOM so
// spreadsheet programs detect UTF-8.
func (s *ExchangeService) Export(ctx context.Context, ownerID string, w io.Writer, f report.Filter) (int, error) {
	if err := f.Window.Validate(); err != nil {
		return 0, err
	}
	var records []core.Transaction
	var dir *csvcodec.Directory

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := s.store.ListTransactions(gctx, ownerID, storage.TransactionQuery{Filter: f})
		records = page.Items
		return err
	})
	g.Go(func() error {
		var err error
		dir, err = s.directory(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := csvcodec.Encode(w, records, dir, csvcodec.EncodeOptions{BOM: true}); err != nil {
		return 0, core.StoreFailure("write csv", err)
	}
	slog.InfoContext(ctx, "Transactions exported", "operation", "export", "rows", len(records))
	return len(records), nil
}

// Import parses the whole file first and then inserts accepted rows one by
// one. Row problems are reported, never fatal. An insert failure stops the
// import with an *ImportAbortedError; rows inserted before it stay
// committed and are counted in its Result.
func (s *ExchangeService) Import(ctx context.Context, ownerID string, r io.Reader, opts ImportOptions) (ImportResult, error) {
	dir, err := s.directory(ctx, ownerID)
	if err != nil {
		return ImportResult{}, err
	}
	if opts.DefaultCompanyID != "" {
		if _, ok := dir.Get(core.EntityCompany, opts.DefaultCompanyID); !ok {
			return ImportResult{}, core.Validation("company_id", "unknown company "+opts.DefaultCompanyID)
		}
	}

	decoded, err := csvcodec.Decode(r, dir, csvcodec.DecodeOptions{DefaultCompanyID: opts.DefaultCompanyID})
	if err != nil {
		e := core.Validation("file", "cannot read CSV file")
		e.Err = err
		return ImportResult{}, e
	}

	res := ImportResult{Rejected: decoded.Rejected}
	if res.Rejected == nil {
		res.Rejected = []csvcodec.RowError{}
	}
	defer func() { observeImport(res) }()

	for i := range decoded.Created {
		t := decoded.Created[i]
		t.OwnerID = ownerID
		if err := s.store.InsertTransaction(ctx, &t); err != nil {
			slog.ErrorContext(ctx, "Import stopped by insert failure",
				"operation", "import",
				"row", decoded.CreatedRows[i],
				"imported", res.Imported,
				"error", err)
			var ce *core.Error
			if errors.As(err, &ce) {
				ce.Row = decoded.CreatedRows[i]
			}
			return res, &ImportAbortedError{Result: res, Err: err}
		}
		res.Imported++
		publish(ctx, s.events, amqp.TransactionCreated, ownerID, t.ID)
	}

	for _, rej := range res.Rejected {
		slog.DebugContext(ctx, "Import row rejected", "row", rej.Row, "reason", rej.Reason)
	}
	slog.InfoContext(ctx, "Transactions imported",
		"operation", "import",
		"created", res.Imported,
		"rejected", len(res.Rejected))
	return res, nil
}

func (s *ExchangeService) directory(ctx context.Context, ownerID string) (*csvcodec.Directory, error) {
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

func observeImport(res ImportResult) {
	reasons := make([]string, len(res.Rejected))
	for i, r := range res.Rejected {
		reasons[i] = string(r.Reason)
	}
	metrics.ObserveImport(res.Imported, reasons)
}
