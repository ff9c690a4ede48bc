package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contas/internal/amqp"
	"contas/internal/blob"
	"contas/internal/core"
	"contas/internal/csvcodec"
	"contas/internal/report"
	"contas/internal/storage"
)

const owner = "owner-1"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR receipt body")

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store    *storage.MemoryStore
	blobs    *blob.MemoryStore
	events   *recordingPublisher
	tx       *TransactionService
	entities *EntityService
	reports  *ReportService
	exchange *ExchangeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  storage.NewMemoryStore(),
		blobs:  blob.NewMemoryStore(),
		events: &recordingPublisher{},
	}
	format, err := core.NewFormatter("pt-PT", "EUR")
	require.NoError(t, err)
	f.tx = NewTransactionService(f.store, f.blobs, f.events, TransactionOptions{ReceiptTTL: time.Minute, MaxUploadBytes: 1024})
	f.entities = NewEntityService(f.store)
	f.reports = NewReportService(f.store, format)
	f.reports.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	f.exchange = NewExchangeService(f.store, f.events)
	return f
}

func (f *fixture) entity(t *testing.T, typ core.EntityType, name string, kind core.Kind) core.Entity {
	t.Helper()
	e, err := f.entities.Create(context.Background(), owner, typ, EntityInput{Name: name, Kind: kind})
	require.NoError(t, err)
	return e
}

func (f *fixture) create(t *testing.T, in TransactionInput) core.Transaction {
	t.Helper()
	tx, err := f.tx.Create(context.Background(), owner, in)
	require.NoError(t, err)
	return tx
}

func expense(date, official, unofficial string) TransactionInput {
	d, _ := core.ParseDate(date)
	return TransactionInput{Kind: core.Expense, Amount: core.NewPair(official, unofficial), OccurredOn: d}
}

func income(date, official, unofficial string) TransactionInput {
	in := expense(date, official, unofficial)
	in.Kind = core.Income
	return in
}

func TestTransactionService_CreateValidatesReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sales := f.entity(t, core.EntityCategory, "Vendas", core.Income)
	acme := f.entity(t, core.EntityCompany, "Acme", "")

	in := expense("2024-03-01", "10.00", "0")
	in.CategoryID = sales.ID
	_, err := f.tx.Create(ctx, owner, in)
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.Contains(t, err.Error(), core.ErrCategoryMismatch.Error())

	in = expense("2024-03-01", "10.00", "0")
	in.CompanyID = "missing"
	_, err = f.tx.Create(ctx, owner, in)
	var ce *core.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "company_id", ce.Field)

	// another owner's company is invisible
	_, err = f.tx.Create(ctx, "owner-2", TransactionInput{
		Kind: core.Expense, Amount: core.NewPair("1", "0"), OccurredOn: core.NewDate(2024, 3, 1), CompanyID: acme.ID,
	})
	assert.True(t, core.IsKind(err, core.KindValidation))

	in = income("2024-03-01", "10.00", "5.00")
	in.CategoryID = sales.ID
	in.CompanyID = acme.ID
	tx := f.create(t, in)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, []amqp.EventType{amqp.TransactionCreated}, f.events.types())
}

func TestTransactionService_UpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, expense("2024-03-01", "10.00", "0"))

	_, err := f.tx.Update(ctx, "owner-2", tx.ID, expense("2024-03-02", "1", "1"))
	assert.True(t, core.IsKind(err, core.KindNotFound))

	upd, err := f.tx.Update(ctx, owner, tx.ID, income("2024-03-02", "20.00", "1.50"))
	require.NoError(t, err)
	assert.Equal(t, core.Income, upd.Kind)
	assert.Equal(t, "21.50", upd.Amount.Total().StringFixed(2))

	require.NoError(t, f.tx.Delete(ctx, owner, tx.ID))
	_, err = f.tx.Get(ctx, owner, tx.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))
	assert.Equal(t, []amqp.EventType{amqp.TransactionCreated, amqp.TransactionUpdated, amqp.TransactionDeleted}, f.events.types())
}

func TestTransactionService_PublishFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	tx := f.create(t, expense("2024-03-01", "1.00", "0"))
	assert.NotEmpty(t, tx.ID)
}

func TestTransactionService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for d := 1; d <= 25; d++ {
		f.create(t, expense(core.NewDate(2024, 1, d).String(), "1.00", "0"))
	}

	res, err := f.tx.List(ctx, owner, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.Len(t, res.Items, DefaultPerPage)
	assert.Equal(t, "2024-01-25", res.Items[0].OccurredOn.String())

	res, err = f.tx.List(ctx, owner, ListParams{Page: 2, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPerPage, res.PerPage)
	assert.Empty(t, res.Items)

	res, err = f.tx.List(ctx, owner, ListParams{Filter: report.Filter{Window: report.DateRange{
		From: core.NewDate(2024, 1, 10), To: core.NewDate(2024, 1, 12),
	}}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	_, err = f.tx.List(ctx, owner, ListParams{Filter: report.Filter{Window: report.DateRange{
		From: core.NewDate(2024, 2, 1), To: core.NewDate(2024, 1, 1),
	}}})
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestTransactionService_ReplaceReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, expense("2024-03-01", "1.00", "0"))

	v, err := f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	first := v.ReceiptRef
	assert.True(t, strings.HasPrefix(first, owner+"/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.Contains(t, v.ReceiptURL, "expires_in=60")

	// a failed upload keeps the previous receipt
	f.blobs.SetFailures(errors.New("bucket unavailable"), nil)
	_, err = f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(pngBytes))
	assert.True(t, core.IsKind(err, core.KindAttachment))
	got, err := f.tx.Get(ctx, owner, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got.ReceiptRef)
	_, ok := f.blobs.Get(first)
	assert.True(t, ok)
	f.blobs.SetFailures(nil, nil)

	v, err = f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.NotEqual(t, first, v.ReceiptRef)
	assert.Equal(t, []string{v.ReceiptRef}, f.blobs.Keys(), "old receipt deleted")

	u, err := f.tx.ReceiptURL(ctx, owner, tx.ID)
	require.NoError(t, err)
	assert.Contains(t, u, v.ReceiptRef)

	require.NoError(t, f.tx.RemoveReceipt(ctx, owner, tx.ID))
	assert.Empty(t, f.blobs.Keys())
	_, err = f.tx.ReceiptURL(ctx, owner, tx.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))
	assert.True(t, core.IsKind(f.tx.RemoveReceipt(ctx, owner, tx.ID), core.KindNotFound))
}

func TestTransactionService_ReceiptRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, expense("2024-03-01", "1.00", "0"))

	_, err := f.tx.ReplaceReceipt(ctx, owner, tx.ID, strings.NewReader("plain text, not a receipt"))
	assert.ErrorIs(t, err, blob.ErrUnsupportedType)
	assert.True(t, core.IsKind(err, core.KindValidation))

	big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	_, err = f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(big))
	assert.ErrorIs(t, err, blob.ErrTooLarge)

	_, err = f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(nil))
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.Empty(t, f.blobs.Keys())
}

func TestTransactionService_DeleteCascadesReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, expense("2024-03-01", "1.00", "0"))
	_, err := f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(pngBytes))
	require.NoError(t, err)

	require.NoError(t, f.tx.Delete(ctx, owner, tx.ID))
	assert.Empty(t, f.blobs.Keys())
}

func TestTransactionService_DeleteSurvivesBlobFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, expense("2024-03-01", "1.00", "0"))
	_, err := f.tx.ReplaceReceipt(ctx, owner, tx.ID, bytes.NewReader(pngBytes))
	require.NoError(t, err)

	f.blobs.SetFailures(nil, errors.New("delete refused"))
	require.NoError(t, f.tx.Delete(ctx, owner, tx.ID))
	_, err = f.tx.Get(ctx, owner, tx.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestEntityService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.entities.Create(ctx, owner, core.EntityCategory, EntityInput{Name: "Rendas"})
	assert.True(t, core.IsKind(err, core.KindValidation), "category needs a kind")

	_, err = f.entities.Create(ctx, owner, core.EntityCompany, EntityInput{Name: "  "})
	assert.True(t, core.IsKind(err, core.KindValidation))

	cat := f.entity(t, core.EntityCategory, "Rendas", core.Expense)
	upd, err := f.entities.Update(ctx, owner, core.EntityCategory, cat.ID, EntityInput{Name: "Rendas e alugueres"})
	require.NoError(t, err)
	assert.Equal(t, core.Expense, upd.Kind)

	_, err = f.entities.Update(ctx, owner, core.EntityCategory, cat.ID, EntityInput{Name: "x", Kind: core.Income})
	assert.True(t, core.IsKind(err, core.KindValidation))

	_, err = f.entities.Create(ctx, owner, core.EntityCategory, EntityInput{Name: "Rendas e alugueres", Kind: core.Expense})
	assert.True(t, core.IsKind(err, core.KindValidation), "duplicate name")

	in := expense("2024-03-01", "1.00", "0")
	in.CategoryID = cat.ID
	tx := f.create(t, in)
	require.NoError(t, f.entities.Delete(ctx, owner, core.EntityCategory, cat.ID))
	got, err := f.tx.Get(ctx, owner, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CategoryID)

	list, err := f.entities.List(ctx, owner, core.EntityCategory)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestReportService_Summary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.entity(t, core.EntityCompany, "Acme", "")

	in := income("2024-03-05", "100.00", "50.00")
	in.CompanyID = acme.ID
	f.create(t, in)
	f.create(t, expense("2024-03-20", "30.00", "10.00"))
	f.create(t, income("2024-04-01", "999.00", "0"))

	rep, err := f.reports.Summary(ctx, owner, SummaryParams{Period: report.PeriodMonth, Formatted: true})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", rep.From.String())
	assert.Equal(t, "2024-03-31", rep.To.String())
	assert.Equal(t, "150.00", rep.Summary.Income.Total().StringFixed(2))
	assert.Equal(t, "40.00", rep.Summary.Expense.Total().StringFixed(2))
	assert.Equal(t, "110.00", rep.Summary.Balance.Total().StringFixed(2))
	require.NotNil(t, rep.Formatted)
	assert.Contains(t, rep.Formatted.Balance.Total, "€")

	rep, err = f.reports.Summary(ctx, owner, SummaryParams{Period: report.PeriodCustom, From: "2024-03-01", To: "2024-04-30", CompanyID: report.Ref(acme.ID)})
	require.NoError(t, err)
	assert.Equal(t, "150.00", rep.Summary.Balance.Total().StringFixed(2))
	assert.Nil(t, rep.Formatted)

	_, err = f.reports.Summary(ctx, owner, SummaryParams{Period: report.PeriodCustom, From: "2024-02-30"})
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestReportService_ByCompanyUngroupedLast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zeta := f.entity(t, core.EntityCompany, "Zeta", "")
	alfa := f.entity(t, core.EntityCompany, "Alfa", "")

	for _, c := range []string{zeta.ID, alfa.ID, ""} {
		in := income("2024-03-05", "10.00", "0")
		in.CompanyID = c
		f.create(t, in)
	}

	rows, err := f.reports.ByCompany(ctx, owner, report.DateRange{}, false)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alfa", rows[0].Name)
	assert.Equal(t, "Zeta", rows[1].Name)
	assert.True(t, rows[2].Ungrouped)
	assert.Empty(t, rows[2].ID)

	rows, err = f.reports.ByCounterparty(ctx, owner, report.DateRange{}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Ungrouped)
	assert.NotNil(t, rows[0].Formatted)
}

func TestReportService_Monthly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, income("2024-02-10", "10.00", "0"))
	f.create(t, income("2023-02-10", "99.00", "0"))

	months, err := f.reports.Monthly(ctx, owner, 2024, nil)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.Equal(t, "10.00", months[1].Summary.Income.Total().StringFixed(2))
	assert.True(t, months[0].Summary.Income.IsZero())

	_, err = f.reports.Monthly(ctx, owner, 0, nil)
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestExchangeService_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acme := f.entity(t, core.EntityCompany, "Acme", "")
	f.entity(t, core.EntityCategory, "Vendas", core.Income)

	in := income("2024-03-01", "100.00", "20.00")
	in.CompanyID = acme.ID
	in.Description = "Fatura, com vírgula"
	f.create(t, in)

	var buf bytes.Buffer
	n, err := f.exchange.Export(ctx, owner, &buf, report.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, strings.HasPrefix(buf.String(), "\ufeffdata,tipo,"))
	assert.Contains(t, buf.String(), `2024-03-01,receita,Acme,,,100.00,20.00,"Fatura, com vírgula"`)

	res, err := f.exchange.Import(ctx, owner, &buf, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Empty(t, res.Rejected)

	page, err := f.store.ListTransactions(ctx, owner, storage.TransactionQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestExchangeService_ImportRejectsRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.entity(t, core.EntityCompany, "A", "")
	f.entity(t, core.EntityCompany, "B", "")

	csvData := strings.Join([]string{
		"data,tipo,empresa,contraparte,categoria,valor_oficial,valor_nao_oficial,descricao",
		"2024-03-01,receita,A,,,10.00,0,",
		"2024-02-30,receita,A,,,10.00,0,",
		"2024-03-02,despesa,B,,,5.00,0,",
		"2024-03-03,despesa,Nenhuma,,,5.00,0,",
	}, "\n")

	res, err := f.exchange.Import(ctx, owner, strings.NewReader(csvData), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 2, res.Rejected[0].Row)
	assert.Equal(t, csvcodec.ReasonInvalidDate, res.Rejected[0].Reason)
	assert.Equal(t, csvcodec.ReasonUnknownCompany, res.Rejected[1].Reason)

	// the default company wins over the column, even an unknown name
	f2 := newFixture(t)
	a = f2.entity(t, core.EntityCompany, "A", "")
	res, err = f2.exchange.Import(ctx, owner, strings.NewReader(csvData), ImportOptions{DefaultCompanyID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	page, err := f2.store.ListTransactions(ctx, owner, storage.TransactionQuery{})
	require.NoError(t, err)
	for _, tx := range page.Items {
		assert.Equal(t, a.ID, tx.CompanyID)
	}

	_, err = f2.exchange.Import(ctx, owner, strings.NewReader(csvData), ImportOptions{DefaultCompanyID: "nope"})
	assert.True(t, core.IsKind(err, core.KindValidation))
}

// failingInserts fails the failAt-th InsertTransaction call.
type failingInserts struct {
	*storage.MemoryStore
	failAt int
	calls  int
}

func (f *failingInserts) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	f.calls++
	if f.calls == f.failAt {
		return core.StoreFailure("insert transaction", errors.New("disk full"))
	}
	return f.MemoryStore.InsertTransaction(ctx, t)
}

func TestExchangeService_ImportAbortKeepsCommittedRows(t *testing.T) {
	ctx := context.Background()
	store := &failingInserts{MemoryStore: storage.NewMemoryStore(), failAt: 2}
	exchange := NewExchangeService(store, nil)

	csvData := strings.Join([]string{
		"2024-03-01,receita,,,,10.00,0,",
		"2024-02-30,receita,,,,10.00,0,",
		"2024-03-02,despesa,,,,5.00,0,",
		"2024-03-03,despesa,,,,5.00,0,",
	}, "\n")

	res, err := exchange.Import(ctx, owner, strings.NewReader(csvData), ImportOptions{})
	require.Error(t, err)

	var aborted *ImportAbortedError
	require.ErrorAs(t, err, &aborted)
	assert.Equal(t, res, aborted.Result)
	assert.Equal(t, 1, aborted.Result.Imported)
	require.Len(t, aborted.Result.Rejected, 1)
	assert.Equal(t, 2, aborted.Result.Rejected[0].Row)

	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindStore, ce.Kind)
	assert.Equal(t, 3, ce.Row)

	page, err := store.ListTransactions(ctx, owner, storage.TransactionQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestExchangeService_ImportValidatesRows(t *testing.T) {
	f := newFixture(t)
	csvData := "2024-03-01,receita,,,,1.00,0," + strings.Repeat("y", 501) + "\n" +
		"2024-03-01,receita,,,,1000000000000,0,\n" +
		"2024-03-01,receita,,,,1.00,0,ok\n"

	res, err := f.exchange.Import(context.Background(), owner, strings.NewReader(csvData), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, csvcodec.ReasonInvalidDescription, res.Rejected[0].Reason)
	assert.Equal(t, csvcodec.ReasonInvalidAmount, res.Rejected[1].Reason)
}

func TestTransactionService_NormalizesDescription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := expense("2024-03-01", "1.00", "0")
	in.Description = "  first\r\nsecond  "
	tx := f.create(t, in)
	assert.Equal(t, "first\nsecond", tx.Description)

	var buf bytes.Buffer
	_, err := f.exchange.Export(ctx, owner, &buf, report.Filter{})
	require.NoError(t, err)

	other := newFixture(t)
	res, err := other.exchange.Import(ctx, owner, &buf, ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	page, err := other.store.ListTransactions(ctx, owner, storage.TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, tx.Description, page.Items[0].Description)
}
