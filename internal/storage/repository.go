package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"contas/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for Postgres. Queries in this file
// never contain a literal question mark.
func (d Dialect) rebind(q string) string {
	if d != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLRepository implements Store over database/sql for SQLite and Postgres.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ Store = (*SQLRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database file and
// migrates it.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	if err := RunMigrations(DialectSQLite, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return open(DialectSQLite, dsn)
}

// NewPostgresRepository connects through the pgx stdlib driver and migrates
// the schema.
func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return open(DialectPostgres, dsn)
}

func open(dialect Dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.StoreFailure("ping", err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.rebind(q), args...)
}

func (r *SQLRepository) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.rebind(q), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.rebind(q), args...)
}

const transactionColumns = `id, owner_id, kind, official, unofficial, occurred_on, description,
	company_id, counterparty_id, category_id, receipt_ref, created_at, updated_at`

func (r *SQLRepository) ListTransactions(ctx context.Context, ownerID string, q TransactionQuery) (TransactionPage, error) {
	where, args := transactionWhere(ownerID, q)

	var total int
	if err := r.queryRow(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&total); err != nil {
		return TransactionPage{}, core.StoreFailure("count transactions", err)
	}

	stmt := "SELECT " + transactionColumns + " FROM transactions WHERE " + where +
		" ORDER BY occurred_on DESC, created_at DESC, id"
	if q.Limit > 0 {
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}
	rows, err := r.query(ctx, stmt, args...)
	if err != nil {
		return TransactionPage{}, core.StoreFailure("list transactions", err)
	}
	defer rows.Close()

	page := TransactionPage{Total: total, Items: []core.Transaction{}}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return TransactionPage{}, core.StoreFailure("scan transaction", err)
		}
		page.Items = append(page.Items, t)
	}
	if err := rows.Err(); err != nil {
		return TransactionPage{}, core.StoreFailure("list transactions", err)
	}
	return page, nil
}

func transactionWhere(ownerID string, q TransactionQuery) (string, []any) {
	f := q.Filter
	conds := []string{"owner_id = ?"}
	args := []any{ownerID}
	if !f.Window.From.IsZero() {
		conds = append(conds, "occurred_on >= ?")
		args = append(args, f.Window.From.String())
	}
	if !f.Window.To.IsZero() {
		conds = append(conds, "occurred_on <= ?")
		args = append(args, f.Window.To.String())
	}
	refs := []struct {
		col string
		val *string
	}{
		{"company_id", f.CompanyID},
		{"counterparty_id", f.CounterpartyID},
		{"category_id", f.CategoryID},
	}
	for _, ref := range refs {
		switch {
		case ref.val == nil:
		case *ref.val == "":
			conds = append(conds, ref.col+" IS NULL")
		default:
			conds = append(conds, ref.col+" = ?")
			args = append(args, *ref.val)
		}
	}
	if f.Kind != nil {
		conds = append(conds, "kind = ?")
		args = append(args, string(*f.Kind))
	}
	return strings.Join(conds, " AND "), args
}

func (r *SQLRepository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	row := r.queryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND owner_id = ?", id, ownerID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, core.StoreFailure("get transaction", err)
	}
	return t, nil
}

func (r *SQLRepository) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := r.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, string(t.Kind),
		t.Amount.Official.StringFixed(2), t.Amount.Unofficial.StringFixed(2),
		t.OccurredOn.String(), nullable(t.Description),
		nullable(t.CompanyID), nullable(t.CounterpartyID), nullable(t.CategoryID),
		nullable(t.ReceiptRef), timestamp(now), timestamp(now),
	)
	if err != nil {
		return core.StoreFailure("insert transaction", err)
	}
	slog.DebugContext(ctx, "Transaction inserted", "id", t.ID, "kind", t.Kind, "dialect", r.dialect)
	return nil
}

func (r *SQLRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	now := r.now()
	res, err := r.exec(ctx, `UPDATE transactions SET
		kind = ?, official = ?, unofficial = ?, occurred_on = ?, description = ?,
		company_id = ?, counterparty_id = ?, category_id = ?, receipt_ref = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		string(t.Kind), t.Amount.Official.StringFixed(2), t.Amount.Unofficial.StringFixed(2),
		t.OccurredOn.String(), nullable(t.Description),
		nullable(t.CompanyID), nullable(t.CounterpartyID), nullable(t.CategoryID),
		nullable(t.ReceiptRef), timestamp(now),
		t.ID, t.OwnerID,
	)
	if err != nil {
		return core.StoreFailure("update transaction", err)
	}
	if err := expectOne(res, "transaction", t.ID); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

func (r *SQLRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.exec(ctx, "DELETE FROM transactions WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return core.StoreFailure("delete transaction", err)
	}
	return expectOne(res, "transaction", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                             core.Transaction
		kind                          string
		description, company, cp, cat sql.NullString
		receipt                       sql.NullString
		createdAt, updatedAt          timeValue
	)
	err := s.Scan(&t.ID, &t.OwnerID, &kind, &t.Amount.Official, &t.Amount.Unofficial, &t.OccurredOn,
		&description, &company, &cp, &cat, &receipt, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.Description = description.String
	t.CompanyID = company.String
	t.CounterpartyID = cp.String
	t.CategoryID = cat.String
	t.ReceiptRef = receipt.String
	t.CreatedAt, t.UpdatedAt = createdAt.Time, updatedAt.Time
	return t, nil
}

// entityTable describes the columns a reference table carries.
type entityTable struct {
	name    string
	contact bool // tax_id and email
	kind    bool
}

var entityTables = map[core.EntityType]entityTable{
	core.EntityCompany:      {name: "companies", contact: true},
	core.EntityCounterparty: {name: "counterparties", contact: true},
	core.EntityCategory:     {name: "categories", kind: true},
}

func tableFor(typ core.EntityType) (entityTable, error) {
	t, ok := entityTables[typ]
	if !ok {
		return entityTable{}, core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	return t, nil
}

func (t entityTable) columns() []string {
	cols := []string{"id", "owner_id", "name"}
	if t.contact {
		cols = append(cols, "tax_id", "email")
	}
	if t.kind {
		cols = append(cols, "kind")
	}
	return append(cols, "created_at", "updated_at")
}

func (t entityTable) scan(s scanner, typ core.EntityType) (core.Entity, error) {
	e := core.Entity{Type: typ}
	var (
		taxID, email         sql.NullString
		kind                 string
		createdAt, updatedAt timeValue
	)
	dest := []any{&e.ID, &e.OwnerID, &e.Name}
	if t.contact {
		dest = append(dest, &taxID, &email)
	}
	if t.kind {
		dest = append(dest, &kind)
	}
	dest = append(dest, &createdAt, &updatedAt)
	if err := s.Scan(dest...); err != nil {
		return core.Entity{}, err
	}
	e.TaxID, e.Email, e.Kind = taxID.String, email.String, core.Kind(kind)
	e.CreatedAt, e.UpdatedAt = createdAt.Time, updatedAt.Time
	return e, nil
}

func (r *SQLRepository) ListEntities(ctx context.Context, ownerID string, typ core.EntityType) ([]core.Entity, error) {
	tbl, err := tableFor(typ)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, "SELECT "+strings.Join(tbl.columns(), ", ")+" FROM "+tbl.name+
		" WHERE owner_id = ? ORDER BY name", ownerID)
	if err != nil {
		return nil, core.StoreFailure("list "+tbl.name, err)
	}
	defer rows.Close()

	out := []core.Entity{}
	for rows.Next() {
		e, err := tbl.scan(rows, typ)
		if err != nil {
			return nil, core.StoreFailure("scan "+string(typ), err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StoreFailure("list "+tbl.name, err)
	}
	return out, nil
}

func (r *SQLRepository) GetEntity(ctx context.Context, ownerID string, typ core.EntityType, id string) (core.Entity, error) {
	tbl, err := tableFor(typ)
	if err != nil {
		return core.Entity{}, err
	}
	row := r.queryRow(ctx, "SELECT "+strings.Join(tbl.columns(), ", ")+" FROM "+tbl.name+
		" WHERE id = ? AND owner_id = ?", id, ownerID)
	e, err := tbl.scan(row, typ)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entity{}, core.NotFound(string(typ), id)
	}
	if err != nil {
		return core.Entity{}, core.StoreFailure("get "+string(typ), err)
	}
	return e, nil
}

func (r *SQLRepository) InsertEntity(ctx context.Context, e *core.Entity) error {
	tbl, err := tableFor(e.Type)
	if err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := r.now()
	e.CreatedAt, e.UpdatedAt = now, now

	args := []any{e.ID, e.OwnerID, e.Name}
	if tbl.contact {
		args = append(args, nullable(e.TaxID), nullable(e.Email))
	}
	if tbl.kind {
		args = append(args, string(e.Kind))
	}
	args = append(args, timestamp(now), timestamp(now))
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	_, err = r.exec(ctx, "INSERT INTO "+tbl.name+" ("+strings.Join(tbl.columns(), ", ")+") VALUES ("+marks+")", args...)
	if isUniqueViolation(err) {
		return core.Validation("name", fmt.Sprintf("%s %q already exists", e.Type, e.Name))
	}
	if err != nil {
		return core.StoreFailure("insert "+string(e.Type), err)
	}
	return nil
}

func (r *SQLRepository) UpdateEntity(ctx context.Context, e *core.Entity) error {
	tbl, err := tableFor(e.Type)
	if err != nil {
		return err
	}
	now := r.now()
	sets := []string{"name = ?"}
	args := []any{e.Name}
	if tbl.contact {
		sets = append(sets, "tax_id = ?", "email = ?")
		args = append(args, nullable(e.TaxID), nullable(e.Email))
	}
	if tbl.kind {
		sets = append(sets, "kind = ?")
		args = append(args, string(e.Kind))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, timestamp(now), e.ID, e.OwnerID)

	res, err := r.exec(ctx, "UPDATE "+tbl.name+" SET "+strings.Join(sets, ", ")+" WHERE id = ? AND owner_id = ?", args...)
	if isUniqueViolation(err) {
		return core.Validation("name", fmt.Sprintf("%s %q already exists", e.Type, e.Name))
	}
	if err != nil {
		return core.StoreFailure("update "+string(e.Type), err)
	}
	if err := expectOne(res, string(e.Type), e.ID); err != nil {
		return err
	}
	e.UpdatedAt = now
	return nil
}

// DeleteEntity removes the entity; transactions referencing it keep
// existing with the reference cleared (ON DELETE SET NULL).
func (r *SQLRepository) DeleteEntity(ctx context.Context, ownerID string, typ core.EntityType, id string) error {
	tbl, err := tableFor(typ)
	if err != nil {
		return err
	}
	res, err := r.exec(ctx, "DELETE FROM "+tbl.name+" WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		return core.StoreFailure("delete "+string(typ), err)
	}
	return expectOne(res, string(typ), id)
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.StoreFailure("rows affected", err)
	}
	if n == 0 {
		return core.NotFound(what, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// storedTimeLayout has fixed-width fractions so TEXT columns sort in time
// order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// timeValue scans timestamps stored as TEXT (SQLite) or TIMESTAMPTZ
// (Postgres).
type timeValue struct {
	time.Time
}

var timeLayouts = []string{
	storedTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (v *timeValue) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		v.Time = time.Time{}
		return nil
	case time.Time:
		v.Time = s.UTC()
		return nil
	case []byte:
		return v.parse(string(s))
	case string:
		return v.parse(s)
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}
