package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	EntityCompany      EntityType = "company"
	EntityCounterparty EntityType = "counterparty"
	EntityCategory     EntityType = "category"
)

type (
	// Kind tells income and expense apart.
	Kind string

	// EntityType names one of the owned reference tables.
	EntityType string

	// Date is a calendar date without a time zone.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID             string    `json:"id"`
		OwnerID        string    `json:"-"`
		Kind           Kind      `json:"kind"`
		Amount         MoneyPair `json:"amount"`
		OccurredOn     Date      `json:"occurred_on"`
		Description    string    `json:"description,omitempty"`
		CompanyID      string    `json:"company_id,omitempty"`
		CounterpartyID string    `json:"counterparty_id,omitempty"`
		CategoryID     string    `json:"category_id,omitempty"`
		ReceiptRef     string    `json:"receipt_ref,omitempty"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	// Entity is a company, a counterparty (client or supplier) or a category.
	// Kind is only set for categories.
	Entity struct {
		ID        string     `json:"id"`
		OwnerID   string     `json:"-"`
		Type      EntityType `json:"type"`
		Name      string     `json:"name"`
		TaxID     string     `json:"tax_id,omitempty"`
		Email     string     `json:"email,omitempty"`
		Kind      Kind       `json:"kind,omitempty"`
		CreatedAt time.Time  `json:"created_at"`
		UpdatedAt time.Time  `json:"updated_at"`
	}
)

var (
	ErrInvalidKind       = errors.New("kind must be income or expense")
	ErrInvalidDate       = errors.New("date must be YYYY-MM-DD")
	ErrEmptyName         = errors.New("name is required")
	ErrCategoryMismatch  = errors.New("category kind does not match transaction kind")
	ErrInvalidEntityType = errors.New("unknown entity type")
)

// ParseKind accepts the canonical values and the Portuguese aliases used in
// CSV files, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "receita":
		return Income, nil
	case "expense", "despesa":
		return Expense, nil
	}
	return "", ErrInvalidKind
}

func (k Kind) Valid() bool { return k == Income || k == Expense }

// Label is the Portuguese name written to CSV files.
func (k Kind) Label() string {
	if k == Income {
		return "receita"
	}
	return "despesa"
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityCompany, EntityCounterparty, EntityCategory:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO-8601 calendar date. Impossible dates such as
// 2024-02-30 are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int { return d.Time.Compare(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan reads TEXT columns (SQLite) and DATE columns (Postgres).
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d *Date) scanText(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// NormalizeDescription trims the ends and stores line breaks as "\n", the
// only form a CSV round trip preserves.
func NormalizeDescription(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// Validate checks every field of a transaction that can be checked without
// looking up references.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return Validation("kind", ErrInvalidKind.Error())
	}
	if t.OccurredOn.IsZero() {
		return Validation("occurred_on", ErrInvalidDate.Error())
	}
	if err := t.Amount.Validate(); err != nil {
		return Validation("amount", err.Error())
	}
	if len(t.Description) > 500 {
		return Validation("description", "description too long (max 500 characters)")
	}
	return nil
}

// CheckCategory enforces that a linked category has the same kind as the
// transaction.
func (t Transaction) CheckCategory(c Entity) error {
	if c.Type != EntityCategory {
		return Validation("category_id", "referenced entity is not a category")
	}
	if c.Kind != t.Kind {
		return Validation("category_id", ErrCategoryMismatch.Error())
	}
	return nil
}

func (e Entity) Validate() error {
	if !e.Type.Valid() {
		return Validation("type", ErrInvalidEntityType.Error())
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return Validation("name", ErrEmptyName.Error())
	}
	if len(name) > 200 {
		return Validation("name", "name too long (max 200 characters)")
	}
	if e.Type == EntityCategory && !e.Kind.Valid() {
		return Validation("kind", ErrInvalidKind.Error())
	}
	if e.Type != EntityCategory && e.Kind != "" {
		return Validation("kind", "only categories have a kind")
	}
	return nil
}
