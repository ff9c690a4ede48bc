package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-03-01", true},
		{"2024-02-29", true},
		{" 2025-12-31 ", true},
		{"2024-02-30", false},
		{"2023-02-29", false},
		{"01/03/2024", false},
		{"2024-3-1", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			_, err := ParseDate(tc.in)
			if tc.ok && err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tc.in, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("ParseDate(%q) expected error", tc.in)
			}
		})
	}
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2024-03-15"))
	assert.Equal(t, "2024-03-15", d.String())

	require.NoError(t, d.Scan([]byte("2024-03-16T00:00:00Z")))
	assert.Equal(t, "2024-03-16", d.String())

	require.NoError(t, d.Scan(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-17", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	v, err := NewDate(2024, 1, 2).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", v)

	assert.Error(t, d.Scan(42))
}

func TestDate_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{NewDate(2024, 3, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-03-01"}`, string(b))

	var out struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-12-31"}`), &out))
	assert.Equal(t, NewDate(2024, 12, 31), out.D)
	assert.Error(t, json.Unmarshal([]byte(`{"d":"2024-02-30"}`), &out))
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"income":  Income,
		"receita": Income,
		"Receita": Income,
		"expense": Expense,
		"DESPESA": Expense,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("transfer")
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.Equal(t, "receita", Income.Label())
	assert.Equal(t, "despesa", Expense.Label())
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{Kind: Income, Amount: NewPair("1", "0"), OccurredOn: NewDate(2024, 1, 1)}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Transaction){
		"kind":        func(tx *Transaction) { tx.Kind = "transfer" },
		"occurred_on": func(tx *Transaction) { tx.OccurredOn = Date{} },
		"amount":      func(tx *Transaction) { tx.Amount = NewPair("-1", "0") },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			tx := valid
			mutate(&tx)
			err := tx.Validate()
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindValidation, e.Kind)
			assert.Equal(t, field, e.Field)
		})
	}
}

func TestTransaction_CheckCategory(t *testing.T) {
	tx := Transaction{Kind: Expense}
	assert.NoError(t, tx.CheckCategory(Entity{Type: EntityCategory, Kind: Expense}))
	assert.True(t, IsKind(tx.CheckCategory(Entity{Type: EntityCategory, Kind: Income}), KindValidation))
	assert.Error(t, tx.CheckCategory(Entity{Type: EntityCompany}))
}

func TestEntityValidate(t *testing.T) {
	assert.NoError(t, Entity{Type: EntityCompany, Name: "Acme"}.Validate())
	assert.NoError(t, Entity{Type: EntityCategory, Name: "Rent", Kind: Expense}.Validate())
	assert.Error(t, Entity{Type: EntityCompany, Name: "  "}.Validate())
	assert.Error(t, Entity{Type: EntityCategory, Name: "Rent"}.Validate())
	assert.Error(t, Entity{Type: EntityCounterparty, Name: "Bob", Kind: Income}.Validate())
	assert.Error(t, Entity{Type: "vendor", Name: "x"}.Validate())
}

func TestErrorKinds(t *testing.T) {
	err := StoreFailure("insert transaction", assert.AnError)
	assert.Equal(t, KindStore, KindOf(err))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "insert transaction failed")

	v := Validation("date", "bad")
	v.Row = 3
	assert.Equal(t, "validation_error: bad (field date) (row 3)", v.Error())
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))
}

func TestFold(t *testing.T) {
	s := Fold(nil)
	assert.True(t, s.Income.IsZero())
	assert.True(t, s.Expense.IsZero())
	assert.True(t, s.Balance.IsZero())

	s = Fold([]Transaction{
		{Kind: Income, Amount: NewPair("100.00", "50.00")},
		{Kind: Expense, Amount: NewPair("30.00", "0.00")},
		{Kind: Expense, Amount: NewPair("0.00", "60.00")},
	})
	assert.Equal(t, "70.00", s.Balance.Official.StringFixed(2))
	assert.Equal(t, "-10.00", s.Balance.Unofficial.StringFixed(2))
	assert.Equal(t, "60.00", s.Balance.Total().StringFixed(2))
}

func TestNormalizeDescription(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"  plain  ":           "plain",
		"a\r\nb":              "a\nb",
		" a\r\n\r\nb\nc \r\n": "a\n\nb\nc",
		"lone\rreturn":        "lone\rreturn",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDescription(in), "%q", in)
	}
}
