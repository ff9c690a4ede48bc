package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contas/internal/core"
)

func TestOptionalRef(t *testing.T) {
	q := url.Values{"company_id": {" c-1 "}, "counterparty_id": {""}}

	assert.Nil(t, optionalRef(q, "category_id"), "absent parameter")

	got := optionalRef(q, "counterparty_id")
	require.NotNil(t, got)
	assert.Equal(t, "", *got, "empty value selects records without the reference")

	got = optionalRef(q, "company_id")
	require.NotNil(t, got)
	assert.Equal(t, "c-1", *got)
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
		check   func(t *testing.T, q url.Values)
	}{
		{name: "empty", query: ""},
		{name: "window and kind", query: "from=2024-01-01&to=2024-01-31&kind=expense"},
		{name: "invalid date", query: "from=2024-13-01", wantErr: "from"},
		{name: "reversed window", query: "from=2024-02-01&to=2024-01-01"},
		{name: "invalid kind", query: "kind=gift", wantErr: "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			f, err := parseFilter(q)
			switch {
			case tt.wantErr != "":
				require.Error(t, err)
				var ce *core.Error
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, core.KindValidation, ce.Kind)
				assert.Equal(t, tt.wantErr, ce.Field)
			case tt.name == "reversed window":
				require.Error(t, err)
				assert.True(t, core.IsKind(err, core.KindValidation))
			case tt.name == "window and kind":
				require.NoError(t, err)
				assert.Equal(t, "2024-01-01", f.Window.From.String())
				assert.Equal(t, "2024-01-31", f.Window.To.String())
				require.NotNil(t, f.Kind)
				assert.Equal(t, core.Expense, *f.Kind)
			default:
				require.NoError(t, err)
				assert.True(t, f.Window.From.IsZero())
				assert.Nil(t, f.Kind)
				assert.Nil(t, f.CompanyID)
			}
		})
	}
}

func TestParsePositive(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"", 7, false},
		{"3", 3, false},
		{" 12 ", 12, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parsePositive(url.Values{"page": {tt.value}}, "page", 7)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "page must be a positive integer")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
