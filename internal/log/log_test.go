package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "": slog.LevelInfo, "INFO": slog.LevelInfo,
		"warning": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogger_ComponentTag(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentLedger})
	l.Info("saved", FieldTransaction, "tx-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ledger", rec[FieldComponent])
	assert.Equal(t, "tx-1", rec[FieldTransaction])
}

func TestMiddleware_LogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf})
	h := Middleware(l, func(*http.Request) string { return "req-9" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ComponentHTTP, FromContext(r.Context()).Component())
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/transactions/x", nil))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, float64(404), rec[FieldStatusCode])
	assert.Equal(t, "req-9", rec[FieldRequestID])
}

func TestFields(t *testing.T) {
	f := NewFields().WithOwner("").WithRejection(7, "invalid_date").WithError(nil)
	assert.NotContains(t, f, FieldOwner)
	assert.NotContains(t, f, FieldError)
	assert.Equal(t, 7, f[FieldRow])
	assert.Len(t, f.ToSlice(), 4)
}
