package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveImport(t *testing.T) {
	before := testutil.ToFloat64(importRejections.WithLabelValues("invalid_date"))
	ObserveImport(9, []string{"invalid_date"})
	assert.Equal(t, before+1, testutil.ToFloat64(importRejections.WithLabelValues("invalid_date")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/api/transactions", 200, 15*time.Millisecond)
	MirrorWrite("upsert", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `contas_http_requests_total{method="GET",route="/api/transactions",status="200"}`)
	assert.Contains(t, string(body), "contas_sheet_mirror_operations_total")
}
