package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveInquiry(t *testing.T) {
	m := New()

	quotes := []contracts.InquiryQuote{
		{ContractCode: contracts.Ptr("HC2610"), CallPut: contracts.Ptr(contracts.Call)},
		{},
	}
	m.ObserveInquiry(quotes, 2, 3*time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, "rfqnorm_inquiries_total 1")
	assert.Contains(t, out, "rfqnorm_legs_total 2")
	assert.Contains(t, out, "rfqnorm_invariant_drops_total 2")
	assert.Contains(t, out, `rfqnorm_null_fields_total{field="contract_code"} 1`)
	assert.Contains(t, out, `rfqnorm_null_fields_total{field="buy_sell"} 2`)
	assert.Contains(t, out, "rfqnorm_normalize_duration_seconds_count 1")
}

func TestObserveCatalogSync(t *testing.T) {
	m := New()

	m.ObserveCatalogSync(nil, 42)
	m.ObserveCatalogSync(errors.New("boom"), 0)

	out := scrape(t, m)
	assert.Contains(t, out, `rfqnorm_catalog_sync_total{result="ok"} 1`)
	assert.Contains(t, out, `rfqnorm_catalog_sync_total{result="error"} 1`)
	assert.Contains(t, out, "rfqnorm_catalog_products 42")
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/v1/normalize", http.MethodPost, http.StatusOK, time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, `rfqnorm_http_requests_total{method="POST",route="/api/v1/normalize",status="200"} 1`)
	assert.Contains(t, out, `rfqnorm_http_request_duration_seconds_count{route="/api/v1/normalize"} 1`)
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.InquiriesTotal.Inc()

	assert.Contains(t, scrape(t, a), "rfqnorm_inquiries_total 1")
	assert.Contains(t, scrape(t, b), "rfqnorm_inquiries_total 0")
}
