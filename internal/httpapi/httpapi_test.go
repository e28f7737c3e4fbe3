package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/voucher-ledger/internal/catalog/catalogtest"
	interfaces "github.com/sheikh-saqib/voucher-ledger/internal/interfaces"
	"github.com/sheikh-saqib/voucher-ledger/internal/ledger"
	"github.com/sheikh-saqib/voucher-ledger/internal/models"
	"github.com/sheikh-saqib/voucher-ledger/internal/reports"
	"github.com/sheikh-saqib/voucher-ledger/internal/storage/memory"
)

const receiptBody = `{
	"voucher_type_code": "RCT",
	"voucher_date": "2025-04-10",
	"financial_year": "2025-26",
	"narration": "egg sales",
	"entries": [
		{"ledger_id": "cash", "debit_amount": "1000"},
		{"ledger_id": "sales", "credit_amount": "1000"}
	]
}`

type failingStore struct {
	*memory.MemoryLedgerStore
	err error
}

func (f failingStore) CreateVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	return models.Voucher{}, f.err
}

func newServer(t *testing.T, store interfaces.LedgerStore) *httptest.Server {
	t.Helper()
	l := ledger.NewLedger(store, catalogtest.Farm(t), nil, ledger.Options{MaxAttempts: 2})
	srv := httptest.NewServer(NewRouter(l, reports.NewGenerator(l, nil, reports.Options{}), nil))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestPostAndGetVoucher(t *testing.T) {
	srv := newServer(t, memory.NewMemoryLedgerStore())

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", receiptBody,
		map[string]string{"Idempotency-Key": "till-1", "X-User-ID": "clerk"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "0001", body["voucher_number"])
	assert.Equal(t, false, body["replayed"])
	id := body["voucher_id"].(string)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", receiptBody,
		map[string]string{"Idempotency-Key": "till-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, id, body["voucher_id"])
	assert.Equal(t, true, body["replayed"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/vouchers/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Receipt", body["voucher_type_name"])
	assert.Equal(t, "clerk", body["created_by"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "Cash", entries[0].(map[string]any)["ledger_name"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/vouchers/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}

func TestPostVoucherValidationErrors(t *testing.T) {
	srv := newServer(t, memory.NewMemoryLedgerStore())

	unbalanced := strings.Replace(receiptBody, `"credit_amount": "1000"`, `"credit_amount": "950"`, 1)
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", unbalanced, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "UnbalancedVoucher", body["reason"])
	assert.Equal(t, "50", body["difference"])
	assert.Nil(t, body["entry_index"])

	ambiguous := strings.Replace(receiptBody, `{"ledger_id": "cash", "debit_amount": "1000"}`,
		`{"ledger_id": "cash", "debit_amount": "1000", "credit_amount": "1000"}`, 1)
	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", ambiguous, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "AmbiguousEntrySide", body["reason"])
	assert.Equal(t, float64(0), body["entry_index"])

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", `{"entries": [`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestValidateEndpoint(t *testing.T) {
	srv := newServer(t, memory.NewMemoryLedgerStore())

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/vouchers/validate", receiptBody, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "1000", body["total_debit"])

	// validation never posts
	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/reports/day-book?from_date=2025-04-01&to_date=2025-04-30", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["entries"])
}

func TestPostVoucherStoreFailures(t *testing.T) {
	conflicted := newServer(t, failingStore{MemoryLedgerStore: memory.NewMemoryLedgerStore(), err: interfaces.ErrConflict})
	resp, body := do(t, http.MethodPost, conflicted.URL+"/api/v1/vouchers", receiptBody, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "concurrency_conflict", body["error"])
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	broken := newServer(t, failingStore{MemoryLedgerStore: memory.NewMemoryLedgerStore(), err: assert.AnError})
	resp, body = do(t, http.MethodPost, broken.URL+"/api/v1/vouchers", receiptBody, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "persistence_failure", body["error"])
}

func TestBalanceEndpoint(t *testing.T) {
	srv := newServer(t, memory.NewMemoryLedgerStore())
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", receiptBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/ledgers/cash/balance?as_on_date=2025-04-10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	closing := body["closing"].(map[string]any)
	assert.Equal(t, "6000", closing["amount"])
	assert.Equal(t, "Dr", closing["side"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/ledgers/goats/balance", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/ledgers/cash/balance?as_on_date=10-04-2025", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/ledgers/cash/balance?from_date=2025-05-01&as_on_date=2025-04-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportEndpoints(t *testing.T) {
	srv := newServer(t, memory.NewMemoryLedgerStore())
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/vouchers", receiptBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet,
		srv.URL+"/api/v1/reports/trial-balance?as_on_date=2025-04-10&financial_year=2025-26", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["balanced"])
	assert.Empty(t, resp.Header.Get("X-Integrity-Alert"))
	totals := body["totals"].(map[string]any)
	assert.Equal(t, "1000", totals["total_debit"])

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/reports/trial-balance?as_on_date=2025-04-10&financial_year=1999-00", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/reports/trial-balance?financial_year=2025-26", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet,
		srv.URL+"/api/v1/reports/day-book?from_date=2025-04-01&to_date=2025-04-30&voucher_type_code=RCT", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1000", body["total"])
	assert.Len(t, body["entries"], 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/reports/day-book?from_date=2025-04-30&to_date=2025-04-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, memory.NewMemoryLedgerStore())

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
