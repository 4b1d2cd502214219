package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stableflow/internal/ledger"
	"github.com/example/stableflow/internal/security"
	"github.com/example/stableflow/pkg/audit"
)

func newTestServer(t *testing.T) (*httptest.Server, *audit.ChainLogger) {
	t.Helper()
	store, err := ledger.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	auditor := audit.NewChainLogger()
	router := NewRouter(Dependencies{
		Ledger:  ledger.NewService(store, nil, nil),
		Auditor: auditor,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, auditor
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
		}
	}
	return resp, decoded
}

func createAccount(t *testing.T, server *httptest.Server, id, accountType, currency string) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/accounts", map[string]string{
		"id":       id,
		"name":     id,
		"type":     accountType,
		"currency": currency,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func errorType(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return envelope["type"].(string)
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAccountLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/accounts", map[string]string{
		"id":       "merchant:m1:available:USD",
		"name":     "Merchant m1 Available (USD)",
		"type":     "liability",
		"currency": "USD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ledger_account", body["object"])
	assert.Equal(t, "merchant:m1:available:USD", body["id"])
	assert.NotEmpty(t, resp.Header.Get(security.CorrelationIDHeader))

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/ledger/accounts/merchant:m1:available:USD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "liability", body["type"])

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/ledger/accounts/lac_missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorType(t, body))

	// Duplicate id conflicts.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/accounts", map[string]string{
		"id":       "merchant:m1:available:USD",
		"name":     "dup",
		"type":     "liability",
		"currency": "USD",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errorType(t, body))

	// Bad account type is a validation error.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/accounts", map[string]string{
		"id":       "x",
		"name":     "x",
		"type":     "savings",
		"currency": "USD",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorType(t, body))
}

func TestPostTransactionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	createAccount(t, server, "platform:cash:USD", "asset", "USD")
	createAccount(t, server, "merchant:m1:available:USD", "liability", "USD")

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/transactions", map[string]any{
		"description":    "fund merchant",
		"reference_type": "payment",
		"reference_id":   "pay_1",
		"entries": []map[string]string{
			{"account_id": "platform:cash:USD", "direction": "DEBIT", "amount": "10000", "currency": "USD"},
			{"account_id": "merchant:m1:available:USD", "direction": "CREDIT", "amount": "10000", "currency": "USD"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ledger_transaction", body["object"])
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "10000", first["amount"], "amounts travel as strings")

	resp, body = doJSON(t, http.MethodGet,
		server.URL+"/api/v1/ledger/transactions?reference_type=payment&reference_id=pay_1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 1)

	resp, body = doJSON(t, http.MethodGet,
		server.URL+"/api/v1/ledger/accounts/merchant:m1:available:USD/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10000", body["amount"])
	assert.Equal(t, "$100.00", body["formatted_amount"])
}

func TestPostTransactionErrors(t *testing.T) {
	server, _ := newTestServer(t)
	createAccount(t, server, "a", "asset", "USD")
	createAccount(t, server, "b", "liability", "USD")

	// Imbalance is an internal error: the caller's business logic is wrong.
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/transactions", map[string]any{
		"description": "off by one",
		"entries": []map[string]string{
			{"account_id": "a", "direction": "DEBIT", "amount": "100", "currency": "USD"},
			{"account_id": "b", "direction": "CREDIT", "amount": "99", "currency": "USD"},
		},
	})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL_ERROR", errorType(t, body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "100", details["debits"])
	assert.Equal(t, "99", details["credits"])

	// Single-entry proposals are rejected up front.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/transactions", map[string]any{
		"description": "half a posting",
		"entries": []map[string]string{
			{"account_id": "a", "direction": "DEBIT", "amount": "100", "currency": "USD"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorType(t, body))

	// Non-integer amounts never reach the ledger.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/transactions", map[string]any{
		"description": "fractional",
		"entries": []map[string]string{
			{"account_id": "a", "direction": "DEBIT", "amount": "10.5", "currency": "USD"},
			{"account_id": "b", "direction": "CREDIT", "amount": "10.5", "currency": "USD"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorType(t, body))

	// Malformed JSON.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/ledger/transactions",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestGodCheckEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	createAccount(t, server, "a", "asset", "USD")
	createAccount(t, server, "b", "liability", "USD")

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/ledger/god-check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["balanced"])

	doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/transactions", map[string]any{
		"description": "posting",
		"entries": []map[string]string{
			{"account_id": "a", "direction": "DEBIT", "amount": "5000", "currency": "USD"},
			{"account_id": "b", "direction": "CREDIT", "amount": "5000", "currency": "USD"},
		},
	})

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/v1/ledger/god-check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["balanced"])
	currencies := body["currencies"].(map[string]any)
	usd := currencies["USD"].(map[string]any)
	assert.Equal(t, "5000", usd["total_debits"])
	assert.Equal(t, "5000", usd["total_credits"])
}

func TestListAccountsIncludesBalances(t *testing.T) {
	server, _ := newTestServer(t)
	createAccount(t, server, "a", "asset", "USD")
	createAccount(t, server, "b", "liability", "USD")

	doJSON(t, http.MethodPost, server.URL+"/api/v1/ledger/transactions", map[string]any{
		"description": "posting",
		"entries": []map[string]string{
			{"account_id": "a", "direction": "DEBIT", "amount": "250", "currency": "USD"},
			{"account_id": "b", "direction": "CREDIT", "amount": "250", "currency": "USD"},
		},
	})

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/ledger/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	for _, item := range data {
		account := item.(map[string]any)
		assert.Equal(t, "250", account["balance"])
		assert.Equal(t, "$2.50", account["formatted_balance"])
	}
}

func TestWritesAreAudited(t *testing.T) {
	server, auditor := newTestServer(t)
	createAccount(t, server, "a", "asset", "USD")

	resp, err := http.Get(server.URL + "/api/v1/ledger/accounts/a")
	require.NoError(t, err)
	resp.Body.Close()

	records := auditor.Records()
	require.Len(t, records, 1, "only the write is audited")
	assert.Contains(t, records[0].Payload, "method=POST")
	assert.Contains(t, records[0].Payload, "path=/api/v1/ledger/accounts")
	assert.True(t, audit.Verify(records))
}

func TestUnknownRouteEnvelope(t *testing.T) {
	server, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/v1/ledger/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorType(t, body))
}
