package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutus/ledger-engine/api"
	"github.com/plutus/ledger-engine/ledger"
	"github.com/plutus/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (http.Handler, *ledger.Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	m := ledger.NewManager(mem, "u1")
	require.NoError(t, m.Load(context.Background()))

	h := api.NewHandler(m, nil) // no AI client: endpoints degrade
	return api.NewRouter(h), m, mem
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// =============================================================================
// STATE ENDPOINTS
// =============================================================================

func TestAPI_Health(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeInto(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_GetLedger_ReturnsSnapshot(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap ledger.Snapshot
	decodeInto(t, rec, &snap)
	assert.Equal(t, "USD", snap.Settings.Currency)
	assert.NotEmpty(t, snap.Categories)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestAPI_CreateTransaction_AffectsBalance(t *testing.T) {
	router, m, _ := newTestServer(t)
	acc, err := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"amount": 200, "type": "expense", "categoryId": "cat-food",
		"bankAccountId": string(acc.ID), "note": "lunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tx ledger.Transaction
	decodeInto(t, rec, &tx)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, int64(1), tx.Version)

	got := m.Snapshot().Account(acc.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(800)))
}

func TestAPI_CreateTransaction_InvalidAmount400(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/transactions", map[string]any{
		"amount": 0, "type": "expense", "categoryId": "cat-food",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error string `json:"error"`
	}
	decodeInto(t, rec, &resp)
	assert.NotEmpty(t, resp.Error)
}

func TestAPI_UpdateTransaction_PartialPatch(t *testing.T) {
	router, m, _ := newTestServer(t)
	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: decimal.NewFromInt(1000)})
	tx, err := m.AddTransaction(ledger.TransactionInput{
		Amount: decimal.NewFromInt(100), Type: ledger.TxExpense,
		CategoryID: "cat-food", BankAccountID: acc.ID,
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPut, "/api/transactions/"+string(tx.ID), map[string]any{
		"amount": 150,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated ledger.Transaction
	decodeInto(t, rec, &updated)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, ledger.TxExpense, updated.Type, "unpatched fields survive")

	got := m.Snapshot().Account(acc.ID)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(850)))
}

func TestAPI_UpdateMissingTransaction404(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/transactions/nope", map[string]any{"amount": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DeleteTransaction(t *testing.T) {
	router, m, _ := newTestServer(t)
	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: decimal.NewFromInt(500)})
	tx, _ := m.AddTransaction(ledger.TransactionInput{
		Amount: decimal.NewFromInt(50), Type: ledger.TxExpense,
		CategoryID: "cat-food", BankAccountID: acc.ID,
	})

	rec := doJSON(t, router, http.MethodDelete, "/api/transactions/"+string(tx.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, m.Snapshot().Transactions)
}

func TestAPI_ListTransactions_FilterAndSort(t *testing.T) {
	router, m, _ := newTestServer(t)
	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: decimal.NewFromInt(1000)})
	_, err := m.AddTransaction(ledger.TransactionInput{
		Amount: decimal.NewFromInt(10), Type: ledger.TxExpense, CategoryID: "cat-food", BankAccountID: acc.ID,
	})
	require.NoError(t, err)
	_, err = m.AddTransaction(ledger.TransactionInput{
		Amount: decimal.NewFromInt(99), Type: ledger.TxExpense, CategoryID: "cat-bills", BankAccountID: acc.ID,
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/transactions?categoryId=cat-bills", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []ledger.Transaction
	decodeInto(t, rec, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.CategoryID("cat-bills"), txs[0].CategoryID)

	rec = doJSON(t, router, http.MethodGet, "/api/transactions?sort=amount&order=asc", nil)
	decodeInto(t, rec, &txs)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Amount.LessThan(txs[1].Amount))
}

func TestAPI_UpdateTransaction_RejectsInvalidMerge(t *testing.T) {
	// GIVEN: A valid expense
	// WHEN: Patching the amount to a negative value
	// THEN: 400; the stored amount and the balance are untouched

	router, m, _ := newTestServer(t)
	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: decimal.NewFromInt(1000)})
	tx, err := m.AddTransaction(ledger.TransactionInput{
		Amount: decimal.NewFromInt(100), Type: ledger.TxExpense,
		CategoryID: "cat-food", BankAccountID: acc.ID,
	})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPut, "/api/transactions/"+string(tx.ID), map[string]any{
		"amount": -100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	snap := m.Snapshot()
	assert.True(t, snap.Transactions[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, snap.Account(acc.ID).Balance.Equal(decimal.NewFromInt(900)))
}

func TestAPI_ListTransactions_DateRangeIncludesLastDay(t *testing.T) {
	// GIVEN: Transactions through March, one in the afternoon of the 31st
	// WHEN: Listing with from=2026-03-01&to=2026-03-31
	// THEN: The whole last day is inside the range; April is not

	router, m, _ := newTestServer(t)
	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: decimal.NewFromInt(1000)})

	add := func(day int, month time.Month, hour int) {
		_, err := m.AddTransaction(ledger.TransactionInput{
			Amount: decimal.NewFromInt(10), Type: ledger.TxExpense,
			CategoryID: "cat-food", BankAccountID: acc.ID,
			Date: time.Date(2026, month, day, hour, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	add(5, time.March, 10)
	add(31, time.March, 15)
	add(1, time.April, 9)

	rec := doJSON(t, router, http.MethodGet, "/api/transactions?from=2026-03-01&to=2026-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []ledger.Transaction
	decodeInto(t, rec, &txs)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, time.March, tx.Date.Month())
	}
}

// =============================================================================
// ACCOUNTS, GOALS, SETTINGS
// =============================================================================

func TestAPI_AccountLifecycleAndPIN(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Vault", "type": "savings", "balance": 5000, "pin": "1234",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var acc ledger.BankAccount
	decodeInto(t, rec, &acc)

	rec = doJSON(t, router, http.MethodPost, "/api/accounts/"+string(acc.ID)+"/verify-pin",
		map[string]any{"pin": "1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		Valid bool `json:"valid"`
	}
	decodeInto(t, rec, &verify)
	assert.True(t, verify.Valid)

	rec = doJSON(t, router, http.MethodPost, "/api/accounts/"+string(acc.ID)+"/verify-pin",
		map[string]any{"pin": "9999"})
	decodeInto(t, rec, &verify)
	assert.False(t, verify.Valid)

	rec = doJSON(t, router, http.MethodDelete, "/api/accounts/"+string(acc.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_GoalProgress_Clamped(t *testing.T) {
	router, m, _ := newTestServer(t)
	g, err := m.AddGoal(ledger.GoalInput{Name: "Trip", TargetAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/api/goals/"+string(g.ID)+"/progress",
		map[string]any{"amount": 1500})
	require.Equal(t, http.StatusOK, rec.Code)

	var goal ledger.Goal
	decodeInto(t, rec, &goal)
	assert.True(t, goal.CurrentAmount.Equal(decimal.NewFromInt(1000)))
}

func TestAPI_UpdateSettings_BudgetOverrideAndMetrics(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/settings", map[string]any{
		"monthlyBudget": 1000,
		"budgets":       map[string]any{"2026-03": 600},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var settings ledger.Settings
	decodeInto(t, rec, &settings)
	assert.True(t, settings.MonthlyBudget.Equal(decimal.NewFromInt(1000)))
	assert.True(t, settings.Budgets["2026-03"].Equal(decimal.NewFromInt(600)))

	rec = doJSON(t, router, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var metrics ledger.Metrics
	decodeInto(t, rec, &metrics)
	assert.NotEmpty(t, metrics.MonthKey)
}

// =============================================================================
// SYNC AND AI
// =============================================================================

func TestAPI_PendingSync_ExposesQueuedWrites(t *testing.T) {
	router, m, mem := newTestServer(t)
	m.Flush(context.Background())

	mem.SetFailWrites(errors.New("offline"))
	_, err := m.AddGoal(ledger.GoalInput{Name: "Trip", TargetAmount: decimal.NewFromInt(100)})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/sync/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Pending []ledger.PendingEntity `json:"pending"`
	}
	decodeInto(t, rec, &resp)
	require.NotEmpty(t, resp.Pending)
	assert.Equal(t, ledger.SectionGoals, resp.Pending[0].Section)
}

func TestAPI_AIParse_WithoutClient_Degrades(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/ai/parse", map[string]any{"text": "spent 200"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Transactions []any  `json:"transactions"`
		Message      string `json:"message"`
	}
	decodeInto(t, rec, &resp)
	assert.Empty(t, resp.Transactions)
	assert.NotEmpty(t, resp.Message)
}

func TestAPI_AIParse_EmptyText400(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/ai/parse", map[string]any{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SeedDemo_PopulatesLedger(t *testing.T) {
	router, m, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := m.Snapshot()
	assert.Len(t, snap.BankAccounts, 2)
	assert.NotEmpty(t, snap.Transactions)
	assert.NotEmpty(t, snap.Goals)
	assert.NotEmpty(t, snap.AutoPays)
}
