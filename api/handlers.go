/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the ledger state manager via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  State:
    GET    /api/ledger                 Full snapshot
    GET    /api/metrics                Derived dashboard metrics
    GET    /api/sync/pending           Writes awaiting the remote store

  Transactions:
    GET    /api/transactions           List (filter + sort via query params)
    POST   /api/transactions           Create
    PUT    /api/transactions/{id}      Partial update (revert + reapply)
    DELETE /api/transactions/{id}      Delete (reverts balance effect)

  Accounts / Goals / Investments / AutoPays / Categories:
    Standard CRUD, plus POST /api/accounts/{id}/verify-pin and
    POST /api/goals/{id}/progress.

  Settings:
    PUT    /api/settings               Shallow-merge patch

  AI:
    POST   /api/ai/parse               Free text -> transaction proposals
    POST   /api/ai/chat                Q&A over the ledger

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Manager: The ledger state manager (optimistic writes + sync queue)
  - AI:      LLM client, nil when no API key is configured

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (manager operations)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Entity not found
  - 500: Internal errors
  AI backend failures are NOT errors at this layer: the parse and chat
  endpoints degrade to a user-visible message instead.

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/plutus/ledger-engine/ai"
	"github.com/plutus/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Manager *ledger.Manager

	// AI is nil when no API key is configured; the AI endpoints then
	// respond with a fallback message instead of failing.
	AI *ai.Client
}

// NewHandler creates a new handler around the given manager.
func NewHandler(m *ledger.Manager, aiClient *ai.Client) *Handler {
	return &Handler{Manager: m, AI: aiClient}
}

// Health reports liveness and whether any writes are still queued.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"pendingSync": len(h.Manager.PendingSync()),
	})
}

// =============================================================================
// STATE
// =============================================================================

// GetLedger returns the full current snapshot.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Snapshot())
}

// GetMetrics returns the derived dashboard metrics.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Metrics())
}

// PendingSync returns the writes still waiting on the remote store.
func (h *Handler) PendingSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PendingSyncResponse{Pending: h.Manager.PendingSync()})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// ListTransactions supports filtering and sorting via query parameters:
// type, categoryId, accountId, from, to, q, sort (date|amount|createdAt),
// order (asc|desc).
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := ledger.TransactionFilter{Query: q.Get("q")}
	if v := q.Get("type"); v != "" {
		typ := ledger.TransactionType(v)
		f.Type = &typ
	}
	if v := q.Get("categoryId"); v != "" {
		cat := ledger.CategoryID(v)
		f.CategoryID = &cat
	}
	if v := q.Get("accountId"); v != "" {
		acc := ledger.AccountID(v)
		f.AccountID = &acc
	}
	loc := h.Manager.Location()
	if v := q.Get("from"); v != "" {
		t, err := parseDate(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' date", err)
			return
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDateEnd(v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' date", err)
			return
		}
		f.To = &t
	}

	key := ledger.SortKey(q.Get("sort"))
	if key == "" {
		key = ledger.SortByDate
	}
	order := ledger.SortOrder(q.Get("order"))
	if order == "" {
		order = ledger.SortDesc
	}

	writeJSON(w, http.StatusOK, h.Manager.ListTransactions(f, key, order))
}

// CreateTransaction records a transaction and applies its balance effect.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.TransactionInput{
		Amount:          req.Amount,
		Type:            req.Type,
		CategoryID:      req.CategoryID,
		BankAccountID:   req.BankAccountID,
		ToBankAccountID: req.ToBankAccountID,
		Note:            req.Note,
	}
	if req.Date != "" {
		t, err := parseDate(req.Date, h.Manager.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		in.Date = t
	}

	tx, err := h.Manager.AddTransaction(in)
	if err != nil {
		writeDomainError(w, "Failed to create transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction applies a partial update. The old balance effect is
// reverted and the merged transaction's effect applied in its place.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.TransactionPatch{
		Amount:          req.Amount,
		Type:            req.Type,
		CategoryID:      req.CategoryID,
		BankAccountID:   req.BankAccountID,
		ToBankAccountID: req.ToBankAccountID,
		Note:            req.Note,
	}
	if req.Date != nil {
		t, err := parseDate(*req.Date, h.Manager.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		patch.Date = &t
	}

	tx, err := h.Manager.UpdateTransaction(id, patch)
	if err != nil {
		writeDomainError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction removes a transaction and reverts its balance effect.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))
	if err := h.Manager.DeleteTransaction(id); err != nil {
		writeDomainError(w, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Snapshot().BankAccounts)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acc, err := h.Manager.AddBankAccount(ledger.AccountInput{
		Name:           req.Name,
		Type:           req.Type,
		OpeningBalance: req.OpeningBalance,
		LastFourDigits: req.LastFourDigits,
		PIN:            req.PIN,
	})
	if err != nil {
		writeDomainError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acc, err := h.Manager.UpdateBankAccount(id, ledger.AccountPatch{
		Name:           req.Name,
		Type:           req.Type,
		LastFourDigits: req.LastFourDigits,
		PIN:            req.PIN,
	})
	if err != nil {
		writeDomainError(w, "Failed to update account", err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	if err := h.Manager.DeleteBankAccount(id); err != nil {
		writeDomainError(w, "Failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VerifyAccountPIN checks a PIN candidate against the account.
// Always 200 with a boolean: a wrong PIN is not an HTTP error.
func (h *Handler) VerifyAccountPIN(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	var req VerifyPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ok, err := h.Manager.VerifyAccountPIN(id, req.PIN)
	if err != nil {
		writeDomainError(w, "Failed to verify PIN", err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyPINResponse{Valid: ok})
}

// =============================================================================
// GOALS
// =============================================================================

func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Snapshot().Goals)
}

func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := ledger.GoalInput{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		Icon:         req.Icon,
		Color:        req.Color,
	}
	if req.Deadline != "" {
		t, err := parseDate(req.Deadline, h.Manager.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid deadline", err)
			return
		}
		in.Deadline = t
	}

	goal, err := h.Manager.AddGoal(in)
	if err != nil {
		writeDomainError(w, "Failed to create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := ledger.GoalID(chi.URLParam(r, "id"))

	var req UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := ledger.GoalPatch{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		Icon:         req.Icon,
		Color:        req.Color,
	}
	if req.Deadline != nil {
		t, err := parseDate(*req.Deadline, h.Manager.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid deadline", err)
			return
		}
		patch.Deadline = &t
	}

	goal, err := h.Manager.UpdateGoal(id, patch)
	if err != nil {
		writeDomainError(w, "Failed to update goal", err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := ledger.GoalID(chi.URLParam(r, "id"))
	if err := h.Manager.DeleteGoal(id); err != nil {
		writeDomainError(w, "Failed to delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddGoalProgress adds to the saved amount, clamped at the target.
func (h *Handler) AddGoalProgress(w http.ResponseWriter, r *http.Request) {
	id := ledger.GoalID(chi.URLParam(r, "id"))

	var req GoalProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	goal, err := h.Manager.AddGoalProgress(id, req.Amount)
	if err != nil {
		writeDomainError(w, "Failed to add goal progress", err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// =============================================================================
// INVESTMENTS
// =============================================================================

func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Snapshot().Investments)
}

func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req CreateInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := h.Manager.AddInvestment(ledger.InvestmentInput{
		Name:              req.Name,
		Type:              req.Type,
		InvestedAmount:    req.InvestedAmount,
		CurrentValue:      req.CurrentValue,
		DeductFromAccount: req.DeductFromAccount,
		BankAccountID:     req.BankAccountID,
		CategoryID:        req.CategoryID,
	})
	if err != nil {
		writeDomainError(w, "Failed to create investment", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) UpdateInvestment(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvestmentID(chi.URLParam(r, "id"))

	var req UpdateInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := h.Manager.UpdateInvestment(id, ledger.InvestmentPatch{
		Name:           req.Name,
		Type:           req.Type,
		InvestedAmount: req.InvestedAmount,
		CurrentValue:   req.CurrentValue,
	})
	if err != nil {
		writeDomainError(w, "Failed to update investment", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) DeleteInvestment(w http.ResponseWriter, r *http.Request) {
	id := ledger.InvestmentID(chi.URLParam(r, "id"))
	if err := h.Manager.DeleteInvestment(id); err != nil {
		writeDomainError(w, "Failed to delete investment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AUTO-PAYS
// =============================================================================

func (h *Handler) ListAutoPays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Snapshot().AutoPays)
}

func (h *Handler) CreateAutoPay(w http.ResponseWriter, r *http.Request) {
	var req AutoPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ap, err := h.Manager.AddAutoPay(autoPayInput(req))
	if err != nil {
		writeDomainError(w, "Failed to create auto-pay", err)
		return
	}
	writeJSON(w, http.StatusCreated, ap)
}

func (h *Handler) UpdateAutoPay(w http.ResponseWriter, r *http.Request) {
	id := ledger.AutoPayID(chi.URLParam(r, "id"))

	var req AutoPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ap, err := h.Manager.UpdateAutoPay(id, autoPayInput(req))
	if err != nil {
		writeDomainError(w, "Failed to update auto-pay", err)
		return
	}
	writeJSON(w, http.StatusOK, ap)
}

func (h *Handler) DeleteAutoPay(w http.ResponseWriter, r *http.Request) {
	id := ledger.AutoPayID(chi.URLParam(r, "id"))
	if err := h.Manager.DeleteAutoPay(id); err != nil {
		writeDomainError(w, "Failed to delete auto-pay", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func autoPayInput(req AutoPayRequest) ledger.AutoPayInput {
	return ledger.AutoPayInput{
		Name:          req.Name,
		Amount:        req.Amount,
		BankAccountID: req.BankAccountID,
		CategoryID:    req.CategoryID,
		Frequency:     req.Frequency,
		DayOfWeek:     time.Weekday(req.DayOfWeek),
		DayOfMonth:    req.DayOfMonth,
		Month:         time.Month(req.Month),
		TimeOfDay:     req.TimeOfDay,
	}
}

// =============================================================================
// SETTINGS AND CATEGORIES
// =============================================================================

// UpdateSettings shallow-merges the patch; the month-keyed budgets map
// merges key-wise.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings, err := h.Manager.UpdateSettings(ledger.SettingsPatch{
		MonthlyBudget:       req.MonthlyBudget,
		Budgets:             req.Budgets,
		Currency:            req.Currency,
		CurrencySymbol:      req.CurrencySymbol,
		Theme:               req.Theme,
		OnboardingCompleted: req.OnboardingCompleted,
		UserName:            req.UserName,
		Timezone:            req.Timezone,
	})
	if err != nil {
		writeDomainError(w, "Failed to update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cat, err := h.Manager.AddCategory(req.Name, req.Type, req.Icon)
	if err != nil {
		writeDomainError(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := ledger.CategoryID(chi.URLParam(r, "id"))
	if err := h.Manager.DeleteCategory(id); err != nil {
		writeDomainError(w, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AI ENDPOINTS
// =============================================================================

const aiUnavailableMsg = "I couldn't process that right now. Please add the transaction manually."

// ParseTransactions turns free text into transaction proposals. The
// proposals are NOT applied; the client confirms them individually.
func (h *Handler) ParseTransactions(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Text is required", nil)
		return
	}
	if h.AI == nil {
		writeJSON(w, http.StatusOK, ParseResponse{Message: aiUnavailableMsg})
		return
	}

	snap := h.Manager.Snapshot()
	proposals, err := h.AI.ParseTransactions(r.Context(), req.Text, snap.Categories, snap.BankAccounts)
	if err != nil {
		writeJSON(w, http.StatusOK, ParseResponse{Message: aiUnavailableMsg})
		return
	}
	if len(proposals) == 0 {
		writeJSON(w, http.StatusOK, ParseResponse{
			Message: "I couldn't find any transactions in that. Try something like 'spent 200 on groceries'.",
		})
		return
	}
	writeJSON(w, http.StatusOK, ParseResponse{Transactions: proposals})
}

// Chat answers a question over the current ledger state.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required", nil)
		return
	}
	if h.AI == nil {
		writeJSON(w, http.StatusOK, ai.ChatReply{Text: aiUnavailableMsg})
		return
	}

	snap := h.Manager.Snapshot()
	metrics := h.Manager.Metrics()
	reply, err := h.AI.Chat(r.Context(), req.Message, ai.ChatContext{
		Symbol:          snap.Settings.CurrencySymbol,
		TotalBalance:    metrics.TotalBalance,
		AllTransactions: snap.Transactions,
		MonthlySpend:    metrics.MonthSpend,
		Budget:          metrics.Budget,
		Remaining:       metrics.BudgetRemaining,
		Accounts:        snap.BankAccounts,
		Categories:      snap.Categories,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, ai.ChatReply{Text: aiUnavailableMsg})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// =============================================================================
// DEMO DATA
// =============================================================================

// SeedDemo loads a demo ledger for development and screenshots.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := SeedDemo(h.Manager); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Manager.Snapshot())
}

// =============================================================================
// HELPERS
// =============================================================================

// parseDate accepts RFC3339 or a bare day. Bare days are anchored in the
// user's timezone so month bucketing matches what they see.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, loc)
}

// parseDateEnd is parseDate for the upper bound of a range: a bare day
// anchors at the end of that day, so ?to=2026-03-31 includes the whole
// 31st instead of cutting off at midnight.
func parseDateEnd(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
