/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON shapes exchanged with the frontend. Domain types
  (ledger.Snapshot, ledger.Transaction, ...) carry their own JSON tags
  and are returned directly; the structs here cover inbound requests
  and the few responses that do not map 1:1 to a domain type.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers without a domain counterpart

CONVENTIONS:
  - Field names are camelCase to match the frontend's document shape.
  - Update requests use pointer fields: nil means "leave unchanged".
  - Amounts decode through decimal.Decimal, which accepts both JSON
    numbers and numeric strings.
  - Dates are accepted as RFC3339 or as a bare "YYYY-MM-DD" day.

VALIDATION:
  Validation is done in handlers and the ledger manager, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain entities with their JSON tags
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/plutus/ledger-engine/ai"
	"github.com/plutus/ledger-engine/ledger"
)

// =============================================================================
// TRANSACTIONS
// =============================================================================

type CreateTransactionRequest struct {
	Amount          decimal.Decimal        `json:"amount"`
	Type            ledger.TransactionType `json:"type"`
	CategoryID      ledger.CategoryID      `json:"categoryId"`
	BankAccountID   ledger.AccountID       `json:"bankAccountId"`
	ToBankAccountID ledger.AccountID       `json:"toBankAccountId,omitempty"`
	Date            string                 `json:"date,omitempty"`
	Note            string                 `json:"note,omitempty"`
}

type UpdateTransactionRequest struct {
	Amount          *decimal.Decimal        `json:"amount,omitempty"`
	Type            *ledger.TransactionType `json:"type,omitempty"`
	CategoryID      *ledger.CategoryID      `json:"categoryId,omitempty"`
	BankAccountID   *ledger.AccountID       `json:"bankAccountId,omitempty"`
	ToBankAccountID *ledger.AccountID       `json:"toBankAccountId,omitempty"`
	Date            *string                 `json:"date,omitempty"`
	Note            *string                 `json:"note,omitempty"`
}

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

type CreateAccountRequest struct {
	Name           string             `json:"name"`
	Type           ledger.AccountType `json:"type,omitempty"`
	OpeningBalance decimal.Decimal    `json:"balance"`
	LastFourDigits string             `json:"lastFourDigits,omitempty"`
	PIN            string             `json:"pin,omitempty"`
}

type UpdateAccountRequest struct {
	Name           *string             `json:"name,omitempty"`
	Type           *ledger.AccountType `json:"type,omitempty"`
	LastFourDigits *string             `json:"lastFourDigits,omitempty"`
	PIN            *string             `json:"pin,omitempty"`
}

type VerifyPINRequest struct {
	PIN string `json:"pin"`
}

type VerifyPINResponse struct {
	Valid bool `json:"valid"`
}

// =============================================================================
// GOALS
// =============================================================================

type CreateGoalRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	Deadline     string          `json:"deadline,omitempty"`
	Icon         string          `json:"icon,omitempty"`
	Color        string          `json:"color,omitempty"`
}

type UpdateGoalRequest struct {
	Name         *string          `json:"name,omitempty"`
	TargetAmount *decimal.Decimal `json:"targetAmount,omitempty"`
	Deadline     *string          `json:"deadline,omitempty"`
	Icon         *string          `json:"icon,omitempty"`
	Color        *string          `json:"color,omitempty"`
}

type GoalProgressRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// =============================================================================
// INVESTMENTS
// =============================================================================

type CreateInvestmentRequest struct {
	Name              string                `json:"name"`
	Type              ledger.InvestmentType `json:"type,omitempty"`
	InvestedAmount    decimal.Decimal       `json:"investedAmount"`
	CurrentValue      decimal.Decimal       `json:"currentValue,omitempty"`
	DeductFromAccount bool                  `json:"deductFromAccount,omitempty"`
	BankAccountID     ledger.AccountID      `json:"bankAccountId,omitempty"`
	CategoryID        ledger.CategoryID     `json:"categoryId,omitempty"`
}

type UpdateInvestmentRequest struct {
	Name           *string                `json:"name,omitempty"`
	Type           *ledger.InvestmentType `json:"type,omitempty"`
	InvestedAmount *decimal.Decimal       `json:"investedAmount,omitempty"`
	CurrentValue   *decimal.Decimal       `json:"currentValue,omitempty"`
}

// =============================================================================
// AUTO-PAYS
// =============================================================================

// AutoPayRequest serves both create and update: an update replaces the
// schedule wholesale and the next run is recomputed.
type AutoPayRequest struct {
	Name          string            `json:"name"`
	Amount        decimal.Decimal   `json:"amount"`
	BankAccountID ledger.AccountID  `json:"bankAccountId"`
	CategoryID    ledger.CategoryID `json:"categoryId,omitempty"`
	Frequency     ledger.Frequency  `json:"frequency"`
	DayOfWeek     int               `json:"dayOfWeek,omitempty"`
	DayOfMonth    int               `json:"dayOfMonth,omitempty"`
	Month         int               `json:"month,omitempty"`
	TimeOfDay     string            `json:"timeOfDay,omitempty"`
}

// =============================================================================
// SETTINGS AND CATEGORIES
// =============================================================================

type UpdateSettingsRequest struct {
	MonthlyBudget       *decimal.Decimal           `json:"monthlyBudget,omitempty"`
	Budgets             map[string]decimal.Decimal `json:"budgets,omitempty"`
	Currency            *string                    `json:"currency,omitempty"`
	CurrencySymbol      *string                    `json:"currencySymbol,omitempty"`
	Theme               *string                    `json:"theme,omitempty"`
	OnboardingCompleted *bool                      `json:"onboardingCompleted,omitempty"`
	UserName            *string                    `json:"userName,omitempty"`
	Timezone            *string                    `json:"timezone,omitempty"`
}

type CreateCategoryRequest struct {
	Name string                 `json:"name"`
	Type ledger.TransactionType `json:"type"`
	Icon string                 `json:"icon,omitempty"`
}

// =============================================================================
// SYNC AND AI
// =============================================================================

type PendingSyncResponse struct {
	Pending []ledger.PendingEntity `json:"pending"`
}

type ParseRequest struct {
	Text string `json:"text"`
}

// ParseResponse carries the proposals, or a human-readable message when
// nothing could be parsed (including AI backend failures).
type ParseResponse struct {
	Transactions []ai.Proposal `json:"transactions"`
	Message      string        `json:"message,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
