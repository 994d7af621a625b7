/*
Package ledger provides the core state model for a personal finance tracker.

PURPOSE:
  This package contains the in-memory snapshot of one user's ledger (bank
  accounts, transactions, investments, goals, auto-pays, settings) together
  with the pure reducer that applies actions to it, the derived-metrics
  projection, and the Manager that orchestrates optimistic local updates
  with asynchronous remote persistence.

KEY CONCEPTS IN THIS FILE (types.go):
  - Snapshot: the full in-memory state for one user
  - Transaction: a single income/expense/transfer event
  - BankAccount: an account whose balance is derived from transactions
  - Settings: user preferences including month-keyed budget overrides

DESIGN PRINCIPLES:
  1. Precision: amounts use decimal.Decimal, never float64
  2. Purity: the reducer never mutates its input snapshot
  3. Derived balances: an account balance always equals its opening balance
     plus the signed sum of all transactions referencing it
  4. Type safety: distinct ID types prevent mixing entity identifiers

SEE ALSO:
  - reducer.go: state transitions and balance side effects
  - metrics.go: derived aggregates computed from a snapshot
  - manager.go: optimistic update orchestration
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string
type CategoryID string
type InvestmentID string
type GoalID string
type AutoPayID string

// =============================================================================
// BANK ACCOUNT
// =============================================================================

type AccountType string

const (
	AccountSavings AccountType = "savings"
	AccountCurrent AccountType = "current"
)

// BankAccount holds money. Balance is mutated only by the reducer in
// response to transaction actions; nothing else writes it.
//
// PIN is a plaintext display-gating convenience, not a security boundary.
type BankAccount struct {
	ID             AccountID       `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	LastFourDigits string          `json:"lastFourDigits,omitempty"`
	PIN            string          `json:"pin,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionType string

const (
	TxExpense  TransactionType = "expense"
	TxIncome   TransactionType = "income"
	TxTransfer TransactionType = "transfer"
)

const StatusConfirmed = "confirmed"

// Transaction records a single movement of money. Amount is always
// positive; the sign of its balance effect comes from Type.
//
// Deleting a referenced account does not touch existing transactions;
// their balance effects simply stop resolving to an account.
type Transaction struct {
	ID              TransactionID   `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	CategoryID      CategoryID      `json:"categoryId"`
	BankAccountID   AccountID       `json:"bankAccountId,omitempty"`
	ToBankAccountID AccountID       `json:"toBankAccountId,omitempty"` // transfers only
	Date            time.Time       `json:"date"`
	Note            string          `json:"note,omitempty"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	Version         int64           `json:"version"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// =============================================================================
// INVESTMENT
// =============================================================================

type InvestmentType string

const (
	InvestStocks     InvestmentType = "stocks"
	InvestMutualFund InvestmentType = "mutual_fund"
	InvestSIP        InvestmentType = "sip"
	InvestCrypto     InvestmentType = "crypto"
	InvestGold       InvestmentType = "gold"
	InvestFD         InvestmentType = "fd"
	InvestRealEstate InvestmentType = "real_estate"
	InvestOther      InvestmentType = "other"
)

type Investment struct {
	ID             InvestmentID    `json:"id"`
	Name           string          `json:"name"`
	Type           InvestmentType  `json:"type"`
	InvestedAmount decimal.Decimal `json:"investedAmount"`
	CurrentValue   decimal.Decimal `json:"currentValue"`
	// Set when the investment was created with "deduct from account"
	// semantics; points at the linked expense transaction.
	LinkedTransactionID TransactionID `json:"linkedTransactionId,omitempty"`
	CreatedAt           time.Time     `json:"createdAt"`
	Version             int64         `json:"version"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

// =============================================================================
// GOAL
// =============================================================================

// Goal tracks savings toward a target. CurrentAmount only grows via
// quick-add actions and is clamped to TargetAmount.
type Goal struct {
	ID            GoalID          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      time.Time       `json:"deadline,omitempty"`
	Icon          string          `json:"icon,omitempty"`
	Color         string          `json:"color,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Version       int64           `json:"version"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// =============================================================================
// CATEGORY
// =============================================================================

type Category struct {
	ID   CategoryID      `json:"id"`
	Name string          `json:"name"`
	Type TransactionType `json:"type"` // expense or income
	Icon string          `json:"icon,omitempty"`
}

// =============================================================================
// AUTO-PAY
// =============================================================================

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// AutoPay is a recurring-payment template. NextRun is computed on
// create/update for display; there is no executor that triggers it.
type AutoPay struct {
	ID            AutoPayID       `json:"id"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID AccountID       `json:"bankAccountId"`
	CategoryID    CategoryID      `json:"categoryId"`
	Frequency     Frequency       `json:"frequency"`
	DayOfWeek     time.Weekday    `json:"dayOfWeek,omitempty"`  // weekly
	DayOfMonth    int             `json:"dayOfMonth,omitempty"` // monthly/yearly
	Month         time.Month      `json:"month,omitempty"`      // yearly
	TimeOfDay     string          `json:"timeOfDay,omitempty"`  // "HH:MM"
	NextRun       time.Time       `json:"nextRun"`
	CreatedAt     time.Time       `json:"createdAt"`
	Version       int64           `json:"version"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings is a single merged record; unlike the collections it is not
// keyed per entity.
type Settings struct {
	MonthlyBudget decimal.Decimal `json:"monthlyBudget"`
	// Budgets maps a month key ("YYYY-MM") to an override amount that
	// takes precedence over MonthlyBudget for that month.
	Budgets             map[string]decimal.Decimal `json:"budgets,omitempty"`
	Currency            string                     `json:"currency"`
	CurrencySymbol      string                     `json:"currencySymbol"`
	Theme               string                     `json:"theme,omitempty"`
	OnboardingCompleted bool                       `json:"onboardingCompleted"`
	UserName            string                     `json:"userName,omitempty"`
	Timezone            string                     `json:"timezone,omitempty"`
	Version             int64                      `json:"version"`
	UpdatedAt           time.Time                  `json:"updatedAt"`
}

// Location resolves the user's timezone preference, falling back to UTC.
// Aggregates bucket days and months in this location.
func (s Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BudgetFor returns the effective budget for a month key: the override if
// one exists, otherwise the default monthly budget.
func (s Settings) BudgetFor(monthKey string) decimal.Decimal {
	if b, ok := s.Budgets[monthKey]; ok {
		return b
	}
	return s.MonthlyBudget
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the full in-memory ledger for one user. The reducer treats
// it as an immutable value: every action produces a new snapshot.
type Snapshot struct {
	Settings     Settings      `json:"settings"`
	BankAccounts []BankAccount `json:"bankAccounts"`
	Transactions []Transaction `json:"transactions"`
	Investments  []Investment  `json:"investments"`
	Goals        []Goal        `json:"goals"`
	AutoPays     []AutoPay     `json:"autoPays"`
	Categories   []Category    `json:"categories"`
}

// Clone deep-copies the snapshot so reducer output never aliases input.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.BankAccounts = append([]BankAccount(nil), s.BankAccounts...)
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	out.Investments = append([]Investment(nil), s.Investments...)
	out.Goals = append([]Goal(nil), s.Goals...)
	out.AutoPays = append([]AutoPay(nil), s.AutoPays...)
	out.Categories = append([]Category(nil), s.Categories...)
	if s.Settings.Budgets != nil {
		budgets := make(map[string]decimal.Decimal, len(s.Settings.Budgets))
		for k, v := range s.Settings.Budgets {
			budgets[k] = v
		}
		out.Settings.Budgets = budgets
	}
	return out
}

// Account returns the account with the given id, or nil. A nil result is
// not an error: balance effects against unknown accounts are no-ops.
func (s Snapshot) Account(id AccountID) *BankAccount {
	for i := range s.BankAccounts {
		if s.BankAccounts[i].ID == id {
			return &s.BankAccounts[i]
		}
	}
	return nil
}

// TransactionByID returns the transaction with the given id, or nil.
func (s Snapshot) TransactionByID(id TransactionID) *Transaction {
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return &s.Transactions[i]
		}
	}
	return nil
}

// GoalByID returns the goal with the given id, or nil.
func (s Snapshot) GoalByID(id GoalID) *Goal {
	for i := range s.Goals {
		if s.Goals[i].ID == id {
			return &s.Goals[i]
		}
	}
	return nil
}

// MonthKey formats t as "YYYY-MM" in loc. Month-keyed budget overrides and
// monthly aggregates share this format.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

// DayKey formats t as "YYYY-MM-DD" in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
