/*
reducer.go - Pure state transitions over a ledger snapshot

PURPOSE:
  Reduce applies a single action to a snapshot and returns a new snapshot.
  This is where the derived-balance invariant is maintained: every account
  balance equals its opening balance plus the signed sum of all
  transactions referencing it.

CRITICAL INVARIANTS:
  1. PURITY: the input snapshot is never mutated
  2. BALANCE: apply(effect) and revert(effect) are exact inverses
  3. UPDATE = REVERT OLD + APPLY MERGED: transaction updates compute the
     reversal from the PRE-update transaction, never the merged one
  4. UNKNOWN ACCOUNTS: a balance effect against a missing account id is a
     silent no-op, not an error

ORDERING:
  New transactions are prepended (most-recent-first). This is a list
  convenience mirrored from the original UI, not a query guarantee;
  FilterTransactions re-sorts explicitly.

SEE ALSO:
  - types.go: the snapshot model
  - manager.go: dispatches actions and persists the results
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACTIONS
// =============================================================================

// Action is a state transition request. Concrete actions are plain structs
// so they can be constructed by the manager and by tests alike.
type Action interface{ isAction() }

type AddTransaction struct{ Transaction Transaction }
type UpdateTransaction struct {
	ID    TransactionID
	Patch TransactionPatch
}
type DeleteTransaction struct{ ID TransactionID }

type AddBankAccount struct{ Account BankAccount }
type UpdateBankAccount struct {
	ID    AccountID
	Patch AccountPatch
}
type DeleteBankAccount struct{ ID AccountID }

type AddGoal struct{ Goal Goal }
type UpdateGoal struct {
	ID    GoalID
	Patch GoalPatch
}
type DeleteGoal struct{ ID GoalID }

// AddGoalProgress is the "quick add": CurrentAmount grows by Amount,
// clamped to TargetAmount.
type AddGoalProgress struct {
	ID     GoalID
	Amount decimal.Decimal
}

type AddInvestment struct{ Investment Investment }
type UpdateInvestment struct {
	ID    InvestmentID
	Patch InvestmentPatch
}
type DeleteInvestment struct{ ID InvestmentID }

type AddAutoPay struct{ AutoPay AutoPay }
type UpdateAutoPay struct {
	ID      AutoPayID
	AutoPay AutoPay // replacement; NextRun recomputed by the manager
}
type DeleteAutoPay struct{ ID AutoPayID }

type AddCategory struct{ Category Category }
type DeleteCategory struct{ ID CategoryID }

// UpdateSettings shallow-merges the patch into settings. The budgets map
// merges key-wise so one month's override never clears another's.
type UpdateSettings struct{ Patch SettingsPatch }

// ReplaceSnapshot swaps in a complete snapshot (initial load from the
// store). No balance recomputation happens; stored balances are trusted.
type ReplaceSnapshot struct{ Snapshot Snapshot }

func (AddTransaction) isAction()    {}
func (UpdateTransaction) isAction() {}
func (DeleteTransaction) isAction() {}
func (AddBankAccount) isAction()    {}
func (UpdateBankAccount) isAction() {}
func (DeleteBankAccount) isAction() {}
func (AddGoal) isAction()           {}
func (UpdateGoal) isAction()        {}
func (DeleteGoal) isAction()        {}
func (AddGoalProgress) isAction()   {}
func (AddInvestment) isAction()     {}
func (UpdateInvestment) isAction()  {}
func (DeleteInvestment) isAction()  {}
func (AddAutoPay) isAction()        {}
func (UpdateAutoPay) isAction()     {}
func (DeleteAutoPay) isAction()     {}
func (AddCategory) isAction()       {}
func (DeleteCategory) isAction()    {}
func (UpdateSettings) isAction()    {}
func (ReplaceSnapshot) isAction()   {}

// =============================================================================
// PATCHES - Partial updates; nil fields are left untouched
// =============================================================================

type TransactionPatch struct {
	Amount          *decimal.Decimal
	Type            *TransactionType
	CategoryID      *CategoryID
	BankAccountID   *AccountID
	ToBankAccountID *AccountID
	Date            *time.Time
	Note            *string
}

type AccountPatch struct {
	Name           *string
	Type           *AccountType
	LastFourDigits *string
	PIN            *string
}

type GoalPatch struct {
	Name         *string
	TargetAmount *decimal.Decimal
	Deadline     *time.Time
	Icon         *string
	Color        *string
}

type InvestmentPatch struct {
	Name           *string
	Type           *InvestmentType
	InvestedAmount *decimal.Decimal
	CurrentValue   *decimal.Decimal
}

type SettingsPatch struct {
	MonthlyBudget       *decimal.Decimal
	Budgets             map[string]decimal.Decimal
	Currency            *string
	CurrencySymbol      *string
	Theme               *string
	OnboardingCompleted *bool
	UserName            *string
	Timezone            *string
}

// =============================================================================
// REDUCE
// =============================================================================

// Reduce applies an action and returns the resulting snapshot. It cannot
// fail: actions referencing missing entities leave the snapshot unchanged
// (the manager validates existence before dispatching when callers need
// an error).
func Reduce(s Snapshot, a Action) Snapshot {
	out := s.Clone()
	switch act := a.(type) {
	case AddTransaction:
		applyEffect(&out, act.Transaction, applyDir)
		out.Transactions = append([]Transaction{act.Transaction}, out.Transactions...)

	case UpdateTransaction:
		old := out.TransactionByID(act.ID)
		if old == nil {
			return s
		}
		// Reverse using the pre-update values. Merging first would make
		// the reversal wrong whenever amount, type, or accounts change.
		prev := *old
		merged := mergeTransaction(prev, act.Patch)
		applyEffect(&out, prev, revertDir)
		applyEffect(&out, merged, applyDir)
		*out.TransactionByID(act.ID) = merged

	case DeleteTransaction:
		old := out.TransactionByID(act.ID)
		if old == nil {
			return s
		}
		applyEffect(&out, *old, revertDir)
		out.Transactions = removeTransaction(out.Transactions, act.ID)

	case AddBankAccount:
		out.BankAccounts = append(out.BankAccounts, act.Account)

	case UpdateBankAccount:
		acc := out.Account(act.ID)
		if acc == nil {
			return s
		}
		if act.Patch.Name != nil {
			acc.Name = *act.Patch.Name
		}
		if act.Patch.Type != nil {
			acc.Type = *act.Patch.Type
		}
		if act.Patch.LastFourDigits != nil {
			acc.LastFourDigits = *act.Patch.LastFourDigits
		}
		if act.Patch.PIN != nil {
			acc.PIN = *act.Patch.PIN
		}

	case DeleteBankAccount:
		// No referential integrity: transactions referencing the deleted
		// account are kept and their effects simply stop resolving.
		kept := out.BankAccounts[:0]
		for _, acc := range out.BankAccounts {
			if acc.ID != act.ID {
				kept = append(kept, acc)
			}
		}
		out.BankAccounts = kept

	case AddGoal:
		out.Goals = append(out.Goals, act.Goal)

	case UpdateGoal:
		g := out.GoalByID(act.ID)
		if g == nil {
			return s
		}
		if act.Patch.Name != nil {
			g.Name = *act.Patch.Name
		}
		if act.Patch.TargetAmount != nil {
			g.TargetAmount = *act.Patch.TargetAmount
			if g.CurrentAmount.GreaterThan(g.TargetAmount) {
				g.CurrentAmount = g.TargetAmount
			}
		}
		if act.Patch.Deadline != nil {
			g.Deadline = *act.Patch.Deadline
		}
		if act.Patch.Icon != nil {
			g.Icon = *act.Patch.Icon
		}
		if act.Patch.Color != nil {
			g.Color = *act.Patch.Color
		}

	case DeleteGoal:
		kept := out.Goals[:0]
		for _, g := range out.Goals {
			if g.ID != act.ID {
				kept = append(kept, g)
			}
		}
		out.Goals = kept

	case AddGoalProgress:
		g := out.GoalByID(act.ID)
		if g == nil {
			return s
		}
		g.CurrentAmount = g.CurrentAmount.Add(act.Amount)
		if g.CurrentAmount.GreaterThan(g.TargetAmount) {
			g.CurrentAmount = g.TargetAmount
		}

	case AddInvestment:
		out.Investments = append(out.Investments, act.Investment)

	case UpdateInvestment:
		for i := range out.Investments {
			if out.Investments[i].ID != act.ID {
				continue
			}
			inv := &out.Investments[i]
			if act.Patch.Name != nil {
				inv.Name = *act.Patch.Name
			}
			if act.Patch.Type != nil {
				inv.Type = *act.Patch.Type
			}
			if act.Patch.InvestedAmount != nil {
				inv.InvestedAmount = *act.Patch.InvestedAmount
			}
			if act.Patch.CurrentValue != nil {
				inv.CurrentValue = *act.Patch.CurrentValue
			}
			return out
		}
		return s

	case DeleteInvestment:
		kept := out.Investments[:0]
		for _, inv := range out.Investments {
			if inv.ID != act.ID {
				kept = append(kept, inv)
			}
		}
		out.Investments = kept

	case AddAutoPay:
		out.AutoPays = append(out.AutoPays, act.AutoPay)

	case UpdateAutoPay:
		for i := range out.AutoPays {
			if out.AutoPays[i].ID == act.ID {
				out.AutoPays[i] = act.AutoPay
				return out
			}
		}
		return s

	case DeleteAutoPay:
		kept := out.AutoPays[:0]
		for _, ap := range out.AutoPays {
			if ap.ID != act.ID {
				kept = append(kept, ap)
			}
		}
		out.AutoPays = kept

	case AddCategory:
		out.Categories = append(out.Categories, act.Category)

	case DeleteCategory:
		kept := out.Categories[:0]
		for _, c := range out.Categories {
			if c.ID != act.ID {
				kept = append(kept, c)
			}
		}
		out.Categories = kept

	case UpdateSettings:
		out.Settings = mergeSettings(out.Settings, act.Patch)

	case ReplaceSnapshot:
		return act.Snapshot.Clone()
	}
	return out
}

// =============================================================================
// BALANCE EFFECTS
// =============================================================================

type direction int

const (
	applyDir  direction = 1
	revertDir direction = -1
)

// applyEffect adjusts account balances for tx. With revertDir the exact
// inverse is applied, which is what makes update = revert(old) +
// apply(merged) restore balances precisely.
func applyEffect(s *Snapshot, tx Transaction, dir direction) {
	signed := tx.Amount
	if dir == revertDir {
		signed = signed.Neg()
	}
	switch tx.Type {
	case TxExpense:
		if acc := s.Account(tx.BankAccountID); acc != nil {
			acc.Balance = acc.Balance.Sub(signed)
		}
	case TxIncome:
		if acc := s.Account(tx.BankAccountID); acc != nil {
			acc.Balance = acc.Balance.Add(signed)
		}
	case TxTransfer:
		if tx.BankAccountID == "" || tx.ToBankAccountID == "" {
			return
		}
		if src := s.Account(tx.BankAccountID); src != nil {
			src.Balance = src.Balance.Sub(signed)
		}
		if dst := s.Account(tx.ToBankAccountID); dst != nil {
			dst.Balance = dst.Balance.Add(signed)
		}
	}
}

func mergeTransaction(old Transaction, p TransactionPatch) Transaction {
	merged := old
	if p.Amount != nil {
		merged.Amount = *p.Amount
	}
	if p.Type != nil {
		merged.Type = *p.Type
	}
	if p.CategoryID != nil {
		merged.CategoryID = *p.CategoryID
	}
	if p.BankAccountID != nil {
		merged.BankAccountID = *p.BankAccountID
	}
	if p.ToBankAccountID != nil {
		merged.ToBankAccountID = *p.ToBankAccountID
	}
	if p.Date != nil {
		merged.Date = *p.Date
	}
	if p.Note != nil {
		merged.Note = *p.Note
	}
	return merged
}

func mergeSettings(s Settings, p SettingsPatch) Settings {
	if p.MonthlyBudget != nil {
		s.MonthlyBudget = *p.MonthlyBudget
	}
	if p.Budgets != nil {
		if s.Budgets == nil {
			s.Budgets = make(map[string]decimal.Decimal, len(p.Budgets))
		}
		for k, v := range p.Budgets {
			s.Budgets[k] = v
		}
	}
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.CurrencySymbol != nil {
		s.CurrencySymbol = *p.CurrencySymbol
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.OnboardingCompleted != nil {
		s.OnboardingCompleted = *p.OnboardingCompleted
	}
	if p.UserName != nil {
		s.UserName = *p.UserName
	}
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	return s
}

func removeTransaction(txs []Transaction, id TransactionID) []Transaction {
	kept := txs[:0]
	for _, tx := range txs {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	return kept
}
