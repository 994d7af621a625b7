/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates a fresh ledger with realistic data for development and
	demos: two bank accounts, a month of spending, a salary credit, a
	transfer, a savings goal with partial progress, an investment and a
	recurring rent auto-pay.

USAGE VIA API:

	POST /api/seed

NOTE:

	Seeding does not reset existing data; it layers demo entities on top.
	Only use in development/demo environments.

SEE ALSO:
  - handlers.go: SeedDemo handler
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/plutus/ledger-engine/ledger"
)

// SeedDemo populates the manager with a demo ledger.
func SeedDemo(m *ledger.Manager) error {
	checking, err := m.AddBankAccount(ledger.AccountInput{
		Name:           "Everyday Checking",
		Type:           ledger.AccountCurrent,
		OpeningBalance: decimal.NewFromInt(2500),
		LastFourDigits: "4821",
	})
	if err != nil {
		return fmt.Errorf("seed checking account: %w", err)
	}

	savings, err := m.AddBankAccount(ledger.AccountInput{
		Name:           "Rainy Day Savings",
		Type:           ledger.AccountSavings,
		OpeningBalance: decimal.NewFromInt(8000),
		LastFourDigits: "9034",
		PIN:            "1234",
	})
	if err != nil {
		return fmt.Errorf("seed savings account: %w", err)
	}

	now := time.Now().UTC()
	txs := []ledger.TransactionInput{
		{
			Amount:        decimal.NewFromInt(3200),
			Type:          ledger.TxIncome,
			CategoryID:    "cat-salary",
			BankAccountID: checking.ID,
			Date:          now.AddDate(0, 0, -20),
			Note:          "Monthly salary",
		},
		{
			Amount:        decimal.NewFromInt(1200),
			Type:          ledger.TxExpense,
			CategoryID:    "cat-bills",
			BankAccountID: checking.ID,
			Date:          now.AddDate(0, 0, -19),
			Note:          "Rent",
		},
		{
			Amount:        decimal.NewFromFloat(86.40),
			Type:          ledger.TxExpense,
			CategoryID:    "cat-groceries",
			BankAccountID: checking.ID,
			Date:          now.AddDate(0, 0, -12),
			Note:          "Weekly groceries",
		},
		{
			Amount:        decimal.NewFromFloat(42.50),
			Type:          ledger.TxExpense,
			CategoryID:    "cat-food",
			BankAccountID: checking.ID,
			Date:          now.AddDate(0, 0, -5),
			Note:          "Dinner out",
		},
		{
			Amount:          decimal.NewFromInt(500),
			Type:            ledger.TxTransfer,
			BankAccountID:   checking.ID,
			ToBankAccountID: savings.ID,
			Date:            now.AddDate(0, 0, -3),
			Note:            "Monthly savings transfer",
		},
	}
	for _, in := range txs {
		if _, err := m.AddTransaction(in); err != nil {
			return fmt.Errorf("seed transaction %q: %w", in.Note, err)
		}
	}

	goal, err := m.AddGoal(ledger.GoalInput{
		Name:         "Japan Trip",
		TargetAmount: decimal.NewFromInt(4000),
		Deadline:     now.AddDate(1, 0, 0),
		Icon:         "airplane",
		Color:        "#4f8ef7",
	})
	if err != nil {
		return fmt.Errorf("seed goal: %w", err)
	}
	if _, err := m.AddGoalProgress(goal.ID, decimal.NewFromInt(1500)); err != nil {
		return fmt.Errorf("seed goal progress: %w", err)
	}

	if _, err := m.AddInvestment(ledger.InvestmentInput{
		Name:           "Index Fund SIP",
		Type:           ledger.InvestSIP,
		InvestedAmount: decimal.NewFromInt(6000),
		CurrentValue:   decimal.NewFromInt(6450),
	}); err != nil {
		return fmt.Errorf("seed investment: %w", err)
	}

	if _, err := m.AddAutoPay(ledger.AutoPayInput{
		Name:          "Rent",
		Amount:        decimal.NewFromInt(1200),
		BankAccountID: checking.ID,
		CategoryID:    "cat-bills",
		Frequency:     ledger.FreqMonthly,
		DayOfMonth:    1,
		TimeOfDay:     "09:00",
	}); err != nil {
		return fmt.Errorf("seed auto-pay: %w", err)
	}

	return nil
}
