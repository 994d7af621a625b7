/*
metrics.go - Derived aggregates over a ledger snapshot

PURPOSE:
  CalculateMetrics is a pure projection: it recomputes every aggregate
  view from the current snapshot on each call. There is no cached or
  incremental state, so the result can never drift from the snapshot.

TIMEZONE:
  Day and month bucketing happens in the user's stored timezone
  preference (Settings.Timezone), falling back to UTC. Transaction
  timestamps themselves are stored UTC.

BUDGETS:
  Budget remaining for a month is (budgets[monthKey] ?? monthlyBudget)
  minus that month's expense total. Transfers never count as spend.

SEE ALSO:
  - types.go: Settings.BudgetFor and the month-key format
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metrics is one consistent read of every derived aggregate.
type Metrics struct {
	TotalBalance decimal.Decimal `json:"totalBalance"`

	TodaySpend  decimal.Decimal `json:"todaySpend"`
	MonthSpend  decimal.Decimal `json:"monthSpend"`
	MonthIncome decimal.Decimal `json:"monthIncome"`

	MonthKey        string          `json:"monthKey"`
	Budget          decimal.Decimal `json:"budget"`
	BudgetRemaining decimal.Decimal `json:"budgetRemaining"`

	CategorySpend map[CategoryID]decimal.Decimal `json:"categorySpend"`

	InvestedAmount  decimal.Decimal `json:"investedAmount"`
	InvestmentValue decimal.Decimal `json:"investmentValue"`

	GoalSaved   decimal.Decimal `json:"goalSaved"`
	GoalTarget  decimal.Decimal `json:"goalTarget"`
	GoalPercent decimal.Decimal `json:"goalPercent"` // clamped to 100
}

// CalculateMetrics projects the snapshot's aggregates as of now.
func CalculateMetrics(s Snapshot, now time.Time) Metrics {
	loc := s.Settings.Location()
	todayKey := DayKey(now, loc)
	monthKey := MonthKey(now, loc)

	m := Metrics{
		MonthKey:      monthKey,
		CategorySpend: make(map[CategoryID]decimal.Decimal),
	}

	for _, acc := range s.BankAccounts {
		m.TotalBalance = m.TotalBalance.Add(acc.Balance)
	}

	for _, tx := range s.Transactions {
		inMonth := MonthKey(tx.Date, loc) == monthKey
		switch tx.Type {
		case TxExpense:
			if DayKey(tx.Date, loc) == todayKey {
				m.TodaySpend = m.TodaySpend.Add(tx.Amount)
			}
			if inMonth {
				m.MonthSpend = m.MonthSpend.Add(tx.Amount)
				m.CategorySpend[tx.CategoryID] = m.CategorySpend[tx.CategoryID].Add(tx.Amount)
			}
		case TxIncome:
			if inMonth {
				m.MonthIncome = m.MonthIncome.Add(tx.Amount)
			}
		}
	}

	m.Budget = s.Settings.BudgetFor(monthKey)
	m.BudgetRemaining = m.Budget.Sub(m.MonthSpend)

	for _, inv := range s.Investments {
		m.InvestedAmount = m.InvestedAmount.Add(inv.InvestedAmount)
		m.InvestmentValue = m.InvestmentValue.Add(inv.CurrentValue)
	}

	for _, g := range s.Goals {
		m.GoalSaved = m.GoalSaved.Add(g.CurrentAmount)
		m.GoalTarget = m.GoalTarget.Add(g.TargetAmount)
	}
	if m.GoalTarget.IsPositive() {
		hundred := decimal.NewFromInt(100)
		m.GoalPercent = m.GoalSaved.Div(m.GoalTarget).Mul(hundred)
		if m.GoalPercent.GreaterThan(hundred) {
			m.GoalPercent = hundred
		}
	}

	return m
}
