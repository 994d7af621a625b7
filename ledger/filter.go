/*
filter.go - Transaction list filtering and sorting

PURPOSE:
  The list-view query: an in-memory predicate filter over the snapshot's
  transactions plus an explicit sort. The snapshot's prepend ordering is
  a convenience, not a guarantee; callers that care about order go
  through here.
*/
package ledger

import (
	"sort"
	"strings"
	"time"
)

type SortKey string

const (
	SortByDate      SortKey = "date"
	SortByAmount    SortKey = "amount"
	SortByCreatedAt SortKey = "createdAt"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TransactionFilter selects transactions; nil/zero fields match
// everything. AccountID matches either endpoint of a transfer.
type TransactionFilter struct {
	Type       *TransactionType
	CategoryID *CategoryID
	AccountID  *AccountID
	From       *time.Time // inclusive
	To         *time.Time // inclusive
	Query      string     // case-insensitive note substring
}

func (f TransactionFilter) matches(tx Transaction) bool {
	if f.Type != nil && tx.Type != *f.Type {
		return false
	}
	if f.CategoryID != nil && tx.CategoryID != *f.CategoryID {
		return false
	}
	if f.AccountID != nil && tx.BankAccountID != *f.AccountID && tx.ToBankAccountID != *f.AccountID {
		return false
	}
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Date.After(*f.To) {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(tx.Note), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

// FilterTransactions returns the matching subset sorted by key/order.
// The input slice is never modified.
func FilterTransactions(txs []Transaction, f TransactionFilter, key SortKey, order SortOrder) []Transaction {
	var out []Transaction
	for _, tx := range txs {
		if f.matches(tx) {
			out = append(out, tx)
		}
	}

	less := func(a, b Transaction) bool {
		switch key {
		case SortByAmount:
			return a.Amount.LessThan(b.Amount)
		case SortByCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return a.Date.Before(b.Date)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// MonthRange returns the inclusive [start, end] instants of the month
// containing t, evaluated in loc. Useful for "this month" filters.
func MonthRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
