package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutus/ledger-engine/ledger"
	"github.com/plutus/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// seqIDs returns a deterministic id generator: id-1, id-2, ...
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestManager(t *testing.T) (*ledger.Manager, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	m := ledger.NewManager(mem, "u1", ledger.WithIDGenerator(seqIDs()))
	require.NoError(t, m.Load(context.Background()))
	return m, mem
}

// =============================================================================
// LOAD
// =============================================================================

func TestManager_Load_EmptyStore_SeedsDefaults(t *testing.T) {
	// GIVEN: A store with no document for the user
	// WHEN: Loading
	// THEN: Default settings and categories exist and are queued for sync

	m, _ := newTestManager(t)

	snap := m.Snapshot()
	assert.Equal(t, "USD", snap.Settings.Currency)
	assert.Equal(t, "$", snap.Settings.CurrencySymbol)
	assert.NotEmpty(t, snap.Categories)

	pending := m.PendingSync()
	require.NotEmpty(t, pending)
	sections := map[ledger.Section]bool{}
	for _, p := range pending {
		sections[p.Section] = true
	}
	assert.True(t, sections[ledger.SectionSettings])
	assert.True(t, sections[ledger.SectionCategories])
}

func TestManager_Load_ExistingDocument_RestoresState(t *testing.T) {
	// GIVEN: A store already holding an account and a transaction
	// WHEN: A fresh manager loads
	// THEN: The snapshot mirrors the stored document; balances are trusted

	ctx := context.Background()
	mem := store.NewMemory()
	acc := account("a", 750)
	tx := expense("t1", "a", 250)
	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{
		BankAccounts: []ledger.BankAccount{acc},
		Transactions: []ledger.Transaction{tx},
	}))

	m := ledger.NewManager(mem, "u1")
	require.NoError(t, m.Load(ctx))

	snap := m.Snapshot()
	decEqual(t, dec(750), balanceOf(t, snap, "a"))
	require.Len(t, snap.Transactions, 1)
	assert.Empty(t, m.PendingSync(), "loading must not queue writes")
}

// =============================================================================
// OPTIMISTIC UPDATES AND RETRY QUEUE
// =============================================================================

func TestManager_AddTransaction_PersistsTransactionAndAccount(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestManager(t)

	acc, err := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: dec(1000)})
	require.NoError(t, err)
	_, err = m.AddTransaction(ledger.TransactionInput{
		Amount: dec(200), Type: ledger.TxExpense, CategoryID: "cat-food", BankAccountID: acc.ID,
	})
	require.NoError(t, err)

	m.Flush(ctx)
	require.Empty(t, m.PendingSync())

	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Len(t, doc.Transactions, 1)
	require.Len(t, doc.BankAccounts, 1)
	decEqual(t, dec(800), doc.BankAccounts[0].Balance)
}

func TestManager_StoreFailure_KeepsLocalStateAndQueues(t *testing.T) {
	// GIVEN: A store that rejects every write
	// WHEN: Adding an account and a transaction
	// THEN: Local state is updated anyway; the writes stay pending with
	//       the failure recorded, and drain once the store recovers

	ctx := context.Background()
	m, mem := newTestManager(t)
	m.Flush(ctx) // clear the seed writes first
	require.Empty(t, m.PendingSync())

	mem.SetFailWrites(errors.New("store down"))

	acc, err := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: dec(1000)})
	require.NoError(t, err, "store failures must not surface from actions")
	_, err = m.AddTransaction(ledger.TransactionInput{
		Amount: dec(100), Type: ledger.TxExpense, CategoryID: "cat-food", BankAccountID: acc.ID,
	})
	require.NoError(t, err)

	decEqual(t, dec(900), balanceOf(t, m.Snapshot(), acc.ID))

	m.Flush(ctx)
	pending := m.PendingSync()
	require.NotEmpty(t, pending)
	assert.Greater(t, pending[0].Attempts, 0)
	assert.Contains(t, pending[0].LastError, "store down")

	// Store recovers; the queue drains.
	mem.SetFailWrites(nil)
	m.Flush(ctx)
	assert.Empty(t, m.PendingSync())

	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, doc.Transactions, 1)
	decEqual(t, dec(900), doc.BankAccounts[0].Balance)
}

func TestManager_DeleteTransaction_RemovesRemoteRecord(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestManager(t)

	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: dec(500)})
	tx, err := m.AddTransaction(ledger.TransactionInput{
		Amount: dec(50), Type: ledger.TxExpense, CategoryID: "cat-food", BankAccountID: acc.ID,
	})
	require.NoError(t, err)
	m.Flush(ctx)

	require.NoError(t, m.DeleteTransaction(tx.ID))
	m.Flush(ctx)

	decEqual(t, dec(500), balanceOf(t, m.Snapshot(), acc.ID))
	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, doc.Transactions)
	decEqual(t, dec(500), doc.BankAccounts[0].Balance)
}

func TestManager_UpdateTransaction_BumpsVersionAndReconcilesAccounts(t *testing.T) {
	ctx := context.Background()
	m, mem := newTestManager(t)

	a, _ := m.AddBankAccount(ledger.AccountInput{Name: "A", OpeningBalance: dec(1000)})
	b, _ := m.AddBankAccount(ledger.AccountInput{Name: "B", OpeningBalance: dec(1000)})
	tx, err := m.AddTransaction(ledger.TransactionInput{
		Amount: dec(100), Type: ledger.TxExpense, CategoryID: "cat-food", BankAccountID: a.ID,
	})
	require.NoError(t, err)

	// Move the expense to account B.
	updated, err := m.UpdateTransaction(tx.ID, ledger.TransactionPatch{BankAccountID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	snap := m.Snapshot()
	decEqual(t, dec(1000), balanceOf(t, snap, a.ID))
	decEqual(t, dec(900), balanceOf(t, snap, b.ID))

	// Both accounts are persisted with their corrected balances.
	m.Flush(ctx)
	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	for _, acc := range doc.BankAccounts {
		switch acc.ID {
		case a.ID:
			decEqual(t, dec(1000), acc.Balance)
		case b.ID:
			decEqual(t, dec(900), acc.Balance)
		}
	}
}

// =============================================================================
// VALIDATION AND DOMAIN RULES
// =============================================================================

func TestManager_AddTransaction_Validation(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.AddTransaction(ledger.TransactionInput{Amount: dec(0), Type: ledger.TxExpense})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = m.AddTransaction(ledger.TransactionInput{
		Amount: dec(10), Type: ledger.TxTransfer, BankAccountID: "a", ToBankAccountID: "a",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransfer)

	_, err = m.AddTransaction(ledger.TransactionInput{
		Amount: dec(10), Type: ledger.TxTransfer, BankAccountID: "a",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransfer)
}

func TestManager_UpdateTransaction_ValidatesMergedValues(t *testing.T) {
	// GIVEN: A valid expense
	// WHEN: A patch resolves to an invalid transaction
	// THEN: The update is rejected and neither the record nor the balance move

	m, _ := newTestManager(t)

	a, _ := m.AddBankAccount(ledger.AccountInput{Name: "A", OpeningBalance: dec(1000)})
	b, _ := m.AddBankAccount(ledger.AccountInput{Name: "B", OpeningBalance: dec(0)})
	tx, err := m.AddTransaction(ledger.TransactionInput{
		Amount: dec(100), Type: ledger.TxExpense, CategoryID: "cat-food", BankAccountID: a.ID,
	})
	require.NoError(t, err)

	neg := dec(-100)
	_, err = m.UpdateTransaction(tx.ID, ledger.TransactionPatch{Amount: &neg})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	snap := m.Snapshot()
	decEqual(t, dec(900), balanceOf(t, snap, a.ID))
	decEqual(t, dec(100), snap.Transactions[0].Amount)

	// A transfer patched onto a single account is degenerate.
	tr, err := m.AddTransaction(ledger.TransactionInput{
		Amount: dec(50), Type: ledger.TxTransfer, BankAccountID: a.ID, ToBankAccountID: b.ID,
	})
	require.NoError(t, err)

	_, err = m.UpdateTransaction(tr.ID, ledger.TransactionPatch{ToBankAccountID: &a.ID})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransfer)

	// Retyping an expense into a transfer needs a destination account.
	transfer := ledger.TxTransfer
	_, err = m.UpdateTransaction(tx.ID, ledger.TransactionPatch{Type: &transfer})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransfer)

	snap = m.Snapshot()
	decEqual(t, dec(850), balanceOf(t, snap, a.ID))
	decEqual(t, dec(50), balanceOf(t, snap, b.ID))
}

func TestManager_UpdateMissingEntity_ReturnsNotFound(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.UpdateTransaction("nope", ledger.TransactionPatch{})
	assert.True(t, ledger.IsNotFound(err))

	err = m.DeleteGoal("nope")
	assert.True(t, ledger.IsNotFound(err))
}

func TestManager_Location_FollowsTimezoneSetting(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, time.UTC, m.Location())

	tz := "Asia/Kolkata"
	_, err := m.UpdateSettings(ledger.SettingsPatch{Timezone: &tz})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", m.Location().String())
}

func TestManager_VerifyAccountPIN(t *testing.T) {
	m, _ := newTestManager(t)

	acc, err := m.AddBankAccount(ledger.AccountInput{Name: "Vault", PIN: "4321"})
	require.NoError(t, err)

	ok, err := m.VerifyAccountPIN(acc.ID, "4321")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.VerifyAccountPIN(acc.ID, "0000")
	require.NoError(t, err)
	assert.False(t, ok)

	// An account without a PIN verifies any candidate.
	open, _ := m.AddBankAccount(ledger.AccountInput{Name: "Open"})
	ok, err = m.VerifyAccountPIN(open.ID, "whatever")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_AddGoalProgress_ClampedAndValidated(t *testing.T) {
	m, _ := newTestManager(t)

	g, err := m.AddGoal(ledger.GoalInput{Name: "Trip", TargetAmount: dec(1000)})
	require.NoError(t, err)

	_, err = m.AddGoalProgress(g.ID, dec(-5))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	got, err := m.AddGoalProgress(g.ID, dec(1500))
	require.NoError(t, err)
	decEqual(t, dec(1000), got.CurrentAmount)
	assert.Equal(t, int64(2), got.Version)
}

func TestManager_AddInvestment_DeductCreatesLinkedExpense(t *testing.T) {
	m, _ := newTestManager(t)

	acc, _ := m.AddBankAccount(ledger.AccountInput{Name: "Main", OpeningBalance: dec(10000)})
	inv, err := m.AddInvestment(ledger.InvestmentInput{
		Name:              "Index fund",
		InvestedAmount:    dec(2000),
		DeductFromAccount: true,
		BankAccountID:     acc.ID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, inv.LinkedTransactionID)
	decEqual(t, dec(2000), inv.CurrentValue, "current value defaults to invested amount")

	snap := m.Snapshot()
	decEqual(t, dec(8000), balanceOf(t, snap, acc.ID))
	linked := snap.TransactionByID(inv.LinkedTransactionID)
	require.NotNil(t, linked)
	assert.Equal(t, ledger.TxExpense, linked.Type)
	decEqual(t, dec(2000), linked.Amount)
}

func TestManager_UpdateAutoPay_RecomputesNextRun(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC) // Tuesday
	mem := store.NewMemory()
	m := ledger.NewManager(mem, "u1",
		ledger.WithIDGenerator(seqIDs()),
		ledger.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, m.Load(context.Background()))

	ap, err := m.AddAutoPay(ledger.AutoPayInput{
		Name: "Gym", Amount: dec(40), Frequency: ledger.FreqDaily, TimeOfDay: "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), ap.NextRun)

	ap, err = m.UpdateAutoPay(ap.ID, ledger.AutoPayInput{
		Name: "Gym", Amount: dec(40), Frequency: ledger.FreqWeekly,
		DayOfWeek: time.Friday, TimeOfDay: "09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 13, 9, 0, 0, 0, time.UTC), ap.NextRun)
	assert.Equal(t, int64(2), ap.Version)

	_, err = m.UpdateAutoPay(ap.ID, ledger.AutoPayInput{Amount: dec(40), Frequency: "sometimes"})
	assert.ErrorIs(t, err, ledger.ErrInvalidFrequency)
}

// =============================================================================
// REMOTE CHANGE MERGE
// =============================================================================

func TestManager_RemoteChange_MergedIntoSnapshot(t *testing.T) {
	// GIVEN: A started manager watching a memory store
	// WHEN: Another writer upserts a goal for the same user
	// THEN: The goal appears in the local snapshot

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, mem := newTestManager(t)
	m.Flush(ctx)
	m.Start(ctx)

	remote := ledger.Goal{ID: "g-remote", Name: "From other device", TargetAmount: dec(100)}
	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{Goals: []ledger.Goal{remote}}))

	require.Eventually(t, func() bool {
		return m.Snapshot().GoalByID("g-remote") != nil
	}, 2*time.Second, 10*time.Millisecond)

	// A remote delete removes it again.
	require.NoError(t, mem.DeleteEntity(ctx, "u1", ledger.SectionGoals, "g-remote"))
	require.Eventually(t, func() bool {
		return m.Snapshot().GoalByID("g-remote") == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_PendingLocalWrite_WinsOverRemoteChange(t *testing.T) {
	// GIVEN: A goal whose local write cannot reach the store yet
	// WHEN: A remote change for the same goal arrives
	// THEN: The remote value is dropped; local state stands

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, mem := newTestManager(t)
	m.Flush(ctx)
	m.Start(ctx)

	mem.SetFailWrites(errors.New("offline"))
	g, err := m.AddGoal(ledger.GoalInput{Name: "Local name", TargetAmount: dec(500)})
	require.NoError(t, err)

	// The store comes back; another device writes a conflicting value
	// before our retry lands.
	mem.SetFailWrites(nil)
	stale := g
	stale.Name = "Stale remote name"
	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{Goals: []ledger.Goal{stale}}))

	// The local value survives throughout: the remote change was skipped
	// while the write was pending, and the retry then overwrites the store.
	require.Eventually(t, func() bool {
		return len(m.PendingSync()) == 0
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "Local name", m.Snapshot().GoalByID(g.ID).Name)

	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	for _, stored := range doc.Goals {
		if stored.ID == g.ID {
			assert.Equal(t, "Local name", stored.Name)
		}
	}
}
