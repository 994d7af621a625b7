package store_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutus/ledger-engine/ledger"
	"github.com/plutus/ledger-engine/ledger/store"
)

func TestMemory_ReadMissingUser_ReturnsNilNil(t *testing.T) {
	mem := store.NewMemory()

	doc, err := mem.Read(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemory_WriteIsMergeNotReplace(t *testing.T) {
	// GIVEN: An account stored for the user
	// WHEN: A later write carries only a transaction
	// THEN: Read returns both; the partial write did not clear the account

	ctx := context.Background()
	mem := store.NewMemory()

	acc := ledger.BankAccount{ID: "a", Name: "Main", Balance: decimal.NewFromInt(100)}
	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{BankAccounts: []ledger.BankAccount{acc}}))

	tx := ledger.Transaction{ID: "t1", Type: ledger.TxExpense, Amount: decimal.NewFromInt(20)}
	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{Transactions: []ledger.Transaction{tx}}))

	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Len(t, doc.BankAccounts, 1)
	assert.Len(t, doc.Transactions, 1)
}

func TestMemory_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{
		Goals: []ledger.Goal{{ID: "g1", Name: "Mine"}},
	}))

	doc, err := mem.Read(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemory_DeleteEntity_RemovesOnlyThatRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{
		Goals: []ledger.Goal{{ID: "g1"}, {ID: "g2"}},
	}))
	require.NoError(t, mem.DeleteEntity(ctx, "u1", ledger.SectionGoals, "g1"))

	doc, err := mem.Read(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, doc.Goals, 1)
	assert.Equal(t, ledger.GoalID("g2"), doc.Goals[0].ID)

	// Deleting an absent record is not an error.
	assert.NoError(t, mem.DeleteEntity(ctx, "u1", ledger.SectionGoals, "missing"))
}

func TestMemory_SetFailWrites_InjectsErrors(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	boom := errors.New("boom")

	mem.SetFailWrites(boom)
	err := mem.Write(ctx, "u1", &ledger.Document{Goals: []ledger.Goal{{ID: "g1"}}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, mem.DeleteEntity(ctx, "u1", ledger.SectionGoals, "g1"), boom)

	mem.SetFailWrites(nil)
	assert.NoError(t, mem.Write(ctx, "u1", &ledger.Document{Goals: []ledger.Goal{{ID: "g1"}}}))
}

func TestMemory_Subscribe_DeliversChangesForUser(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	mem := store.NewMemory()

	ch, cancel, err := mem.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{Goals: []ledger.Goal{{ID: "g1"}}}))
	require.NoError(t, mem.Write(ctx, "u2", &ledger.Document{Goals: []ledger.Goal{{ID: "g-other"}}}))
	require.NoError(t, mem.DeleteEntity(ctx, "u1", ledger.SectionGoals, "g1"))

	first := <-ch
	assert.Equal(t, ledger.OpUpsert, first.Op)
	assert.Equal(t, ledger.SectionGoals, first.Section)
	assert.Equal(t, "g1", first.ID)

	second := <-ch
	assert.Equal(t, ledger.OpDelete, second.Op)
	assert.Equal(t, "g1", second.ID, "u2's change must not be delivered")
}

func TestMemory_SubscribeCancel_ReleasesWatchdog(t *testing.T) {
	// GIVEN: Subscriptions on a long-lived context
	// WHEN: Each subscription is canceled by its cancel func
	// THEN: The per-subscription goroutines exit without the context ending

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()
	mem := store.NewMemory()

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		ch, cancel, err := mem.Subscribe(ctx, "u1")
		require.NoError(t, err)
		cancel()
		cancel() // idempotent

		_, open := <-ch
		assert.False(t, open, "canceled subscription channel must be closed")
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, time.Second, 10*time.Millisecond, "subscription goroutines must exit on cancel")

	// The canceled subscriptions no longer receive writes.
	require.NoError(t, mem.Write(ctx, "u1", &ledger.Document{Goals: []ledger.Goal{{ID: "g1"}}}))
}
