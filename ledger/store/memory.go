// Package store provides DocumentStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/plutus/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps one record per (user, section, entity id), the same keyed
// layout the real stores use, and fans out changes to subscribers.
type Memory struct {
	mu          sync.RWMutex
	records     map[recordKey]entityRecord
	subscribers map[int]subscriber
	nextSubID   int

	// FailWrites makes every Write/DeleteEntity return this error.
	// Tests use it to exercise the outbox retry path.
	failErr error
}

type recordKey struct {
	UserID  string
	Section ledger.Section
	ID      string
}

type entityRecord struct {
	doc *ledger.Document
}

type subscriber struct {
	userID string
	ch     chan ledger.Change
}

func NewMemory() *Memory {
	return &Memory{
		records:     make(map[recordKey]entityRecord),
		subscribers: make(map[int]subscriber),
	}
}

// SetFailWrites toggles injected write failures. nil restores normal
// operation.
func (m *Memory) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Read reassembles the per-entity records into a document. Returns
// (nil, nil) when the user has no records at all.
func (m *Memory) Read(_ context.Context, userID string) (*ledger.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var doc ledger.Document
	found := false
	for k, rec := range m.records {
		if k.UserID != userID {
			continue
		}
		found = true
		mergeEntity(&doc, rec.doc)
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

// Write upserts every entity present in the partial document.
func (m *Memory) Write(_ context.Context, userID string, doc *ledger.Document) error {
	m.mu.Lock()
	if m.failErr != nil {
		err := m.failErr
		m.mu.Unlock()
		return err
	}

	var changes []ledger.Change
	put := func(section ledger.Section, id string, partial *ledger.Document) {
		m.records[recordKey{UserID: userID, Section: section, ID: id}] = entityRecord{doc: partial}
		changes = append(changes, ledger.Change{Section: section, Op: ledger.OpUpsert, ID: id, Document: partial})
	}

	if doc.Settings != nil {
		s := *doc.Settings
		put(ledger.SectionSettings, "settings", &ledger.Document{Settings: &s})
	}
	for _, acc := range doc.BankAccounts {
		acc := acc
		put(ledger.SectionBankAccounts, string(acc.ID), &ledger.Document{BankAccounts: []ledger.BankAccount{acc}})
	}
	for _, tx := range doc.Transactions {
		tx := tx
		put(ledger.SectionTransactions, string(tx.ID), &ledger.Document{Transactions: []ledger.Transaction{tx}})
	}
	for _, inv := range doc.Investments {
		inv := inv
		put(ledger.SectionInvestments, string(inv.ID), &ledger.Document{Investments: []ledger.Investment{inv}})
	}
	for _, g := range doc.Goals {
		g := g
		put(ledger.SectionGoals, string(g.ID), &ledger.Document{Goals: []ledger.Goal{g}})
	}
	for _, ap := range doc.AutoPays {
		ap := ap
		put(ledger.SectionAutoPays, string(ap.ID), &ledger.Document{AutoPays: []ledger.AutoPay{ap}})
	}
	for _, c := range doc.Categories {
		c := c
		put(ledger.SectionCategories, string(c.ID), &ledger.Document{Categories: []ledger.Category{c}})
	}
	m.mu.Unlock()

	m.notify(userID, changes)
	return nil
}

// DeleteEntity removes one record. Absent records are not an error.
func (m *Memory) DeleteEntity(_ context.Context, userID string, section ledger.Section, id string) error {
	m.mu.Lock()
	if m.failErr != nil {
		err := m.failErr
		m.mu.Unlock()
		return err
	}
	delete(m.records, recordKey{UserID: userID, Section: section, ID: id})
	m.mu.Unlock()

	m.notify(userID, []ledger.Change{{Section: section, Op: ledger.OpDelete, ID: id}})
	return nil
}

// Subscribe delivers every change for userID until cancel is called or
// ctx ends. Implements ledger.Watcher.
func (m *Memory) Subscribe(ctx context.Context, userID string) (<-chan ledger.Change, func(), error) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	sub := subscriber{userID: userID, ch: make(chan ledger.Change, 64)}
	m.subscribers[id] = sub
	m.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
			close(sub.ch)
			close(done)
		})
	}
	// The watchdog must not outlive the subscription: cancel releases it
	// even when ctx is long-lived.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return sub.ch, cancel, nil
}

func (m *Memory) notify(userID string, changes []ledger.Change) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subscribers {
		if sub.userID != userID {
			continue
		}
		for _, ch := range changes {
			select {
			case sub.ch <- ch:
			default: // slow subscriber drops changes rather than blocking writes
			}
		}
	}
}

// mergeEntity folds a single-entity partial document into dst.
func mergeEntity(dst, src *ledger.Document) {
	if src == nil {
		return
	}
	if src.Settings != nil {
		s := *src.Settings
		dst.Settings = &s
	}
	dst.BankAccounts = append(dst.BankAccounts, src.BankAccounts...)
	dst.Transactions = append(dst.Transactions, src.Transactions...)
	dst.Investments = append(dst.Investments, src.Investments...)
	dst.Goals = append(dst.Goals, src.Goals...)
	dst.AutoPays = append(dst.AutoPays, src.AutoPays...)
	dst.Categories = append(dst.Categories, src.Categories...)
}
