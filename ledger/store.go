/*
store.go - Persistence contract for the per-user ledger document

PURPOSE:
  Defines the interface between the ledger core and the document database.
  The remote document for a user has the shape:

    { settings, bankAccounts, transactions, investments, goals,
      autoPays, categories }

  Implementations persist one keyed record per entity (section + entity
  id) rather than whole arrays, so concurrent edits to different entities
  never collide and a partial failure cannot corrupt unrelated entities.
  Read reassembles the document shape above.

MERGE-WRITE CONTRACT:
  Write accepts a partial document: only the entities present in it are
  replaced. Settings is a single merged record. Nothing here is
  transactional across sections; the outbox retries per-entity writes
  until they land.

SUBSCRIPTIONS:
  Watcher is an optional extension. Stores that can push remote changes
  (e.g. MongoDB change streams) implement it; the manager degrades
  gracefully when the store cannot.

IMPLEMENTATIONS:
  - ledger/store/memory.go: in-memory, for tests and dev
  - store/sqlite:           local single-user mode
  - store/mongo:            remote document database

SEE ALSO:
  - manager.go: the only caller of this interface
  - outbox.go: retry queue in front of Write/DeleteEntity
*/
package ledger

import "context"

// =============================================================================
// SECTIONS - Top-level fields of the remote document
// =============================================================================

// Section names match the remote document fields exactly; they must stay
// stable for compatibility with existing stores.
type Section string

const (
	SectionSettings     Section = "settings"
	SectionBankAccounts Section = "bankAccounts"
	SectionTransactions Section = "transactions"
	SectionInvestments  Section = "investments"
	SectionGoals        Section = "goals"
	SectionAutoPays     Section = "autoPays"
	SectionCategories   Section = "categories"
)

// Sections lists every section in document order.
func Sections() []Section {
	return []Section{
		SectionSettings, SectionBankAccounts, SectionTransactions,
		SectionInvestments, SectionGoals, SectionAutoPays, SectionCategories,
	}
}

// =============================================================================
// DOCUMENT - Partial or full per-user document
// =============================================================================

// Document is the wire shape of a user's ledger. A nil Settings or an
// absent collection means "not included in this write", not "empty".
type Document struct {
	Settings     *Settings     `json:"settings,omitempty"`
	BankAccounts []BankAccount `json:"bankAccounts,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
	Investments  []Investment  `json:"investments,omitempty"`
	Goals        []Goal        `json:"goals,omitempty"`
	AutoPays     []AutoPay     `json:"autoPays,omitempty"`
	Categories   []Category    `json:"categories,omitempty"`
}

// Snapshot converts a full document into an in-memory snapshot.
func (d *Document) Snapshot() Snapshot {
	s := Snapshot{
		BankAccounts: d.BankAccounts,
		Transactions: d.Transactions,
		Investments:  d.Investments,
		Goals:        d.Goals,
		AutoPays:     d.AutoPays,
		Categories:   d.Categories,
	}
	if d.Settings != nil {
		s.Settings = *d.Settings
	}
	return s.Clone()
}

// =============================================================================
// CHANGES - Remote update notifications
// =============================================================================

type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// Change describes one remote entity mutation. For upserts, Document
// carries exactly the affected entity in its section.
type Change struct {
	Section  Section
	Op       ChangeOp
	ID       string
	Document *Document
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// DocumentStore persists per-user ledger documents.
type DocumentStore interface {
	// Read loads the full document for a user. Returns (nil, nil) when
	// no document exists yet.
	Read(ctx context.Context, userID string) (*Document, error)

	// Write merge-writes a partial document: every entity present is
	// upserted, everything else is left untouched.
	Write(ctx context.Context, userID string, doc *Document) error

	// DeleteEntity removes one entity record. Deleting an absent entity
	// is not an error.
	DeleteEntity(ctx context.Context, userID string, section Section, id string) error
}

// Watcher is implemented by stores that can push remote changes. The
// returned cancel func stops delivery and closes the channel.
type Watcher interface {
	DocumentStore

	Subscribe(ctx context.Context, userID string) (<-chan Change, func(), error)
}
