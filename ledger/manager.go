/*
manager.go - Action orchestration over the reducer and the store

PURPOSE:
  The Manager wraps every user-facing operation as:
    1. synthesize an id (UUID v4) and timestamps
    2. dispatch the action to the reducer (synchronous local update)
    3. enqueue the changed entities for asynchronous persistence

  Local state is always updated before any remote write is issued, and no
  operation waits for remote confirmation. Store failures are logged and
  retried by the outbox; they never roll back local state and never
  escape an action.

REMOTE PUSHES:
  When the store implements Watcher, remote changes are merged into the
  snapshot as they arrive. Last write wins, except that a remote change
  is dropped while the same entity has an unsynced local write.

CONCURRENCY:
  One mutex guards the snapshot. Actions mutate under the write lock;
  reads copy under the read lock. The outbox and subscription each run in
  their own goroutine, started by Start and stopped by its context.

SEE ALSO:
  - reducer.go: the state transitions dispatched here
  - outbox.go: retry queue and pending-sync bookkeeping
*/
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	store  DocumentStore
	userID string
	log    *slog.Logger
	now    func() time.Time
	newID  func() string

	defaults Settings

	mu   sync.RWMutex
	snap Snapshot

	outbox *outbox
}

type Option func(*Manager)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides UUID generation, for deterministic tests.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithDefaultSettings sets the settings used when no document exists yet.
func WithDefaultSettings(s Settings) Option {
	return func(m *Manager) { m.defaults = s }
}

// NewManager creates a manager for one user's ledger. Call Load before
// dispatching actions, and Start to begin background persistence.
func NewManager(store DocumentStore, userID string, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		userID: userID,
		log:    slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
		defaults: Settings{
			Currency:       "USD",
			CurrencySymbol: "$",
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.outbox = newOutbox(store, userID, m.log, m.now)
	return m
}

// Load reads the user's document into memory. A missing document seeds a
// fresh ledger (default settings + categories) and queues it for
// persistence.
func (m *Manager) Load(ctx context.Context) error {
	doc, err := m.store.Read(ctx, m.userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if doc == nil {
		now := m.now().UTC()
		settings := m.defaults
		settings.Version = 1
		settings.UpdatedAt = now
		m.snap = Snapshot{
			Settings:   settings,
			Categories: DefaultCategories(),
		}
		m.outbox.enqueue(OpUpsert, SectionSettings, "settings", &Document{Settings: &settings})
		for _, c := range m.snap.Categories {
			c := c
			m.outbox.enqueue(OpUpsert, SectionCategories, string(c.ID), &Document{Categories: []Category{c}})
		}
		return nil
	}

	m.snap = Reduce(Snapshot{}, ReplaceSnapshot{Snapshot: doc.Snapshot()})
	if len(m.snap.Categories) == 0 {
		m.snap.Categories = DefaultCategories()
	}
	return nil
}

// Start launches the outbox worker and, when the store supports it, the
// remote-change subscription. Both stop when ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	go m.outbox.run(ctx)

	watcher, ok := m.store.(Watcher)
	if !ok {
		return
	}
	changes, cancel, err := watcher.Subscribe(ctx, m.userID)
	if err != nil {
		m.log.Warn("remote subscription unavailable", "err", err)
		return
	}
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ch, ok := <-changes:
				if !ok {
					return
				}
				m.applyRemote(ch)
			}
		}
	}()
}

// Flush forces every queued write to be attempted once. Used on graceful
// shutdown; failures stay queued.
func (m *Manager) Flush(ctx context.Context) {
	m.outbox.flushAll(ctx)
}

// PendingSync lists entities whose local state has not reached the store.
func (m *Manager) PendingSync() []PendingEntity {
	return m.outbox.pending()
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone()
}

// Location returns the user's timezone preference. Unlike Snapshot it
// does not clone any state, so per-request callers can use it freely.
func (m *Manager) Location() *time.Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Settings.Location()
}

// Metrics projects the derived aggregates as of now.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CalculateMetrics(m.snap, m.now())
}

// ListTransactions filters and sorts the transaction list.
func (m *Manager) ListTransactions(f TransactionFilter, key SortKey, order SortOrder) []Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FilterTransactions(m.snap.Transactions, f, key, order)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionInput struct {
	Amount          decimal.Decimal
	Type            TransactionType
	CategoryID      CategoryID
	BankAccountID   AccountID
	ToBankAccountID AccountID
	Date            time.Time // zero means now
	Note            string
}

func (in TransactionInput) validate() error {
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.Type == TxTransfer {
		if in.BankAccountID == "" || in.ToBankAccountID == "" || in.BankAccountID == in.ToBankAccountID {
			return ErrInvalidTransfer
		}
	}
	return nil
}

// AddTransaction applies the transaction locally and queues it (plus the
// touched accounts) for persistence.
func (m *Manager) AddTransaction(in TransactionInput) (Transaction, error) {
	if err := in.validate(); err != nil {
		return Transaction{}, err
	}

	now := m.now().UTC()
	tx := Transaction{
		ID:              TransactionID(m.newID()),
		Amount:          in.Amount,
		Type:            in.Type,
		CategoryID:      in.CategoryID,
		BankAccountID:   in.BankAccountID,
		ToBankAccountID: in.ToBankAccountID,
		Date:            in.Date,
		Note:            in.Note,
		Status:          StatusConfirmed,
		CreatedAt:       now,
		Version:         1,
		UpdatedAt:       now,
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}

	m.mu.Lock()
	m.snap = Reduce(m.snap, AddTransaction{Transaction: tx})
	m.persistTransactionLocked(tx.ID, tx.BankAccountID, tx.ToBankAccountID)
	m.mu.Unlock()
	return tx, nil
}

// UpdateTransaction reverses the old balance effect and applies the
// merged one, then queues the transaction and every touched account.
func (m *Manager) UpdateTransaction(id TransactionID, patch TransactionPatch) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.TransactionByID(id)
	if old == nil {
		return Transaction{}, &NotFoundError{Section: SectionTransactions, ID: string(id)}
	}
	prev := *old

	// The patch must be validated against the values it resolves to, not
	// the ones it carries: a patch can turn a valid transaction into a
	// negative-amount one or collapse a transfer onto a single account.
	merged := mergeTransaction(prev, patch)
	if err := (TransactionInput{
		Amount:          merged.Amount,
		Type:            merged.Type,
		BankAccountID:   merged.BankAccountID,
		ToBankAccountID: merged.ToBankAccountID,
	}).validate(); err != nil {
		return Transaction{}, err
	}

	m.snap = Reduce(m.snap, UpdateTransaction{ID: id, Patch: patch})

	cur := m.snap.TransactionByID(id)
	cur.Version = prev.Version + 1
	cur.UpdatedAt = m.now().UTC()

	// Accounts referenced before or after the update may have moved.
	m.persistTransactionLocked(id, prev.BankAccountID, prev.ToBankAccountID)
	m.enqueueAccountLocked(cur.BankAccountID)
	m.enqueueAccountLocked(cur.ToBankAccountID)
	return *cur, nil
}

// DeleteTransaction reverses the balance effect and removes the record.
func (m *Manager) DeleteTransaction(id TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.TransactionByID(id)
	if old == nil {
		return &NotFoundError{Section: SectionTransactions, ID: string(id)}
	}
	prev := *old

	m.snap = Reduce(m.snap, DeleteTransaction{ID: id})
	m.outbox.enqueue(OpDelete, SectionTransactions, string(id), nil)
	m.enqueueAccountLocked(prev.BankAccountID)
	m.enqueueAccountLocked(prev.ToBankAccountID)
	return nil
}

// persistTransactionLocked queues the transaction and the given accounts.
// Caller holds the write lock.
func (m *Manager) persistTransactionLocked(id TransactionID, accounts ...AccountID) {
	if tx := m.snap.TransactionByID(id); tx != nil {
		m.outbox.enqueue(OpUpsert, SectionTransactions, string(id), &Document{Transactions: []Transaction{*tx}})
	}
	for _, accID := range accounts {
		m.enqueueAccountLocked(accID)
	}
}

func (m *Manager) enqueueAccountLocked(id AccountID) {
	if id == "" {
		return
	}
	if acc := m.snap.Account(id); acc != nil {
		m.outbox.enqueue(OpUpsert, SectionBankAccounts, string(id), &Document{BankAccounts: []BankAccount{*acc}})
	}
}

// =============================================================================
// BANK ACCOUNTS
// =============================================================================

type AccountInput struct {
	Name           string
	Type           AccountType
	OpeningBalance decimal.Decimal
	LastFourDigits string
	PIN            string
}

func (m *Manager) AddBankAccount(in AccountInput) (BankAccount, error) {
	now := m.now().UTC()
	acc := BankAccount{
		ID:             AccountID(m.newID()),
		Name:           in.Name,
		Type:           in.Type,
		Balance:        in.OpeningBalance,
		LastFourDigits: in.LastFourDigits,
		PIN:            in.PIN,
		CreatedAt:      now,
		Version:        1,
		UpdatedAt:      now,
	}
	if acc.Type == "" {
		acc.Type = AccountSavings
	}

	m.mu.Lock()
	m.snap = Reduce(m.snap, AddBankAccount{Account: acc})
	m.enqueueAccountLocked(acc.ID)
	m.mu.Unlock()
	return acc, nil
}

func (m *Manager) UpdateBankAccount(id AccountID, patch AccountPatch) (BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Account(id)
	if old == nil {
		return BankAccount{}, &NotFoundError{Section: SectionBankAccounts, ID: string(id)}
	}
	prevVersion := old.Version

	m.snap = Reduce(m.snap, UpdateBankAccount{ID: id, Patch: patch})
	cur := m.snap.Account(id)
	cur.Version = prevVersion + 1
	cur.UpdatedAt = m.now().UTC()
	m.enqueueAccountLocked(id)
	return *cur, nil
}

// DeleteBankAccount removes the account. Transactions referencing it are
// intentionally left alone; there is no referential integrity here.
func (m *Manager) DeleteBankAccount(id AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.Account(id) == nil {
		return &NotFoundError{Section: SectionBankAccounts, ID: string(id)}
	}
	m.snap = Reduce(m.snap, DeleteBankAccount{ID: id})
	m.outbox.enqueue(OpDelete, SectionBankAccounts, string(id), nil)
	return nil
}

// VerifyAccountPIN runs the account's PIN gate.
func (m *Manager) VerifyAccountPIN(id AccountID, candidate string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc := m.snap.Account(id)
	if acc == nil {
		return false, &NotFoundError{Section: SectionBankAccounts, ID: string(id)}
	}
	return acc.PinVerifier()(candidate), nil
}

// =============================================================================
// GOALS
// =============================================================================

type GoalInput struct {
	Name         string
	TargetAmount decimal.Decimal
	Deadline     time.Time
	Icon         string
	Color        string
}

func (m *Manager) AddGoal(in GoalInput) (Goal, error) {
	if !in.TargetAmount.IsPositive() {
		return Goal{}, ErrInvalidAmount
	}
	now := m.now().UTC()
	g := Goal{
		ID:           GoalID(m.newID()),
		Name:         in.Name,
		TargetAmount: in.TargetAmount,
		Deadline:     in.Deadline,
		Icon:         in.Icon,
		Color:        in.Color,
		CreatedAt:    now,
		Version:      1,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	m.snap = Reduce(m.snap, AddGoal{Goal: g})
	m.enqueueGoalLocked(g.ID)
	m.mu.Unlock()
	return g, nil
}

func (m *Manager) UpdateGoal(id GoalID, patch GoalPatch) (Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.GoalByID(id)
	if old == nil {
		return Goal{}, &NotFoundError{Section: SectionGoals, ID: string(id)}
	}
	prevVersion := old.Version

	m.snap = Reduce(m.snap, UpdateGoal{ID: id, Patch: patch})
	cur := m.snap.GoalByID(id)
	cur.Version = prevVersion + 1
	cur.UpdatedAt = m.now().UTC()
	m.enqueueGoalLocked(id)
	return *cur, nil
}

func (m *Manager) DeleteGoal(id GoalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.GoalByID(id) == nil {
		return &NotFoundError{Section: SectionGoals, ID: string(id)}
	}
	m.snap = Reduce(m.snap, DeleteGoal{ID: id})
	m.outbox.enqueue(OpDelete, SectionGoals, string(id), nil)
	return nil
}

// AddGoalProgress is the quick-add: CurrentAmount grows by amount but
// never past TargetAmount.
func (m *Manager) AddGoalProgress(id GoalID, amount decimal.Decimal) (Goal, error) {
	if !amount.IsPositive() {
		return Goal{}, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.GoalByID(id)
	if old == nil {
		return Goal{}, &NotFoundError{Section: SectionGoals, ID: string(id)}
	}
	prevVersion := old.Version

	m.snap = Reduce(m.snap, AddGoalProgress{ID: id, Amount: amount})
	cur := m.snap.GoalByID(id)
	cur.Version = prevVersion + 1
	cur.UpdatedAt = m.now().UTC()
	m.enqueueGoalLocked(id)
	return *cur, nil
}

func (m *Manager) enqueueGoalLocked(id GoalID) {
	if g := m.snap.GoalByID(id); g != nil {
		m.outbox.enqueue(OpUpsert, SectionGoals, string(id), &Document{Goals: []Goal{*g}})
	}
}

// =============================================================================
// INVESTMENTS
// =============================================================================

type InvestmentInput struct {
	Name           string
	Type           InvestmentType
	InvestedAmount decimal.Decimal
	CurrentValue   decimal.Decimal

	// DeductFromAccount creates a linked expense transaction against
	// BankAccountID for the invested amount.
	DeductFromAccount bool
	BankAccountID     AccountID
	CategoryID        CategoryID
}

func (m *Manager) AddInvestment(in InvestmentInput) (Investment, error) {
	if !in.InvestedAmount.IsPositive() {
		return Investment{}, ErrInvalidAmount
	}
	now := m.now().UTC()
	inv := Investment{
		ID:             InvestmentID(m.newID()),
		Name:           in.Name,
		Type:           in.Type,
		InvestedAmount: in.InvestedAmount,
		CurrentValue:   in.CurrentValue,
		CreatedAt:      now,
		Version:        1,
		UpdatedAt:      now,
	}
	if inv.Type == "" {
		inv.Type = InvestOther
	}
	if inv.CurrentValue.IsZero() {
		inv.CurrentValue = inv.InvestedAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if in.DeductFromAccount && in.BankAccountID != "" {
		categoryID := in.CategoryID
		if categoryID == "" {
			categoryID = "cat-other-expense"
		}
		tx := Transaction{
			ID:            TransactionID(m.newID()),
			Amount:        in.InvestedAmount,
			Type:          TxExpense,
			CategoryID:    categoryID,
			BankAccountID: in.BankAccountID,
			Date:          now,
			Note:          "Investment: " + in.Name,
			Status:        StatusConfirmed,
			CreatedAt:     now,
			Version:       1,
			UpdatedAt:     now,
		}
		inv.LinkedTransactionID = tx.ID
		m.snap = Reduce(m.snap, AddTransaction{Transaction: tx})
		m.persistTransactionLocked(tx.ID, tx.BankAccountID)
	}

	m.snap = Reduce(m.snap, AddInvestment{Investment: inv})
	m.outbox.enqueue(OpUpsert, SectionInvestments, string(inv.ID), &Document{Investments: []Investment{inv}})
	return inv, nil
}

func (m *Manager) UpdateInvestment(id InvestmentID, patch InvestmentPatch) (Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev *Investment
	for i := range m.snap.Investments {
		if m.snap.Investments[i].ID == id {
			prev = &m.snap.Investments[i]
		}
	}
	if prev == nil {
		return Investment{}, &NotFoundError{Section: SectionInvestments, ID: string(id)}
	}
	prevVersion := prev.Version

	m.snap = Reduce(m.snap, UpdateInvestment{ID: id, Patch: patch})
	for i := range m.snap.Investments {
		if m.snap.Investments[i].ID != id {
			continue
		}
		inv := &m.snap.Investments[i]
		inv.Version = prevVersion + 1
		inv.UpdatedAt = m.now().UTC()
		m.outbox.enqueue(OpUpsert, SectionInvestments, string(id), &Document{Investments: []Investment{*inv}})
		return *inv, nil
	}
	return Investment{}, &NotFoundError{Section: SectionInvestments, ID: string(id)}
}

func (m *Manager) DeleteInvestment(id InvestmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for i := range m.snap.Investments {
		if m.snap.Investments[i].ID == id {
			found = true
		}
	}
	if !found {
		return &NotFoundError{Section: SectionInvestments, ID: string(id)}
	}
	m.snap = Reduce(m.snap, DeleteInvestment{ID: id})
	m.outbox.enqueue(OpDelete, SectionInvestments, string(id), nil)
	return nil
}

// =============================================================================
// AUTO-PAYS
// =============================================================================

type AutoPayInput struct {
	Name          string
	Amount        decimal.Decimal
	BankAccountID AccountID
	CategoryID    CategoryID
	Frequency     Frequency
	DayOfWeek     time.Weekday
	DayOfMonth    int
	Month         time.Month
	TimeOfDay     string
}

func (m *Manager) AddAutoPay(in AutoPayInput) (AutoPay, error) {
	if !in.Amount.IsPositive() {
		return AutoPay{}, ErrInvalidAmount
	}
	now := m.now().UTC()
	ap := AutoPay{
		ID:            AutoPayID(m.newID()),
		Name:          in.Name,
		Amount:        in.Amount,
		BankAccountID: in.BankAccountID,
		CategoryID:    in.CategoryID,
		Frequency:     in.Frequency,
		DayOfWeek:     in.DayOfWeek,
		DayOfMonth:    in.DayOfMonth,
		Month:         in.Month,
		TimeOfDay:     in.TimeOfDay,
		CreatedAt:     now,
		Version:       1,
		UpdatedAt:     now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := ap.NextRunAfter(now, m.snap.Settings.Location())
	if err != nil {
		return AutoPay{}, err
	}
	ap.NextRun = next

	m.snap = Reduce(m.snap, AddAutoPay{AutoPay: ap})
	m.outbox.enqueue(OpUpsert, SectionAutoPays, string(ap.ID), &Document{AutoPays: []AutoPay{ap}})
	return ap, nil
}

func (m *Manager) UpdateAutoPay(id AutoPayID, in AutoPayInput) (AutoPay, error) {
	if !in.Amount.IsPositive() {
		return AutoPay{}, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var prev *AutoPay
	for i := range m.snap.AutoPays {
		if m.snap.AutoPays[i].ID == id {
			prev = &m.snap.AutoPays[i]
		}
	}
	if prev == nil {
		return AutoPay{}, &NotFoundError{Section: SectionAutoPays, ID: string(id)}
	}

	now := m.now().UTC()
	ap := *prev
	ap.Name = in.Name
	ap.Amount = in.Amount
	ap.BankAccountID = in.BankAccountID
	ap.CategoryID = in.CategoryID
	ap.Frequency = in.Frequency
	ap.DayOfWeek = in.DayOfWeek
	ap.DayOfMonth = in.DayOfMonth
	ap.Month = in.Month
	ap.TimeOfDay = in.TimeOfDay
	ap.Version = prev.Version + 1
	ap.UpdatedAt = now

	next, err := ap.NextRunAfter(now, m.snap.Settings.Location())
	if err != nil {
		return AutoPay{}, err
	}
	ap.NextRun = next

	m.snap = Reduce(m.snap, UpdateAutoPay{ID: id, AutoPay: ap})
	m.outbox.enqueue(OpUpsert, SectionAutoPays, string(id), &Document{AutoPays: []AutoPay{ap}})
	return ap, nil
}

func (m *Manager) DeleteAutoPay(id AutoPayID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for i := range m.snap.AutoPays {
		if m.snap.AutoPays[i].ID == id {
			found = true
		}
	}
	if !found {
		return &NotFoundError{Section: SectionAutoPays, ID: string(id)}
	}
	m.snap = Reduce(m.snap, DeleteAutoPay{ID: id})
	m.outbox.enqueue(OpDelete, SectionAutoPays, string(id), nil)
	return nil
}

// =============================================================================
// SETTINGS & CATEGORIES
// =============================================================================

func (m *Manager) UpdateSettings(patch SettingsPatch) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevVersion := m.snap.Settings.Version
	m.snap = Reduce(m.snap, UpdateSettings{Patch: patch})
	m.snap.Settings.Version = prevVersion + 1
	m.snap.Settings.UpdatedAt = m.now().UTC()

	settings := m.snap.Settings
	m.outbox.enqueue(OpUpsert, SectionSettings, "settings", &Document{Settings: &settings})
	return settings, nil
}

func (m *Manager) AddCategory(name string, typ TransactionType, icon string) (Category, error) {
	c := Category{
		ID:   CategoryID(m.newID()),
		Name: name,
		Type: typ,
		Icon: icon,
	}

	m.mu.Lock()
	m.snap = Reduce(m.snap, AddCategory{Category: c})
	m.outbox.enqueue(OpUpsert, SectionCategories, string(c.ID), &Document{Categories: []Category{c}})
	m.mu.Unlock()
	return c, nil
}

func (m *Manager) DeleteCategory(id CategoryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if CategoryByID(m.snap.Categories, id) == nil {
		return &NotFoundError{Section: SectionCategories, ID: string(id)}
	}
	m.snap = Reduce(m.snap, DeleteCategory{ID: id})
	m.outbox.enqueue(OpDelete, SectionCategories, string(id), nil)
	return nil
}

// =============================================================================
// REMOTE CHANGE MERGE
// =============================================================================

// applyRemote merges a pushed change into the snapshot. An entity with an
// unsynced local write is skipped: the local value is newer by
// definition, and the outbox will overwrite the remote one shortly.
func (m *Manager) applyRemote(ch Change) {
	if m.outbox.hasPending(ch.Section, ch.ID) {
		m.log.Debug("remote change skipped for pending entity",
			"section", ch.Section, "id", ch.ID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ch.Op == OpDelete {
		m.snap = removeBySection(m.snap, ch.Section, ch.ID)
		return
	}
	if ch.Document == nil {
		return
	}
	m.snap = upsertBySection(m.snap, ch.Section, ch.Document)
}

func removeBySection(s Snapshot, section Section, id string) Snapshot {
	switch section {
	case SectionTransactions:
		tx := s.TransactionByID(TransactionID(id))
		if tx == nil {
			return s
		}
		// A remote delete carries no balance intent of its own; the
		// account records arrive as separate upserts. Only the list
		// entry is removed here.
		out := s.Clone()
		out.Transactions = removeTransaction(out.Transactions, TransactionID(id))
		return out
	case SectionBankAccounts:
		return Reduce(s, DeleteBankAccount{ID: AccountID(id)})
	case SectionGoals:
		return Reduce(s, DeleteGoal{ID: GoalID(id)})
	case SectionInvestments:
		return Reduce(s, DeleteInvestment{ID: InvestmentID(id)})
	case SectionAutoPays:
		return Reduce(s, DeleteAutoPay{ID: AutoPayID(id)})
	case SectionCategories:
		return Reduce(s, DeleteCategory{ID: CategoryID(id)})
	}
	return s
}

func upsertBySection(s Snapshot, section Section, doc *Document) Snapshot {
	out := s.Clone()
	switch section {
	case SectionSettings:
		if doc.Settings != nil {
			out.Settings = *doc.Settings
		}
	case SectionBankAccounts:
		for _, acc := range doc.BankAccounts {
			out.BankAccounts = upsertAccount(out.BankAccounts, acc)
		}
	case SectionTransactions:
		for _, tx := range doc.Transactions {
			out.Transactions = upsertTransactionRecord(out.Transactions, tx)
		}
	case SectionInvestments:
		for _, inv := range doc.Investments {
			out.Investments = upsertInvestment(out.Investments, inv)
		}
	case SectionGoals:
		for _, g := range doc.Goals {
			out.Goals = upsertGoal(out.Goals, g)
		}
	case SectionAutoPays:
		for _, ap := range doc.AutoPays {
			out.AutoPays = upsertAutoPay(out.AutoPays, ap)
		}
	case SectionCategories:
		for _, c := range doc.Categories {
			out.Categories = upsertCategory(out.Categories, c)
		}
	}
	return out
}

func upsertAccount(list []BankAccount, v BankAccount) []BankAccount {
	for i := range list {
		if list[i].ID == v.ID {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func upsertTransactionRecord(list []Transaction, v Transaction) []Transaction {
	for i := range list {
		if list[i].ID == v.ID {
			list[i] = v
			return list
		}
	}
	return append([]Transaction{v}, list...)
}

func upsertInvestment(list []Investment, v Investment) []Investment {
	for i := range list {
		if list[i].ID == v.ID {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func upsertGoal(list []Goal, v Goal) []Goal {
	for i := range list {
		if list[i].ID == v.ID {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func upsertAutoPay(list []AutoPay, v AutoPay) []AutoPay {
	for i := range list {
		if list[i].ID == v.ID {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func upsertCategory(list []Category, v Category) []Category {
	for i := range list {
		if list[i].ID == v.ID {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}
