/*
Package sqlite provides a SQLite-backed DocumentStore for local
single-user mode.

PURPOSE:
  Persists the per-user ledger document as keyed JSON records: one row
  per (user, section, entity id). The same layout the Mongo adapter
  uses, so switching drivers never changes write semantics.

SCHEMA:
  ledger_records(user_id, section, entity_id, data, updated_at)
  with a composite primary key on (user_id, section, entity_id).
  A merge-write is an INSERT OR REPLACE of exactly the entities present
  in the partial document, inside one transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

SUBSCRIPTIONS:
  Not supported; this store is not a ledger.Watcher. SQLite has no push
  mechanism and local mode has a single writer anyway.

USAGE:
  st, err := sqlite.New("./data/ledger.db")   // ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - ledger/store.go: interface contract
  - store/mongo: the remote implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/plutus/ledger-engine/ledger"
)

// Store implements ledger.DocumentStore on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a store at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_records (
		user_id    TEXT NOT NULL,
		section    TEXT NOT NULL,
		entity_id  TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, section, entity_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_records_user
		ON ledger_records(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Read reassembles a user's records into the document shape. Returns
// (nil, nil) when the user has no records.
func (s *Store) Read(ctx context.Context, userID string) (*ledger.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT section, data FROM ledger_records WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	defer rows.Close()

	var doc ledger.Document
	found := false
	for rows.Next() {
		var section, data string
		if err := rows.Scan(&section, &data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		found = true
		if err := doc.AppendRecord(ledger.Section(section), []byte(data)); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

// Write upserts every entity present in the partial document within one
// transaction.
func (s *Store) Write(ctx context.Context, userID string, doc *ledger.Document) error {
	records, err := doc.Records()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin write: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO ledger_records (user_id, section, entity_id, data, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, string(rec.Section), rec.ID, string(rec.Data), now)
		if err != nil {
			return fmt.Errorf("failed to write %s %q: %w", rec.Section, rec.ID, err)
		}
	}
	return tx.Commit()
}

// DeleteEntity removes one record; deleting an absent record is a no-op.
func (s *Store) DeleteEntity(ctx context.Context, userID string, section ledger.Section, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ledger_records WHERE user_id = ? AND section = ? AND entity_id = ?`,
		userID, string(section), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", section, id, err)
	}
	return nil
}
