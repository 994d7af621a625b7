/*
outbox.go - Retry queue between the reducer and the document store

PURPOSE:
  Every action updates local state first, then hands the changed entities
  to the outbox for asynchronous persistence. A store failure never rolls
  back local state and never surfaces past the action boundary; the entity
  stays queued as "pending sync" and is retried with exponential backoff
  until the write lands.

COALESCING:
  The queue holds at most one pending write per (section, id). A newer
  write for the same entity replaces the queued one; a delete replaces a
  queued upsert. Last write wins, which matches the store's own semantics.

SEE ALSO:
  - manager.go: enqueues changes and exposes pending-sync state
*/
package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	outboxTick      = 200 * time.Millisecond
	outboxBaseDelay = time.Second
	outboxMaxDelay  = 2 * time.Minute
	writeTimeout    = 10 * time.Second
)

type entityKey struct {
	Section Section
	ID      string
}

// PendingEntity describes one unsynced local write.
type PendingEntity struct {
	Section     Section   `json:"section"`
	ID          string    `json:"id"`
	Op          ChangeOp  `json:"op"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	NextAttempt time.Time `json:"nextAttempt"`
}

type pendingWrite struct {
	op          ChangeOp
	doc         *Document // nil for deletes
	attempts    int
	lastErr     error
	nextAttempt time.Time
}

type outbox struct {
	store  DocumentStore
	userID string
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	queue map[entityKey]*pendingWrite

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func newOutbox(store DocumentStore, userID string, log *slog.Logger, now func() time.Time) *outbox {
	return &outbox{
		store:  store,
		userID: userID,
		log:    log,
		now:    now,
		queue:  make(map[entityKey]*pendingWrite),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue records a write for asynchronous persistence, replacing any
// queued write for the same entity.
func (o *outbox) enqueue(op ChangeOp, section Section, id string, doc *Document) {
	o.mu.Lock()
	o.queue[entityKey{Section: section, ID: id}] = &pendingWrite{
		op:          op,
		doc:         doc,
		nextAttempt: o.now(),
	}
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// hasPending reports whether the entity has an unsynced local write.
// While true, remote pushes for the entity are ignored so a stale remote
// value cannot clobber a newer local one.
func (o *outbox) hasPending(section Section, id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.queue[entityKey{Section: section, ID: id}]
	return ok
}

// pending returns the unsynced writes, oldest retry first.
func (o *outbox) pending() []PendingEntity {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]PendingEntity, 0, len(o.queue))
	for k, w := range o.queue {
		p := PendingEntity{
			Section:     k.Section,
			ID:          k.ID,
			Op:          w.op,
			Attempts:    w.attempts,
			NextAttempt: w.nextAttempt,
		}
		if w.lastErr != nil {
			p.LastError = w.lastErr.Error()
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttempt.Before(out[j].NextAttempt) })
	return out
}

// run drains the queue until ctx is canceled. Call in a goroutine.
func (o *outbox) run(ctx context.Context) {
	defer close(o.done)
	ticker := time.NewTicker(outboxTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		case <-ticker.C:
		}
		o.flushDue(ctx)
	}
}

// flushDue attempts every write whose retry time has passed.
func (o *outbox) flushDue(ctx context.Context) {
	now := o.now()

	o.mu.Lock()
	due := make(map[entityKey]pendingWrite)
	for k, w := range o.queue {
		if !w.nextAttempt.After(now) {
			due[k] = *w
		}
	}
	o.mu.Unlock()

	for k, w := range due {
		o.attempt(ctx, k, w)
	}
}

// flushAll forces every queued write due immediately and attempts it once.
// Used on graceful shutdown and in tests.
func (o *outbox) flushAll(ctx context.Context) {
	o.mu.Lock()
	due := make(map[entityKey]pendingWrite)
	for k, w := range o.queue {
		due[k] = *w
	}
	o.mu.Unlock()

	for k, w := range due {
		o.attempt(ctx, k, w)
	}
}

func (o *outbox) attempt(ctx context.Context, k entityKey, w pendingWrite) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var err error
	if w.op == OpDelete {
		err = o.store.DeleteEntity(wctx, o.userID, k.Section, k.ID)
	} else {
		err = o.store.Write(wctx, o.userID, w.doc)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	cur, ok := o.queue[k]
	if !ok {
		return // replaced and flushed concurrently
	}
	if err == nil {
		// Only clear if the queued write is still the one we sent; a
		// newer enqueue for the same entity must not be dropped.
		if cur.doc == w.doc && cur.op == w.op {
			delete(o.queue, k)
		}
		return
	}

	cur.attempts++
	cur.lastErr = &SyncError{Section: k.Section, ID: k.ID, Err: err}
	delay := outboxBaseDelay << uint(cur.attempts-1)
	if delay > outboxMaxDelay || delay <= 0 {
		delay = outboxMaxDelay
	}
	cur.nextAttempt = o.now().Add(delay)
	o.log.Warn("ledger sync failed, will retry",
		"section", k.Section, "id", k.ID,
		"attempts", cur.attempts, "retryIn", delay, "err", err)
}
