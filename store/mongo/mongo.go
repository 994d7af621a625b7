/*
Package mongo provides the remote DocumentStore on MongoDB.

PURPOSE:
  Persists keyed entity records in a single collection: one document per
  (user, section, entity id), with the entity body under "data". The
  record layout matches store/sqlite so drivers are interchangeable.

RECORD SHAPE:
  { _id: "<user>/<section>/<entityId>", userId, section, entityId,
    data: {...}, updatedAt }

WRITES:
  A merge-write becomes an unordered bulk upsert of the entities present
  in the partial document. Per-entity records mean a partial failure can
  never corrupt unrelated entities, and concurrent edits to different
  entities do not collide.

SUBSCRIPTIONS:
  Subscribe implements ledger.Watcher using a change stream on the
  collection, filtered to the user's records. Deletes are recovered from
  the record key since delete events carry no fullDocument.

SEE ALSO:
  - ledger/store.go: interface contract
  - store/sqlite: the local implementation
*/
package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plutus/ledger-engine/ledger"
)

const recordsCollection = "ledger_records"

// Store implements ledger.DocumentStore and ledger.Watcher on MongoDB.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *slog.Logger
}

// Connect establishes and pings a MongoDB connection.
func Connect(ctx context.Context, uri, database string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.InfoContext(ctx, "connected to MongoDB", "database", database)

	return &Store{
		client: client,
		coll:   client.Database(database).Collection(recordsCollection),
		log:    log,
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type record struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"userId"`
	Section   string         `bson:"section"`
	EntityID  string         `bson:"entityId"`
	Data      map[string]any `bson:"data"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

func recordID(userID string, section ledger.Section, entityID string) string {
	return userID + "/" + string(section) + "/" + entityID
}

// Read loads every record for the user and reassembles the document.
// Returns (nil, nil) when the user has no records.
func (s *Store) Read(ctx context.Context, userID string) (*ledger.Document, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	defer cursor.Close(ctx)

	var doc ledger.Document
	found := false
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		found = true
		data, err := json.Marshal(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode record %q: %w", rec.ID, err)
		}
		if err := doc.AppendRecord(ledger.Section(rec.Section), data); err != nil {
			return nil, err
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

// Write bulk-upserts the entities present in the partial document.
func (s *Store) Write(ctx context.Context, userID string, doc *ledger.Document) error {
	entities, err := doc.Records()
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var models []mongo.WriteModel
	for _, e := range entities {
		var data map[string]any
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return fmt.Errorf("failed to decode %s %q for storage: %w", e.Section, e.ID, err)
		}
		rec := record{
			ID:        recordID(userID, e.Section, e.ID),
			UserID:    userID,
			Section:   string(e.Section),
			EntityID:  e.ID,
			Data:      data,
			UpdatedAt: now,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetUpdate(bson.M{"$set": rec}).
			SetUpsert(true))
	}

	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to perform bulk write: %w", err)
	}
	return nil
}

// DeleteEntity removes one record; deleting an absent record is a no-op.
func (s *Store) DeleteEntity(ctx context.Context, userID string, section ledger.Section, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": recordID(userID, section, id)})
	if err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", section, id, err)
	}
	return nil
}

// =============================================================================
// CHANGE STREAM SUBSCRIPTION
// =============================================================================

type streamEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  record `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Subscribe watches the collection and delivers the user's changes until
// ctx ends or cancel is called.
func (s *Store) Subscribe(ctx context.Context, userID string) (<-chan ledger.Change, func(), error) {
	stream, err := s.coll.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	out := make(chan ledger.Change, 64)
	streamCtx, cancelCtx := context.WithCancel(ctx)

	var once sync.Once
	cancel := func() {
		once.Do(cancelCtx)
	}

	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var ev streamEvent
			if err := stream.Decode(&ev); err != nil {
				s.log.Warn("failed to decode change event", "err", err)
				continue
			}
			change, ok := s.toChange(userID, ev)
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-streamCtx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			s.log.Warn("change stream terminated", "err", err)
		}
	}()

	return out, cancel, nil
}

// toChange converts a stream event for userID into a ledger.Change.
// Delete events carry only the record key, which encodes user, section
// and entity id.
func (s *Store) toChange(userID string, ev streamEvent) (ledger.Change, bool) {
	switch ev.OperationType {
	case "insert", "update", "replace":
		rec := ev.FullDocument
		if rec.UserID != userID {
			return ledger.Change{}, false
		}
		data, err := json.Marshal(rec.Data)
		if err != nil {
			s.log.Warn("failed to re-encode change data", "id", rec.ID, "err", err)
			return ledger.Change{}, false
		}
		var doc ledger.Document
		if err := doc.AppendRecord(ledger.Section(rec.Section), data); err != nil {
			s.log.Warn("failed to decode change entity", "id", rec.ID, "err", err)
			return ledger.Change{}, false
		}
		return ledger.Change{
			Section:  ledger.Section(rec.Section),
			Op:       ledger.OpUpsert,
			ID:       rec.EntityID,
			Document: &doc,
		}, true

	case "delete":
		parts := strings.SplitN(ev.DocumentKey.ID, "/", 3)
		if len(parts) != 3 || parts[0] != userID {
			return ledger.Change{}, false
		}
		return ledger.Change{
			Section: ledger.Section(parts[1]),
			Op:      ledger.OpDelete,
			ID:      parts[2],
		}, true
	}
	return ledger.Change{}, false
}
