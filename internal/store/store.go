// Package store implements the Document Store Adapter (spec §4.5): CRUD and
// hybrid search against the six logical collections backing the memory
// assistant, plus process-local monotone ID counters reseeded from the
// store itself on restart.
package store

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"argus/internal/database"
	"argus/internal/envelope"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// counterPersister is the optional backing store for ID counters across a
// cold start (see SPEC_FULL.md §4.5 / internal/database.DB). It is never
// the system of record: Store.seedCounter's max(id) aggregation always
// wins if this is stale or unavailable.
type counterPersister interface {
	LoadCounter(name string) (int64, error)
	SaveCounter(name string, value int64) error
}

// Store is the Document Store Adapter: a thin, safeCall-wrapped layer over
// MongoDB's six logical collections.
type Store struct {
	mongo      *database.MongoDB
	counters   *database.DB // optional MySQL id-counter bootstrap, may be nil
	deadLetter *envelope.DeadLetterWriter

	eventIDCounter        atomic.Int64
	triggerIDCounter      atomic.Int64
	contactSeqCounter     atomic.Int64
	dismissalIDCounter    atomic.Int64
	subscriptionIDCounter atomic.Int64

	saveCounterEvery int64

	// hotWindowDays bounds search.go's created_at filter (spec §8 invariant
	// 1, config HOT_WINDOW_DAYS).
	hotWindowDays int
}

// New creates a Store and seeds its ID counters. counterDB may be nil if no
// MySQL bootstrap table is configured. hotWindowDays bounds how far back
// hybrid search looks (config HOT_WINDOW_DAYS, default 90).
func New(ctx context.Context, mdb *database.MongoDB, counterDB *database.DB, dl *envelope.DeadLetterWriter, hotWindowDays int) (*Store, error) {
	if hotWindowDays <= 0 {
		hotWindowDays = 90
	}
	s := &Store{
		mongo:            mdb,
		counters:         counterDB,
		deadLetter:       dl,
		saveCounterEvery: 100,
		hotWindowDays:    hotWindowDays,
	}

	if err := s.seedCounter(ctx, "event", database.CollectionEvents, &s.eventIDCounter); err != nil {
		return nil, err
	}
	if err := s.seedCounter(ctx, "trigger", database.CollectionTriggers, &s.triggerIDCounter); err != nil {
		return nil, err
	}
	if err := s.seedCounter(ctx, "dismissal", database.CollectionContextDismissals, &s.dismissalIDCounter); err != nil {
		return nil, err
	}
	if err := s.seedCounter(ctx, "subscription", database.CollectionPushSubscriptions, &s.subscriptionIDCounter); err != nil {
		return nil, err
	}

	return s, nil
}

// seedCounter reseeds a counter from max(id) over the given collection,
// falling back to the MySQL-persisted value (if any) only when the
// collection is empty and the aggregation yields nothing.
func (s *Store) seedCounter(ctx context.Context, name, collection string, counter *atomic.Int64) error {
	coll := s.mongo.Collection(collection)

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "maxId": bson.M{"$max": "$id"}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("seeding %s counter: %w", name, err)
	}
	defer cursor.Close(ctx)

	var maxID int64
	var result struct {
		MaxID int64 `bson:"maxId"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err == nil {
			maxID = result.MaxID
		}
	}

	if maxID == 0 && s.counters != nil {
		if persisted, err := s.counters.LoadCounter(name); err == nil {
			maxID = persisted
		}
	}

	counter.Store(maxID)
	log.Printf("🔢 [STORE] Seeded %s ID counter at %d", name, maxID)
	return nil
}

// nextID increments counter, periodically persisting the new value to the
// optional MySQL bootstrap table so a cold start with an empty collection
// (e.g. right after a restore) doesn't replay IDs from zero.
func (s *Store) nextID(name string, counter *atomic.Int64) int64 {
	id := counter.Add(1)
	if s.counters != nil && id%s.saveCounterEvery == 0 {
		if err := s.counters.SaveCounter(name, id); err != nil {
			log.Printf("⚠️ [STORE] Failed to persist %s counter: %v", name, err)
		}
	}
	return id
}

// safeWrite wraps a write operation, dead-lettering failures under op
// rather than propagating a bare Mongo error to the caller (spec §4.1/§4.5).
func (s *Store) safeWrite(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	wrapped := envelope.New(envelope.KindStore, op, err)
	if dlErr := s.deadLetter.Write(op, wrapped); dlErr != nil {
		log.Printf("⚠️ [STORE] dead-letter write failed for %s: %v", op, dlErr)
	}
	return wrapped
}

// findOneAndUpdateAfter is a small helper around the FindOneAndUpdate +
// ReturnDocument(After) idiom used throughout the events collection.
func findOneAndUpdateAfter(ctx context.Context, coll *mongo.Collection, filter, update bson.M, out interface{}) error {
	result := coll.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After))
	return result.Decode(out)
}
