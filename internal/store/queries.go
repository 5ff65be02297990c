package store

import (
	"context"
	"fmt"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListDueReminders returns scheduled events whose reminder_time has elapsed,
// for the due-reminders scan (spec §4.8).
func (s *Store) ListDueReminders(ctx context.Context, now int64) ([]models.Event, error) {
	filter := bson.M{
		"status":       models.StatusScheduled,
		"reminderTime": bson.M{"$lte": now, "$exists": true},
	}
	return s.find(ctx, filter, "store.ListDueReminders")
}

// ListExpiredSnoozes returns snoozed events whose reminder_time has
// elapsed, for the snooze-expiry scan (spec §4.8).
func (s *Store) ListExpiredSnoozes(ctx context.Context, now int64) ([]models.Event, error) {
	filter := bson.M{
		"status":       models.StatusSnoozed,
		"reminderTime": bson.M{"$lte": now, "$exists": true},
	}
	return s.find(ctx, filter, "store.ListExpiredSnoozes")
}

// ListEvents serves GET /api/events?status=&limit=&offset=: an optional
// status filter, newest-created first, with offset-based pagination. An
// empty status lists events of any status.
func (s *Store) ListEvents(ctx context.Context, status models.EventStatus, limit, offset int64) ([]models.Event, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = models.NormalizeStatus(status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if offset > 0 {
		opts.SetSkip(offset)
	}

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store.ListEvents: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("store.ListEvents: decode: %w", err)
	}
	return events, nil
}

// ListEventsByStatus serves GET /api/events/status/:status.
func (s *Store) ListEventsByStatus(ctx context.Context, status models.EventStatus) ([]models.Event, error) {
	return s.find(ctx, bson.M{"status": models.NormalizeStatus(status)}, "store.ListEventsByStatus")
}

// ListEventsByDay serves GET /api/events/day/:unix-timestamp: events whose
// event_time falls within the UTC calendar day containing dayTimestamp.
func (s *Store) ListEventsByDay(ctx context.Context, dayTimestamp int64) ([]models.Event, error) {
	day := time.Unix(dayTimestamp, 0).UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Unix()
	end := start + 86400

	filter := bson.M{"eventTime": bson.M{"$gte": start, "$lt": end}}
	return s.find(ctx, filter, "store.ListEventsByDay")
}

// Stats serves GET /api/stats: a count of events per status.
func (s *Store) Stats(ctx context.Context) (map[models.EventStatus]int64, error) {
	cursor, err := s.mongo.Collection(database.CollectionEvents).Aggregate(ctx, bson.A{
		bson.M{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("store.Stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status models.EventStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("store.Stats: decode: %w", err)
	}

	stats := make(map[models.EventStatus]int64, len(rows))
	for _, r := range rows {
		stats[models.NormalizeStatus(r.Status)] += r.Count
	}
	return stats, nil
}

// UpdateEvent applies an arbitrary field patch for PATCH /api/events/:id.
// fields uses bson keys (e.g. "title", "location") and is applied verbatim.
func (s *Store) UpdateEvent(ctx context.Context, id int64, fields bson.M) (*models.Event, error) {
	fields["updatedAt"] = time.Now().Unix()
	update := bson.M{"$set": fields}

	var updated models.Event
	err := s.safeWrite(ctx, "store.UpdateEvent", func(ctx context.Context) error {
		return findOneAndUpdateAfter(ctx, s.mongo.Collection(database.CollectionEvents), bson.M{"id": id}, update, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, op string) ([]models.Event, error) {
	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return events, nil
}
