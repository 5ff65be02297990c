package store

import (
	"context"
	"fmt"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// CreateTrigger inserts a new, unfired trigger for an event.
func (s *Store) CreateTrigger(ctx context.Context, t *models.Trigger) (*models.Trigger, error) {
	t.ID = s.nextID("trigger", &s.triggerIDCounter)
	t.CreatedAt = time.Now().Unix()
	t.IsFired = false

	err := s.safeWrite(ctx, "store.CreateTrigger", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionTriggers).InsertOne(ctx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// timeTriggerOffsets is the lead-time ladder time triggers are derived
// from, ordered earliest-fire-time first (spec §8 invariant 3: the
// reminder_time is the earliest of {event_time-86400, event_time-3600,
// event_time-900} strictly greater than now).
var timeTriggerOffsets = []struct {
	Kind   models.TriggerKind
	Offset int64
}{
	{models.TriggerTime24h, 86400},
	{models.TriggerTime1h, 3600},
	{models.TriggerTime15m, 900},
}

// DeriveTimeTriggers computes the future time-kind triggers for an event
// scheduled at eventTime, plus the earliest of them as the event's
// reminder_time — both nil/empty if none of the three offsets fall
// strictly after now (spec §8 invariant 3). Offsets are tried
// furthest-in-advance first, so the first surviving one is the earliest.
func DeriveTimeTriggers(eventID, eventTime, now int64) (triggers []*models.Trigger, reminderTime *int64) {
	for _, o := range timeTriggerOffsets {
		fireAt := eventTime - o.Offset
		if fireAt <= now {
			continue
		}
		if reminderTime == nil {
			rt := fireAt
			reminderTime = &rt
		}
		triggers = append(triggers, &models.Trigger{
			EventID:     eventID,
			TriggerType: o.Kind,
			FireAt:      &fireAt,
		})
	}
	return triggers, reminderTime
}

// legacyTimeTriggerKinds is the full read-compatible set accepted by the
// time-triggers scan (spec §4.8): the three canonical buckets plus the
// four legacy spellings.
var legacyTimeTriggerKinds = []models.TriggerKind{
	models.TriggerTime24h, models.TriggerTime1h, models.TriggerTime15m,
	"time", "reminder_24h", "reminder_1hr", "reminder_15m",
}

// ListUnfiredTimeTriggers returns unfired time-kind triggers (canonical and
// legacy spellings) for the time-triggers scan.
func (s *Store) ListUnfiredTimeTriggers(ctx context.Context) ([]models.Trigger, error) {
	filter := bson.M{
		"isFired":     false,
		"triggerType": bson.M{"$in": legacyTimeTriggerKinds},
	}
	cursor, err := s.mongo.Collection(database.CollectionTriggers).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store.ListUnfiredTimeTriggers: %w", err)
	}
	defer cursor.Close(ctx)

	var triggers []models.Trigger
	if err := cursor.All(ctx, &triggers); err != nil {
		return nil, fmt.Errorf("store.ListUnfiredTimeTriggers: decode: %w", err)
	}
	return triggers, nil
}

// MarkTriggerFired marks a trigger as fired; triggers are immutable once
// fired (spec §3), so this is a one-way transition.
func (s *Store) MarkTriggerFired(ctx context.Context, id int64) error {
	now := time.Now().Unix()
	return s.safeWrite(ctx, "store.MarkTriggerFired", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionTriggers).UpdateOne(ctx,
			bson.M{"id": id, "isFired": false},
			bson.M{"$set": bson.M{"isFired": true, "firedAt": now}},
		)
		return err
	})
}
