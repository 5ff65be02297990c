package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateWindow = 48 * time.Hour

// CreateEvent inserts a new event, unless an active duplicate created within
// the last 48 hours is found (spec §3 invariants), in which case the
// existing event is returned instead of a new one being inserted.
func (s *Store) CreateEvent(ctx context.Context, e *models.Event) (*models.Event, bool, error) {
	coll := s.mongo.Collection(database.CollectionEvents)

	if dup, err := s.findDuplicateEvent(ctx, coll, e); err != nil {
		return nil, false, err
	} else if dup != nil {
		return dup, true, nil
	}

	now := time.Now().Unix()
	e.ID = s.nextID("event", &s.eventIDCounter)
	e.Status = models.NormalizeStatus(e.Status)
	if e.Status == "" {
		e.Status = models.StatusDiscovered
	}
	e.CreatedAt = now
	e.UpdatedAt = now

	err := s.safeWrite(ctx, "store.CreateEvent", func(ctx context.Context) error {
		_, err := coll.InsertOne(ctx, e)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return e, false, nil
}

// findDuplicateEvent implements the duplicate-suppression rule: a
// normalized incoming title that equals, contains, or is contained by the
// normalized title of any active event created within the prior 48 hours
// is a duplicate, unless either title is "short" (<=2 words), in which case
// exact equality is required.
func (s *Store) findDuplicateEvent(ctx context.Context, coll *mongo.Collection, candidate *models.Event) (*models.Event, error) {
	cutoff := time.Now().Add(-duplicateWindow).Unix()
	filter := bson.M{
		"status":    bson.M{"$nin": []models.EventStatus{models.StatusCompleted, models.StatusExpired, models.StatusIgnored}},
		"createdAt": bson.M{"$gte": cutoff},
	}

	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store.findDuplicateEvent: %w", err)
	}
	defer cursor.Close(ctx)

	normalizedCandidate := normalizeTitle(candidate.Title)
	candidateShort := isShortTitle(normalizedCandidate)

	var existing models.Event
	for cursor.Next(ctx) {
		if err := cursor.Decode(&existing); err != nil {
			continue
		}
		normalizedExisting := normalizeTitle(existing.Title)

		if candidateShort || isShortTitle(normalizedExisting) {
			if normalizedCandidate == normalizedExisting {
				dup := existing
				return &dup, nil
			}
			continue
		}

		if normalizedCandidate == normalizedExisting ||
			strings.Contains(normalizedCandidate, normalizedExisting) ||
			strings.Contains(normalizedExisting, normalizedCandidate) {
			dup := existing
			return &dup, nil
		}
	}
	return nil, nil
}

// normalizeTitle case-folds a title and strips punctuation (apostrophes and
// hyphens in particular, per spec §3) before duplicate comparison.
func normalizeTitle(title string) string {
	lower := strings.ToLower(title)
	lower = strings.ReplaceAll(lower, "'", "")
	lower = strings.ReplaceAll(lower, "'", "")
	lower = strings.ReplaceAll(lower, "-", " ")
	lower = strings.ReplaceAll(lower, "‐", " ")
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isShortTitle(normalized string) bool {
	return len(strings.Fields(normalized)) <= 2
}

// GetEvent retrieves a single event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var e models.Event
	err := s.mongo.Collection(database.CollectionEvents).FindOne(ctx, bson.M{"id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("event %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GetEvent: %w", err)
	}
	return &e, nil
}

// ListActiveEvents returns up to limit active events, most recently created
// first, used to build the action-detection/extraction candidate lists.
func (s *Store) ListActiveEvents(ctx context.Context, limit int64) ([]models.Event, error) {
	filter := bson.M{"status": bson.M{"$nin": []models.EventStatus{models.StatusCompleted, models.StatusExpired, models.StatusIgnored}}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store.ListActiveEvents: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("store.ListActiveEvents: decode: %w", err)
	}
	return events, nil
}

// TransitionEvent applies a lifecycle transition, rejecting edges the state
// machine (internal/models.CanTransition) does not permit.
func (s *Store) TransitionEvent(ctx context.Context, id int64, to models.EventStatus) (*models.Event, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, to) {
		return nil, fmt.Errorf("store.TransitionEvent: %s -> %s is not a permitted transition", current.Status, to)
	}

	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now().Unix()}}
	var updated models.Event
	err = s.safeWrite(ctx, "store.TransitionEvent", func(ctx context.Context) error {
		return findOneAndUpdateAfter(ctx, s.mongo.Collection(database.CollectionEvents), bson.M{"id": id}, update, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SnoozeEvent transitions an event to snoozed with reminder_time set to
// now + minutes*60 (spec §3/§8: two successive identical snooze calls yield
// the same reminder_time modulo the clock).
func (s *Store) SnoozeEvent(ctx context.Context, id int64, minutes int) (*models.Event, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, models.StatusSnoozed) {
		return nil, fmt.Errorf("store.SnoozeEvent: %s -> snoozed is not a permitted transition", current.Status)
	}

	reminderAt := time.Now().Add(time.Duration(minutes) * time.Minute).Unix()
	update := bson.M{"$set": bson.M{"status": models.StatusSnoozed, "reminderTime": reminderAt, "updatedAt": time.Now().Unix()}}

	var updated models.Event
	err = s.safeWrite(ctx, "store.SnoozeEvent", func(ctx context.Context) error {
		return findOneAndUpdateAfter(ctx, s.mongo.Collection(database.CollectionEvents), bson.M{"id": id}, update, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// IncrementDismissCount bumps an event's dismiss_count (monotone per §3).
func (s *Store) IncrementDismissCount(ctx context.Context, id int64) error {
	update := bson.M{"$inc": bson.M{"dismissCount": 1}, "$set": bson.M{"updatedAt": time.Now().Unix()}}
	return s.safeWrite(ctx, "store.IncrementDismissCount", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionEvents).UpdateOne(ctx, bson.M{"id": id}, update)
		return err
	})
}

// SetPendingUpdate records a proposed "modify" change without applying it
// (spec §4.6 step 5, §9 item 3: modify never auto-applies).
func (s *Store) SetPendingUpdate(ctx context.Context, id int64, pending *models.PendingUpdate) error {
	update := bson.M{"$set": bson.M{"pendingUpdate": pending, "updatedAt": time.Now().Unix()}}
	return s.safeWrite(ctx, "store.SetPendingUpdate", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionEvents).UpdateOne(ctx, bson.M{"id": id}, update)
		return err
	})
}

// ConfirmUpdate applies a previously-stored pending update onto the event
// and clears it.
func (s *Store) ConfirmUpdate(ctx context.Context, id int64) (*models.Event, error) {
	current, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.PendingUpdate == nil {
		return current, nil
	}

	set := bson.M{"updatedAt": time.Now().Unix()}
	p := current.PendingUpdate
	if p.ProposedTitle != "" {
		set["title"] = p.ProposedTitle
	}
	if p.ProposedDescription != "" {
		set["description"] = p.ProposedDescription
	}
	if p.ProposedEventTime != nil {
		set["eventTime"] = *p.ProposedEventTime
	}
	if p.ProposedLocation != "" {
		set["location"] = p.ProposedLocation
	}
	if p.ProposedKeywords != "" {
		set["keywords"] = p.ProposedKeywords
	}

	update := bson.M{"$set": set, "$unset": bson.M{"pendingUpdate": ""}}
	var updated models.Event
	err = s.safeWrite(ctx, "store.ConfirmUpdate", func(ctx context.Context) error {
		return findOneAndUpdateAfter(ctx, s.mongo.Collection(database.CollectionEvents), bson.M{"id": id}, update, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetEventEmbedding stores a computed embedding vector, used by the
// embedding backfill worker.
func (s *Store) SetEventEmbedding(ctx context.Context, id int64, embedding []float32) error {
	update := bson.M{"$set": bson.M{"embedding": embedding}}
	return s.safeWrite(ctx, "store.SetEventEmbedding", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionEvents).UpdateOne(ctx, bson.M{"id": id}, update)
		return err
	})
}

// ListEventsMissingEmbedding returns up to limit active events without an
// embedding yet, for the embedding backfill job (spec §4.10).
func (s *Store) ListEventsMissingEmbedding(ctx context.Context, limit int64) ([]models.Event, error) {
	filter := bson.M{
		"status":    bson.M{"$nin": []models.EventStatus{models.StatusCompleted, models.StatusExpired, models.StatusIgnored}},
		"embedding": bson.M{"$exists": false},
	}
	opts := options.Find().SetLimit(limit)

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store.ListEventsMissingEmbedding: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("store.ListEventsMissingEmbedding: decode: %w", err)
	}
	return events, nil
}

// ConflictCheck returns events that are neither completed nor expired
// (ignored events included) whose event_time lies within +/-60 minutes of
// target (spec §4.5).
func (s *Store) ConflictCheck(ctx context.Context, target int64) ([]models.Event, error) {
	lower, upper := target-3600, target+3600
	filter := bson.M{
		"status":    bson.M{"$nin": []models.EventStatus{models.StatusCompleted, models.StatusExpired}},
		"eventTime": bson.M{"$gte": lower, "$lte": upper},
	}

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store.ConflictCheck: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("store.ConflictCheck: decode: %w", err)
	}
	return events, nil
}

// ContextURLMatch returns active events whose non-empty context_url is a
// case-folded substring of url, or whose non-empty location is, when
// context_url is empty (spec §4.5/§4.10: location is the fallback context
// trigger field for events extracted without a derivable context_url).
func (s *Store) ContextURLMatch(ctx context.Context, url string) ([]models.Event, error) {
	lowerURL := strings.ToLower(url)
	filter := bson.M{
		"status": bson.M{"$nin": []models.EventStatus{models.StatusCompleted, models.StatusExpired, models.StatusIgnored}},
		"$or": []bson.M{
			{"contextUrl": bson.M{"$exists": true, "$ne": ""}},
			{"location": bson.M{"$exists": true, "$ne": ""}},
		},
	}

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store.ContextURLMatch: %w", err)
	}
	defer cursor.Close(ctx)

	var matches []models.Event
	var e models.Event
	for cursor.Next(ctx) {
		if err := cursor.Decode(&e); err != nil {
			continue
		}
		needle := e.ContextURL
		if needle == "" {
			needle = e.Location
		}
		if needle == "" {
			continue
		}
		if strings.Contains(lowerURL, strings.ToLower(needle)) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// DeleteEvent permanently removes an event.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	return s.safeWrite(ctx, "store.DeleteEvent", func(ctx context.Context) error {
		result, err := s.mongo.Collection(database.CollectionEvents).DeleteOne(ctx, bson.M{"id": id})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return fmt.Errorf("event %d not found", id)
		}
		return nil
	})
}
