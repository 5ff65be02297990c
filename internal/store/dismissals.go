package store

import (
	"context"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const contextDismissDuration = 30 * time.Minute

// CreateDismissal suppresses a context reminder for a given event/URL
// pattern pairing for 30 minutes (spec §3).
func (s *Store) CreateDismissal(ctx context.Context, eventID int64, urlPattern string) error {
	now := time.Now()
	d := &models.ContextDismissal{
		ID:             s.nextID("dismissal", &s.dismissalIDCounter),
		EventID:        eventID,
		URLPattern:     urlPattern,
		DismissedAt:    now.Unix(),
		DismissedUntil: now.Add(contextDismissDuration).Unix(),
	}
	return s.safeWrite(ctx, "store.CreateDismissal", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionContextDismissals).InsertOne(ctx, d)
		return err
	})
}

// IsDismissed reports whether the event/URL-pattern pairing is currently
// under an active dismissal.
func (s *Store) IsDismissed(ctx context.Context, eventID int64, urlPattern string) (bool, error) {
	filter := bson.M{
		"eventId":        eventID,
		"urlPattern":     urlPattern,
		"dismissedUntil": bson.M{"$gt": time.Now().Unix()},
	}
	err := s.mongo.Collection(database.CollectionContextDismissals).FindOne(ctx, filter).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
