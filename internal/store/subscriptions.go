package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"argus/internal/database"
	"argus/internal/models"
)

// CreateSubscription registers a new duplex-channel endpoint identity
// (spec §4.5: "push-subscriptions | opaque token"). The token is a random
// UUID rather than a derived value. The token is only stored: it is not
// sent to the client and no lookup by token exists.
func (s *Store) CreateSubscription(ctx context.Context) (*models.PushSubscription, error) {
	sub := &models.PushSubscription{
		ID:        s.nextID("subscription", &s.subscriptionIDCounter),
		Token:     uuid.NewString(),
		CreatedAt: time.Now().Unix(),
	}

	err := s.safeWrite(ctx, "store.CreateSubscription", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionPushSubscriptions).InsertOne(ctx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
