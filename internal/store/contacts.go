package store

import (
	"context"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertContact records or refreshes a chat participant's display name and
// activity counters (spec §3).
func (s *Store) UpsertContact(ctx context.Context, jid, displayName string) error {
	now := time.Now().Unix()
	update := bson.M{
		"$set":         bson.M{"lastSeen": now},
		"$inc":         bson.M{"messageCount": 1},
		"$setOnInsert": bson.M{"id": jid, "firstSeen": now},
	}
	if displayName != "" {
		update["$set"].(bson.M)["displayName"] = displayName
	}

	return s.safeWrite(ctx, "store.UpsertContact", func(ctx context.Context) error {
		_, err := s.mongo.Collection(database.CollectionContacts).UpdateOne(
			ctx, bson.M{"id": jid}, update, options.Update().SetUpsert(true),
		)
		return err
	})
}

// GetContact retrieves a contact by jid.
func (s *Store) GetContact(ctx context.Context, jid string) (*models.Contact, error) {
	var c models.Contact
	err := s.mongo.Collection(database.CollectionContacts).FindOne(ctx, bson.M{"id": jid}).Decode(&c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
