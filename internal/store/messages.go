package store

import (
	"context"
	"fmt"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateMessage inserts a message, deduplicating by its externally-assigned
// id (spec §3: Message is immutable, dedup by external id). If a message
// with the same id already exists, it is returned unchanged.
func (s *Store) CreateMessage(ctx context.Context, m *models.Message) (*models.Message, bool, error) {
	coll := s.mongo.Collection(database.CollectionMessages)

	var existing models.Message
	err := coll.FindOne(ctx, bson.M{"id": m.ID}).Decode(&existing)
	if err == nil {
		return &existing, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, fmt.Errorf("store.CreateMessage: checking duplicate: %w", err)
	}

	m.CreatedAt = time.Now().Unix()
	writeErr := s.safeWrite(ctx, "store.CreateMessage", func(ctx context.Context) error {
		_, err := coll.InsertOne(ctx, m)
		return err
	})
	if writeErr != nil {
		return nil, false, writeErr
	}
	return m, false, nil
}

// RecentMessages returns the last n messages in a chat ordered oldest-first,
// used to build the "recent context" window for event extraction (spec
// §4.6 step 6: last 5 messages in the chat).
func (s *Store) RecentMessages(ctx context.Context, chatID string, n int64) ([]models.Message, error) {
	filter := bson.M{"chatId": chatID}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(n)

	cursor, err := s.mongo.Collection(database.CollectionMessages).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store.RecentMessages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("store.RecentMessages: decode: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
