package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database backing the document store.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names for the six logical collections of the document store.
const (
	CollectionEvents            = "events"
	CollectionMessages          = "messages"
	CollectionTriggers          = "triggers"
	CollectionContacts          = "contacts"
	CollectionContextDismissals = "context_dismissals"
	CollectionPushSubscriptions = "push_subscriptions"
)

// NewMongoDB creates a new MongoDB connection with connection pooling.
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "argus"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from a MongoDB URI.
func extractDBName(uri string) string {
	lastSlash := -1
	questionMark := -1

	for i, c := range uri {
		if c == '/' {
			lastSlash = i
		}
		if c == '?' && questionMark == -1 {
			questionMark = i
		}
	}

	if lastSlash != -1 {
		start := lastSlash + 1
		end := len(uri)
		if questionMark != -1 && questionMark > lastSlash {
			end = questionMark
		}
		if start < end {
			if dbName := uri[start:end]; dbName != "" {
				return dbName
			}
		}
	}

	return "argus"
}

// Initialize creates indexes for all six logical collections.
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	if err := m.createIndexes(ctx, CollectionEvents, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "reminderTime", Value: 1}}},
		{Keys: bson.D{{Key: "eventTime", Value: 1}}},
		{Keys: bson.D{{Key: "messageId", Value: 1}}},
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "keywords", Value: "text"}, {Key: "description", Value: "text"}, {Key: "location", Value: "text"}}, Options: options.Index().SetName("events_text_search")},
	}); err != nil {
		return fmt.Errorf("failed to create events indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionMessages, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("failed to create messages indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionTriggers, []mongo.IndexModel{
		{Keys: bson.D{{Key: "isFired", Value: 1}, {Key: "triggerType", Value: 1}}},
		{Keys: bson.D{{Key: "eventId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create triggers indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionContacts, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create contacts indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionContextDismissals, []mongo.IndexModel{
		{Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "urlPattern", Value: 1}}},
		{Keys: bson.D{{Key: "dismissedUntil", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	}); err != nil {
		return fmt.Errorf("failed to create context_dismissals indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionPushSubscriptions, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create push_subscriptions indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized successfully")
	return nil
}

func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a collection handle.
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Client returns the underlying MongoDB client.
func (m *MongoDB) Client() *mongo.Client {
	return m.client
}

// Database returns the underlying MongoDB database.
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close closes the MongoDB connection.
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive.
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// WithTransaction executes a function within a transaction.
func (m *MongoDB) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
