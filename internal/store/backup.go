package store

import (
	"context"
	"fmt"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// Backup is the on-disk export format (spec §6). counts is placed before
// indices deliberately so the first ~400 bytes suffice to read per-
// collection counts without parsing the rest of the document.
type Backup struct {
	Version    string        `json:"version"`
	ExportedAt int64         `json:"exportedAt"`
	Source     string        `json:"source"`
	Counts     BackupCounts  `json:"counts"`
	Indices    BackupIndices `json:"indices"`
}

type BackupCounts struct {
	Events            int `json:"events"`
	Messages          int `json:"messages"`
	Triggers          int `json:"triggers"`
	Contacts          int `json:"contacts"`
	ContextDismissals int `json:"contextDismissals"`
	PushSubscriptions int `json:"pushSubscriptions"`
}

type BackupIndices struct {
	Events            []models.Event            `json:"events"`
	Messages          []models.Message          `json:"messages"`
	Triggers          []models.Trigger          `json:"triggers"`
	Contacts          []models.Contact          `json:"contacts"`
	ContextDismissals []models.ContextDismissal `json:"contextDismissals"`
	PushSubscriptions []models.PushSubscription `json:"pushSubscriptions"`
}

// Export snapshots all six collections into a Backup. The embedding field
// is omitted from exported event documents (spec §6) — models.Event's json
// tag on Embedding is already "-", so the standard json.Marshal path
// already excludes it.
func (s *Store) Export(ctx context.Context, source string, exportedAt int64) (*Backup, error) {
	events, err := s.find(ctx, bson.M{}, "store.Export.events")
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := s.findAll(ctx, database.CollectionMessages, &messages); err != nil {
		return nil, fmt.Errorf("store.Export.messages: %w", err)
	}

	var triggers []models.Trigger
	if err := s.findAll(ctx, database.CollectionTriggers, &triggers); err != nil {
		return nil, fmt.Errorf("store.Export.triggers: %w", err)
	}

	var contacts []models.Contact
	if err := s.findAll(ctx, database.CollectionContacts, &contacts); err != nil {
		return nil, fmt.Errorf("store.Export.contacts: %w", err)
	}

	var dismissals []models.ContextDismissal
	if err := s.findAll(ctx, database.CollectionContextDismissals, &dismissals); err != nil {
		return nil, fmt.Errorf("store.Export.contextDismissals: %w", err)
	}

	var subs []models.PushSubscription
	if err := s.findAll(ctx, database.CollectionPushSubscriptions, &subs); err != nil {
		return nil, fmt.Errorf("store.Export.pushSubscriptions: %w", err)
	}

	return &Backup{
		Version:    "1.0",
		ExportedAt: exportedAt,
		Source:     source,
		Counts: BackupCounts{
			Events:            len(events),
			Messages:          len(messages),
			Triggers:          len(triggers),
			Contacts:          len(contacts),
			ContextDismissals: len(dismissals),
			PushSubscriptions: len(subs),
		},
		Indices: BackupIndices{
			Events:            events,
			Messages:          messages,
			Triggers:          triggers,
			Contacts:          contacts,
			ContextDismissals: dismissals,
			PushSubscriptions: subs,
		},
	}, nil
}

func (s *Store) findAll(ctx context.Context, collection string, out interface{}) error {
	cursor, err := s.mongo.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

// Restore replaces the contents of all six collections with the contents
// of a Backup, used by the /api/backup/import + /api/backup/:name/restore
// routes. ID counters are then reseeded from the restored collections
// through the same seedCounter path store.New uses.
func (s *Store) Restore(ctx context.Context, b *Backup) error {
	collections := map[string]interface{}{
		database.CollectionEvents:            toInterfaceSlice(b.Indices.Events),
		database.CollectionMessages:          toInterfaceSlice(b.Indices.Messages),
		database.CollectionTriggers:          toInterfaceSlice(b.Indices.Triggers),
		database.CollectionContacts:          toInterfaceSlice(b.Indices.Contacts),
		database.CollectionContextDismissals: toInterfaceSlice(b.Indices.ContextDismissals),
		database.CollectionPushSubscriptions: toInterfaceSlice(b.Indices.PushSubscriptions),
	}

	for name, docs := range collections {
		coll := s.mongo.Collection(name)
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("store.Restore: clearing %s: %w", name, err)
		}
		docSlice := docs.([]interface{})
		if len(docSlice) == 0 {
			continue
		}
		if _, err := coll.InsertMany(ctx, docSlice); err != nil {
			return fmt.Errorf("store.Restore: inserting %s: %w", name, err)
		}
	}

	if err := s.seedCounter(ctx, "event", database.CollectionEvents, &s.eventIDCounter); err != nil {
		return err
	}
	if err := s.seedCounter(ctx, "trigger", database.CollectionTriggers, &s.triggerIDCounter); err != nil {
		return err
	}
	if err := s.seedCounter(ctx, "dismissal", database.CollectionContextDismissals, &s.dismissalIDCounter); err != nil {
		return err
	}
	return s.seedCounter(ctx, "subscription", database.CollectionPushSubscriptions, &s.subscriptionIDCounter)
}

func toInterfaceSlice[T any](items []T) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
