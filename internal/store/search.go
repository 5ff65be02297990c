package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"argus/internal/database"
	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	bm25Weight = 0.6
	knnWeight  = 0.4
	// knnCandidatePoolSize bounds the brute-force cosine scan, since a
	// self-hosted MongoDB community deployment has no native $vectorSearch.
	knnCandidatePoolSize = 500
)

// searchableStatuses is the allowlist hybrid search matches against (spec §8
// invariant 1: only pending/scheduled/discovered events are searchable).
// Deliberately an allowlist rather than a denylist of completed/expired/
// ignored, so a newly-added status or snoozed/reminded rows don't leak in
// by default.
var searchableStatuses = []models.EventStatus{models.StatusPending, models.StatusScheduled, models.StatusDiscovered}

// hotWindowFilter bounds a search filter to events created within s's
// configured hot window (spec §8 invariant 1), computed fresh against the
// current time on every call.
func (s *Store) hotWindowFilter() bson.M {
	cutoff := time.Now().AddDate(0, 0, -s.hotWindowDays).Unix()
	return bson.M{"createdAt": bson.M{"$gte": cutoff}}
}

// HybridSearchEvents combines a BM25-style multi-match text search with a
// brute-force k-NN cosine branch over embeddings (spec §4.5), merged by a
// weighted score sum: 0.6 x the text score normalized by the branch maximum
// plus 0.4 x the cosine similarity. Ranks are not fused; only scores are.
// queryEmbedding may be nil, in which case only the text branch contributes.
func (s *Store) HybridSearchEvents(ctx context.Context, queryText string, queryEmbedding []float32, limit int64) ([]models.Event, error) {
	textHits, err := s.textSearchEvents(ctx, queryText, limit*2)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Event)
	fusedScore := make(map[int64]float64)

	maxTextScore := 0.0
	for _, hit := range textHits {
		if hit.score > maxTextScore {
			maxTextScore = hit.score
		}
	}
	for _, hit := range textHits {
		byID[hit.event.ID] = hit.event
		norm := 0.0
		if maxTextScore > 0 {
			norm = hit.score / maxTextScore
		}
		fusedScore[hit.event.ID] += bm25Weight * norm
	}

	if len(queryEmbedding) > 0 {
		knnHits, err := s.knnSearchEvents(ctx, queryEmbedding, limit*2)
		if err != nil {
			return nil, err
		}
		for _, hit := range knnHits {
			byID[hit.event.ID] = hit.event
			fusedScore[hit.event.ID] += knnWeight * hit.score // cosine similarity is already in [-1,1], good enough as a normalized contribution
		}
	}

	ranked := make([]models.Event, 0, len(byID))
	for id := range byID {
		ranked = append(ranked, byID[id])
	}
	sort.Slice(ranked, func(i, j int) bool {
		return fusedScore[ranked[i].ID] > fusedScore[ranked[j].ID]
	})

	if int64(len(ranked)) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

type scoredEvent struct {
	event models.Event
	score float64
}

// textSearchEvents runs the BM25-approximating branch: MongoDB's own text
// index (title/keywords/description/location, all at equal weight per the
// events_text_search index definition in internal/database/mongodb.go).
func (s *Store) textSearchEvents(ctx context.Context, queryText string, limit int64) ([]scoredEvent, error) {
	if queryText == "" {
		return nil, nil
	}

	filter := bson.M{
		"$text":  bson.M{"$search": queryText},
		"status": bson.M{"$in": searchableStatuses},
	}
	for k, v := range s.hotWindowFilter() {
		filter[k] = v
	}
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(limit)

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store.textSearchEvents: %w", err)
	}
	defer cursor.Close(ctx)

	var hits []scoredEvent
	for cursor.Next(ctx) {
		var doc struct {
			models.Event `bson:",inline"`
			Score        float64 `bson:"score"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		hits = append(hits, scoredEvent{event: doc.Event, score: doc.Score})
	}
	return hits, nil
}

// knnSearchEvents brute-force ranks a bounded candidate pool of embedded
// active events by cosine similarity to queryEmbedding.
func (s *Store) knnSearchEvents(ctx context.Context, queryEmbedding []float32, limit int64) ([]scoredEvent, error) {
	filter := bson.M{
		"status":    bson.M{"$in": searchableStatuses},
		"embedding": bson.M{"$exists": true},
	}
	for k, v := range s.hotWindowFilter() {
		filter[k] = v
	}
	opts := options.Find().SetLimit(knnCandidatePoolSize)

	cursor, err := s.mongo.Collection(database.CollectionEvents).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store.knnSearchEvents: %w", err)
	}
	defer cursor.Close(ctx)

	var candidates []models.Event
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("store.knnSearchEvents: decode: %w", err)
	}

	hits := make([]scoredEvent, 0, len(candidates))
	for _, e := range candidates {
		if len(e.Embedding) != len(queryEmbedding) {
			continue
		}
		hits = append(hits, scoredEvent{event: e, score: cosineSimilarity(queryEmbedding, e.Embedding)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if int64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
