package scheduler

import (
	"context"
	"log"
	"time"

	"argus/internal/embedding"
	"argus/internal/store"
)

const embeddingBackfillBatch = 50

// EmbeddingBackfillJob implements the 5-min embedding backfill (spec §4.10):
// pulls events missing an embedding and computes one silently. A failure
// here is never surfaced to the tier orchestrator or any caller — the event
// simply stays text-searchable until the next tick retries it.
type EmbeddingBackfillJob struct {
	store    *store.Store
	embedder *embedding.Client
}

// NewEmbeddingBackfillJob assembles an EmbeddingBackfillJob. embedder may be
// nil, in which case Run is a no-op (no embedding provider configured).
func NewEmbeddingBackfillJob(s *store.Store, embedder *embedding.Client) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{store: s, embedder: embedder}
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.embedder == nil {
		return nil
	}

	events, err := j.store.ListEventsMissingEmbedding(ctx, embeddingBackfillBatch)
	if err != nil {
		return err
	}

	for _, event := range events {
		text := event.Title
		if event.Description != "" {
			text = text + " " + event.Description
		}

		vec, genErr := j.embedder.Generate(ctx, text)
		if genErr != nil {
			log.Printf("⚠️ [SCHEDULER] embedding backfill skipped event %d: %v", event.ID, genErr)
			continue
		}
		if setErr := j.store.SetEventEmbedding(ctx, event.ID, vec); setErr != nil {
			log.Printf("⚠️ [SCHEDULER] embedding backfill write failed for event %d: %v", event.ID, setErr)
		}
	}
	return nil
}

func (j *EmbeddingBackfillJob) GetNextRunTime() time.Time {
	return time.Now().Add(5 * time.Minute)
}
