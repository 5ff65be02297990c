package store

import (
	"math"
	"testing"
	"time"

	"argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	got := cosineSimilarity(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected similarity 1.0 for identical vectors, got %f", got)
	}
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	got := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(got) > 1e-9 {
		t.Fatalf("expected similarity 0 for orthogonal vectors, got %f", got)
	}
}

func TestCosineSimilarityZeroVectorIsZero(t *testing.T) {
	got := cosineSimilarity([]float32{0, 0}, []float32{1, 2})
	if got != 0 {
		t.Fatalf("expected similarity 0 for a zero vector, got %f", got)
	}
}

func TestSearchableStatusesIsAnAllowlistNotADenylist(t *testing.T) {
	want := map[models.EventStatus]bool{
		models.StatusPending:    true,
		models.StatusScheduled:  true,
		models.StatusDiscovered: true,
	}
	if len(searchableStatuses) != len(want) {
		t.Fatalf("expected %d searchable statuses, got %d", len(want), len(searchableStatuses))
	}
	for _, s := range searchableStatuses {
		if !want[s] {
			t.Fatalf("unexpected status %s in searchable allowlist", s)
		}
	}
	for _, excluded := range []models.EventStatus{models.StatusSnoozed, models.StatusReminded, models.StatusCompleted, models.StatusExpired, models.StatusIgnored} {
		for _, s := range searchableStatuses {
			if s == excluded {
				t.Fatalf("status %s should not be searchable", excluded)
			}
		}
	}
}

func TestHotWindowFilterBoundsByConfiguredDays(t *testing.T) {
	s := &Store{hotWindowDays: 90}
	filter := s.hotWindowFilter()

	createdAt, ok := filter["createdAt"].(bson.M)
	if !ok {
		t.Fatalf("expected createdAt clause, got %#v", filter["createdAt"])
	}
	cutoff, ok := createdAt["$gte"].(int64)
	if !ok {
		t.Fatalf("expected $gte int64 cutoff, got %#v", createdAt["$gte"])
	}

	wantCutoff := time.Now().AddDate(0, 0, -90).Unix()
	if diff := wantCutoff - cutoff; diff < -2 || diff > 2 {
		t.Fatalf("expected cutoff near %d, got %d", wantCutoff, cutoff)
	}
}
