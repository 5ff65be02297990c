package store

import (
	"testing"

	"argus/internal/models"
)

func TestDeriveTimeTriggersPicksEarliestFutureOffset(t *testing.T) {
	now := int64(1_000_000)
	eventTime := now + 90_000 // all three offsets (24h,1h,15m before) are in the future

	triggers, reminderTime := DeriveTimeTriggers(7, eventTime, now)

	if len(triggers) != 3 {
		t.Fatalf("expected 3 surviving offsets, got %d", len(triggers))
	}
	if reminderTime == nil {
		t.Fatal("expected a non-nil reminder time")
	}

	want24h := eventTime - 86400
	if *reminderTime != want24h {
		t.Fatalf("expected reminder time to be the earliest (24h) offset %d, got %d", want24h, *reminderTime)
	}
	if *triggers[0].FireAt != want24h {
		t.Fatalf("expected first trigger to fire at %d, got %d", want24h, *triggers[0].FireAt)
	}
	for _, tr := range triggers {
		if tr.EventID != 7 {
			t.Fatalf("expected EventID 7, got %d", tr.EventID)
		}
	}
}

func TestDeriveTimeTriggersDropsPastOffsets(t *testing.T) {
	now := int64(1_000_000)
	eventTime := now + 1800 // only the 15m-before offset is still in the future

	triggers, reminderTime := DeriveTimeTriggers(3, eventTime, now)

	if len(triggers) != 1 {
		t.Fatalf("expected 1 surviving offset, got %d", len(triggers))
	}
	if reminderTime == nil || *reminderTime != eventTime-900 {
		t.Fatalf("expected reminder time %d, got %v", eventTime-900, reminderTime)
	}
	if triggers[0].TriggerType != models.TriggerTime15m {
		t.Fatalf("expected the 15m trigger kind, got %s", triggers[0].TriggerType)
	}
}

func TestDeriveTimeTriggersNoneWhenEventAlreadyPast(t *testing.T) {
	now := int64(1_000_000)
	eventTime := now - 100

	triggers, reminderTime := DeriveTimeTriggers(1, eventTime, now)

	if triggers != nil {
		t.Fatalf("expected no triggers, got %d", len(triggers))
	}
	if reminderTime != nil {
		t.Fatalf("expected nil reminder time, got %v", *reminderTime)
	}
}
