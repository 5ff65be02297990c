package tier

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"argus/internal/cache"
	"argus/internal/envelope"
	"argus/internal/models"
	"argus/internal/tier/heuristics"
)

func newTestService(t *testing.T, mode Mode) *Service {
	t.Helper()
	dl := envelope.NewDeadLetterWriter(filepath.Join(t.TempDir(), "dead-letter.jsonl"))
	caller := envelope.NewSafeCaller(dl)
	orch := New(mode, nil, caller, 30)
	c := cache.New(10, time.Minute)
	return NewService(orch, nil, c)
}

func TestServiceAnalyzeFallsBackToHeuristic(t *testing.T) {
	svc := newTestService(t, ModeForceT2)
	result, ok := svc.Analyze(context.Background(), "let's have a meeting tomorrow at 3pm", nil, time.Now())
	if !ok {
		t.Fatal("expected heuristic extraction to succeed")
	}
	if result.EventType != models.EventMeeting {
		t.Fatalf("expected meeting, got %s", result.EventType)
	}
}

func TestServiceAnalyzeNoEventFound(t *testing.T) {
	svc := newTestService(t, ModeForceT2)
	_, ok := svc.Analyze(context.Background(), "hey", nil, time.Now())
	if ok {
		t.Fatal("expected no event for a greeting")
	}
}

func TestServiceDetectActionFallsBackToHeuristic(t *testing.T) {
	svc := newTestService(t, ModeForceT2)
	candidates := []heuristics.CandidateEvent{{ID: 1, Title: "dentist appointment", Keywords: "dentist"}}
	result := svc.DetectAction(context.Background(), "done with the dentist appointment", candidates)
	if result.Action != heuristics.ActionComplete {
		t.Fatalf("expected complete, got %s", result.Action)
	}
}

func TestServiceValidateRelevanceFallsBackToHeuristic(t *testing.T) {
	svc := newTestService(t, ModeForceT2)
	candidates := []heuristics.CandidateEvent{{Title: "flight to tokyo", Keywords: "travel,flight,airport"}}
	matches := svc.ValidateRelevance(context.Background(), []string{"flight", "airport", "tokyo"}, candidates)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
}

func TestServiceChatFallsBackToHeuristic(t *testing.T) {
	svc := newTestService(t, ModeForceT2)
	reply := svc.Chat(context.Background(), "xyzzy", nil, nil, time.Now())
	if reply != "I couldn't find anything matching that." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestServiceGeneratePopupBlueprintFallsBackToStaticTemplate(t *testing.T) {
	svc := newTestService(t, ModeForceT2)
	popup := svc.GeneratePopupBlueprint(context.Background(), models.PopupEventReminder, "Team sync", "", "")
	if popup == nil {
		t.Fatal("expected a popup")
	}
	if popup.PopupType != models.PopupEventReminder {
		t.Fatalf("expected popup type to be preserved, got %s", popup.PopupType)
	}
}

func TestOrchestratorEscalatesAndResetsOnSuccess(t *testing.T) {
	dl := envelope.NewDeadLetterWriter(filepath.Join(t.TempDir(), "dead-letter.jsonl"))
	caller := envelope.NewSafeCaller(dl)
	orch := New(ModeAuto, nil, caller, 30)

	orch.recordFailure()
	orch.recordFailure()
	orch.recordFailure()
	status := orch.Status()
	if status.Tier != T2 {
		t.Fatalf("expected T2 after 3 failures, got T%d", status.Tier)
	}

	orch.recordSuccess()
	status = orch.Status()
	if status.ConsecutiveFailures != 0 {
		t.Fatalf("expected reset, got %d", status.ConsecutiveFailures)
	}
}
