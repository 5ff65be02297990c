package heuristics

import (
	"strings"
	"testing"
	"time"

	"argus/internal/models"
)

func TestAnalyzeSkipsGreetings(t *testing.T) {
	if _, ok := Analyze("hey thanks", time.Now()); ok {
		t.Fatal("expected greeting to be skipped")
	}
}

func TestAnalyzeSkipsActionVerbs(t *testing.T) {
	if _, ok := Analyze("done with the report", time.Now()); ok {
		t.Fatal("expected action verb message to be skipped")
	}
}

func TestAnalyzeClassifiesMeeting(t *testing.T) {
	result, ok := Analyze("let's have a meeting tomorrow at 3pm", time.Now())
	if !ok {
		t.Fatal("expected extraction")
	}
	if result.EventType != models.EventMeeting {
		t.Fatalf("expected meeting, got %s", result.EventType)
	}
	if result.EventTime == nil {
		t.Fatal("expected resolved event time")
	}
	if result.Confidence > maxAnalyzeConfidence {
		t.Fatalf("confidence %f exceeds cap", result.Confidence)
	}
}

func TestAnalyzeClassifiesSubscription(t *testing.T) {
	result, ok := Analyze("your netflix subscription renews soon", time.Now())
	if !ok {
		t.Fatal("expected extraction")
	}
	if result.EventType != models.EventSubscription {
		t.Fatalf("expected subscription, got %s", result.EventType)
	}
}

func TestAnalyzeExtractsLocation(t *testing.T) {
	result, ok := Analyze("dinner at Olive Garden tomorrow", time.Now())
	if !ok {
		t.Fatal("expected extraction")
	}
	if result.Location == "" {
		t.Fatal("expected location to be extracted")
	}
}

func TestAnalyzeExtractsProperNounKeywordsForUnclassifiedMessages(t *testing.T) {
	result, ok := Analyze("Bro you should definitely try the cashews at Zantyes shop when you go to Goa", time.Now())
	if !ok {
		t.Fatal("expected extraction")
	}
	if result.EventType != models.EventOther {
		t.Fatalf("expected other, got %s", result.EventType)
	}
	if !strings.Contains(result.Keywords, "zantyes") && !strings.Contains(result.Keywords, "goa") {
		t.Fatalf("expected keywords to contain a recognizable place name, got %q", result.Keywords)
	}
}

func TestAnalyzeLocationStopsAtClauseBoundary(t *testing.T) {
	result, ok := Analyze("let's have dinner at Olive Garden tonight", time.Now())
	if !ok {
		t.Fatal("expected extraction")
	}
	if strings.Contains(result.Location, "tonight") {
		t.Fatalf("expected location to stop before the stop word, got %q", result.Location)
	}
}

func TestDetectActionMatchesCompleteByOverlap(t *testing.T) {
	candidates := []CandidateEvent{
		{ID: 1, Title: "dentist appointment", Keywords: "dentist,health"},
		{ID: 2, Title: "team meeting", Keywords: "meet,work"},
	}
	result := DetectAction("done with the dentist appointment", candidates)
	if result.Action != ActionComplete {
		t.Fatalf("expected complete, got %s", result.Action)
	}
	if result.TargetID != 1 {
		t.Fatalf("expected target 1, got %d", result.TargetID)
	}
}

func TestDetectActionPostponeSetsSnoozeDuration(t *testing.T) {
	candidates := []CandidateEvent{{ID: 5, Title: "team meeting", Keywords: "meet"}}
	result := DetectAction("let's postpone the team meeting to next week", candidates)
	if result.Action != ActionPostpone {
		t.Fatalf("expected postpone, got %s", result.Action)
	}
	if result.SnoozeMinutes != snoozeNextWeekMinutes {
		t.Fatalf("expected next-week snooze, got %d", result.SnoozeMinutes)
	}
}

func TestDetectActionNoneWithoutCandidateOverlap(t *testing.T) {
	candidates := []CandidateEvent{{ID: 9, Title: "unrelated thing", Keywords: "x"}}
	result := DetectAction("done with the dentist appointment", candidates)
	if result.Action != ActionNone {
		t.Fatalf("expected none, got %s", result.Action)
	}
}

func TestValidateRelevanceMatchesOnOverlap(t *testing.T) {
	candidates := []CandidateEvent{
		{Title: "flight to tokyo", Keywords: "travel,flight,airport"},
		{Title: "grocery list", Keywords: "shopping"},
	}
	matches := ValidateRelevance([]string{"flight", "airport", "tokyo"}, candidates)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Index != 0 {
		t.Fatalf("expected index 0, got %d", matches[0].Index)
	}
	if matches[0].Confidence > maxRelevanceConfidence {
		t.Fatalf("confidence %f exceeds cap", matches[0].Confidence)
	}
}

func TestChatFallsBackToTodayFilter(t *testing.T) {
	now := time.Now()
	soon := now.Add(2 * time.Hour).Unix()
	candidates := []CandidateEvent{{ID: 1, Title: "standup"}}
	times := map[int64]*int64{1: &soon}
	reply := Chat("what's happening today", candidates, times, now)
	if reply == "I couldn't find anything matching that." {
		t.Fatal("expected today filter to surface the candidate")
	}
}

func TestChatNoMatch(t *testing.T) {
	reply := Chat("xyzzy plugh", nil, nil, time.Now())
	if reply != "I couldn't find anything matching that." {
		t.Fatalf("expected no-match message, got %q", reply)
	}
}

func TestGeneratePopupBlueprintCoversAllTypes(t *testing.T) {
	types := []models.PopupType{
		models.PopupEventDiscovery, models.PopupEventReminder, models.PopupContextReminder,
		models.PopupConflictWarning, models.PopupInsightCard, models.PopupSnoozeReminder,
		models.PopupUpdateConfirm, models.PopupFormMismatch,
	}
	for _, pt := range types {
		popup := GeneratePopupBlueprint(pt, "Team sync", "context note", "Other meeting")
		if popup == nil {
			t.Fatalf("expected non-nil popup for %s", pt)
		}
		if len(popup.Buttons) == 0 {
			t.Fatalf("expected at least one button for %s", pt)
		}
		if popup.PopupType != pt {
			t.Fatalf("expected popup type %s, got %s", pt, popup.PopupType)
		}
	}
}
