package heuristics

import (
	"strings"

	"argus/internal/models"
)

// Action is one of the five outcomes Detect Action can return.
type Action string

const (
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionIgnore   Action = "ignore"
	ActionPostpone Action = "postpone"
	ActionNone     Action = "none"
)

// CandidateEvent is the minimal projection of an event Detect Action and
// Validate Relevance match against (id + title + event_type + keywords,
// per spec §4.6 step 5).
type CandidateEvent struct {
	ID          int64
	Title       string
	EventType   models.EventType
	Keywords    string
	Location    string
	Description string
}

var actionPhrases = map[Action][]string{
	ActionComplete: {"done", "complete", "completed", "finished", "ho gaya"},
	ActionCancel:   {"cancel", "cancelled", "canceled"},
	ActionIgnore:   {"ignore", "dismiss", "nevermind", "never mind"},
	ActionPostpone: {"postpone", "snooze", "delay", "push back", "next week", "later"},
}

const snoozeDefaultMinutes = 30
const snoozeNextWeekMinutes = 10080
const snoozeTomorrowMinutes = 1440

// DetectActionResult is Detect Action's outcome.
type DetectActionResult struct {
	Action        Action `json:"action"`
	TargetID      int64  `json:"target_id,omitempty"`
	SnoozeMinutes int    `json:"snooze_minutes,omitempty"`
}

// DetectAction matches message against a caller-supplied candidate list and
// returns the detected action and, for postpone, the snooze duration in
// minutes (spec §4.4).
func DetectAction(message string, candidates []CandidateEvent) DetectActionResult {
	lower := strings.ToLower(message)
	action := matchAction(lower)
	if action == ActionNone || len(candidates) == 0 {
		return DetectActionResult{Action: ActionNone}
	}

	tokens := tokenize(lower)
	bestIdx := -1
	bestOverlap := 0
	for i, c := range candidates {
		haystack := tokenize(strings.ToLower(c.Title + " " + c.Keywords))
		overlap := overlapCount(tokens, haystack)
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestIdx = i
		}
	}

	if bestIdx == -1 || bestOverlap == 0 {
		return DetectActionResult{Action: ActionNone}
	}

	result := DetectActionResult{Action: action, TargetID: candidates[bestIdx].ID}
	if action == ActionPostpone {
		result.SnoozeMinutes = snoozeDuration(lower)
	}
	return result
}

func matchAction(lower string) Action {
	for _, action := range []Action{ActionComplete, ActionCancel, ActionIgnore, ActionPostpone} {
		for _, phrase := range actionPhrases[action] {
			if strings.Contains(lower, phrase) {
				return action
			}
		}
	}
	return ActionNone
}

func snoozeDuration(lower string) int {
	switch {
	case strings.Contains(lower, "next week"):
		return snoozeNextWeekMinutes
	case strings.Contains(lower, "tomorrow") || strings.Contains(lower, "kal"):
		return snoozeTomorrowMinutes
	default:
		return snoozeDefaultMinutes
	}
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	return fields
}

func overlapCount(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	count := 0
	for _, t := range a {
		if set[t] {
			count++
		}
	}
	return count
}
