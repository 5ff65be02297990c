// Package heuristics implements the T2 deterministic fallbacks (spec §4.4):
// pure functions with no I/O, used when the Tier Orchestrator has fallen
// back from the T1 LLM.
package heuristics

import (
	"regexp"
	"strings"
	"time"

	"argus/internal/models"
)

const maxAnalyzeConfidence = 0.95

var greetingTokens = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true, "sup": true,
	"thanks": true, "thank": true, "ok": true, "okay": true, "bye": true,
}

var actionVerbPattern = regexp.MustCompile(`(?i)\b(cancel|done|ho gaya|remind me)\b`)

var subscriptionServices = []string{
	"netflix", "spotify", "prime", "hulu", "disney+", "disney plus",
	"youtube premium", "hbo", "apple music", "paramount+",
}

var meetingKeywords = []string{"meet", "meeting", "call", "dinner", "lunch", "interview"}
var taskKeywords = []string{"need to", "remember to", "don't forget", "dont forget"}

var locationPattern = regexp.MustCompile(`(?i)\b(?:in|at)\s+([a-zA-Z][a-zA-Z'-]*(?:\s+[a-zA-Z][a-zA-Z'-]*){0,2})`)

// locationStopWords are words locationPattern's match is truncated at, so a
// trailing clause ("...at Zantyes shop when you go to Goa") doesn't get
// folded into the captured location.
var locationStopWords = map[string]bool{
	"when": true, "while": true, "then": true, "and": true, "but": true,
	"so": true, "because": true, "before": true, "after": true, "during": true,
	"tomorrow": true, "today": true, "tonight": true, "kal": true, "aaj": true,
}

// properNounPattern finds capitalized words outside the sentence's own
// leading word, used as a last-resort keyword source for event types with no
// fixed vocabulary (travel/recommendation-style messages, spec §4.4's
// "other" classification).
var properNounPattern = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)

var explicitTimePattern = regexp.MustCompile(`(?i)\b([01]?[0-9])(?::([0-5][0-9]))?\s*(am|pm)?\b`)

// weekdays maps lowercase English weekday names to time.Weekday.
var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// AnalyzeResult mirrors the subset of fields the T1 LLM extraction would
// have returned, per spec §4.6 step 6. The heuristic fallback only ever
// proposes a create (never a modify): identifying an existing event as the
// target of an update requires the semantic matching only the LLM path
// performs, so EventAction is always "create" and TargetEventID always nil
// out of this package.
type AnalyzeResult struct {
	EventType     models.EventType `json:"event_type"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	EventTime     *int64           `json:"event_time,omitempty"`
	Location      string           `json:"location,omitempty"`
	Keywords      string           `json:"keywords,omitempty"`
	Confidence    float64          `json:"confidence"`
	EventAction   string           `json:"event_action,omitempty"`
	TargetEventID *int64           `json:"target_event_id,omitempty"`
}

// Analyze extracts zero or one event from message text deterministically.
// now anchors relative date resolution (the message timestamp, per spec).
func Analyze(message string, now time.Time) (*AnalyzeResult, bool) {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) < 5 {
		return nil, false
	}

	lower := strings.ToLower(trimmed)
	if isPureGreeting(lower) {
		return nil, false
	}
	if actionVerbPattern.MatchString(lower) {
		return nil, false
	}

	eventType := classify(lower)

	result := &AnalyzeResult{
		EventType:   eventType,
		Title:       trimmed,
		Confidence:  maxAnalyzeConfidence,
		EventAction: "create",
	}

	if loc := extractLocation(trimmed); loc != "" {
		result.Location = loc
	}

	if t := resolveDate(lower, now); t != nil {
		unix := t.Unix()
		result.EventTime = &unix
	}

	result.Keywords = strings.Join(keywordsFor(eventType, lower, trimmed), ",")

	return result, true
}

func isPureGreeting(lower string) bool {
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		f = strings.Trim(f, ".,!?")
		if !greetingTokens[f] {
			return false
		}
	}
	return true
}

func classify(lower string) models.EventType {
	for _, svc := range subscriptionServices {
		if strings.Contains(lower, svc) {
			return models.EventSubscription
		}
	}
	for _, kw := range meetingKeywords {
		if strings.Contains(lower, kw) {
			return models.EventMeeting
		}
	}
	for _, kw := range taskKeywords {
		if strings.Contains(lower, kw) {
			return models.EventTask
		}
	}
	return models.EventOther
}

func extractLocation(text string) string {
	m := locationPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}

	fields := strings.Fields(m[1])
	var kept []string
	for _, f := range fields {
		if locationStopWords[strings.ToLower(strings.Trim(f, ".,!?"))] {
			break
		}
		kept = append(kept, f)
	}

	loc := strings.TrimRight(strings.Join(kept, " "), ".,!?")
	if len(loc) < 3 || len(loc) > 29 {
		return ""
	}
	return loc
}

// resolveDate implements the date-resolution rules of spec §4.4: relative
// day words, weekday names, and an explicit HH(:MM)?(am|pm)? override.
func resolveDate(lower string, now time.Time) *time.Time {
	loc := now.Location()
	var base time.Time

	switch {
	case strings.Contains(lower, "tomorrow") || strings.Contains(lower, "kal"):
		base = time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, loc).AddDate(0, 0, 1)
	case strings.Contains(lower, "today") || strings.Contains(lower, "aaj"):
		base = time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, loc)
	case strings.Contains(lower, "next week"):
		base = now.AddDate(0, 0, 7)
	default:
		for name, wd := range weekdays {
			if strings.Contains(lower, name) {
				base = nextOccurrence(now, wd)
				break
			}
		}
	}

	if base.IsZero() {
		return nil
	}

	if hour, minute, ok := parseExplicitTime(lower); ok {
		candidate := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, loc)
		if candidate.Before(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		base = candidate
	}

	return &base
}

func nextOccurrence(now time.Time, target time.Weekday) time.Time {
	days := (int(target) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, now.Location())
}

func parseExplicitTime(lower string) (hour, minute int, ok bool) {
	m := explicitTimePattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, false
	}
	hour = atoiSafe(m[1])
	if m[2] != "" {
		minute = atoiSafe(m[2])
	}
	meridiem := strings.ToLower(m[3])
	if meridiem == "pm" && hour < 12 {
		hour += 12
	}
	if meridiem == "am" && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func keywordsFor(eventType models.EventType, lower, original string) []string {
	var kws []string
	switch eventType {
	case models.EventSubscription:
		for _, svc := range subscriptionServices {
			if strings.Contains(lower, svc) {
				kws = append(kws, strings.ReplaceAll(svc, " ", ""))
			}
		}
	case models.EventMeeting:
		for _, kw := range meetingKeywords {
			if strings.Contains(lower, kw) {
				kws = append(kws, kw)
			}
		}
	case models.EventTask:
		kws = append(kws, "task")
	default:
		// No fixed vocabulary for recommendation/travel/other messages;
		// fall back to proper nouns (shop names, places) so the ingest
		// pipeline's context_url gazetteer lookup has something to match.
		kws = append(kws, properNouns(original)...)
	}
	return kws
}

// properNouns returns the lowercased capitalized words in text, skipping the
// sentence's own leading word (capitalized only by sentence-case, not
// because it names anything).
func properNouns(text string) []string {
	lead := ""
	if fields := strings.Fields(text); len(fields) > 0 {
		lead = fields[0]
	}

	var out []string
	for _, m := range properNounPattern.FindAllString(text, -1) {
		if m == lead {
			continue
		}
		out = append(out, strings.ToLower(m))
	}
	return out
}
