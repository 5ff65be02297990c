package heuristics

import (
	"fmt"
	"strings"
	"time"
)

// Chat answers a free-text query against a candidate event list without an
// LLM: token-overlap scoring, falling back to a today/this-week time filter
// when nothing matches (spec §4.4).
func Chat(query string, candidates []CandidateEvent, eventTimes map[int64]*int64, now time.Time) string {
	lower := strings.ToLower(query)
	queryTokens := tokenize(lower)

	type scored struct {
		c     CandidateEvent
		score int
	}
	var scoredList []scored
	for _, c := range candidates {
		haystack := tokenize(strings.ToLower(c.Title + " " + c.Keywords))
		score := overlapCount(queryTokens, haystack)
		if score > 0 {
			scoredList = append(scoredList, scored{c, score})
		}
	}

	if len(scoredList) == 0 && (strings.Contains(lower, "today") || strings.Contains(lower, "this week")) {
		window := 24 * time.Hour
		if strings.Contains(lower, "this week") {
			window = 7 * 24 * time.Hour
		}
		cutoff := now.Add(window).Unix()
		for _, c := range candidates {
			t := eventTimes[c.ID]
			if t != nil && *t >= now.Unix() && *t <= cutoff {
				scoredList = append(scoredList, scored{c, 1})
			}
		}
	}

	if len(scoredList) == 0 {
		return "I couldn't find anything matching that."
	}

	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for _, s := range scoredList {
		fmt.Fprintf(&b, "- %s (%s)\n", s.c.Title, s.c.EventType)
	}
	return b.String()
}
