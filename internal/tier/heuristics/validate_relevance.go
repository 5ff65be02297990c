package heuristics

import "strings"

const (
	relevanceOverlapRatio  = 0.3
	relevanceMinOverlap    = 2
	maxRelevanceConfidence = 0.6
)

// ValidateRelevanceResult pairs a matched candidate's index with a capped
// confidence score.
type ValidateRelevanceResult struct {
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// ValidateRelevance returns the indices of candidates whose concatenated
// title+keywords+location+description overlaps urlKeywords by at least 30%
// or at least 2 tokens (spec §4.4), confidence capped at 0.6.
func ValidateRelevance(urlKeywords []string, candidates []CandidateEvent) []ValidateRelevanceResult {
	urlSet := make(map[string]bool, len(urlKeywords))
	for _, k := range urlKeywords {
		urlSet[strings.ToLower(k)] = true
	}
	if len(urlSet) == 0 {
		return nil
	}

	var matches []ValidateRelevanceResult
	for i, c := range candidates {
		haystack := tokenize(strings.ToLower(c.Title + " " + c.Keywords + " " + c.Location + " " + c.Description))
		seen := make(map[string]bool)
		overlap := 0
		for _, t := range haystack {
			if urlSet[t] && !seen[t] {
				seen[t] = true
				overlap++
			}
		}
		ratio := float64(overlap) / float64(len(urlSet))
		if overlap >= relevanceMinOverlap || ratio >= relevanceOverlapRatio {
			confidence := ratio
			if confidence > maxRelevanceConfidence {
				confidence = maxRelevanceConfidence
			}
			matches = append(matches, ValidateRelevanceResult{Index: i, Confidence: confidence})
		}
	}
	return matches
}
