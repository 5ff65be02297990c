// Package context implements the Context Matcher (spec §4.10): the
// matchContext(url, title) entry point that the /api/context-check route
// and the browser-resident client's URL-change hook both drive. The
// embedding backfill that keeps events searchable via the hybrid branch
// lives alongside the other background jobs in internal/scheduler.
package context

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"argus/internal/cache"
	"argus/internal/embedding"
	"argus/internal/models"
	"argus/internal/store"
	"argus/internal/tier"
	"argus/internal/tier/heuristics"
)

const (
	resultCacheTTL      = 10 * time.Minute
	resultCacheSize     = 200
	matchCandidateLimit = 20
)

// trackingParams are the query-string keys stripped during canonicalization
// (spec §4.10 step 1).
var trackingParams = map[string]bool{"ref": true, "fbclid": true, "gclid": true}

// Matcher implements matchContext.
type Matcher struct {
	store    *store.Store
	tier     *tier.Service
	embedder *embedding.Client
	cache    *cache.Cache
}

// New assembles a Matcher. embedder may be nil, in which case the hybrid
// branch is a no-op.
func New(s *store.Store, t *tier.Service, embedder *embedding.Client) *Matcher {
	return &Matcher{store: s, tier: t, embedder: embedder, cache: cache.New(resultCacheSize, resultCacheTTL)}
}

// CacheStats reports the result cache's current size, for GET /api/health's
// matchCache field.
func (m *Matcher) CacheStats() map[string]int {
	return map[string]int{"size": m.cache.Len()}
}

// Result is matchContext's return value, shaped for the /api/context-check
// response body (spec §6: "{matched, events, confidence, contextTriggers,
// contextTriggersCount}").
type Result struct {
	Matched              bool           `json:"matched"`
	Events               []models.Event `json:"events"`
	Confidence           float64        `json:"confidence"`
	ContextTriggers      []models.Event `json:"contextTriggers"`
	ContextTriggersCount int            `json:"contextTriggersCount"`
}

// activityPattern is one entry of the regex→activity table step 3 draws
// keywords from.
type activityPattern struct {
	re       *regexp.Regexp
	activity string
	extract  func(match []string) []string
}

var activityPatterns = []activityPattern{
	{
		re:       regexp.MustCompile(`(?i)netflix\.com`),
		activity: "streaming",
		extract:  func(match []string) []string { return []string{"netflix"} },
	},
	{
		re:       regexp.MustCompile(`(?i)spotify\.com`),
		activity: "streaming",
		extract:  func(match []string) []string { return []string{"spotify"} },
	},
	{
		re:       regexp.MustCompile(`(?i)(makemytrip|booking|airbnb|expedia)\.com`),
		activity: "travel",
		extract:  func(match []string) []string { return []string{strings.ToLower(match[1])} },
	},
	{
		re:       regexp.MustCompile(`(?i)/([a-z]+)-(hotels|flights|tickets)`),
		activity: "travel",
		extract:  func(match []string) []string { return []string{strings.ToLower(match[1])} },
	},
}

// Match runs matchContext(url, title) end to end (spec §4.10). keywords, if
// non-empty, supplements (never replaces) the URL-derived keyword set.
func (m *Matcher) Match(ctx context.Context, rawURL, title string, extraKeywords []string) (*Result, error) {
	canonical := canonicalize(rawURL)

	if cached, hit := m.cache.Get(cache.Key(canonical)); hit {
		var result Result
		if json.Unmarshal([]byte(cached), &result) == nil {
			return &result, nil
		}
	}

	keywords := deriveKeywords(canonical)
	keywords = append(keywords, extraKeywords...)
	if title != "" {
		keywords = append(keywords, tokenizePath(title)...)
	}
	keywords = dedupe(keywords)

	events, storeErr := m.lookupCandidates(ctx, canonical, keywords)
	if storeErr != nil {
		log.Printf("⚠️ [CONTEXT] store lookup failed, falling back to stale cache: %v", storeErr)
		if cached, hit := m.cache.Get(cache.Key(canonical)); hit {
			var result Result
			if json.Unmarshal([]byte(cached), &result) == nil {
				return &result, nil
			}
		}
		return &Result{}, nil
	}

	result := m.validate(ctx, keywords, events)
	if raw, err := json.Marshal(result); err == nil {
		m.cache.Set(cache.Key(canonical), string(raw))
	}
	return result, nil
}

// lookupCandidates implements step 4: exact-location match, else
// multi-field text match, else (if an embedder is configured) hybrid.
func (m *Matcher) lookupCandidates(ctx context.Context, canonicalURL string, keywords []string) ([]models.Event, error) {
	exact, err := m.store.ContextURLMatch(ctx, canonicalURL)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}

	queryText := strings.Join(keywords, " ")
	if queryText == "" {
		return nil, nil
	}

	textOnly, err := m.store.HybridSearchEvents(ctx, queryText, nil, matchCandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(textOnly) > 0 || m.embedder == nil {
		return textOnly, nil
	}

	vec, embedErr := m.embedder.Generate(ctx, queryText)
	if embedErr != nil || len(vec) == 0 {
		return textOnly, nil
	}
	return m.store.HybridSearchEvents(ctx, queryText, vec, matchCandidateLimit)
}

// validate implements step 5: withFallback(LLM validate, keyword overlap,
// empty), via tier.Service.ValidateRelevance.
func (m *Matcher) validate(ctx context.Context, keywords []string, events []models.Event) *Result {
	if len(events) == 0 {
		return &Result{}
	}

	candidates := make([]heuristics.CandidateEvent, len(events))
	for i, e := range events {
		candidates[i] = heuristics.CandidateEvent{
			ID: e.ID, Title: e.Title, EventType: e.EventType, Keywords: e.Keywords,
			Location: e.Location, Description: e.Description,
		}
	}

	matches := m.tier.ValidateRelevance(ctx, keywords, candidates)
	if len(matches) == 0 {
		return &Result{}
	}

	matched := make([]models.Event, 0, len(matches))
	best := 0.0
	for _, mt := range matches {
		if mt.Index < 0 || mt.Index >= len(events) {
			continue
		}
		matched = append(matched, events[mt.Index])
		if mt.Confidence > best {
			best = mt.Confidence
		}
	}
	if len(matched) == 0 {
		return &Result{}
	}

	return &Result{
		Matched:              true,
		Events:               matched,
		Confidence:           best,
		ContextTriggers:      matched,
		ContextTriggersCount: len(matched),
	}
}

// canonicalize implements step 1: strip utm_* / ref / fbclid / gclid query
// params and the fragment.
func canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if trackingParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// deriveKeywords implements step 3: the regex→activity table, falling back
// to the default path-tokenizer over the URL's path when nothing matches.
func deriveKeywords(canonicalURL string) []string {
	for _, p := range activityPatterns {
		if m := p.re.FindStringSubmatch(canonicalURL); m != nil {
			return p.extract(m)
		}
	}
	if u, err := url.Parse(canonicalURL); err == nil {
		return tokenizePath(u.Path)
	}
	return tokenizePath(canonicalURL)
}

// tokenizePath is the default path-tokenizer: split on non-alphanumeric
// runs, drop sub-3-char segments and pure-digit tokens.
func tokenizePath(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || isAllDigits(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isAllDigits(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
