package tier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"argus/internal/cache"
	"argus/internal/models"
	"argus/internal/popuptemplates"
	"argus/internal/tier/heuristics"
)

// Service wires the Orchestrator, the T1 LLM client, and the Response Cache
// into the five withFallback call sites the Ingestion Pipeline and the HTTP
// handlers use (spec §4.3, §4.4). It is the seam the rest of the server
// depends on instead of touching Orchestrator/Client/heuristics directly.
type Service struct {
	orch      *Orchestrator
	llm       *Client
	cache     *cache.Cache
	templates *popuptemplates.Store
}

// NewService assembles a Service. cache may be nil, in which case T3 always
// returns the fallback zero value instead of a cached result.
func NewService(orch *Orchestrator, llm *Client, c *cache.Cache) *Service {
	return &Service{orch: orch, llm: llm, cache: c}
}

// SetPopupTemplates installs the externally configured popup blueprint
// templates (spec §4.7). Until called, GeneratePopupBlueprint falls back to
// the compiled-in defaults in internal/tier/heuristics.
func (s *Service) SetPopupTemplates(store *popuptemplates.Store) {
	s.templates = store
}

func (s *Service) popupBlueprint(popupType models.PopupType, eventTitle, contextNote, conflictTitle string) *models.Popup {
	if s.templates != nil {
		if popup, ok := s.templates.Render(popupType, eventTitle, contextNote, conflictTitle); ok {
			return popup
		}
	}
	return heuristics.GeneratePopupBlueprint(popupType, eventTitle, contextNote, conflictTitle)
}

var analyzeSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"event_type":      map[string]interface{}{"type": "string"},
		"title":           map[string]interface{}{"type": "string"},
		"description":     map[string]interface{}{"type": "string"},
		"event_time":      map[string]interface{}{"type": []string{"integer", "null"}},
		"location":        map[string]interface{}{"type": "string"},
		"keywords":        map[string]interface{}{"type": "string"},
		"confidence":      map[string]interface{}{"type": "number"},
		"event_action":    map[string]interface{}{"type": "string", "enum": []string{"create", "modify"}},
		"target_event_id": map[string]interface{}{"type": []string{"integer", "null"}},
		"found":           map[string]interface{}{"type": "boolean"},
	},
	"required":             []string{"found"},
	"additionalProperties": false,
}

// Analyze extracts zero or one event from message text, trying the T1 LLM
// first, falling back to the T2 heuristic, and finally to "no event found".
// recentContext is the last few messages in the chat (spec §4.6 step 6);
// only the T1 LLM path uses it, since the T2 heuristic is scoped to the
// single message it is given.
func (s *Service) Analyze(ctx context.Context, message string, recentContext []string, now time.Time) (*heuristics.AnalyzeResult, bool) {
	key := cache.Key("analyze:" + message)

	t1 := func(ctx context.Context) (interface{}, error) {
		var out struct {
			heuristics.AnalyzeResult
			Found bool `json:"found"`
		}
		prompt := message
		if len(recentContext) > 0 {
			prompt = "recent messages:\n" + strings.Join(recentContext, "\n") + "\n\ncurrent message: " + message
		}
		if err := s.llm.CallStructured(ctx, "analyze_event", analyzeSchema,
			"Extract at most one event from the message. Set found=false if none.", prompt, &out); err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(out); err == nil && s.cache != nil {
			s.cache.Set(key, string(raw))
		}
		if !out.Found {
			return (*heuristics.AnalyzeResult)(nil), nil
		}
		result := out.AnalyzeResult
		return &result, nil
	}

	t2 := func() (interface{}, error) {
		result, ok := heuristics.Analyze(message, now)
		if !ok {
			return (*heuristics.AnalyzeResult)(nil), nil
		}
		return result, nil
	}

	t3 := func() interface{} {
		if s.cache != nil {
			if raw, hit := s.cache.Get(key); hit {
				var out struct {
					heuristics.AnalyzeResult
					Found bool `json:"found"`
				}
				if json.Unmarshal([]byte(raw), &out) == nil && out.Found {
					result := out.AnalyzeResult
					return &result
				}
			}
		}
		return (*heuristics.AnalyzeResult)(nil)
	}

	result := s.orch.WithFallback(ctx, "analyze", t1, t2, t3)
	analyzed, _ := result.(*heuristics.AnalyzeResult)
	return analyzed, analyzed != nil
}

var detectActionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"action":         map[string]interface{}{"type": "string"},
		"target_id":      map[string]interface{}{"type": "integer"},
		"snooze_minutes": map[string]interface{}{"type": "integer"},
	},
	"required":             []string{"action"},
	"additionalProperties": false,
}

// DetectAction classifies message as one of the five action outcomes
// against candidates, trying T1 then T2, finally defaulting to "none".
func (s *Service) DetectAction(ctx context.Context, message string, candidates []heuristics.CandidateEvent) heuristics.DetectActionResult {
	t1 := func(ctx context.Context) (interface{}, error) {
		prompt := buildCandidatePrompt(message, candidates)
		var out heuristics.DetectActionResult
		if err := s.llm.CallStructured(ctx, "detect_action", detectActionSchema,
			"Classify the requested action against the candidate events and return its id.", prompt, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	t2 := func() (interface{}, error) {
		return heuristics.DetectAction(message, candidates), nil
	}

	t3 := func() interface{} {
		return heuristics.DetectActionResult{Action: heuristics.ActionNone}
	}

	result := s.orch.WithFallback(ctx, "detect_action", t1, t2, t3)
	if r, ok := result.(heuristics.DetectActionResult); ok {
		return r
	}
	return heuristics.DetectActionResult{Action: heuristics.ActionNone}
}

// ValidateRelevance decides whether a browsed URL's keywords relate to any
// candidate event, trying T1 then T2, finally reporting no matches.
func (s *Service) ValidateRelevance(ctx context.Context, urlKeywords []string, candidates []heuristics.CandidateEvent) []heuristics.ValidateRelevanceResult {
	t1 := func(ctx context.Context) (interface{}, error) {
		prompt := buildCandidatePrompt(joinKeywords(urlKeywords), candidates)
		var out struct {
			Matches []heuristics.ValidateRelevanceResult `json:"matches"`
		}
		schema := map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"matches": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"index":      map[string]interface{}{"type": "integer"},
							"confidence": map[string]interface{}{"type": "number"},
						},
						"required": []string{"index", "confidence"},
					},
				},
			},
			"required":             []string{"matches"},
			"additionalProperties": false,
		}
		if err := s.llm.CallStructured(ctx, "validate_relevance", schema,
			"Return the candidate indices relevant to the URL's keywords.", prompt, &out); err != nil {
			return nil, err
		}
		return out.Matches, nil
	}

	t2 := func() (interface{}, error) {
		return heuristics.ValidateRelevance(urlKeywords, candidates), nil
	}

	t3 := func() interface{} {
		return []heuristics.ValidateRelevanceResult(nil)
	}

	result := s.orch.WithFallback(ctx, "validate_relevance", t1, t2, t3)
	if r, ok := result.([]heuristics.ValidateRelevanceResult); ok {
		return r
	}
	return nil
}

// Chat answers a free-text query against candidates, trying T1 then the T2
// token-overlap heuristic, finally a static no-match message.
func (s *Service) Chat(ctx context.Context, query string, candidates []heuristics.CandidateEvent, eventTimes map[int64]*int64, now time.Time) string {
	t1 := func(ctx context.Context) (interface{}, error) {
		prompt := buildCandidatePrompt(query, candidates)
		var out struct {
			Reply string `json:"reply"`
		}
		schema := map[string]interface{}{
			"type":                 "object",
			"properties":           map[string]interface{}{"reply": map[string]interface{}{"type": "string"}},
			"required":             []string{"reply"},
			"additionalProperties": false,
		}
		if err := s.llm.CallStructured(ctx, "chat_reply", schema,
			"Answer the user's question about their tracked events, concisely.", prompt, &out); err != nil {
			return nil, err
		}
		return out.Reply, nil
	}

	t2 := func() (interface{}, error) {
		return heuristics.Chat(query, candidates, eventTimes, now), nil
	}

	t3 := func() interface{} {
		return "I couldn't find anything matching that."
	}

	result := s.orch.WithFallback(ctx, "chat", t1, t2, t3)
	if r, ok := result.(string); ok {
		return r
	}
	return "I couldn't find anything matching that."
}

// GeneratePopupBlueprint builds the UI-independent popup blueprint for an
// event/context, trying an LLM-generated rendering first (5s budget, spec
// §4.7) and falling back to the static template on failure or timeout.
func (s *Service) GeneratePopupBlueprint(ctx context.Context, popupType models.PopupType, eventTitle, contextNote, conflictTitle string) *models.Popup {
	llmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	t1 := func(ctx context.Context) (interface{}, error) {
		var out models.Popup
		schema := map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"icon":         map[string]interface{}{"type": "string"},
				"header_class": map[string]interface{}{"type": "string"},
				"title":        map[string]interface{}{"type": "string"},
				"subtitle":     map[string]interface{}{"type": "string"},
				"body":         map[string]interface{}{"type": "string"},
				"question":     map[string]interface{}{"type": []string{"string", "null"}},
				"buttons": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"text":   map[string]interface{}{"type": "string"},
							"action": map[string]interface{}{"type": "string"},
						},
						"required": []string{"text", "action"},
					},
				},
			},
			"required":             []string{"title", "buttons"},
			"additionalProperties": false,
		}
		prompt := "popup_type=" + string(popupType) + " event=" + eventTitle + " context=" + contextNote + " conflict=" + conflictTitle
		if err := s.llm.CallStructured(ctx, "popup_blueprint", schema,
			"Generate a short notification popup blueprint for the given event.", prompt, &out); err != nil {
			return nil, err
		}
		out.PopupType = popupType
		return &out, nil
	}

	t2 := func() (interface{}, error) {
		return s.popupBlueprint(popupType, eventTitle, contextNote, conflictTitle), nil
	}

	t3 := func() interface{} {
		return s.popupBlueprint(popupType, eventTitle, contextNote, conflictTitle)
	}

	result := s.orch.WithFallback(llmCtx, "popup_blueprint", t1, t2, t3)
	if popup, ok := result.(*models.Popup); ok {
		return popup
	}
	return s.popupBlueprint(popupType, eventTitle, contextNote, conflictTitle)
}

// Status reports the orchestrator's current tier/cooldown snapshot, for the
// /api/ai-status and /api/health routes.
func (s *Service) Status() Snapshot {
	return s.orch.Status()
}

// CacheLen reports the Response Cache's current size, for /api/ai-status's
// cache-stats field. Returns 0 if no cache is configured.
func (s *Service) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

func buildCandidatePrompt(text string, candidates []heuristics.CandidateEvent) string {
	prompt := text + "\n\ncandidates:\n"
	for i, c := range candidates {
		prompt += fmt.Sprintf("%d: %s [%s] %s\n", i, c.Title, c.EventType, c.Keywords)
	}
	return prompt
}

func joinKeywords(keywords []string) string {
	out := ""
	for i, k := range keywords {
		if i > 0 {
			out += " "
		}
		out += k
	}
	return out
}
