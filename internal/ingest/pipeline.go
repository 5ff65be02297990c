// Package ingest implements the Ingestion Pipeline (spec §4.6): the single
// processWebhook entry point that turns an inbound chat-bridge webhook into
// zero or more stored events, action transitions, and duplex-channel
// broadcasts.
package ingest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"argus/internal/embedding"
	"argus/internal/metrics"
	"argus/internal/models"
	"argus/internal/store"
	"argus/internal/tier"
	"argus/internal/tier/heuristics"
	"argus/internal/transport"
)

const (
	candidatePoolSize     = 50
	actionCandidateLimit  = 20
	actionConfidenceFloor = 0.5
	recentContextMessages = 5
)

// Config tunes the pipeline's skip rules (spec §4.6 step 2).
type Config struct {
	ProcessOwnMessages bool
	SkipGroupMessages  bool
}

// Pipeline wires the Document Store Adapter, the Tier Orchestrator's
// Service, the embedding client, and the Broadcast Transport into the
// eight-step webhook-processing flow.
type Pipeline struct {
	store    *store.Store
	tierSvc  *tier.Service
	embedder *embedding.Client
	hub      *transport.Hub
	cfg      Config
}

// New assembles a Pipeline. embedder may be nil, in which case embeddings
// are always skipped (treated as an embedding failure, spec §4.6 step 7).
func New(s *store.Store, tierSvc *tier.Service, embedder *embedding.Client, hub *transport.Hub, cfg Config) *Pipeline {
	return &Pipeline{store: s, tierSvc: tierSvc, embedder: embedder, hub: hub, cfg: cfg}
}

// ActionOutcome reports the result of step 5's action-detection branch.
type ActionOutcome struct {
	Action        heuristics.Action `json:"action"`
	TargetEventID int64             `json:"target_event_id,omitempty"`
	PendingUpdate bool              `json:"pending_update,omitempty"`
}

// Result is processWebhook's return value (spec §4.6 step 8).
type Result struct {
	Skipped         bool                     `json:"skipped,omitempty"`
	NewEventCount   int                      `json:"new_event_count"`
	Events          []*models.Event          `json:"events,omitempty"`
	Conflicts       map[int64][]models.Event `json:"conflicts,omitempty"`
	ActionPerformed *ActionOutcome           `json:"action_performed,omitempty"`
}

// ProcessWebhook runs the full eight-step flow for one chat-bridge
// envelope.
func (p *Pipeline) ProcessWebhook(ctx context.Context, payload WebhookPayload) (result *Result, err error) {
	start := time.Now()
	if m := metrics.Get(); m != nil {
		m.RecordIngestRequest()
		defer func() {
			m.RecordIngestLatency(time.Since(start).Seconds())
			if err != nil {
				m.RecordIngestError("pipeline")
			}
		}()
	}

	// Step 1: shape validation.
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if !payload.IsMessageUpsert() {
		return &Result{Skipped: true}, nil
	}

	text := strings.TrimSpace(payload.Data.Text())
	fromMe := payload.Data.Key.FromMe
	isGroup := payload.Data.IsGroup()

	// Step 2: skip rules.
	if fromMe && !p.cfg.ProcessOwnMessages {
		return &Result{Skipped: true}, nil
	}
	if isGroup && p.cfg.SkipGroupMessages {
		return &Result{Skipped: true}, nil
	}
	if text == "" {
		return &Result{Skipped: true}, nil
	}

	now := time.Unix(payload.Data.MessageTimestamp, 0)
	if payload.Data.MessageTimestamp == 0 {
		now = time.Now()
	}

	// Step 3: message + contact persistence.
	msg := &models.Message{
		ID:         payload.Data.Key.ID,
		ChatID:     payload.Data.Key.RemoteJID,
		SenderJID:  payload.Data.Key.RemoteJID,
		SenderName: payload.Data.PushName,
		IsGroup:    isGroup,
		FromMe:     fromMe,
		Text:       text,
		Timestamp:  payload.Data.MessageTimestamp,
	}
	_, duplicateMessage, err := p.store.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("ingest: persisting message: %w", err)
	}
	if duplicateMessage {
		return &Result{Skipped: true}, nil
	}
	if payload.Data.PushName != "" && !fromMe {
		if err := p.store.UpsertContact(ctx, payload.Data.Key.RemoteJID, payload.Data.PushName); err != nil {
			log.Printf("⚠️ [INGEST] contact upsert failed: %v", err)
		}
	}

	// Step 4: quick filter (T2 alone, no LLM spend on obvious noise).
	if _, ok := heuristics.Analyze(text, now); !ok && isLowSignal(text) {
		return &Result{Skipped: true}, nil
	}

	candidates, eventsByID, err := p.loadCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: loading candidates: %w", err)
	}

	// Step 5: action detection.
	actionResult := p.tierSvc.DetectAction(ctx, text, candidates)
	if actionResult.Action != heuristics.ActionNone {
		outcome, err := p.applyAction(ctx, actionResult, eventsByID)
		if err != nil {
			log.Printf("⚠️ [INGEST] action apply failed: %v", err)
		}
		if outcome != nil {
			return &Result{ActionPerformed: outcome}, nil
		}
	}

	// Step 6: event extraction.
	recentContext, err := p.recentContextText(ctx, payload.Data.Key.RemoteJID)
	if err != nil {
		log.Printf("⚠️ [INGEST] fetching recent context failed: %v", err)
	}
	proposed, ok := p.tierSvc.Analyze(ctx, text, recentContext, now)
	if !ok || proposed == nil {
		return &Result{NewEventCount: 0}, nil
	}

	result = &Result{Conflicts: map[int64][]models.Event{}}

	// Step 7: per-proposed-event handling (the heuristic and cache paths
	// never propose more than one event; the LLM path is schema-bound to
	// the same single-event shape, see heuristics.AnalyzeResult).
	if proposed.EventAction == "modify" && proposed.TargetEventID != nil {
		pending := &models.PendingUpdate{
			ProposedTitle:       proposed.Title,
			ProposedDescription: proposed.Description,
			ProposedEventTime:   proposed.EventTime,
			ProposedLocation:    proposed.Location,
			ProposedKeywords:    proposed.Keywords,
			RequestedAt:         time.Now().Unix(),
		}
		if err := p.store.SetPendingUpdate(ctx, *proposed.TargetEventID, pending); err != nil {
			return nil, fmt.Errorf("ingest: setting pending update: %w", err)
		}
		target, _ := p.store.GetEvent(ctx, *proposed.TargetEventID)
		popup := p.tierSvc.GeneratePopupBlueprint(ctx, models.PopupUpdateConfirm, proposed.Title, "", "")
		p.hub.Broadcast(models.WSEnvelope{Type: models.WSUpdateConfirm, Event: target, Popup: popup, PopupType: models.PopupUpdateConfirm})
		return &Result{ActionPerformed: &ActionOutcome{PendingUpdate: true, TargetEventID: *proposed.TargetEventID}}, nil
	}

	event := &models.Event{
		MessageID:   &msg.ID,
		EventType:   proposed.EventType,
		Title:       proposed.Title,
		Description: proposed.Description,
		Location:    proposed.Location,
		Keywords:    proposed.Keywords,
		EventTime:   proposed.EventTime,
		SenderName:  payload.Data.PushName,
		Confidence:  proposed.Confidence,
		Status:      models.StatusDiscovered,
	}
	event.ContextURL = deriveContextURL(event.KeywordList(), event.Location)

	if p.embedder != nil {
		if vec, embedErr := p.embedder.Generate(ctx, event.Title+" "+event.Description+" "+event.Keywords+" "+event.Location); embedErr == nil {
			event.Embedding = vec
		} else {
			log.Printf("⚠️ [INGEST] embedding generation failed, proceeding without: %v", embedErr)
		}
	}

	inserted, isDuplicate, err := p.store.CreateEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("ingest: creating event: %w", err)
	}
	if isDuplicate {
		return &Result{NewEventCount: 0}, nil
	}

	result.Events = append(result.Events, inserted)
	result.NewEventCount++

	if inserted.EventTime != nil {
		conflicts, err := p.store.ConflictCheck(ctx, *inserted.EventTime)
		if err != nil {
			log.Printf("⚠️ [INGEST] conflict check failed: %v", err)
		} else {
			var others []models.Event
			for _, c := range conflicts {
				if c.ID != inserted.ID {
					others = append(others, c)
				}
			}
			if len(others) > 0 {
				result.Conflicts[inserted.ID] = others
			}
		}
	}

	p.broadcastNewEvent(ctx, inserted, result.Conflicts[inserted.ID])

	// Step 8: return the summary.
	return result, nil
}

func (p *Pipeline) broadcastNewEvent(ctx context.Context, e *models.Event, conflicts []models.Event) {
	if len(conflicts) > 0 {
		conflictTitle := conflicts[0].Title
		popup := p.tierSvc.GeneratePopupBlueprint(ctx, models.PopupConflictWarning, e.Title, "", conflictTitle)
		p.hub.Broadcast(models.WSEnvelope{Type: models.WSConflictWarning, Event: e, Popup: popup, PopupType: models.PopupConflictWarning})
		return
	}
	popup := p.tierSvc.GeneratePopupBlueprint(ctx, models.PopupEventDiscovery, e.Title, "", "")
	p.hub.Broadcast(models.WSEnvelope{Type: models.WSNotification, Event: e, Popup: popup, PopupType: models.PopupEventDiscovery})
}

// applyAction executes one of the four action-detection outcomes that can
// be applied directly (complete/cancel/ignore/postpone); modify is handled
// by the caller since it requires a pending-confirmation record, not a
// direct transition.
func (p *Pipeline) applyAction(ctx context.Context, r heuristics.DetectActionResult, eventsByID map[int64]models.Event) (*ActionOutcome, error) {
	if r.TargetID == 0 {
		return nil, nil
	}
	if _, known := eventsByID[r.TargetID]; !known {
		return nil, nil
	}

	switch r.Action {
	case heuristics.ActionComplete:
		updated, err := p.store.TransitionEvent(ctx, r.TargetID, models.StatusCompleted)
		if err != nil {
			return nil, err
		}
		p.hub.Broadcast(models.WSEnvelope{Type: models.WSActionPerformed, Event: updated, Action: models.ActionComplete})
		return &ActionOutcome{Action: r.Action, TargetEventID: r.TargetID}, nil

	case heuristics.ActionCancel:
		updated, err := p.store.TransitionEvent(ctx, r.TargetID, models.StatusExpired)
		if err != nil {
			return nil, err
		}
		p.hub.Broadcast(models.WSEnvelope{Type: models.WSActionPerformed, Event: updated, Action: models.ActionDelete})
		return &ActionOutcome{Action: r.Action, TargetEventID: r.TargetID}, nil

	case heuristics.ActionIgnore:
		updated, err := p.store.TransitionEvent(ctx, r.TargetID, models.StatusIgnored)
		if err != nil {
			return nil, err
		}
		p.hub.Broadcast(models.WSEnvelope{Type: models.WSActionPerformed, Event: updated, Action: models.ActionIgnore})
		return &ActionOutcome{Action: r.Action, TargetEventID: r.TargetID}, nil

	case heuristics.ActionPostpone:
		minutes := r.SnoozeMinutes
		if minutes <= 0 {
			minutes = 30
		}
		updated, err := p.store.SnoozeEvent(ctx, r.TargetID, minutes)
		if err != nil {
			return nil, err
		}
		p.hub.Broadcast(models.WSEnvelope{Type: models.WSActionPerformed, Event: updated, Action: models.ActionSnooze})
		return &ActionOutcome{Action: r.Action, TargetEventID: r.TargetID}, nil
	}
	return nil, nil
}

// loadCandidates fetches the active-event pool and returns both the 20 most
// recently created candidates (spec §4.6 step 5) and an id-keyed lookup map
// for applying an action once a target is chosen. Candidates are not ranked
// or filtered against the message text.
func (p *Pipeline) loadCandidates(ctx context.Context) ([]heuristics.CandidateEvent, map[int64]models.Event, error) {
	events, err := p.store.ListActiveEvents(ctx, candidatePoolSize)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[int64]models.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt > events[j].CreatedAt })
	if len(events) > actionCandidateLimit {
		events = events[:actionCandidateLimit]
	}

	candidates := make([]heuristics.CandidateEvent, 0, len(events))
	for _, e := range events {
		candidates = append(candidates, heuristics.CandidateEvent{
			ID: e.ID, Title: e.Title, EventType: e.EventType, Keywords: e.Keywords,
			Location: e.Location, Description: e.Description,
		})
	}
	return candidates, byID, nil
}

// recentContextText fetches the last few messages in chatID and renders
// them as display lines for the T1 LLM prompt (spec §4.6 step 6: "the LLM
// is given the message, recent context (last 5 messages in the chat)...").
// Oldest first, matching conversational reading order.
func (p *Pipeline) recentContextText(ctx context.Context, chatID string) ([]string, error) {
	messages, err := p.store.RecentMessages(ctx, chatID, recentContextMessages)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(messages))
	for i, m := range messages {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderJID
		}
		lines[i] = fmt.Sprintf("%s: %s", sender, m.Text)
	}
	return lines, nil
}

// isLowSignal reports whether text is noise the quick filter should drop
// before spending a tier call on it: text shorter than 5 characters once
// trimmed. Greeting-only messages of 5 characters or more are not caught
// here and go on to action detection and extraction.
func isLowSignal(text string) bool {
	return len(strings.TrimSpace(text)) < 5
}

// knownContextTerms is the service/location gazetteer used to derive
// context_url from a proposed event's keywords (spec §4.6 step 7).
var knownContextTerms = map[string]bool{
	"netflix": true, "spotify": true, "prime": true, "hulu": true,
	"disney+": true, "youtube premium": true, "hbo": true, "paramount+": true,
	"amazon": true, "goa": true, "zantyes": true,
}

// deriveContextURL implements step 7's derivation rule: the lowercase first
// keyword matching a known service/location term, else the lowercased
// location, else empty.
func deriveContextURL(keywords []string, location string) string {
	for _, k := range keywords {
		lower := strings.ToLower(k)
		if knownContextTerms[lower] {
			return lower
		}
	}
	if location != "" {
		return strings.ToLower(location)
	}
	return ""
}
