// Package tier implements the Tier Orchestrator (spec §4.3): a single
// process-wide controller that escalates between a T1 LLM call, a T2
// deterministic heuristic fallback, and a T3 cache/default, tracking
// consecutive failures and a cooldown so repeated LLM errors don't retry on
// every request.
package tier

import (
	"context"
	"log"
	"sync"
	"time"

	"argus/internal/envelope"
	"argus/internal/metrics"
)

// Mode selects which tier the orchestrator is pinned to, or "auto" to let
// the escalation table decide.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeForceT1 Mode = "force-T1"
	ModeForceT2 Mode = "force-T2"
	ModeForceT3 Mode = "force-T3"
)

// Tier is the active tier the orchestrator will attempt first under auto mode.
type Tier int

const (
	T1 Tier = 1
	T2 Tier = 2
	T3 Tier = 3
)

// escalationStep describes how many consecutive T1 failures before the
// orchestrator drops to T2 (and for how long), matching spec §4.3's table:
// 1-2 failures -> T2/30s, 3-9 -> T2/5min, >=10 -> T3/15min.
func escalationFor(consecutiveFailures int) (Tier, time.Duration) {
	switch {
	case consecutiveFailures >= 10:
		return T3, 15 * time.Minute
	case consecutiveFailures >= 3:
		return T2, 5 * time.Minute
	case consecutiveFailures >= 1:
		return T2, 30 * time.Second
	default:
		return T1, 0
	}
}

// Orchestrator is the process-wide Tier Orchestrator. One instance serves
// every withFallback call in the server.
type Orchestrator struct {
	mu sync.Mutex

	mode Mode

	consecutiveFailures int
	currentTier         Tier
	cooldownUntil       time.Time

	llm *Client

	caller *envelope.SafeCaller

	baseCooldownSec int
}

// New creates an Orchestrator with the given mode and an LLM client (may be
// nil if no provider is configured, which behaves as permanent T1 failure).
func New(mode Mode, llm *Client, caller *envelope.SafeCaller, baseCooldownSec int) *Orchestrator {
	if mode == "" {
		mode = ModeAuto
	}
	return &Orchestrator{
		mode:            mode,
		currentTier:     T1,
		llm:             llm,
		caller:          caller,
		baseCooldownSec: baseCooldownSec,
	}
}

// effectiveTier returns the tier the next call should attempt, honoring a
// forced mode and an active cooldown.
func (o *Orchestrator) effectiveTier() Tier {
	switch o.mode {
	case ModeForceT1:
		return T1
	case ModeForceT2:
		return T2
	case ModeForceT3:
		return T3
	}

	if time.Now().Before(o.cooldownUntil) {
		return o.currentTier
	}
	return T1
}

// recordSuccess resets the failure ladder (spec §4.3: "reset on success").
func (o *Orchestrator) recordSuccess() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consecutiveFailures = 0
	o.currentTier = T1
	o.cooldownUntil = time.Time{}
}

// recordFailure advances the escalation ladder.
func (o *Orchestrator) recordFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consecutiveFailures++
	tier, cooldown := escalationFor(o.consecutiveFailures)
	o.currentTier = tier
	o.cooldownUntil = time.Now().Add(cooldown)
	log.Printf("⚠️ [TIER] %d consecutive LLM failures, escalating to T%d for %v", o.consecutiveFailures, tier, cooldown)
}

// Snapshot is a read-only view of the orchestrator's current state, for the
// /api/ai-status route.
type Snapshot struct {
	Mode                Mode      `json:"mode"`
	Tier                Tier      `json:"tier"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CooldownUntil       time.Time `json:"cooldown_until,omitempty"`
}

// Status returns the orchestrator's current snapshot.
func (o *Orchestrator) Status() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		Mode:                o.mode,
		Tier:                o.effectiveTier(),
		ConsecutiveFailures: o.consecutiveFailures,
		CooldownUntil:       o.cooldownUntil,
	}
}

// SetMode overrides the orchestrator's mode (e.g. from an admin route or
// env reconfiguration).
func (o *Orchestrator) SetMode(mode Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = mode
}

// T1Fn, T2Fn and T3Fn are the three tier-call shapes withFallback accepts.
type T1Fn func(ctx context.Context) (interface{}, error)
type T2Fn func() (interface{}, error)
type T3Fn func() interface{}

// WithFallback is the spec's three-tier call contract (§4.3): it attempts
// the tier selected by effectiveTier() and falls through toward T3 on
// failure, always returning a usable result.
func (o *Orchestrator) WithFallback(ctx context.Context, op string, t1 T1Fn, t2 T2Fn, t3 T3Fn) interface{} {
	tier := o.effectiveTier()

	if tier == T1 && t1 != nil {
		result, err := o.callT1(ctx, op, t1)
		if err == nil {
			recordTierResolved("t1")
			return result
		}
		log.Printf("⚠️ [TIER] %s: T1 failed (%v), falling back to T2", op, err)
	}

	if t2 != nil {
		result, err := t2()
		if err == nil {
			recordTierResolved("t2")
			return result
		}
		log.Printf("⚠️ [TIER] %s: T2 failed (%v), falling back to T3", op, err)
	}

	if t3 != nil {
		recordTierResolved("t3")
		return t3()
	}
	return nil
}

func recordTierResolved(tier string) {
	if m := metrics.Get(); m != nil {
		m.RecordTierResolved(tier)
	}
}

func (o *Orchestrator) callT1(ctx context.Context, op string, t1 T1Fn) (result interface{}, err error) {
	fallbackErr := o.caller.Call(ctx, op,
		func(ctx context.Context) error {
			return envelope.Retry(ctx, op, func(ctx context.Context) error {
				r, callErr := t1(ctx)
				if callErr != nil {
					return callErr
				}
				result = r
				return nil
			})
		},
		nil,
	)
	if fallbackErr != nil {
		o.recordFailure()
		return nil, fallbackErr
	}
	o.recordSuccess()
	return result, nil
}

// HealthProbe runs a cheap T1 call every interval (spec §4.3: 60s health
// probe) so the orchestrator can re-escalate to T1 once the upstream LLM
// recovers, without waiting for a real request to retry it.
func (o *Orchestrator) HealthProbe(ctx context.Context, interval time.Duration, probe func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if probe == nil {
				continue
			}
			probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := probe(probeCtx)
			cancel()

			if err != nil {
				log.Printf("⚠️ [TIER] health probe failed: %v", err)
				continue
			}
			log.Println("✅ [TIER] health probe succeeded, resetting to T1")
			o.recordSuccess()
		}
	}
}
