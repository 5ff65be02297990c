package models

// TriggerKind enumerates the ways a Trigger can fire. Only the four
// canonical kinds are ever written; the four "legacy*" constants exist
// solely so rows produced by earlier trigger-kind naming are still read
// and scheduled correctly (DESIGN.md Open-question decision 2).
type TriggerKind string

const (
	TriggerTime24h TriggerKind = "time_24h"
	TriggerTime1h  TriggerKind = "time_1h"
	TriggerTime15m TriggerKind = "time_15m"
	TriggerURL     TriggerKind = "url"

	triggerLegacyTime        TriggerKind = "time"
	triggerLegacyReminder24h TriggerKind = "reminder_24h"
	triggerLegacyReminder1hr TriggerKind = "reminder_1hr"
	triggerLegacyReminder15m TriggerKind = "reminder_15m"
)

// legacyTimeKinds are accepted at read time but never written.
var legacyTimeKinds = map[TriggerKind]bool{
	triggerLegacyTime:        true,
	triggerLegacyReminder24h: true,
	triggerLegacyReminder1hr: true,
	triggerLegacyReminder15m: true,
}

// Trigger is a scheduled or contextual condition that, once satisfied,
// causes an Event to be surfaced to the client (spec §3). Triggers are
// immutable once fired.
type Trigger struct {
	ID          int64       `bson:"id" json:"id"`
	EventID     int64       `bson:"eventId" json:"event_id"`
	TriggerType TriggerKind `bson:"triggerType" json:"trigger_type"`
	Value       string      `bson:"value,omitempty" json:"value,omitempty"`
	FireAt      *int64      `bson:"fireAt,omitempty" json:"fire_at,omitempty"`
	IsFired     bool        `bson:"isFired" json:"is_fired"`
	FiredAt     *int64      `bson:"firedAt,omitempty" json:"fired_at,omitempty"`
	CreatedAt   int64       `bson:"createdAt" json:"created_at"`
}

// IsTimeKind reports whether t fires on a wall-clock deadline rather than a
// URL match, accepting both the canonical and legacy time-kind strings.
func (t *Trigger) IsTimeKind() bool {
	switch t.TriggerType {
	case TriggerTime24h, TriggerTime1h, TriggerTime15m:
		return true
	default:
		return legacyTimeKinds[t.TriggerType]
	}
}
