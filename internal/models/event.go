package models

import (
	"strings"
)

// EventType classifies what kind of thing an Event represents.
type EventType string

const (
	EventMeeting        EventType = "meeting"
	EventDeadline       EventType = "deadline"
	EventReminder       EventType = "reminder"
	EventTravel         EventType = "travel"
	EventTask           EventType = "task"
	EventSubscription   EventType = "subscription"
	EventRecommendation EventType = "recommendation"
	EventOther          EventType = "other"
)

// EventStatus is a state in the Event lifecycle state machine (spec §3).
type EventStatus string

const (
	StatusDiscovered EventStatus = "discovered"
	StatusScheduled  EventStatus = "scheduled"
	StatusSnoozed    EventStatus = "snoozed"
	StatusIgnored    EventStatus = "ignored"
	StatusReminded   EventStatus = "reminded"
	StatusCompleted  EventStatus = "completed"
	StatusExpired    EventStatus = "expired"
	// StatusPending is a legacy alias for StatusDiscovered, accepted on read.
	StatusPending EventStatus = "pending"
)

// NormalizeStatus maps the legacy "pending" alias onto "discovered".
func NormalizeStatus(s EventStatus) EventStatus {
	if s == StatusPending {
		return StatusDiscovered
	}
	return s
}

// ActiveStatuses are the statuses that participate in duplicate detection
// (spec §3: "events in {completed, expired, ignored} are excluded"). Hybrid
// search uses the narrower store.searchableStatuses allowlist, which leaves
// out snoozed and reminded.
var ActiveStatuses = []EventStatus{StatusDiscovered, StatusScheduled, StatusSnoozed, StatusReminded, StatusPending}

// IsActive reports whether status is in ActiveStatuses.
func IsActive(s EventStatus) bool {
	s = NormalizeStatus(s)
	switch s {
	case StatusCompleted, StatusExpired, StatusIgnored:
		return false
	default:
		return true
	}
}

// transitions enumerates the permitted edges of the lifecycle diagram in spec §3.
var transitions = map[EventStatus]map[EventStatus]bool{
	StatusDiscovered: {StatusScheduled: true, StatusSnoozed: true, StatusIgnored: true, StatusCompleted: true, StatusExpired: true},
	StatusScheduled:  {StatusReminded: true, StatusSnoozed: true, StatusIgnored: true, StatusCompleted: true, StatusExpired: true},
	StatusSnoozed:    {StatusDiscovered: true, StatusCompleted: true, StatusIgnored: true, StatusExpired: true},
	StatusReminded:   {StatusCompleted: true, StatusExpired: true},
	StatusCompleted:  {},
	StatusExpired:    {},
	StatusIgnored:    {},
}

// CanTransition reports whether moving an event from "from" to "to" is a
// permitted edge of the lifecycle state machine.
func CanTransition(from, to EventStatus) bool {
	from, to = NormalizeStatus(from), NormalizeStatus(to)
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// PendingUpdate holds a proposed "modify" change that has not yet been
// applied (spec §4.6 step 5, §9 Open Question 3): it is only materialized
// onto the Event by a subsequent confirm-update call.
type PendingUpdate struct {
	ProposedTitle       string `bson:"proposedTitle,omitempty" json:"proposed_title,omitempty"`
	ProposedDescription string `bson:"proposedDescription,omitempty" json:"proposed_description,omitempty"`
	ProposedEventTime   *int64 `bson:"proposedEventTime,omitempty" json:"proposed_event_time,omitempty"`
	ProposedLocation    string `bson:"proposedLocation,omitempty" json:"proposed_location,omitempty"`
	ProposedKeywords    string `bson:"proposedKeywords,omitempty" json:"proposed_keywords,omitempty"`
	RequestedAt         int64  `bson:"requestedAt" json:"requested_at"`
}

// Event is the central entity of the document store (spec §3).
type Event struct {
	ID        int64     `bson:"id" json:"id"`
	MessageID *string   `bson:"messageId,omitempty" json:"message_id,omitempty"`
	EventType EventType `bson:"eventType" json:"event_type"`

	Title        string `bson:"title" json:"title"`
	Description  string `bson:"description,omitempty" json:"description,omitempty"`
	Location     string `bson:"location,omitempty" json:"location,omitempty"`
	Keywords     string `bson:"keywords,omitempty" json:"keywords,omitempty"`
	Participants string `bson:"participants,omitempty" json:"participants,omitempty"`

	EventTime    *int64 `bson:"eventTime,omitempty" json:"event_time,omitempty"`
	ReminderTime *int64 `bson:"reminderTime,omitempty" json:"reminder_time,omitempty"`

	Embedding []float32 `bson:"embedding,omitempty" json:"-"`

	ContextURL string `bson:"contextUrl,omitempty" json:"context_url,omitempty"`

	Status       EventStatus `bson:"status" json:"status"`
	DismissCount int         `bson:"dismissCount" json:"dismiss_count"`
	SenderName   string      `bson:"senderName,omitempty" json:"sender_name,omitempty"`
	Confidence   float64     `bson:"confidence" json:"confidence"`

	PendingUpdate *PendingUpdate `bson:"pendingUpdate,omitempty" json:"pending_update,omitempty"`

	CreatedAt int64 `bson:"createdAt" json:"created_at"`
	UpdatedAt int64 `bson:"updatedAt" json:"updated_at"`
}

// KeywordList splits the comma-separated Keywords field into tokens.
func (e *Event) KeywordList() []string {
	if e.Keywords == "" {
		return nil
	}
	parts := strings.Split(e.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SearchableText concatenates the fields the heuristic fallbacks and the
// hybrid search's BM25 branch match against.
func (e *Event) SearchableText() string {
	return strings.Join([]string{e.Title, e.Keywords, e.Location, e.Description}, " ")
}
