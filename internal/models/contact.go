package models

// Contact tracks a chat participant observed by the ingestion pipeline,
// used to resolve sender display names onto events (spec §3).
type Contact struct {
	ID           string `bson:"id" json:"id"` // the chat bridge's JID
	DisplayName  string `bson:"displayName,omitempty" json:"display_name,omitempty"`
	FirstSeen    int64  `bson:"firstSeen" json:"first_seen"`
	LastSeen     int64  `bson:"lastSeen" json:"last_seen"`
	MessageCount int64  `bson:"messageCount" json:"message_count"`
}

// ContextDismissal records that a user dismissed a popup for a given event
// while visiting a URL, suppressing the same event/URL-pattern pairing
// until DismissedUntil elapses (spec §3). The dismissedUntil field carries
// a TTL index, but it holds Unix seconds rather than a BSON date, so MongoDB
// does not remove expired rows through it; expiry is enforced by
// store.IsDismissed's dismissedUntil filter.
type ContextDismissal struct {
	ID             int64  `bson:"id" json:"id"`
	EventID        int64  `bson:"eventId" json:"event_id"`
	URLPattern     string `bson:"urlPattern" json:"url_pattern"`
	DismissedAt    int64  `bson:"dismissedAt" json:"dismissed_at"`
	DismissedUntil int64  `bson:"dismissedUntil" json:"dismissed_until"`
}

// PushSubscription is a registered duplex-channel endpoint identity. One is
// stored per new connection; nothing in the server looks a token up again.
type PushSubscription struct {
	ID        int64  `bson:"id" json:"id"`
	Token     string `bson:"token" json:"token"`
	CreatedAt int64  `bson:"createdAt" json:"created_at"`
}
