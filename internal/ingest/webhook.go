package ingest

import (
	"fmt"
	"strings"
)

// WebhookPayload is the chat bridge's webhook envelope shape (spec §6):
// {event, instance, data:{key:{remoteJid, fromMe, id}, pushName?,
// message:{conversation?, extendedTextMessage?:{text}}, messageTimestamp}}.
type WebhookPayload struct {
	Event    string      `json:"event"`
	Instance string      `json:"instance"`
	Data     WebhookData `json:"data"`
}

type WebhookData struct {
	Key              WebhookKey     `json:"key"`
	PushName         string         `json:"pushName,omitempty"`
	Message          WebhookMessage `json:"message"`
	MessageTimestamp int64          `json:"messageTimestamp"`
}

type WebhookKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type WebhookMessage struct {
	Conversation        string                      `json:"conversation,omitempty"`
	ExtendedTextMessage *WebhookExtendedTextMessage `json:"extendedTextMessage,omitempty"`
}

type WebhookExtendedTextMessage struct {
	Text string `json:"text"`
}

// Text returns the message's plain text, preferring the conversation field
// and falling back to the extended-text-message wrapper.
func (d WebhookData) Text() string {
	if d.Message.Conversation != "" {
		return d.Message.Conversation
	}
	if d.Message.ExtendedTextMessage != nil {
		return d.Message.ExtendedTextMessage.Text
	}
	return ""
}

// IsGroup reports whether the message originated in a group chat, per the
// chat bridge's remoteJid suffix convention.
func (d WebhookData) IsGroup() bool {
	return strings.HasSuffix(d.Key.RemoteJID, "@g.us")
}

// Validate enforces shape validation (spec §4.6 step 1): a well-formed
// envelope carries a non-empty event name and message key id. The instance
// field is not checked.
func (p WebhookPayload) Validate() error {
	if p.Event == "" {
		return fmt.Errorf("ingest: missing event")
	}
	if p.Data.Key.ID == "" {
		return fmt.Errorf("ingest: missing data.key.id")
	}
	return nil
}

// IsMessageUpsert reports whether this envelope is a messages.upsert event;
// any other event returns {skipped:true} without further processing.
func (p WebhookPayload) IsMessageUpsert() bool {
	return p.Event == "messages.upsert"
}
