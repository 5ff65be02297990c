package models

// Message is an immutable record of a single chat message ingested via the
// webhook (spec §3). Messages are deduplicated by their externally-assigned
// id (the chat bridge's own message id), never by content.
type Message struct {
	ID         string `bson:"id" json:"id"`
	ChatID     string `bson:"chatId" json:"chat_id"`
	SenderJID  string `bson:"senderJid,omitempty" json:"sender_jid,omitempty"`
	SenderName string `bson:"senderName,omitempty" json:"sender_name,omitempty"`
	IsGroup    bool   `bson:"isGroup" json:"is_group"`
	FromMe     bool   `bson:"fromMe" json:"from_me"`
	Text       string `bson:"text" json:"text"`
	Timestamp  int64  `bson:"timestamp" json:"timestamp"`
	CreatedAt  int64  `bson:"createdAt" json:"created_at"`
}
