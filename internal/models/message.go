package models

// Message is a single message inside a two-party conversation. The sender
// name is denormalized at send time so clients can render without a profile
// lookup. SentAt is epoch milliseconds assigned by the server.
type Message struct {
	ID             string `db:"id" json:"id"`
	ConversationID string `db:"conversation_id" json:"conversation_id"`
	SenderID       string `db:"sender_id" json:"sender_id"`
	SenderName     string `db:"sender_name" json:"sender_name"`
	ReceiverID     string `db:"receiver_id" json:"receiver_id"`
	Body           string `db:"body" json:"body"`
	SentAt         int64  `db:"sent_at" json:"sent_at"`
	Seen           bool   `db:"seen" json:"seen"`
}

// ConversationEvent is pushed over the chat websocket. Snapshot events carry
// the full ordered message list of the conversation.
type ConversationEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages,omitempty"`
}

// NotificationEvent is pushed over the notification websocket.
type NotificationEvent struct {
	Type        string   `json:"type"`
	UnseenCount *int     `json:"unseen_count,omitempty"`
	Message     *Message `json:"message,omitempty"`
	FriendID    string   `json:"friend_id,omitempty"`
}
