package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines persistence for conversation messages.
type MessageRepository interface {
	Append(ctx context.Context, conversationID, senderID, senderName, receiverID, body string) (models.Message, error)
	List(ctx context.Context, conversationID string) ([]models.Message, error)
	Get(ctx context.Context, conversationID, messageID string) (models.Message, error)
	MarkSeen(ctx context.Context, conversationID, messageID string) error
	Remove(ctx context.Context, conversationID, messageID string) error
	HasUnseen(ctx context.Context, conversationID, receiverID string) (bool, error)
	Last(ctx context.Context, conversationID string) (models.Message, bool, error)
}

// MessageRepo is the sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append stores a new message with a server-assigned id and timestamp.
// Messages are always created unseen. sent_at is display data only; the
// autoincrementing seq column fixes the creation order.
func (r *MessageRepo) Append(ctx context.Context, conversationID, senderID, senderName, receiverID, body string) (models.Message, error) {
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		ReceiverID:     receiverID,
		Body:           body,
		SentAt:         time.Now().UnixMilli(),
		Seen:           false,
	}
	query := r.db.Rebind(`INSERT INTO messages (id, conversation_id, sender_id, sender_name, receiver_id, body, sent_at, seen)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.SenderID, msg.SenderName, msg.ReceiverID, msg.Body, msg.SentAt, msg.Seen)
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// List returns the full message list of a conversation in creation order.
// Ordering follows the insert sequence, not sent_at: timestamps have
// millisecond resolution and collide under back-to-back sends. Callers must
// not re-sort.
func (r *MessageRepo) List(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := r.db.Rebind(`SELECT id, conversation_id, sender_id, sender_name, receiver_id, body, sent_at, seen
        FROM messages WHERE conversation_id = ? ORDER BY seq ASC`)
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID)
	return msgs, err
}

// Get retrieves a single message scoped to its conversation.
func (r *MessageRepo) Get(ctx context.Context, conversationID, messageID string) (models.Message, error) {
	query := r.db.Rebind(`SELECT id, conversation_id, sender_id, sender_name, receiver_id, body, sent_at, seen
        FROM messages WHERE conversation_id = ? AND id = ?`)
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, query, conversationID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkSeen idempotently flips the seen flag. Marking an already-seen or
// missing message is not an error.
func (r *MessageRepo) MarkSeen(ctx context.Context, conversationID, messageID string) error {
	query := r.db.Rebind(`UPDATE messages SET seen = TRUE WHERE conversation_id = ? AND id = ?`)
	_, err := r.db.ExecContext(ctx, query, conversationID, messageID)
	return err
}

// Remove hard-deletes a message. Removing a missing id is a no-op.
func (r *MessageRepo) Remove(ctx context.Context, conversationID, messageID string) error {
	query := r.db.Rebind(`DELETE FROM messages WHERE conversation_id = ? AND id = ?`)
	_, err := r.db.ExecContext(ctx, query, conversationID, messageID)
	return err
}

// HasUnseen reports whether the conversation holds at least one unseen
// message addressed to receiverID.
func (r *MessageRepo) HasUnseen(ctx context.Context, conversationID, receiverID string) (bool, error) {
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM messages WHERE conversation_id = ? AND receiver_id = ? AND seen = FALSE)`)
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, conversationID, receiverID)
	return exists, err
}

// Last returns the newest message of a conversation, if any.
func (r *MessageRepo) Last(ctx context.Context, conversationID string) (models.Message, bool, error) {
	query := r.db.Rebind(`SELECT id, conversation_id, sender_id, sender_name, receiver_id, body, sent_at, seen
        FROM messages WHERE conversation_id = ? ORDER BY seq DESC LIMIT 1`)
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, query, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, false, nil
	}
	if err != nil {
		return models.Message{}, false, err
	}
	return msg, true, nil
}
