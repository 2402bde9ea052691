package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// NotificationRepository tracks which message ids have already produced a
// notification for a viewer. The set is durable, so a restart or page reload
// never re-notifies an old message.
type NotificationRepository interface {
	MarkNotified(ctx context.Context, userID, messageID string) (bool, error)
}

// NotificationRepo is the sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// MarkNotified records the message id for the viewer. Returns true when the
// id was newly recorded, false when it had been notified before. The insert
// itself is the dedup check, so concurrent dispatchers cannot both win.
func (r *NotificationRepo) MarkNotified(ctx context.Context, userID, messageID string) (bool, error) {
	query := r.db.Rebind(`INSERT INTO notified_messages (user_id, message_id, notified_at) VALUES (?, ?, ?)
        ON CONFLICT (user_id, message_id) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, userID, messageID, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
