package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrSelfFriendship = errors.New("cannot befriend yourself")

// RosterRepository maintains the bidirectional friends relation. The edge is
// stored redundantly under both users so either side can list its roster with
// a single key lookup.
type RosterRepository interface {
	EnsureFriendship(ctx context.Context, userID, friendID string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]string, error)
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)
}

// RosterRepo is the sqlx implementation of RosterRepository.
type RosterRepo struct {
	db *sqlx.DB
}

// NewRosterRepo constructs a RosterRepo.
func NewRosterRepo(db *sqlx.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

// EnsureFriendship inserts both directions of the edge inside a single
// transaction, so the relation can never be left half-written. Returns true
// when the edge was newly created.
func (r *RosterRepo) EnsureFriendship(ctx context.Context, userID, friendID string) (bool, error) {
	if userID == friendID {
		return false, ErrSelfFriendship
	}

	exists, err := r.AreFriends(ctx, userID, friendID)
	if err != nil || exists {
		return false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	query := r.db.Rebind(`INSERT INTO friends (user_id, friend_id, created_at) VALUES (?, ?, ?)
        ON CONFLICT (user_id, friend_id) DO NOTHING`)
	if _, err := tx.ExecContext(ctx, query, userID, friendID, now); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, query, friendID, userID, now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ListFriends returns the friend ids on the user's roster.
func (r *RosterRepo) ListFriends(ctx context.Context, userID string) ([]string, error) {
	query := r.db.Rebind(`SELECT friend_id FROM friends WHERE user_id = ? ORDER BY created_at ASC, friend_id ASC`)
	var ids []string
	err := r.db.SelectContext(ctx, &ids, query, userID)
	return ids, err
}

// AreFriends checks the edge under the first user's roster. The transactional
// write keeps both directions consistent, so one side suffices.
func (r *RosterRepo) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	query := r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM friends WHERE user_id = ? AND friend_id = ?)`)
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, userID, friendID)
	return exists, err
}
