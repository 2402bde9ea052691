package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository stores profiles synced from the identity provider.
type UserRepository interface {
	Upsert(ctx context.Context, profile models.UserProfile) error
	Get(ctx context.Context, userID string) (models.UserProfile, error)
	GetBatch(ctx context.Context, userIDs []string) ([]models.UserProfile, error)
}

// UserRepo is the sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert writes or refreshes a profile row.
func (r *UserRepo) Upsert(ctx context.Context, profile models.UserProfile) error {
	query := r.db.Rebind(`INSERT INTO users (id, name, email, photo_url, updated_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email,
        photo_url = EXCLUDED.photo_url, updated_at = EXCLUDED.updated_at`)
	_, err := r.db.ExecContext(ctx, query, profile.ID, profile.Name, profile.Email, profile.PhotoURL, time.Now().UnixMilli())
	return err
}

// Get fetches a single profile.
func (r *UserRepo) Get(ctx context.Context, userID string) (models.UserProfile, error) {
	query := r.db.Rebind(`SELECT id, name, email, photo_url, updated_at FROM users WHERE id = ?`)
	var profile models.UserProfile
	err := r.db.GetContext(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrUserNotFound
	}
	return profile, err
}

// GetBatch fetches the profiles for the given ids. Unknown ids are simply
// absent from the result, matching the friend-details contract.
func (r *UserRepo) GetBatch(ctx context.Context, userIDs []string) ([]models.UserProfile, error) {
	if len(userIDs) == 0 {
		return []models.UserProfile{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, email, photo_url, updated_at FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	var profiles []models.UserProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, err
	}
	return profiles, nil
}
