package models

// UserProfile mirrors the identity-provider profile inside the service's own
// users table. Rows are written by the profile sync endpoint, never by the
// messaging flows.
type UserProfile struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	PhotoURL  string `db:"photo_url" json:"photo_url"`
	UpdatedAt int64  `db:"updated_at" json:"-"`
}

// RosterEntry is one friend in the viewer's roster, enriched for the
// conversation sidebar.
type RosterEntry struct {
	FriendID    string `json:"friend_id"`
	Name        string `json:"name"`
	PhotoURL    string `json:"photo_url"`
	LastMessage string `json:"last_message,omitempty"`
	Unseen      bool   `json:"unseen"`
}
