package model

import "time"

// Token holds the Gmail OAuth credentials of a single user. There is at
// most one Token per user; writes are upserts keyed by UserID.
type Token struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is no longer usable at now.
// A zero ExpiresAt means the provider did not report an expiry.
func (t *Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// TokenGrant is what the OAuth token endpoint hands back for a code
// exchange or a refresh. RefreshToken is empty when the provider did not
// rotate it.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}
