package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                   string     `json:"id"`
	GoogleID             string     `json:"google_id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	ManualOverrideActive bool       `json:"manual_override_active"`
	LastPollAt           *time.Time `json:"last_poll_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// UserProfile is the user as the dashboard sees it. GmailConnected is
// derived from the token store at read time and never stored.
type UserProfile struct {
	*User
	GmailConnected bool `json:"gmail_connected"`
}

func NewUser(googleID, email, name string) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New().String(),
		GoogleID:  googleID,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
