package repository

import (
	"context"
	"errors"
	"time"

	"codexcity/internal/model"
)

// ErrNotFound is returned by every repository when the requested row does
// not exist.
var ErrNotFound = errors.New("not found")

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	SetManualOverride(ctx context.Context, id string, active bool) error
	SetLastPollAt(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// TokenRepository stores one OAuth credential set per user
type TokenRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Token, error)
	Upsert(ctx context.Context, token *model.Token) error
	Delete(ctx context.Context, userID string) error
}

// TemplateRepository defines the interface for response template operations
type TemplateRepository interface {
	Create(ctx context.Context, template *model.Template) error
	FindByID(ctx context.Context, id string) (*model.Template, error)
	FindByUserID(ctx context.Context, userID string) ([]*model.Template, error)
	Update(ctx context.Context, template *model.Template) error
	Delete(ctx context.Context, id string) error
}

// EmailLogRepository is append-only
type EmailLogRepository interface {
	Create(ctx context.Context, log *model.EmailLog) error
	FindByUserID(ctx context.Context, userID string) ([]*model.EmailLog, error)
	HasSentResponse(ctx context.Context, userID, gmailMessageID string) (bool, error)
}
