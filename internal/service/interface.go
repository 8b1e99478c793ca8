package service

import (
	"context"
	"errors"
	"time"

	"codexcity/internal/model"
)

var (
	// ErrGmailNotConnected means the user has no stored Gmail token.
	ErrGmailNotConnected = errors.New("gmail account not connected")
	// ErrTokenUnavailable means a stored token expired and could not be
	// refreshed. The user has to reconnect.
	ErrTokenUnavailable = errors.New("no valid gmail access token")
	// ErrRunInProgress rejects a second concurrent automation run for the
	// same user.
	ErrRunInProgress   = errors.New("automation run already in progress")
	ErrInvalidCategory = errors.New("invalid template category")
)

type AuthService interface {
	GetOrCreateUser(ctx context.Context, googleID, email, name string) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SetManualOverride(ctx context.Context, userID string, active bool) (*model.UserProfile, error)
}

type TokenService interface {
	GetTokens(ctx context.Context, userID string) (*model.Token, error)
	StoreTokens(ctx context.Context, token *model.Token) error
	DeleteTokens(ctx context.Context, userID string) error
	IsConnected(ctx context.Context, userID string) (bool, error)
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
	AuthorizationURL(state string) string
	Connect(ctx context.Context, userID, code string) (*model.Token, error)
}

// TemplateUpdate carries the fields of a partial template edit; nil
// fields are left unchanged.
type TemplateUpdate struct {
	Category *model.Category
	Subject  *string
	Body     *string
	IsActive *bool
}

type TemplateService interface {
	CreateTemplate(ctx context.Context, userID string, category model.Category, subject, body string, isActive bool) (*model.Template, error)
	GetTemplate(ctx context.Context, userID, templateID string) (*model.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]*model.Template, error)
	ListActiveTemplates(ctx context.Context, userID string) ([]*model.Template, error)
	UpdateTemplate(ctx context.Context, userID, templateID string, update TemplateUpdate) (*model.Template, error)
	DeleteTemplate(ctx context.Context, userID, templateID string) error
	SeedDefaults(ctx context.Context, userID string) error
}

type AutomationService interface {
	// Run performs one pass over the user's unread mail. The result is
	// always non-nil and carries the watermark the caller should use next;
	// a non-nil error means the run was aborted.
	Run(ctx context.Context, userID string, lastPoll *time.Time) (*model.RunResult, error)
}

type AnalyticsService interface {
	GetSummary(ctx context.Context, userID string) (*model.AnalyticsSummary, error)
	ListLogs(ctx context.Context, userID string, limit int) ([]*model.EmailLog, error)
}

// GmailGateway interface for interacting with the Gmail API
type GmailGateway interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*model.TokenGrant, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
	PollMessages(ctx context.Context, accessToken string, since *time.Time, maxResults int64) ([]model.MessageRef, error)
	GetMessageDetail(ctx context.Context, accessToken, messageID string) (*model.MessageDetail, error)
	SendMessage(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.SentMessage, error)
}

// RunLocker serialises automation runs per user.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// EventPublisher receives progress events for a user's dashboard.
type EventPublisher interface {
	Publish(userID, eventType string, data interface{})
}
