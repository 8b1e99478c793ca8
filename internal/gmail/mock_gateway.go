package gmail

import (
	"context"
	"sync"
	"time"

	"codexcity/internal/model"
)

// MockGmailGateway is a mock implementation of service.GmailGateway for
// testing. Every call is counted so tests can assert what was reached.
type MockGmailGateway struct {
	AuthorizationURLFunc   func(state string) string
	ExchangeCodeFunc       func(ctx context.Context, code string) (*model.TokenGrant, error)
	RefreshAccessTokenFunc func(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
	PollMessagesFunc       func(ctx context.Context, accessToken string, since *time.Time, maxResults int64) ([]model.MessageRef, error)
	GetMessageDetailFunc   func(ctx context.Context, accessToken, messageID string) (*model.MessageDetail, error)
	SendMessageFunc        func(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.SentMessage, error)

	mu    sync.Mutex
	calls map[string]int
	Sent  []model.OutgoingMessage
}

func NewMockGmailGateway() *MockGmailGateway {
	return &MockGmailGateway{calls: make(map[string]int)}
}

func (m *MockGmailGateway) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (m *MockGmailGateway) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockGmailGateway) AuthorizationURL(state string) string {
	m.record("AuthorizationURL")
	if m.AuthorizationURLFunc != nil {
		return m.AuthorizationURLFunc(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *MockGmailGateway) ExchangeCode(ctx context.Context, code string) (*model.TokenGrant, error) {
	m.record("ExchangeCode")
	if m.ExchangeCodeFunc != nil {
		return m.ExchangeCodeFunc(ctx, code)
	}
	return &model.TokenGrant{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (m *MockGmailGateway) RefreshAccessToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	m.record("RefreshAccessToken")
	if m.RefreshAccessTokenFunc != nil {
		return m.RefreshAccessTokenFunc(ctx, refreshToken)
	}
	return &model.TokenGrant{
		AccessToken: "refreshed-access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil
}

func (m *MockGmailGateway) PollMessages(ctx context.Context, accessToken string, since *time.Time, maxResults int64) ([]model.MessageRef, error) {
	m.record("PollMessages")
	if m.PollMessagesFunc != nil {
		return m.PollMessagesFunc(ctx, accessToken, since, maxResults)
	}

	// Default mock behavior: an empty inbox
	return []model.MessageRef{}, nil
}

func (m *MockGmailGateway) GetMessageDetail(ctx context.Context, accessToken, messageID string) (*model.MessageDetail, error) {
	m.record("GetMessageDetail")
	if m.GetMessageDetailFunc != nil {
		return m.GetMessageDetailFunc(ctx, accessToken, messageID)
	}
	return &model.MessageDetail{ID: messageID}, nil
}

func (m *MockGmailGateway) SendMessage(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.SentMessage, error) {
	m.record("SendMessage")
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, accessToken, msg)
	}

	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	return &model.SentMessage{ID: "sent-" + msg.ThreadID, ThreadID: msg.ThreadID}, nil
}
