package router_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexcity/internal/config"
	"codexcity/internal/gmail"
	"codexcity/internal/handler"
	"codexcity/internal/lock"
	"codexcity/internal/logger"
	"codexcity/internal/model"
	"codexcity/internal/repository/memory"
	"codexcity/internal/router"
	"codexcity/internal/service"
	"codexcity/internal/sse"
)

type app struct {
	e         *echo.Echo
	store     *sessions.CookieStore
	gateway   *gmail.MockGmailGateway
	locker    *lock.MemoryLocker
	hub       *sse.Hub
	templates service.TemplateService
	user      *model.User
	cookies   []*http.Cookie
}

func newApp(t *testing.T) *app {
	t.Helper()
	appLogger := logger.Nop()
	cfg := &config.Config{
		BaseURL:            "http://localhost:8080",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		SessionSecret:      "0123456789abcdef0123456789abcdef",
	}

	userRepo := memory.NewInMemoryUserRepository()
	templateRepo := memory.NewInMemoryTemplateRepository()
	logRepo := memory.NewInMemoryEmailLogRepository()
	gateway := gmail.NewMockGmailGateway()
	locker := lock.NewMemoryLocker()
	hub := sse.NewHub(appLogger)

	tokenService := service.NewTokenService(memory.NewInMemoryTokenRepository(), gateway, appLogger)
	templateService := service.NewTemplateService(templateRepo, appLogger)
	authService := service.NewAuthService(userRepo, tokenService, templateService, appLogger)
	automationService := service.NewAutomationService(service.AutomationConfig{MaxPollResults: 10},
		userRepo, templateRepo, logRepo, tokenService, gateway, locker, hub, appLogger)
	analyticsService := service.NewAnalyticsService(logRepo)

	e := echo.New()
	store := handler.NewSessionStore([]byte(cfg.SessionSecret), false)
	router.SetupRoutes(e, router.Handlers{
		Auth:       handler.NewAuthHandler(authService, store, cfg, e.Logger),
		Profile:    handler.NewProfileHandler(authService, e.Logger),
		Gmail:      handler.NewGmailHandler(tokenService, store, e.Logger),
		Template:   handler.NewTemplateHandler(templateService, e.Logger),
		Automation: handler.NewAutomationHandler(automationService, analyticsService, hub, e.Logger),
	})

	user, err := authService.GetOrCreateUser(context.Background(), "google_1", "owner@shop.example", "Owner")
	require.NoError(t, err)

	a := &app{e: e, store: store, gateway: gateway, locker: locker, hub: hub, templates: templateService, user: user}
	a.cookies = a.login(t, user.ID)
	return a
}

func (a *app) login(t *testing.T, userID string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := a.store.Get(req, "codexcity_session")
	require.NoError(t, err)
	session.Values["user_id"] = userID
	require.NoError(t, session.Save(req, rec))
	return rec.Result().Cookies()
}

func (a *app) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range a.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestPublicRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = a.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIRequiresSession(t *testing.T) {
	a := newApp(t)
	a.cookies = nil

	rec := a.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.cookies = a.login(t, "deleted-user")
	rec = a.do(http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]interface{}
	decode(t, rec, &profile)
	assert.Equal(t, a.user.ID, profile["id"])
	assert.Equal(t, false, profile["gmail_connected"])
	assert.Equal(t, false, profile["manual_override_active"])

	rec = a.do(http.MethodPut, "/api/me/override", `{"active":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &profile)
	assert.Equal(t, true, profile["manual_override_active"])

	rec = a.do(http.MethodPut, "/api/me/override", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplateRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/api/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var templates []model.Template
	decode(t, rec, &templates)
	assert.Len(t, templates, 3)

	rec = a.do(http.MethodPost, "/api/templates", `{"category":"billing","subject":"Re: [Subject]","body":"Hi [Name]"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Template
	decode(t, rec, &created)
	assert.Equal(t, model.CategoryBilling, created.Category)
	assert.True(t, created.IsActive)

	rec = a.do(http.MethodPost, "/api/templates", `{"category":"spam","subject":"s","body":"b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/api/templates", `{"category":"order"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPut, "/api/templates/"+created.ID, `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Template
	decode(t, rec, &updated)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Hi [Name]", updated.Body)

	rec = a.do(http.MethodGet, "/api/templates?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &templates)
	assert.Len(t, templates, 3)

	other, err := a.templates.CreateTemplate(context.Background(), "someone-else", model.CategoryOrder, "s", "b", true)
	require.NoError(t, err)
	rec = a.do(http.MethodGet, "/api/templates/"+other.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodDelete, "/api/templates/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodGet, "/api/templates/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGmailConnectFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/api/gmail/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	authURL, err := url.Parse(body["url"])
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)
	a.cookies = rec.Result().Cookies()

	rec = a.do(http.MethodGet, "/api/gmail/callback?code=abc&state=forged", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, a.gateway.Calls("ExchangeCode"))

	rec = a.do(http.MethodGet, "/api/gmail/callback?code=abc&state="+state, "")
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, 1, a.gateway.Calls("ExchangeCode"))

	var profile map[string]interface{}
	decode(t, a.do(http.MethodGet, "/api/me", ""), &profile)
	assert.Equal(t, true, profile["gmail_connected"])

	rec = a.do(http.MethodDelete, "/api/gmail", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	decode(t, a.do(http.MethodGet, "/api/me", ""), &profile)
	assert.Equal(t, false, profile["gmail_connected"])
}

func connect(t *testing.T, a *app) {
	t.Helper()
	rec := a.do(http.MethodGet, "/api/gmail/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	authURL, err := url.Parse(body["url"])
	require.NoError(t, err)
	a.cookies = rec.Result().Cookies()
	rec = a.do(http.MethodGet, "/api/gmail/callback?code=abc&state="+authURL.Query().Get("state"), "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestAutomationRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodPost, "/api/automation/run", `{"last_poll_timestamp":"2024-05-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]interface{}
	decode(t, rec, &result)
	assert.Equal(t, float64(0), result["processed_count"])
	assert.Equal(t, "gmail account not connected", result["error"])
	assert.Equal(t, "2024-05-01T00:00:00Z", result["new_last_poll_timestamp"])

	rec = a.do(http.MethodPost, "/api/automation/run", `{"last_poll_timestamp":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	connect(t, a)
	a.gateway.PollMessagesFunc = func(ctx context.Context, accessToken string, since *time.Time, maxResults int64) ([]model.MessageRef, error) {
		return []model.MessageRef{{ID: "m1", ThreadID: "t1"}}, nil
	}
	a.gateway.GetMessageDetailFunc = func(ctx context.Context, accessToken, messageID string) (*model.MessageDetail, error) {
		return &model.MessageDetail{
			ID:       messageID,
			ThreadID: "t1",
			Headers: []model.Header{
				{Name: "From", Value: "Sam <sam@example.com>"},
				{Name: "Subject", Value: "Login problem"},
			},
			PlainBody:  "Please help, I cannot get past the login page",
			HasPayload: true,
		}, nil
	}

	rec = a.do(http.MethodPost, "/api/automation/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	result = nil
	decode(t, rec, &result)
	assert.Equal(t, float64(1), result["processed_count"])
	assert.Equal(t, float64(1), result["sent_count"])
	assert.NotContains(t, result, "error")

	rec = a.do(http.MethodGet, "/api/logs?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []model.EmailLog
	decode(t, rec, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, model.CategorySupport, logs[0].Category)
	assert.True(t, logs[0].ResponseSent)

	rec = a.do(http.MethodGet, "/api/logs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary model.AnalyticsSummary
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.TotalProcessed)
	assert.Equal(t, 1, summary.ResponsesSent)

	release, err := a.locker.Acquire(context.Background(), "automation:"+a.user.ID, time.Minute)
	require.NoError(t, err)
	defer release()
	rec = a.do(http.MethodPost, "/api/automation/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEventStream(t *testing.T) {
	a := newApp(t)
	server := httptest.NewServer(a.e)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	require.NoError(t, err)
	for _, c := range a.cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connection\n", line)

	a.hub.Publish(a.user.ID, service.EventAutomationCompleted, map[string]int{"processed_count": 2})

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {\"type\"") {
			break
		}
	}
	assert.Contains(t, line, `"type":"automation_completed"`)
	assert.Contains(t, line, `"processed_count":2`)
}

func TestRunAutomationFinishesAfterClientDisconnects(t *testing.T) {
	a := newApp(t)
	connect(t, a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.gateway.PollMessagesFunc = func(ctx context.Context, accessToken string, since *time.Time, maxResults int64) ([]model.MessageRef, error) {
		return []model.MessageRef{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}, nil
	}
	a.gateway.GetMessageDetailFunc = func(ctx context.Context, accessToken, messageID string) (*model.MessageDetail, error) {
		if messageID == "m1" {
			// The browser goes away while the first message is in flight.
			cancel()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &model.MessageDetail{
			ID:       messageID,
			ThreadID: "thread-" + messageID,
			Headers: []model.Header{
				{Name: "From", Value: "Sam <sam@example.com>"},
				{Name: "Subject", Value: "Login problem"},
			},
			PlainBody:  "Please help, the login page is broken",
			HasPayload: true,
		}, nil
	}
	var sent []string
	a.gateway.SendMessageFunc = func(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.SentMessage, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sent = append(sent, msg.ThreadID)
		return &model.SentMessage{ID: "s-" + msg.ThreadID, ThreadID: msg.ThreadID}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/api/automation/run", nil).WithContext(ctx)
	for _, c := range a.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]interface{}
	decode(t, rec, &result)
	assert.Equal(t, float64(3), result["processed_count"])
	assert.Equal(t, float64(3), result["sent_count"])
	assert.Equal(t, []string{"thread-m1", "thread-m2", "thread-m3"}, sent)
}
