package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"codexcity/internal/config"
	"codexcity/internal/logger"
	"codexcity/internal/model"
	"codexcity/internal/service"
)

const (
	user              = "me" // the mailbox owning the access token
	defaultMaxResults = 100
)

// Scopes requested on the consent screen.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailComposeScope,
	gmail.GmailSendScope,
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Endpoint overrides Google's OAuth endpoints when non-empty.
	Endpoint oauth2.Endpoint
	// APIEndpoint overrides the Gmail REST base URL when non-empty.
	APIEndpoint string
}

func (c Config) validate() error {
	if c.ClientID == "" {
		return &config.Error{Key: "GOOGLE_CLIENT_ID", Reason: "is required"}
	}
	if c.ClientSecret == "" {
		return &config.Error{Key: "GOOGLE_CLIENT_SECRET", Reason: "is required"}
	}
	if c.RedirectURI == "" {
		return &config.Error{Key: "GOOGLE_REDIRECT_URI", Reason: "is required"}
	}
	return nil
}

type gmailGateway struct {
	oauth       *oauth2.Config
	apiEndpoint string
	logger      *logger.Logger
}

func NewGmailGateway(cfg Config, logger *logger.Logger) (service.GmailGateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	return &gmailGateway{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		apiEndpoint: cfg.APIEndpoint,
		logger:      logger.With("gmail"),
	}, nil
}

// AuthorizationURL builds the consent URL. Offline access plus a forced
// consent prompt makes Google hand out a refresh token every time.
func (g *gmailGateway) AuthorizationURL(state string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (g *gmailGateway) ExchangeCode(ctx context.Context, code string) (*model.TokenGrant, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Error("Failed to exchange authorization code:", err)
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return grantFromToken(token), nil
}

func (g *gmailGateway) RefreshAccessToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token available")
	}

	// An empty access token is never valid, so the source always hits the
	// token endpoint with the refresh grant.
	source := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		g.logger.Error("Failed to refresh access token:", err)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return grantFromToken(token), nil
}

func grantFromToken(token *oauth2.Token) *model.TokenGrant {
	grant := &model.TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		grant.Scope = scope
	}
	return grant
}

type oauth2Transport struct {
	token string
	base  http.RoundTripper
}

func (t *oauth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}

func (g *gmailGateway) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	httpClient := &http.Client{
		Transport: &oauth2Transport{token: accessToken, base: http.DefaultTransport},
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if g.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.apiEndpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// PollQuery is the Gmail search used to find new mail. since is truncated
// to epoch seconds, the granularity of the "after:" operator.
func PollQuery(since *time.Time) string {
	query := "is:unread"
	if since != nil && !since.IsZero() {
		query += fmt.Sprintf(" after:%d", since.Unix())
	}
	return query
}

func (g *gmailGateway) PollMessages(ctx context.Context, accessToken string, since *time.Time, maxResults int64) ([]model.MessageRef, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	list, err := svc.Users.Messages.List(user).
		Q(PollQuery(since)).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	refs := make([]model.MessageRef, 0, len(list.Messages))
	for _, msg := range list.Messages {
		refs = append(refs, model.MessageRef{ID: msg.Id, ThreadID: msg.ThreadId})
	}

	g.logger.Info("Polled", len(refs), "unread messages")
	return refs, nil
}

func (g *gmailGateway) GetMessageDetail(ctx context.Context, accessToken, messageID string) (*model.MessageDetail, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	message, err := svc.Users.Messages.Get(user, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	return g.parseMessage(message), nil
}

func (g *gmailGateway) parseMessage(message *gmail.Message) *model.MessageDetail {
	detail := &model.MessageDetail{
		ID:           message.Id,
		ThreadID:     message.ThreadId,
		InternalDate: message.InternalDate,
	}
	if message.Payload == nil {
		return detail
	}

	detail.HasPayload = true
	for _, header := range message.Payload.Headers {
		detail.Headers = append(detail.Headers, model.Header{Name: header.Name, Value: header.Value})
	}
	detail.PlainBody, detail.HTMLBody = g.extractBodies(message.Payload)
	return detail
}

// extractBodies walks the MIME tree depth first and keeps the first
// text/plain and the first text/html part it can decode.
func (g *gmailGateway) extractBodies(part *gmail.MessagePart) (plain, html string) {
	if part == nil {
		return "", ""
	}

	if part.Body != nil && part.Body.Data != "" {
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain"):
			plain = g.decode(part.Body.Data)
		case strings.HasPrefix(part.MimeType, "text/html"):
			html = g.decode(part.Body.Data)
		}
	}

	for _, child := range part.Parts {
		if plain != "" && html != "" {
			break
		}
		p, h := g.extractBodies(child)
		if plain == "" {
			plain = p
		}
		if html == "" {
			html = h
		}
	}
	return plain, html
}

func (g *gmailGateway) decode(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail sometimes omits padding.
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			g.logger.Error("Failed to decode email body:", err)
			return ""
		}
	}
	return string(decoded)
}

// BuildRawMessage renders the minimal RFC 822 message sent as a reply.
func BuildRawMessage(msg model.OutgoingMessage) string {
	var sb strings.Builder

	sb.WriteString("To: " + msg.To + "\r\n")
	sb.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	if msg.InReplyTo != "" {
		sb.WriteString("In-Reply-To: " + msg.InReplyTo + "\r\n")
		sb.WriteString("References: " + msg.InReplyTo + "\r\n")
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)

	return sb.String()
}

func (g *gmailGateway) SendMessage(ctx context.Context, accessToken string, msg model.OutgoingMessage) (*model.SentMessage, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	message := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(BuildRawMessage(msg))),
		ThreadId: msg.ThreadID,
	}

	sent, err := svc.Users.Messages.Send(user, message).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	g.logger.Info("Sent reply to", msg.To, "message:", sent.Id)
	return &model.SentMessage{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}
