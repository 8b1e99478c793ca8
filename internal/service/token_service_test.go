package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexcity/internal/gmail"
	"codexcity/internal/logger"
	"codexcity/internal/model"
	"codexcity/internal/repository/memory"
	"codexcity/internal/service"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	tokenRepo := memory.NewInMemoryTokenRepository()
	tokens := service.NewTokenService(tokenRepo, gmail.NewMockGmailGateway(), logger.Nop())
	ctx := context.Background()

	err := tokens.StoreTokens(ctx, &model.Token{
		UserID:       "user-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scope:        "gmail.readonly gmail.send",
	})
	require.NoError(t, err)

	stored, err := tokens.GetTokens(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access", stored.AccessToken)
	assert.Equal(t, "refresh", stored.RefreshToken)
	assert.Equal(t, "gmail.readonly gmail.send", stored.Scope)

	connected, err := tokens.IsConnected(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, connected)

	require.NoError(t, tokens.DeleteTokens(ctx, "user-1"))
	connected, err = tokens.IsConnected(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestGetValidAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		tokens := service.NewTokenService(memory.NewInMemoryTokenRepository(), gmail.NewMockGmailGateway(), logger.Nop())

		_, err := tokens.GetValidAccessToken(ctx, "user-1")
		assert.ErrorIs(t, err, service.ErrGmailNotConnected)
	})

	t.Run("unexpired token is returned unchanged", func(t *testing.T) {
		tokenRepo := memory.NewInMemoryTokenRepository()
		gateway := gmail.NewMockGmailGateway()
		tokens := service.NewTokenService(tokenRepo, gateway, logger.Nop())
		require.NoError(t, tokenRepo.Upsert(ctx, &model.Token{
			UserID:       "user-1",
			AccessToken:  "still-good",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
		}))

		accessToken, err := tokens.GetValidAccessToken(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "still-good", accessToken)
		assert.Equal(t, 0, gateway.Calls("RefreshAccessToken"))
	})

	t.Run("expired token is refreshed and persisted", func(t *testing.T) {
		tokenRepo := memory.NewInMemoryTokenRepository()
		gateway := gmail.NewMockGmailGateway()
		tokens := service.NewTokenService(tokenRepo, gateway, logger.Nop())
		require.NoError(t, tokenRepo.Upsert(ctx, &model.Token{
			UserID:       "user-1",
			AccessToken:  "stale",
			RefreshToken: "original-refresh",
			ExpiresAt:    time.Now().Add(-time.Minute),
			Scope:        "gmail.send",
		}))

		accessToken, err := tokens.GetValidAccessToken(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "refreshed-access-token", accessToken)
		assert.Equal(t, 1, gateway.Calls("RefreshAccessToken"))

		stored, err := tokenRepo.FindByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "refreshed-access-token", stored.AccessToken)
		assert.Equal(t, "original-refresh", stored.RefreshToken)
		assert.Equal(t, "gmail.send", stored.Scope)
		assert.True(t, stored.ExpiresAt.After(time.Now()))
	})

	t.Run("failed refresh persists nothing", func(t *testing.T) {
		tokenRepo := memory.NewInMemoryTokenRepository()
		gateway := gmail.NewMockGmailGateway()
		gateway.RefreshAccessTokenFunc = func(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
			return nil, errors.New("invalid_grant")
		}
		tokens := service.NewTokenService(tokenRepo, gateway, logger.Nop())
		expiry := time.Now().Add(-time.Minute)
		require.NoError(t, tokenRepo.Upsert(ctx, &model.Token{
			UserID:       "user-1",
			AccessToken:  "stale",
			RefreshToken: "revoked",
			ExpiresAt:    expiry,
		}))

		accessToken, err := tokens.GetValidAccessToken(ctx, "user-1")
		assert.ErrorIs(t, err, service.ErrTokenUnavailable)
		assert.Empty(t, accessToken)

		stored, err := tokenRepo.FindByUserID(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "stale", stored.AccessToken)
		assert.Equal(t, "revoked", stored.RefreshToken)
		assert.True(t, stored.ExpiresAt.Equal(expiry))
	})
}

func TestConnectStoresExchangedToken(t *testing.T) {
	ctx := context.Background()
	tokenRepo := memory.NewInMemoryTokenRepository()
	gateway := gmail.NewMockGmailGateway()
	tokens := service.NewTokenService(tokenRepo, gateway, logger.Nop())

	assert.Contains(t, tokens.AuthorizationURL("state-1"), "state=state-1")

	token, err := tokens.Connect(ctx, "user-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "access-code-1", token.AccessToken)

	// A reconnect without a new refresh token keeps the stored one.
	gateway.ExchangeCodeFunc = func(ctx context.Context, code string) (*model.TokenGrant, error) {
		return &model.TokenGrant{AccessToken: "access-2", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	_, err = tokens.Connect(ctx, "user-1", "code-2")
	require.NoError(t, err)

	stored, err := tokenRepo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-code-1", stored.RefreshToken)

	gateway.ExchangeCodeFunc = func(ctx context.Context, code string) (*model.TokenGrant, error) {
		return nil, errors.New("bad code")
	}
	_, err = tokens.Connect(ctx, "user-1", "code-3")
	assert.Error(t, err)
}
