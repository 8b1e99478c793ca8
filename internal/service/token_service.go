package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codexcity/internal/logger"
	"codexcity/internal/model"
	"codexcity/internal/repository"
)

type tokenService struct {
	tokenRepo repository.TokenRepository
	gateway   GmailGateway
	logger    *logger.Logger
	now       func() time.Time
}

func NewTokenService(tokenRepo repository.TokenRepository, gateway GmailGateway, logger *logger.Logger) TokenService {
	return &tokenService{
		tokenRepo: tokenRepo,
		gateway:   gateway,
		logger:    logger.With("tokens"),
		now:       time.Now,
	}
}

func (s *tokenService) GetTokens(ctx context.Context, userID string) (*model.Token, error) {
	return s.tokenRepo.FindByUserID(ctx, userID)
}

func (s *tokenService) StoreTokens(ctx context.Context, token *model.Token) error {
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		s.logger.Error("Failed to store tokens for user:", token.UserID, err)
		return err
	}
	return nil
}

func (s *tokenService) DeleteTokens(ctx context.Context, userID string) error {
	if err := s.tokenRepo.Delete(ctx, userID); err != nil {
		s.logger.Error("Failed to delete tokens for user:", userID, err)
		return err
	}
	s.logger.Info("Disconnected Gmail for user:", userID)
	return nil
}

func (s *tokenService) IsConnected(ctx context.Context, userID string) (bool, error) {
	_, err := s.tokenRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetValidAccessToken returns the stored access token while it is
// unexpired. An expired token is refreshed once and the result persisted,
// keeping the old refresh token when the provider did not issue a new one.
func (s *tokenService) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	token, err := s.tokenRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrGmailNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("failed to load tokens: %w", err)
	}

	if !token.Expired(s.now()) {
		return token.AccessToken, nil
	}

	grant, err := s.gateway.RefreshAccessToken(ctx, token.RefreshToken)
	if err != nil {
		s.logger.Warn("Token refresh failed for user:", userID, err)
		return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}

	refreshed := tokenFromGrant(userID, grant, token)
	if err := s.StoreTokens(ctx, refreshed); err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}

	s.logger.Info("Refreshed Gmail token for user:", userID)
	return refreshed.AccessToken, nil
}

// tokenFromGrant builds the row to store. previous may be nil.
func tokenFromGrant(userID string, grant *model.TokenGrant, previous *model.Token) *model.Token {
	token := &model.Token{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		Scope:        grant.Scope,
	}
	if previous != nil {
		if token.RefreshToken == "" {
			token.RefreshToken = previous.RefreshToken
		}
		if token.Scope == "" {
			token.Scope = previous.Scope
		}
	}
	return token
}

func (s *tokenService) AuthorizationURL(state string) string {
	return s.gateway.AuthorizationURL(state)
}

// Connect exchanges an authorization code and stores the resulting token,
// replacing any previous connection.
func (s *tokenService) Connect(ctx context.Context, userID, code string) (*model.Token, error) {
	grant, err := s.gateway.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	previous, err := s.tokenRepo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	token := tokenFromGrant(userID, grant, previous)
	if err := s.StoreTokens(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info("Connected Gmail for user:", userID)
	return token, nil
}
