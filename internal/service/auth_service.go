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

type authService struct {
	userRepo  repository.UserRepository
	tokens    TokenService
	templates TemplateService
	logger    *logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens TokenService, templates TemplateService, logger *logger.Logger) AuthService {
	return &authService{
		userRepo:  userRepo,
		tokens:    tokens,
		templates: templates,
		logger:    logger.With("auth"),
	}
}

// GetOrCreateUser signs a Google identity in. New users get the default
// templates seeded.
func (s *authService) GetOrCreateUser(ctx context.Context, googleID, email, name string) (*model.User, error) {
	existingUser, err := s.userRepo.FindByGoogleID(ctx, googleID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if existingUser == nil {
		newUser := model.NewUser(googleID, email, name)
		if err := s.userRepo.Create(ctx, newUser); err != nil {
			s.logger.Error("Failed to create user:", err)
			return nil, err
		}
		if err := s.templates.SeedDefaults(ctx, newUser.ID); err != nil {
			s.logger.Error("Failed to seed default templates:", err)
			return nil, err
		}
		s.logger.Info("Created new user:", newUser.ID)
		return newUser, nil
	}

	if existingUser.Email != email || existingUser.Name != name {
		existingUser.Email = email
		existingUser.Name = name
		existingUser.UpdatedAt = time.Now()
		if err := s.userRepo.Update(ctx, existingUser); err != nil {
			s.logger.Error("Failed to update user:", err)
			return nil, err
		}
		s.logger.Info("Updated existing user:", existingUser.ID)
	}

	return existingUser, nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// GetProfile reads the user and derives GmailConnected from the token
// store, so the flag can never drift from the stored credentials.
func (s *authService) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	connected, err := s.tokens.IsConnected(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check gmail connection: %w", err)
	}

	return &model.UserProfile{User: user, GmailConnected: connected}, nil
}

func (s *authService) SetManualOverride(ctx context.Context, userID string, active bool) (*model.UserProfile, error) {
	if err := s.userRepo.SetManualOverride(ctx, userID, active); err != nil {
		s.logger.Error("Failed to set manual override:", err)
		return nil, err
	}
	s.logger.Info("Manual override for user:", userID, "active:", active)
	return s.GetProfile(ctx, userID)
}
