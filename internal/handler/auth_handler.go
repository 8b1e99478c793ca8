package handler

import (
	"errors"
	"net/http"

	"codexcity/internal/config"
	"codexcity/internal/service"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
)

const (
	sessionUserID = "user_id"
	contextUserID = "user_id"
)

var errNotAuthenticated = errors.New("user not authenticated")

type AuthHandler struct {
	authService service.AuthService
	store       sessions.Store
	config      *config.Config
	logger      echo.Logger
}

// NewAuthHandler registers the Google sign-in provider. Sign-in only asks
// for identity scopes; mailbox access is granted separately through the
// Gmail connect flow.
func NewAuthHandler(authService service.AuthService, store sessions.Store, config *config.Config, logger echo.Logger) *AuthHandler {
	gothic.Store = store

	goth.UseProviders(
		google.New(
			config.GoogleClientID,
			config.GoogleClientSecret,
			config.BaseURL+"/auth/google/callback",
			"email",
			"profile",
		),
	)

	return &AuthHandler{
		authService: authService,
		store:       store,
		config:      config,
		logger:      logger,
	}
}

// withProvider sets the provider query parameter gothic reads.
func withProvider(req *http.Request) *http.Request {
	q := req.URL.Query()
	q.Set("provider", "google")
	req.URL.RawQuery = q.Encode()
	return req
}

// BeginAuthHandler initiates the OAuth flow
func (h *AuthHandler) BeginAuthHandler(c echo.Context) error {
	if c.Param("provider") != "google" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid provider",
		})
	}

	gothic.BeginAuthHandler(c.Response(), withProvider(c.Request()))
	return nil
}

// CallbackHandler handles the OAuth callback
func (h *AuthHandler) CallbackHandler(c echo.Context) error {
	req := withProvider(c.Request())

	googleUser, err := gothic.CompleteUserAuth(c.Response(), req)
	if err != nil {
		h.logger.Error("Failed to complete user auth:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Authentication failed",
		})
	}

	user, err := h.authService.GetOrCreateUser(
		req.Context(),
		googleUser.Provider+"_"+googleUser.UserID,
		googleUser.Email,
		googleUser.Name,
	)
	if err != nil {
		h.logger.Error("Failed to get or create user:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to process user",
		})
	}

	session, _ := h.store.Get(req, sessionName)
	session.Values[sessionUserID] = user.ID
	if err := session.Save(req, c.Response()); err != nil {
		h.logger.Error("Failed to save session:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to save session",
		})
	}

	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// LogoutHandler logs out the user
func (h *AuthHandler) LogoutHandler(c echo.Context) error {
	req := withProvider(c.Request())

	if session, err := h.store.Get(req, sessionName); err == nil {
		delete(session.Values, sessionUserID)
		if session.Options != nil {
			session.Options.MaxAge = -1
		}
		if err := session.Save(req, c.Response()); err != nil {
			h.logger.Error("Failed to clear session:", err)
		}
	}
	if err := gothic.Logout(c.Response(), req); err != nil {
		h.logger.Error("Failed to clear provider session:", err)
	}

	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

// CurrentUserID returns the id stored in the session cookie.
func (h *AuthHandler) CurrentUserID(c echo.Context) (string, error) {
	session, err := h.store.Get(c.Request(), sessionName)
	if err != nil {
		return "", err
	}

	userID, ok := session.Values[sessionUserID].(string)
	if !ok || userID == "" {
		return "", errNotAuthenticated
	}

	if _, err := h.authService.GetUser(c.Request().Context(), userID); err != nil {
		return "", err
	}
	return userID, nil
}

// userID reads the id the auth middleware stored on the request.
func userID(c echo.Context) (string, error) {
	id, ok := c.Get(contextUserID).(string)
	if !ok || id == "" {
		return "", errNotAuthenticated
	}
	return id, nil
}

// SetUserID marks the request as authenticated as id.
func SetUserID(c echo.Context, id string) {
	c.Set(contextUserID, id)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "Unauthorized",
	})
}
