package handler

import (
	"net/http"

	"codexcity/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

const sessionOAuthState = "gmail_oauth_state"

type GmailHandler struct {
	tokenService service.TokenService
	store        sessions.Store
	logger       echo.Logger
}

func NewGmailHandler(tokenService service.TokenService, store sessions.Store, logger echo.Logger) *GmailHandler {
	return &GmailHandler{
		tokenService: tokenService,
		store:        store,
		logger:       logger,
	}
}

// Connect returns the consent URL for granting mailbox access
func (h *GmailHandler) Connect(c echo.Context) error {
	if _, err := userID(c); err != nil {
		return unauthorized(c)
	}

	state := uuid.New().String()
	session, _ := h.store.Get(c.Request(), sessionName)
	session.Values[sessionOAuthState] = state
	if err := session.Save(c.Request(), c.Response()); err != nil {
		h.logger.Error("Failed to save session:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to save session",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"url": h.tokenService.AuthorizationURL(state),
	})
}

// Callback completes the Gmail consent flow
func (h *GmailHandler) Callback(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	if errParam := c.QueryParam("error"); errParam != "" {
		h.logger.Warn("Gmail consent denied:", errParam)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Gmail access was not granted",
		})
	}

	session, _ := h.store.Get(c.Request(), sessionName)
	expected, _ := session.Values[sessionOAuthState].(string)
	state := c.QueryParam("state")
	if expected == "" || state != expected {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid OAuth state",
		})
	}
	delete(session.Values, sessionOAuthState)
	if err := session.Save(c.Request(), c.Response()); err != nil {
		h.logger.Error("Failed to save session:", err)
	}

	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "code is required",
		})
	}

	if _, err := h.tokenService.Connect(c.Request().Context(), id, code); err != nil {
		h.logger.Error("Failed to connect Gmail:", err)
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to exchange authorization code",
		})
	}

	return c.Redirect(http.StatusTemporaryRedirect, "/?gmail=connected")
}

// Disconnect forgets the stored Gmail credentials
func (h *GmailHandler) Disconnect(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.tokenService.DeleteTokens(c.Request().Context(), id); err != nil {
		h.logger.Error("Failed to disconnect Gmail:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to disconnect Gmail",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Gmail disconnected",
	})
}
