package handler

import (
	"net/http"

	"codexcity/internal/service"

	"github.com/labstack/echo/v4"
)

type ProfileHandler struct {
	authService service.AuthService
	logger      echo.Logger
}

func NewProfileHandler(authService service.AuthService, logger echo.Logger) *ProfileHandler {
	return &ProfileHandler{
		authService: authService,
		logger:      logger,
	}
}

// GetProfile returns the signed-in user with the derived Gmail connection flag
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	profile, err := h.authService.GetProfile(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Failed to get profile:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get profile",
		})
	}

	return c.JSON(http.StatusOK, profile)
}

// SetManualOverride suspends or resumes automated replies
func (h *ProfileHandler) SetManualOverride(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "active is required",
		})
	}

	profile, err := h.authService.SetManualOverride(c.Request().Context(), id, *req.Active)
	if err != nil {
		h.logger.Error("Failed to set manual override:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to update manual override",
		})
	}

	return c.JSON(http.StatusOK, profile)
}
