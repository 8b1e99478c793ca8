package handler

import (
	"errors"
	"net/http"

	"codexcity/internal/model"
	"codexcity/internal/repository"
	"codexcity/internal/service"

	"github.com/labstack/echo/v4"
)

type TemplateHandler struct {
	templateService service.TemplateService
	logger          echo.Logger
}

func NewTemplateHandler(templateService service.TemplateService, logger echo.Logger) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		logger:          logger,
	}
}

type templateRequest struct {
	Category *model.Category `json:"category"`
	Subject  *string         `json:"subject"`
	Body     *string         `json:"body"`
	IsActive *bool           `json:"is_active"`
}

// templateError maps service errors to responses.
func (h *TemplateHandler) templateError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "Template not found",
		})
	case errors.Is(err, service.ErrInvalidCategory):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}
	h.logger.Error("Failed to "+action+" template:", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "Failed to " + action + " template",
	})
}

// CreateTemplate creates a new template
func (h *TemplateHandler) CreateTemplate(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}
	if req.Category == nil || req.Subject == nil || *req.Subject == "" || req.Body == nil || *req.Body == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "category, subject and body are required",
		})
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	template, err := h.templateService.CreateTemplate(c.Request().Context(), id, *req.Category, *req.Subject, *req.Body, isActive)
	if err != nil {
		return h.templateError(c, err, "create")
	}

	return c.JSON(http.StatusCreated, template)
}

// GetTemplates lists the user's templates
func (h *TemplateHandler) GetTemplates(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var templates []*model.Template
	if c.QueryParam("active") == "true" {
		templates, err = h.templateService.ListActiveTemplates(c.Request().Context(), id)
	} else {
		templates, err = h.templateService.ListTemplates(c.Request().Context(), id)
	}
	if err != nil {
		return h.templateError(c, err, "list")
	}
	if templates == nil {
		templates = []*model.Template{}
	}

	return c.JSON(http.StatusOK, templates)
}

// GetTemplate retrieves a template by ID
func (h *TemplateHandler) GetTemplate(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	template, err := h.templateService.GetTemplate(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return h.templateError(c, err, "get")
	}

	return c.JSON(http.StatusOK, template)
}

// UpdateTemplate applies a partial edit
func (h *TemplateHandler) UpdateTemplate(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req templateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
	}

	template, err := h.templateService.UpdateTemplate(c.Request().Context(), id, c.Param("id"), service.TemplateUpdate{
		Category: req.Category,
		Subject:  req.Subject,
		Body:     req.Body,
		IsActive: req.IsActive,
	})
	if err != nil {
		return h.templateError(c, err, "update")
	}

	return c.JSON(http.StatusOK, template)
}

// DeleteTemplate deletes a template
func (h *TemplateHandler) DeleteTemplate(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	if err := h.templateService.DeleteTemplate(c.Request().Context(), id, c.Param("id")); err != nil {
		return h.templateError(c, err, "delete")
	}

	return c.NoContent(http.StatusNoContent)
}
