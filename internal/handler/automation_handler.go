package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"codexcity/internal/model"
	"codexcity/internal/service"
	"codexcity/internal/sse"

	"github.com/labstack/echo/v4"
)

type AutomationHandler struct {
	automationService service.AutomationService
	analyticsService  service.AnalyticsService
	hub               *sse.Hub
	logger            echo.Logger
}

func NewAutomationHandler(automationService service.AutomationService, analyticsService service.AnalyticsService, hub *sse.Hub, logger echo.Logger) *AutomationHandler {
	return &AutomationHandler{
		automationService: automationService,
		analyticsService:  analyticsService,
		hub:               hub,
		logger:            logger,
	}
}

// RunAutomation processes the user's unread mail once. Aborted runs still
// answer 200 with the error in the body so the caller can keep the
// returned watermark; only an overlapping run is rejected.
func (h *AutomationHandler) RunAutomation(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req struct {
		LastPollTimestamp *time.Time `json:"last_poll_timestamp"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "last_poll_timestamp must be an RFC3339 timestamp",
		})
	}

	// A started run finishes even if the browser goes away.
	ctx := context.WithoutCancel(c.Request().Context())
	result, err := h.automationService.Run(ctx, id, req.LastPollTimestamp)
	if errors.Is(err, service.ErrRunInProgress) {
		return c.JSON(http.StatusConflict, result)
	}
	if err != nil {
		h.logger.Warn("Automation run aborted:", err)
	}

	return c.JSON(http.StatusOK, result)
}

// GetLogs returns the user's processed email log, newest first
func (h *AutomationHandler) GetLogs(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
		}
		limit = parsed
	}

	logs, err := h.analyticsService.ListLogs(c.Request().Context(), id, limit)
	if err != nil {
		h.logger.Error("Failed to get logs:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get logs",
		})
	}
	if logs == nil {
		logs = []*model.EmailLog{}
	}

	return c.JSON(http.StatusOK, logs)
}

// GetAnalytics returns summary statistics over the email log
func (h *AutomationHandler) GetAnalytics(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	summary, err := h.analyticsService.GetSummary(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Failed to get analytics:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to get analytics",
		})
	}

	return c.JSON(http.StatusOK, summary)
}

// Events streams automation progress as Server-Sent Events
func (h *AutomationHandler) Events(c echo.Context) error {
	id, err := userID(c)
	if err != nil {
		return unauthorized(c)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	events, unsubscribe := h.hub.Subscribe(id)
	defer unsubscribe()

	fmt.Fprintf(c.Response(), "event: connection\ndata: {\"user_id\":%q}\n\n", id)
	c.Response().Flush()

	for {
		select {
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.Response(), "data: %s\n\n", payload)
			c.Response().Flush()
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
