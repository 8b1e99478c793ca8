package router

import (
	"net/http"

	"codexcity/internal/handler"
	"codexcity/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Profile    *handler.ProfileHandler
	Gmail      *handler.GmailHandler
	Template   *handler.TemplateHandler
	Automation *handler.AutomationHandler
}

func SetupRoutes(e *echo.Echo, h Handlers) {
	// Public routes
	e.GET("/auth/:provider", h.Auth.BeginAuthHandler)
	e.GET("/auth/:provider/callback", h.Auth.CallbackHandler)
	e.GET("/auth/logout", h.Auth.LogoutHandler)

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Protected API routes
	protected := e.Group("/api")
	protected.Use(middleware.AuthMiddleware(h.Auth))

	protected.GET("/me", h.Profile.GetProfile)
	protected.PUT("/me/override", h.Profile.SetManualOverride)

	protected.GET("/gmail/connect", h.Gmail.Connect)
	protected.GET("/gmail/callback", h.Gmail.Callback)
	protected.DELETE("/gmail", h.Gmail.Disconnect)

	protected.POST("/templates", h.Template.CreateTemplate)
	protected.GET("/templates", h.Template.GetTemplates)
	protected.GET("/templates/:id", h.Template.GetTemplate)
	protected.PUT("/templates/:id", h.Template.UpdateTemplate)
	protected.DELETE("/templates/:id", h.Template.DeleteTemplate)

	protected.POST("/automation/run", h.Automation.RunAutomation)
	protected.GET("/logs", h.Automation.GetLogs)
	protected.GET("/analytics", h.Automation.GetAnalytics)

	// Automation progress via Server-Sent Events (SSE)
	protected.GET("/events", h.Automation.Events)
}
