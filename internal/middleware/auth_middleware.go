package middleware

import (
	"net/http"

	"codexcity/internal/handler"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware rejects requests without a signed-in session and stores
// the user id on the context for the handlers.
func AuthMiddleware(authHandler *handler.AuthHandler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := authHandler.CurrentUserID(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized",
				})
			}

			handler.SetUserID(c, userID)
			return next(c)
		}
	}
}
