package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/labstack/echo/v4"
)

// HealthCheck reports liveness and whether a user is signed in.
func HealthCheck(session *auth.Session) echo.HandlerFunc {
	return func(e echo.Context) error {
		_, signedIn := session.CurrentUser()
		return e.JSON(http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "linkupd",
			"signed_in": signedIn,
		})
	}
}
