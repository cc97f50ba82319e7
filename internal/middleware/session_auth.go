package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/labstack/echo/v4"
)

// SessionAuthMiddleware requires a signed-in session. When the request
// carries a Bearer token it must be the session's own token.
func SessionAuthMiddleware(session *auth.Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := session.CurrentUser()
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}

			if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
				token := auth.BearerToken(header)
				if token == "" {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(id.Token)) != 1 {
					return echo.NewHTTPError(http.StatusUnauthorized, "Token does not belong to the current session")
				}
			}

			// Store the identity in context
			c.Set("user", id)
			return next(c)
		}
	}
}
