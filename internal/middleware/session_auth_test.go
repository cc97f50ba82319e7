package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, session *auth.Session, header string) (int, string) {
	t.Helper()
	e := echo.New()
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = c.Get("user").(auth.Identity).ID
		return c.NoContent(http.StatusOK)
	}, SessionAuthMiddleware(session))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code, seen
}

func TestSessionAuthMiddleware(t *testing.T) {
	session := auth.NewSession(auth.Identity{ID: "u1", Token: "tok"})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"no header", "", http.StatusOK},
		{"matching token", "Bearer tok", http.StatusOK},
		{"other token", "Bearer nope", http.StatusUnauthorized},
		{"malformed", "tok", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, seen := serve(t, session, tt.header)
			require.Equal(t, tt.code, code)
			if code == http.StatusOK {
				assert.Equal(t, "u1", seen)
			}
		})
	}
}

func TestSessionAuthMiddlewareWithoutSession(t *testing.T) {
	code, _ := serve(t, &auth.Session{}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}
