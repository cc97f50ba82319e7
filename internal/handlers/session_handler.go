package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/reconciler"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Realtime opens the change streams of a signed-in session.
type Realtime interface {
	Subscribe(ctx context.Context, session *auth.Session, scopes ...reconciler.Scope) (rowstore.Unsubscribe, error)
}

// TokenSetter is implemented by stores that act with the user's token.
type TokenSetter interface {
	SetAccessToken(token string) error
}

// LoginRequest carries an access token issued by the auth service
type LoginRequest struct {
	Token string `json:"token"`
}

// SessionHandler signs the local user in and out
type SessionHandler struct {
	session  *auth.Session
	verifier auth.Verifier
	realtime Realtime
	scopes   []reconciler.Scope
	tokens   TokenSetter
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler. tokens may be nil when
// the Row Store does not act as the user.
func NewSessionHandler(session *auth.Session, verifier auth.Verifier, realtime Realtime, scopes []reconciler.Scope, tokens TokenSetter, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		session:  session,
		verifier: verifier,
		realtime: realtime,
		scopes:   scopes,
		tokens:   tokens,
		logger:   logger.Named("session"),
	}
}

// RegisterSessionRoutes registers session routes. They are not behind the
// session middleware.
func (h *SessionHandler) RegisterSessionRoutes(g *echo.Group) {
	g.POST("/session", h.Login)
	g.GET("/session", h.Current)
	g.DELETE("/session", h.Logout)
}

// Login verifies a token from the body or the Authorization header, starts
// a session and opens its realtime subscriptions.
func (h *SessionHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	}
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing token")
	}

	id, err := h.session.Login(c.Request().Context(), h.verifier, token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	if h.tokens != nil {
		if err := h.tokens.SetAccessToken(token); err != nil {
			h.session.End()
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	// the subscriptions outlive this request; they end with the session
	if _, err := h.realtime.Subscribe(context.WithoutCancel(c.Request().Context()), h.session, h.scopes...); err != nil {
		h.logger.Error("realtime subscribe failed", zap.String("id", id.ID), zap.Error(err))
		return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": id, "realtime": false})
	}
	h.logger.Info("signed in", zap.String("id", id.ID))
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": id, "realtime": true})
}

// Current returns the signed-in identity
func (h *SessionHandler) Current(c echo.Context) error {
	id, ok := h.session.CurrentUser()
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": id})
}

// Logout ends the session, which tears its subscriptions down
func (h *SessionHandler) Logout(c echo.Context) error {
	h.session.End()
	if h.tokens != nil {
		if err := h.tokens.SetAccessToken(""); err != nil {
			h.logger.Warn("resetting store token failed", zap.Error(err))
		}
	}
	return c.NoContent(http.StatusNoContent)
}
