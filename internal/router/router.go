package router

import (
	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/handlers"
	"github.com/anonto42/linkup/backend/internal/middleware"
	"github.com/anonto42/linkup/backend/internal/reconciler"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dependencies are what the routes are built from
type Dependencies struct {
	Services *services.Registry
	Session  *auth.Session
	Verifier auth.Verifier
	Realtime handlers.Realtime
	Scopes   []reconciler.Scope
	Tokens   handlers.TokenSetter // nil unless the Row Store acts as the user
	Logger   *zap.Logger
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger *zap.Logger) {
	config.SetupMiddleware(e, logger)
	logger.Debug("global middleware configured")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(deps.Session))

	// --- Session routes, open ---
	root := e.Group("")
	sessionHandler := handlers.NewSessionHandler(deps.Session, deps.Verifier, deps.Realtime, deps.Scopes, deps.Tokens, logger)
	sessionHandler.RegisterSessionRoutes(root)

	// --- Everything else needs a signed-in session ---
	api := e.Group("")
	api.Use(middleware.SessionAuthMiddleware(deps.Session))

	handlers.NewFeedHandler(deps.Services.Feed).RegisterFeedRoutes(api)
	handlers.NewNetworkHandler(deps.Services.Network, deps.Services.Profile).RegisterNetworkRoutes(api)
	handlers.NewNotificationHandler(deps.Services.Notifications, deps.Session, logger).RegisterNotificationRoutes(api)
	handlers.NewJobHandler(deps.Services.Jobs).RegisterJobRoutes(api)
	handlers.NewSearchHandler(deps.Services.Search).RegisterSearchRoutes(api)

	logger.Info("all routes configured", zap.Int("routes", len(e.Routes())))
}
