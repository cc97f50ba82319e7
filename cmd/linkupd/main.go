package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/handlers"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/reconciler"
	"github.com/anonto42/linkup/backend/internal/router"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"github.com/anonto42/linkup/backend/internal/rowstore/memstore"
	"github.com/anonto42/linkup/backend/internal/rowstore/mongostore"
	"github.com/anonto42/linkup/backend/internal/rowstore/pgstore"
	"github.com/anonto42/linkup/backend/internal/rowstore/supastore"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/pkg/config"
	"github.com/anonto42/linkup/backend/pkg/firebase"
	"github.com/anonto42/linkup/backend/pkg/logger"
	"github.com/anonto42/linkup/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

func main() {
	storeFlag := flag.String("store", "", "row store backend: supabase, postgres, mongo or memory (overrides ROW_STORE)")
	flag.Parse()
	if *storeFlag != "" {
		os.Setenv("ROW_STORE", *storeFlag)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.OpenDB(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to initialize databases", zap.Error(err))
	}
	defer db.CloseDB()

	store, err := openStore(ctx, cfg, db, zl)
	if err != nil {
		zl.Fatal("failed to open row store", zap.String("store", cfg.RowStore), zap.Error(err))
	}
	defer store.close()

	breaker := rowstore.DefaultBreakerConfig("rowstore-" + cfg.RowStore)
	breaker.FailureThreshold = cfg.BreakerFailureRatio
	client := rowstore.WithBreaker(store.client, breaker, zl.Named("breaker"))

	verifier, err := newVerifier(ctx, cfg, store, zl)
	if err != nil {
		zl.Fatal("failed to initialize auth", zap.String("provider", cfg.AuthProvider), zap.Error(err))
	}

	// Sync core
	c := cache.New()
	m := metrics.NewCollector("linkup")
	m.WatchCache("linkup", c)
	co := coordinator.New(c, zl.Named("coordinator"), m)
	rec := reconciler.New(c, client, zl.Named("reconciler"), m)
	defer rec.Close()

	session := &auth.Session{}
	defer session.End()

	registry := services.NewRegistry(services.Deps{
		Coordinator: co,
		Session:     session,
		Validator:   validators.NewValidator(),
		Logger:      zl,
	}, client)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	router.SetupMiddleware(e, zl)

	// Setup routes and dependencies
	deps := router.Dependencies{
		Services: registry,
		Session:  session,
		Verifier: verifier,
		Realtime: rec,
		Scopes:   reconciler.DefaultScopes(),
		Logger:   zl,
	}
	if store.tokens != nil {
		deps.Tokens = store.tokens
	}
	router.SetupRoutes(e, deps)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// Start server
	go func() {
		zl.Info("linkupd listening",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.RowStore),
			zap.String("auth", cfg.AuthProvider),
		)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	session.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("metrics shutdown", zap.Error(err))
	}
}

// openedStore is the selected Row Store and what else main needs from it.
type openedStore struct {
	client rowstore.Client
	supa   *supastore.Store // set for the hosted store
	tokens handlers.TokenSetter
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, db *config.DB, zl *zap.Logger) (*openedStore, error) {
	switch cfg.RowStore {
	case config.StoreSupabase:
		s, err := supastore.New(supastore.Config{URL: cfg.SupabaseURL, AnonKey: cfg.SupabaseAnonKey}, zl.Named("supabase"))
		if err != nil {
			return nil, err
		}
		return &openedStore{client: s, supa: s, tokens: s, close: func() { _ = s.Close() }}, nil

	case config.StorePostgres:
		s := pgstore.New(db.Postgres, cfg.PostgresConnStr, zl.Named("postgres"))
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
		return &openedStore{client: s, close: func() { _ = s.Close() }}, nil

	case config.StoreMongo:
		s := mongostore.New(db.Mongo.Database(cfg.MongoDatabase), zl.Named("mongo"))
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return &openedStore{client: s, close: func() {}}, nil

	default:
		zl.Warn("using the in-memory row store; nothing is persisted")
		return &openedStore{client: memstore.New(), close: func() {}}, nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config, store *openedStore, zl *zap.Logger) (auth.Verifier, error) {
	switch cfg.AuthProvider {
	case config.AuthJWT:
		return auth.NewJWTVerifier(cfg.SupabaseJWTSecret), nil
	case config.AuthFirebase:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, zl)
		if err != nil {
			return nil, err
		}
		return auth.NewFirebaseVerifier(app.AuthClient), nil
	default:
		if store.supa != nil {
			return auth.NewSupabaseVerifier(store.supa.Client()), nil
		}
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil)
		if err != nil {
			return nil, err
		}
		return auth.NewSupabaseVerifier(client), nil
	}
}
