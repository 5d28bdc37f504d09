package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"inpatient-hub/backend/internal/api"
	"inpatient-hub/backend/internal/auth"
	"inpatient-hub/backend/internal/config"
	"inpatient-hub/backend/internal/logging"
	"inpatient-hub/backend/internal/mcp"
	"inpatient-hub/backend/internal/repository"
	"inpatient-hub/backend/internal/seed"
	"inpatient-hub/backend/internal/services"
	"inpatient-hub/backend/internal/session"
	"inpatient-hub/backend/internal/telemetry"
	"inpatient-hub/backend/internal/tls"
)

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger := logging.NewLogger(cfg.Log.Level)
	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"default_version", cfg.App.DefaultVersion,
		"storage", cfg.Storage.Driver,
		"sessions", cfg.Session.Store,
		"auth_mode", cfg.Auth.Mode,
		"site_password", cfg.App.SitePassword != "",
	)
	if cfg.AuthBypass() {
		logger.Warn("Authentication bypass is enabled; every request runs as the dev user")
	}
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE sign-in from /docs will fail if the backend is a confidential client")
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, closeSessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	workflowService := services.NewWorkflowService(store, logger, metrics)
	taskService := services.NewTaskService(store, logger, metrics)
	logger.Info("Service layer initialized")

	authz, err := auth.New(ctx, cfg, store, sessions, logger, metrics)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e := newEcho(cfg, logger, authz,
		api.NewServer(workflowService, taskService, store, logger),
		mcp.NewServer(workflowService),
	)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return run(ctx, cfg, logger, server)
}

// newEcho mounts the public auth routes, the /api/v1 group and the MCP
// endpoints.
func newEcho(
	cfg *config.Config, logger *logging.Logger, authz *auth.Auth,
	apiServer *api.Server, mcpServer *mcp.Server,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(otelecho.Middleware("inpatient-hub"))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, logging.Error(v.Error))...)
				return nil
			}
			logger.Debug("request", attrs...)
			return nil
		},
	}))

	siteGate := echo.WrapMiddleware(authz.RequireSiteAccess)
	login := echo.WrapHandler(http.HandlerFunc(authz.LoginHandler))
	logout := echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler))

	e.GET("/health", apiServer.HandleHealth)
	e.POST("/gate", echo.WrapHandler(http.HandlerFunc(authz.GateHandler)))
	e.GET("/login", login, siteGate)
	e.POST("/login", login, siteGate)
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", logout)
	e.POST("/logout", logout)

	apiGroup := e.Group("/api/v1")
	apiGroup.Use(siteGate, echo.WrapMiddleware(authz.RequireAuth))
	api.RegisterHandlers(apiGroup, apiServer)
	logger.Info("REST API handlers mounted")

	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	mcpHandler := echo.WrapHandler(authz.RequireSiteAccess(authz.RequireAuth(mcpHandlers)))
	e.Any("/mcp", mcpHandler)
	e.Any("/mcp/*", mcpHandler)
	logger.Info("MCP protocol handlers mounted")

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.OktaDomain, cfg.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(api.OAuthRedirectHandler)))

	return e
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.Repository, func(), error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		pool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database initialization failed: %w", err)
		}
		store := repository.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		logger.Info("Database connected")
		return store, pool.Close, nil
	}

	store := repository.NewMemoryStore()
	if cfg.Seed.File != "" {
		fx, err := seed.LoadFile(cfg.Seed.File)
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.Apply(ctx, store, fx, logger); err != nil {
			return nil, nil, err
		}
	} else {
		logger.Warn("In-memory store has no seed file; the roster is empty")
	}
	return store, func() {}, nil
}

func openSessions(ctx context.Context, cfg *config.Config, logger *logging.Logger) (session.Store, func(), error) {
	if cfg.Session.Store != config.DriverRedis {
		return session.NewMemoryStore(cfg.Session.TTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("Redis session store connected", "addr", cfg.Redis.Addr)
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", logging.Error(err))
		}
	}
	return session.NewRedisStore(client, cfg.Redis.Prefix, cfg.Session.TTL), closeFn, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger, server *http.Server) error {
	if cfg.TLS.Enable && len(cfg.TLS.Hostnames) > 0 {
		created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("failed to generate self-signed cert: %w", err)
		}
		if created {
			logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", logging.Error(err))
			if err := server.Close(); err != nil {
				logger.Error("Server close error", logging.Error(err))
			}
			return err
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}
