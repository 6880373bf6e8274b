package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/relayhq/crmcore/internal/config"
	httpserver "github.com/relayhq/crmcore/internal/http"
	"github.com/relayhq/crmcore/internal/httputil"
	"github.com/relayhq/crmcore/pkg/auth"
	"github.com/relayhq/crmcore/pkg/domain"
	"github.com/relayhq/crmcore/pkg/org"
	"github.com/relayhq/crmcore/pkg/repository"
	"github.com/relayhq/crmcore/pkg/tenanthost"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	tenantsRepo := repository.NewTenantsRepository(db)
	membersRepo := repository.NewMembersRepository(db)
	credsRepo := repository.NewCredentialsRepository(db)

	// Resolver cache: redis when configured, per-process memory otherwise
	var resolverCache tenanthost.Cache
	if cfg.HasRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		resolverCache = tenanthost.NewRedisCache(client, cfg.ResolverCacheTTL, logger)
		logger.Info("resolver cache: redis", "addr", cfg.RedisAddr)
	} else {
		resolverCache = tenanthost.NewMemoryCache(cfg.ResolverCacheTTL, 0)
	}

	resolver := tenanthost.NewResolver(tenanthost.Config{
		PrimaryDomain:   cfg.PrimaryDomain,
		PreviewSuffixes: cfg.PreviewSuffixes,
		ReservedLabels:  cfg.ReservedSubdomains,
		LookupTimeout:   cfg.ResolverTimeout,
	}, tenantsRepo, resolverCache, logger)

	// Initialize services
	engine := org.NewEngine(
		org.NewSQLStore(db, membersRepo, credsRepo),
		domain.DefaultRoleTable(),
		logger,
	)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL: cfg.AccessTokenTTL,
		JWTSecret:      []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
	}, membersRepo, credsRepo)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Resolver:        resolver,
		Engine:          engine,
		SessionService:  sessionService,
		Members:         membersRepo,
		Cookies:         httputil.DefaultCookieConfig(),
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		MaxRequestBody:  cfg.MaxRequestBodySize,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr, "primary_domain", cfg.PrimaryDomain)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
