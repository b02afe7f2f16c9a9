package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hostbridge/hostbridge/internal/app"
	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/health"
	"github.com/hostbridge/hostbridge/internal/http/handler"
	"github.com/hostbridge/hostbridge/internal/http/router"
	"github.com/hostbridge/hostbridge/internal/observability"
	"github.com/hostbridge/hostbridge/internal/repository"
	"github.com/hostbridge/hostbridge/internal/security"
	"github.com/hostbridge/hostbridge/internal/service"
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *envFile)
		},
	}
}

func serve(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger, loggerProvider, err := observability.InitLogging(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	runtime, err := observability.InitRuntime(ctx, cfg, logger, loggerProvider)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var redisClient *redis.Client
	var presenceCache service.PresenceCacheStore = service.NewInMemoryPresenceCacheStore()
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		presenceCache = service.NewRedisPresenceCacheStore(redisClient, "presence_cache")
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	relRepo := repository.NewRelationshipRepository(db)

	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
	identity := service.NewIdentityService(userRepo)
	provider := service.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	authSvc := service.NewAuthService(jwtMgr, userRepo, sessionRepo, identity, provider, cfg.TokenPepper, cfg.SessionTTL)
	relSvc := service.NewRelationshipService(relRepo, userRepo, sessionRepo, presenceCache, cfg.PresenceCacheTTL)

	checks := []health.Check{
		{Name: "database", Probe: func(ctx context.Context) error { return repository.Ping(ctx, db) }},
	}
	if redisClient != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	readiness := health.NewProbeRunner(2*time.Second, 5*time.Second, checks...)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(authSvc, cfg.FrontendBaseURL),
		RelationshipHandler: handler.NewRelationshipHandler(relSvc),
		AuthService:         authSvc,
		CORSOrigins:         cfg.CORSOrigins,
		AuthRateLimitRPM:    cfg.AuthRateLimitRPM,
		APIRateLimitRPM:     cfg.APIRateLimitRPM,
		Readiness:           readiness,
		EnableOTelHTTP:      cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stopBackground := func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error("close redis", "error", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Error("close database", "error", err)
			}
		}
	}

	return app.New(cfg, logger, server, runtime, readiness, stopBackground).Run(ctx)
}
