package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/bunai-labs/bunai-backend/api/routes"
	"github.com/bunai-labs/bunai-backend/internal/approval"
	"github.com/bunai-labs/bunai-backend/internal/customers"
	"github.com/bunai-labs/bunai-backend/internal/extraction"
	"github.com/bunai-labs/bunai-backend/internal/inventory"
	"github.com/bunai-labs/bunai-backend/internal/negotiation"
	"github.com/bunai-labs/bunai-backend/internal/notify"
	"github.com/bunai-labs/bunai-backend/internal/session"
	"github.com/bunai-labs/bunai-backend/pkg/config"
	"github.com/bunai-labs/bunai-backend/pkg/db"
	"github.com/bunai-labs/bunai-backend/pkg/logger"
	"github.com/bunai-labs/bunai-backend/pkg/migrate"
	"github.com/bunai-labs/bunai-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	messenger := notify.LogMessenger{Logg: logg}
	renderer := notify.NoopRenderer{}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	sessionRepo := session.NewRepository(dbClient.DB())
	customerRepo := customers.NewRepository(dbClient.DB())
	approvalRepo := approval.NewRepository(dbClient.DB())

	sessionService, err := session.NewService(sessionRepo, inventoryRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create session service", err)
		os.Exit(1)
	}

	customerService, err := customers.NewService(customerRepo, cfg.Workflow.OverdueWindow, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create customer service", err)
		os.Exit(1)
	}

	approvalService, err := approval.NewService(
		dbClient,
		approvalRepo,
		sessionRepo,
		inventoryRepo,
		customerService,
		messenger,
		renderer,
		cfg.Workflow,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create approval service", err)
		os.Exit(1)
	}

	negotiationService, err := negotiation.NewService(
		sessionService,
		sessionRepo,
		inventoryRepo,
		customerService,
		approvalService,
		extraction.UnconfiguredExtractor{},
		extraction.UnconfiguredReplyClassifier{},
		extraction.UnconfiguredIntentClassifier{},
		messenger,
		cfg.Workflow,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create negotiation service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			negotiationService,
			approvalService,
			sessionRepo,
			approvalRepo,
		),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
