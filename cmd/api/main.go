package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/orro3790/shiftbid-backend/api/routes"
	"github.com/orro3790/shiftbid-backend/internal/assignments"
	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/internal/eligibility"
	"github.com/orro3790/shiftbid-backend/internal/health"
	"github.com/orro3790/shiftbid-backend/internal/notifications"
	"github.com/orro3790/shiftbid-backend/internal/scoring"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db"
	"github.com/orro3790/shiftbid-backend/pkg/instance"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/migrate"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/redis"
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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
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

	clock, err := bizclock.New(cfg.Policy.BusinessTimezone, cfg.Policy.WeekStartDay)
	if err != nil {
		logg.Error(context.Background(), "failed to build business clock", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	auditor := audit.NewRecorder()
	scorer := scoring.NewEngine(cfg.Policy.FamiliarityCap)

	gate, err := eligibility.NewGate(eligibility.NewRepository(dbClient.DB()), clock)
	if err != nil {
		logg.Error(context.Background(), "failed to build eligibility gate", err)
		os.Exit(1)
	}

	biddingRepo := bidding.NewRepository(dbClient.DB())
	biddingService, err := bidding.NewService(biddingRepo, dbClient, outboxSvc, auditor, gate, scorer, clock, cfg.Policy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	healthService, err := health.NewService(health.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditor, clock, cfg.Policy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create health service", err)
		os.Exit(1)
	}

	assignmentsRepo := assignments.NewRepository(dbClient.DB())
	assignmentsService, err := assignments.NewService(assignmentsRepo, dbClient, outboxSvc, auditor, healthService, cfg.Policy)
	if err != nil {
		logg.Error(context.Background(), "failed to create assignments service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			biddingService,
			biddingRepo,
			assignmentsService,
			assignmentsRepo,
			healthService,
			notificationsService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
