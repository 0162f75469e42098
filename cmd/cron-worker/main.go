package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orro3790/shiftbid-backend/internal/audit"
	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/internal/cron"
	"github.com/orro3790/shiftbid-backend/internal/eligibility"
	"github.com/orro3790/shiftbid-backend/internal/health"
	"github.com/orro3790/shiftbid-backend/internal/noshow"
	"github.com/orro3790/shiftbid-backend/internal/notifications"
	"github.com/orro3790/shiftbid-backend/internal/scoring"
	"github.com/orro3790/shiftbid-backend/pkg/bizclock"
	"github.com/orro3790/shiftbid-backend/pkg/config"
	"github.com/orro3790/shiftbid-backend/pkg/db"
	"github.com/orro3790/shiftbid-backend/pkg/instance"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
	"github.com/orro3790/shiftbid-backend/pkg/metrics"
	"github.com/orro3790/shiftbid-backend/pkg/migrate"
	"github.com/orro3790/shiftbid-backend/pkg/outbox"
	"github.com/orro3790/shiftbid-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	biddingService, err := bidding.NewService(bidding.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditor, gate, scorer, clock, cfg.Policy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bidding service", err)
		os.Exit(1)
	}

	healthService, err := health.NewService(health.NewRepository(dbClient.DB()), dbClient, outboxSvc, auditor, clock, cfg.Policy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create health service", err)
		os.Exit(1)
	}

	noShowService, err := noshow.NewService(noshow.NewRepository(dbClient.DB()), dbClient, biddingService, outboxSvc, auditor, clock, cfg.Policy, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create no-show service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	closerLock, err := cron.NewRedisLock(redisClient, redis.LockKey("cron", "closer", cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create closer lock", err)
		os.Exit(1)
	}
	dailyLock, err := cron.NewRedisLock(redisClient, redis.LockKey("cron", "daily", cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create daily lock", err)
		os.Exit(1)
	}

	closerJob, err := cron.NewWindowCloserJob(cron.WindowCloserJobParams{Logger: logg, Bidding: biddingService})
	if err != nil {
		logg.Error(context.Background(), "failed to create window closer job", err)
		os.Exit(1)
	}
	noShowJob, err := cron.NewNoShowJob(cron.NoShowJobParams{Logger: logg, NoShow: noShowService})
	if err != nil {
		logg.Error(context.Background(), "failed to create no-show job", err)
		os.Exit(1)
	}
	recomputeJob, err := cron.NewHealthRecomputeJob(cron.HealthRecomputeJobParams{Logger: logg, Health: healthService})
	if err != nil {
		logg.Error(context.Background(), "failed to create health recompute job", err)
		os.Exit(1)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	closerService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(closerJob),
		Lock:     closerLock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.CloserInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create closer service", err)
		os.Exit(1)
	}

	dailyService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(noShowJob, recomputeJob, cleanupJob),
		Lock:     dailyLock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.DailyInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create daily service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "instance": instance.GetID()})
	logg.Info(ctx, "starting cron worker")

	errCh := make(chan error, 2)
	go func() { errCh <- closerService.Run(ctx) }()
	go func() { errCh <- dailyService.Run(ctx) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cron worker stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
