package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/slipdesk/slipdesk/internal/app"
	"github.com/slipdesk/slipdesk/internal/auth"
	"github.com/slipdesk/slipdesk/internal/challan"
	"github.com/slipdesk/slipdesk/internal/dashboard"
	"github.com/slipdesk/slipdesk/internal/observability"
	"github.com/slipdesk/slipdesk/internal/platform/cache"
	"github.com/slipdesk/slipdesk/internal/platform/db"
	"github.com/slipdesk/slipdesk/internal/shared"
	"github.com/slipdesk/slipdesk/internal/storage"
	"github.com/slipdesk/slipdesk/jobs"
	"github.com/slipdesk/slipdesk/migrations"
	"github.com/slipdesk/slipdesk/report"
)

// lockerAdapter narrows the shared locker to the challan port.
type lockerAdapter struct {
	locker *shared.Locker
}

func (a lockerAdapter) Lock(ctx context.Context, key string) (challan.Unlocker, error) {
	return a.locker.Acquire(ctx, key)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := db.Migrate(ctx, cfg.PGDSN, migrations.FS); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	locker := shared.NewLocker(redisClient, cfg.LockTTL)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessions)

	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	dashboardRepo := dashboard.NewRepository(pool)
	dashboardService := dashboard.NewService(logger, dashboardRepo, dashboardCache)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	renderer := report.NewSlipRenderer(report.NewClient(cfg.GotenbergURL))

	var uploader challan.Uploader
	if cfg.GCSBucket != "" {
		gcsUploader, err := storage.NewGCSUploader(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			logger.Error("init gcs uploader", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := gcsUploader.Close(); err != nil {
				logger.Warn("gcs close", slog.Any("error", err))
			}
		}()
		uploader = gcsUploader
	} else {
		logger.Warn("GCS bucket not configured, slip artifacts disabled")
	}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewBillingNotifier(jobClient, []string{cfg.BillingEmail})

	challanRepo := challan.NewRepository(pool)
	challanService := challan.NewService(logger, challanRepo, renderer, uploader, notifier, lockerAdapter{locker}, dashboardCache, challan.ServiceConfig{
		SlipPrefix:    cfg.SlipPrefix,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	challanHandler := challan.NewHandler(logger, challanService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Sessions:         sessions,
		AuthHandler:      authHandler,
		ChallanHandler:   challanHandler,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
