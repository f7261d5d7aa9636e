package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/slipdesk/slipdesk/internal/dashboard"
	jobmetrics "github.com/slipdesk/slipdesk/internal/jobs"
)

// DashboardWarmupJob precomputes the all-time report so the cache stays hot
// after an invalidation.
type DashboardWarmupJob struct {
	Dashboard *dashboard.Service
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(svc *dashboard.Service, logger *slog.Logger) *DashboardWarmupJob {
	return &DashboardWarmupJob{
		Dashboard: svc,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypeDashboardWarmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	start := j.now()
	tracker := j.metrics().Track(TaskTypeDashboardWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting dashboard warmup")

	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := j.Dashboard.Warm(warmCtx); err != nil {
		resultErr = err
		logger.Error("warm dashboard", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed dashboard warmup", slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskTypeDashboardWarmup))
}

func (j *DashboardWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
