package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ReportWarmer rebuilds a tenant's month-to-date statements into the cache.
type ReportWarmer interface {
	Warm(ctx context.Context, companyID int64, asOf time.Time) error
}

// ReportsWarmupJob pre-populates the report cache after ledger changes and
// once a night for every tenant.
type ReportsWarmupJob struct {
	Reports   ReportWarmer
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Parallel  int
	clock     func() time.Time
}

func NewReportsWarmupJob(reports ReportWarmer, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Reports:   reports,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		Parallel:  2,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return j.Run(ctx, payload)
}

func (j *ReportsWarmupJob) Run(ctx context.Context, payload WarmupPayload) error {
	tracker := j.metrics().Track(TaskReportsWarmup)
	start := j.now()
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = start
	}
	logger := j.logger().With(slog.String("as_of", asOf.Format(time.DateOnly)))

	warmed, err := fanOut(ctx, j.Companies, payload.CompanyID, j.Parallel, func(ctx context.Context, companyID int64) error {
		return j.Reports.Warm(ctx, companyID, asOf)
	})
	if err != nil {
		logger.Error("reports warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("completed reports warmup", slog.Int("companies", warmed), slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
