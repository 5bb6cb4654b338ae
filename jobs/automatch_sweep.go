package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// BankMatcher runs auto-match per bank account.
type BankMatcher interface {
	ListAccounts(ctx context.Context, companyID int64) ([]bank.Account, error)
	AutoMatch(ctx context.Context, companyID, bankAccountID int64, r journals.Range, actorID int64) (bank.MatchResult, error)
}

// AutoMatchJob sweeps every bank account of every tenant with auto-match
// over a trailing window of statement dates.
type AutoMatchJob struct {
	Bank      BankMatcher
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Parallel  int
	clock     func() time.Time
}

func NewAutoMatchJob(matcher BankMatcher, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *AutoMatchJob {
	return &AutoMatchJob{
		Bank:      matcher,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		Parallel:  4,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle runs one sweep.
func (j *AutoMatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Bank == nil {
		return errors.New("bank auto-match: handler not configured")
	}
	var payload AutoMatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run sweeps the selected tenants and returns the number of statements
// matched.
func (j *AutoMatchJob) Run(ctx context.Context, payload AutoMatchPayload) (int, error) {
	if payload.LookbackDays <= 0 {
		payload.LookbackDays = DefaultLookbackDays
	}
	tracker := j.metrics().Track(TaskBankAutoMatch)
	now := j.now()
	window := journals.Range{
		From: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -payload.LookbackDays),
		To:   now,
	}
	logger := j.logger().With(slog.Int("lookback_days", payload.LookbackDays))

	var matched atomic.Int64
	_, err := fanOut(ctx, j.Companies, payload.CompanyID, j.Parallel, func(ctx context.Context, companyID int64) error {
		accounts, err := j.Bank.ListAccounts(ctx, companyID)
		if err != nil {
			return err
		}
		for _, acc := range accounts {
			res, err := j.Bank.AutoMatch(ctx, companyID, acc.ID, window, 0)
			if err != nil {
				return err
			}
			matched.Add(int64(res.MatchedCount))
		}
		return nil
	})
	if err != nil {
		logger.Error("auto-match sweep failed", slog.Any("error", err))
		return int(matched.Load()), tracker.End(err)
	}
	logger.Info("auto-match sweep finished", slog.Int64("matched", matched.Load()), slog.Duration("duration", time.Since(now)))
	return int(matched.Load()), tracker.End(nil)
}

func (j *AutoMatchJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBankAutoMatch))
	}
	return slog.Default().With(slog.String("job", TaskBankAutoMatch))
}

func (j *AutoMatchJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AutoMatchJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
