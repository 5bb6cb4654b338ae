package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerVerifier recomputes maintained account totals from posted lines.
type LedgerVerifier interface {
	Verify(ctx context.Context, companyID int64) ([]journals.Drift, error)
}

// IntegrityJob compares stored account totals with posted lines for every
// tenant. Drift is reported, never corrected.
type IntegrityJob struct {
	Ledger    LedgerVerifier
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	// Parallel caps concurrent tenants; zero leaves it unbounded.
	Parallel int
}

func NewIntegrityJob(ledger LedgerVerifier, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{Ledger: ledger, Companies: companies, Logger: logger, Metrics: metrics, Parallel: 4}
}

// Handle runs one integrity pass.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run verifies the selected tenants and returns the drift found per tenant.
func (j *IntegrityJob) Run(ctx context.Context, payload IntegrityPayload) (map[int64][]journals.Drift, error) {
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	start := time.Now()
	logger := j.logger()

	found := make(chan companyDrift)
	collected := make(map[int64][]journals.Drift)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range found {
			collected[d.companyID] = d.drifts
		}
	}()

	checked, err := fanOut(ctx, j.Companies, payload.CompanyID, j.Parallel, func(ctx context.Context, companyID int64) error {
		drifts, err := j.Ledger.Verify(ctx, companyID)
		if err != nil {
			return err
		}
		if len(drifts) == 0 {
			return nil
		}
		j.metrics().AddDrift(companyID, len(drifts))
		for _, d := range drifts {
			logger.ErrorContext(ctx, "account totals drifted",
				slog.Int64("company_id", companyID),
				slog.Int64("account_id", d.AccountID),
				slog.String("stored_debit", d.StoredDebit.StringFixed(2)),
				slog.String("posted_debit", d.PostedDebit.StringFixed(2)),
				slog.String("stored_credit", d.StoredCredit.StringFixed(2)),
				slog.String("posted_credit", d.PostedCredit.StringFixed(2)))
		}
		select {
		case found <- companyDrift{companyID: companyID, drifts: drifts}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(found)
	<-done
	if err != nil {
		logger.Error("ledger integrity failed", slog.Any("error", err))
		return collected, tracker.End(err)
	}
	logger.Info("ledger integrity finished",
		slog.Int("companies", checked),
		slog.Int("drifted", len(collected)),
		slog.Duration("duration", time.Since(start)))
	return collected, tracker.End(nil)
}

type companyDrift struct {
	companyID int64
	drifts    []journals.Drift
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
