package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/bank"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/testing/ledgertest"
)

type companies []int64

func (c companies) Companies(context.Context) ([]int64, error) { return c, nil }

type stubVerifier map[int64][]journals.Drift

func (s stubVerifier) Verify(_ context.Context, companyID int64) ([]journals.Drift, error) {
	return s[companyID], nil
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestIntegrityJobFindsNoDriftAfterPostings(t *testing.T) {
	env := lt.New(t)
	env.Post(t, lt.Day(2024, 1, 5), "1001", "6001", "1000.00")
	env.Post(t, lt.Day(2024, 1, 6), "6602", "1001", "40.00")

	job := NewIntegrityJob(env.Journals, env.Store, nil, testMetrics())
	drifts, err := job.Run(context.Background(), IntegrityPayload{})
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestIntegrityJobCollectsDriftPerCompany(t *testing.T) {
	drift := journals.Drift{AccountID: 9, StoredDebit: decimal.RequireFromString("10"), PostedDebit: decimal.Zero}
	job := NewIntegrityJob(stubVerifier{2: {drift}}, companies{1, 2, 3}, nil, testMetrics())

	got, err := job.Run(context.Background(), IntegrityPayload{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []journals.Drift{drift}, got[2])

	only, err := job.Run(context.Background(), IntegrityPayload{CompanyID: 1})
	require.NoError(t, err)
	require.Empty(t, only)
}

type failingVerifier struct{}

func (failingVerifier) Verify(context.Context, int64) ([]journals.Drift, error) {
	return nil, errors.New("db down")
}

func TestIntegrityJobPropagatesFailure(t *testing.T) {
	job := NewIntegrityJob(failingVerifier{}, companies{1}, nil, testMetrics())
	task, err := NewIntegrityTask(IntegrityPayload{})
	require.NoError(t, err)
	require.EqualError(t, job.Handle(context.Background(), task), "db down")
}

func TestHandleSkipsRetryOnBadPayload(t *testing.T) {
	job := NewIntegrityJob(failingVerifier{}, companies{1}, nil, testMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAutoMatchJobSweepsBankAccounts(t *testing.T) {
	env := lt.New(t)
	a, err := env.Bank.CreateAccount(env.Context(), lt.CompanyID, bank.AccountInput{AccountNumber: "6222-0001", BankName: "First Bank"})
	require.NoError(t, err)
	env.Post(t, lt.Day(2024, 2, 1), "1002", "6001", "200.00")
	_, err = env.Bank.CreateStatement(env.Context(), lt.CompanyID, a.ID, bank.StatementInput{
		Date: shared.NewDate(lt.Day(2024, 2, 1)), Amount: lt.Dec("200.00"), Type: bank.Credit,
	})
	require.NoError(t, err)

	job := NewAutoMatchJob(env.Bank, env.Store, nil, testMetrics())
	job.clock = func() time.Time { return lt.Clock }

	matched, err := job.Run(context.Background(), AutoMatchPayload{})
	require.NoError(t, err)
	require.Equal(t, 1, matched)

	again, err := job.Run(context.Background(), AutoMatchPayload{})
	require.NoError(t, err)
	require.Zero(t, again)

	view, err := env.Bank.View(env.Context(), lt.CompanyID, a.ID, journals.Range{From: lt.Day(2024, 2, 1), To: lt.Day(2024, 2, 29)})
	require.NoError(t, err)
	require.Len(t, view.Matched, 1)
}

func TestReportsWarmupJobFillsCache(t *testing.T) {
	env := lt.New(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := reports.NewService(env.Store.Accounts(), env.Store.Journals(), env.Mappings, cache.NewVersioned(client, "jobs-test", time.Minute), nil)
	env.Post(t, lt.Day(2024, 2, 3), "1001", "6001", "75.00")

	job := NewReportsWarmupJob(svc, env.Store, nil, testMetrics())
	asOf := lt.Day(2024, 2, 10)
	require.NoError(t, job.Run(context.Background(), WarmupPayload{AsOf: asOf}))

	vm, err := svc.IncomeStatement(env.Context(), lt.CompanyID, lt.Day(2024, 2, 1), asOf)
	require.NoError(t, err)
	require.True(t, vm.Cached)
	require.True(t, vm.Data.Revenue.Equal(lt.Dec("75.00")))
}

type fakeEnqueuer struct{ last AutoMatchPayload }

func (f *fakeEnqueuer) EnqueueAutoMatch(_ context.Context, p AutoMatchPayload) (*asynq.TaskInfo, error) {
	f.last = p
	return &asynq.TaskInfo{ID: "task-1", Type: TaskBankAutoMatch}, nil
}

func (f *fakeEnqueuer) EnqueueIntegrity(context.Context, IntegrityPayload) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: "task-2", Type: TaskLedgerIntegrity}, nil
}

func TestHandlerTriggersTenantSweep(t *testing.T) {
	enq := &fakeEnqueuer{}
	h := NewHandler(nil, enq, nil)
	r := http.NewServeMux()
	r.Handle("/", httpx.TenantMiddleware(http.HandlerFunc(h.autoMatch)))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(httpx.HeaderCompanyID, "4")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, int64(4), enq.last.CompanyID)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerWithoutQueue(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	rr := httptest.NewRecorder()
	h.integrity(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
