package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: asynq.NewClient(redisOpts), logger: logger}
}

// EnqueueAutoMatch submits a tenant sweep under a fresh task id.
func (c *Client) EnqueueAutoMatch(ctx context.Context, payload AutoMatchPayload) (*asynq.TaskInfo, error) {
	task, err := NewAutoMatchTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.TaskID(uuid.NewString()), asynq.MaxRetry(3))
}

// EnqueueIntegrity submits an integrity pass under a fresh task id.
func (c *Client) EnqueueIntegrity(ctx context.Context, payload IntegrityPayload) (*asynq.TaskInfo, error) {
	task, err := NewIntegrityTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.TaskID(uuid.NewString()), asynq.MaxRetry(3))
}

// warmupDebounce collapses the warmups a burst of postings would enqueue.
const warmupDebounce = 30 * time.Second

// LedgerChanged schedules a report warmup for the tenant. Identical pending
// warmups are deduplicated; refusal is only logged.
func (c *Client) LedgerChanged(ctx context.Context, companyID int64) {
	task, err := NewWarmupTask(WarmupPayload{CompanyID: companyID})
	if err != nil {
		return
	}
	_, err = c.client.EnqueueContext(context.WithoutCancel(ctx), task,
		asynq.Queue(QueueDefault),
		asynq.Unique(warmupDebounce),
		asynq.ProcessIn(5*time.Second))
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		c.logger.WarnContext(ctx, "enqueue report warmup", slog.Int64("company_id", companyID), slog.Any("error", err))
	}
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ shared.LedgerListener = (*Client)(nil)

// Enqueuer is the subset of Client the HTTP handler needs.
type Enqueuer interface {
	EnqueueAutoMatch(ctx context.Context, payload AutoMatchPayload) (*asynq.TaskInfo, error)
	EnqueueIntegrity(ctx context.Context, payload IntegrityPayload) (*asynq.TaskInfo, error)
}

// Handler exposes HTTP endpoints for job observability and manual triggers.
type Handler struct {
	inspector *asynq.Inspector
	enqueuer  Enqueuer
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. A nil enqueuer
// disables the trigger routes.
func NewHandler(inspector *asynq.Inspector, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/auto-match", h.autoMatch)
	r.Post("/integrity", h.integrity)
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.OK(w, http.StatusOK, queueHealth{Queue: QueueDefault}, "")
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Fail(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue unavailable")
		return
	}
	out := queueHealth{Queue: QueueDefault}
	if info != nil {
		out.Queue = info.Queue
		out.Pending = info.Pending
	}
	httpx.OK(w, http.StatusOK, out, "")
}

type enqueued struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type"`
}

func (h *Handler) autoMatch(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, func(ctx context.Context, companyID int64) (*asynq.TaskInfo, error) {
		return h.enqueuer.EnqueueAutoMatch(ctx, AutoMatchPayload{CompanyID: companyID})
	})
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, func(ctx context.Context, companyID int64) (*asynq.TaskInfo, error) {
		return h.enqueuer.EnqueueIntegrity(ctx, IntegrityPayload{CompanyID: companyID})
	})
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request, enqueue func(context.Context, int64) (*asynq.TaskInfo, error)) {
	if h.enqueuer == nil {
		httpx.Fail(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "job queue not configured")
		return
	}
	tenant, err := httpx.Tenant(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	info, err := enqueue(r.Context(), tenant.CompanyID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, "enqueue job", err)
		return
	}
	httpx.OK(w, http.StatusAccepted, enqueued{TaskID: info.ID, Type: info.Type}, "job enqueued")
}
