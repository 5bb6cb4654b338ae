package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

const usage = `usage: odyssey <command> [flags]

commands:
  serve                      run the HTTP API (default)
  migrate                    apply database migrations
  seed    --company N        create the default chart of accounts
  verify  --company N        compare stored account totals with posted lines
  enqueue --job NAME         enqueue ledger:integrity, bank:automatch or reports:warmup
  queue                      print the background queue counters
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command, args := "serve", os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	code := 0
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "seed":
		err = seed(ctx, cfg, logger, args)
	case "verify":
		code, err = verify(ctx, cfg, logger, args)
	case "enqueue":
		err = enqueue(ctx, cfg, args)
	case "queue":
		err = queue(cfg)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
	os.Exit(code)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	var jobHandler *jobs.Handler
	if rt.Redis != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		client := jobs.NewClient(redisOpts, logger)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		rt.AddLedgerListener(client)

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, client, logger)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      rt.Router(jobHandler),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.UsesMemoryStore() {
		return app.ErrNoPostgres
	}
	return db.Migrate(ctx, cfg.PGDSN, logger)
}

func companyFlag(name string) (*flag.FlagSet, *int64) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	company := fs.Int64("company", 0, "company id")
	return fs, company
}

func seed(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs, company := companyFlag("seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *company <= 0 {
		return errors.New("seed: --company is required and must be positive")
	}
	if cfg.UsesMemoryStore() {
		return app.ErrNoPostgres
	}
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	created, err := rt.Services.Accounts.SeedDefaultChart(ctx, *company)
	if err != nil {
		return err
	}
	logger.Info("chart seeded", slog.Int64("company_id", *company), slog.Int("created", created))
	return nil
}

func verify(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) (int, error) {
	fs, company := companyFlag("verify")
	asJSON := fs.Bool("json", false, "print a JSON summary")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if cfg.UsesMemoryStore() {
		return 0, app.ErrNoPostgres
	}
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer rt.Close()
	ops, err := cli.NewLedgerOpsCLI(rt.Services.Journals)
	if err != nil {
		return 0, err
	}
	return ops.VerifyCommand(ctx, cli.VerifyOptions{CompanyID: *company, JSONOutput: *asJSON}), nil
}

func enqueue(ctx context.Context, cfg *app.Config, args []string) error {
	fs, company := companyFlag("enqueue")
	job := fs.String("job", jobs.TaskLedgerIntegrity, "task type to enqueue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()
	info, err := jobsCLI.Trigger(ctx, *job, *company)
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s as %s on queue %s\n", info.Type, info.ID, info.Queue)
	return nil
}

func queue(cfg *app.Config) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()
	stats, err := jobsCLI.InspectQueue()
	if err != nil {
		return err
	}
	fmt.Printf("%s: pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	return nil
}
