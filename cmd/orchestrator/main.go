// Command orchestrator runs the job queue and scheduler as a stand-alone
// process: it wires configuration, the JobStore, Queue, ResourcePool, and
// Scheduler, runs startup recovery, then ticks until terminated.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/qualgent/testorch/internal/config"
	"github.com/qualgent/testorch/internal/core"
	"github.com/qualgent/testorch/internal/executor"
	"github.com/qualgent/testorch/internal/observability"
	"github.com/qualgent/testorch/internal/queue"
	"github.com/qualgent/testorch/internal/respool"
	"github.com/qualgent/testorch/internal/scheduler"
	"github.com/qualgent/testorch/internal/store"
	"github.com/qualgent/testorch/internal/store/memory"
	"github.com/qualgent/testorch/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loggerProvider, logger, err := observability.InitLogger(ctx, cfg.Observability.ServiceName, cfg.Observability.Enabled)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			logger.ErrorContext(ctx, "logger provider shutdown failed", "error", err)
		}
	}()
	slog.SetDefault(logger)

	jobStore, err := newJobStore(ctx, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open job store", "error", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	q := queue.New(jobStore,
		queue.WithLogger(logger),
		queue.WithDefaultPriority(core.Priority(cfg.DefaultPriority)),
		queue.WithDefaultTarget(core.Target(cfg.DefaultTarget)),
		queue.WithMaxRetries(cfg.MaxRetries),
	)

	pool := respool.New()
	if cfg.PoolSpecPath != "" {
		specs, err := respool.LoadSpec(cfg.PoolSpecPath)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load pool spec", "path", cfg.PoolSpecPath, "error", err)
			os.Exit(1)
		}
		respool.Seed(pool, specs)
	} else {
		respool.SeedDefault(pool)
	}

	sched := scheduler.New(jobStore, q, pool, executor.NewReference(),
		scheduler.WithLogger(logger),
		scheduler.WithTickInterval(cfg.TickInterval),
	)

	logger.InfoContext(ctx, "orchestrator starting",
		"store_backend", cfg.StoreBackend,
		"tick_interval", cfg.TickInterval,
	)

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		logger.ErrorContext(ctx, "scheduler exited with error", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "orchestrator shut down")
}

func newJobStore(ctx context.Context, cfg *config.Config) (store.JobStore, error) {
	switch cfg.StoreBackend {
	case "postgres":
		return postgres.NewStore(ctx, cfg.StoreDSN)
	default:
		return memory.New(), nil
	}
}
