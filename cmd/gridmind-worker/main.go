package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gridmind/internal/cache"
	"gridmind/internal/config"
	"gridmind/internal/db"
	"gridmind/internal/events"
	"gridmind/internal/game"
	"gridmind/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "gridmind-worker",
		Short:         "Background scheduler for the gridmind simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run all jobs on their schedules until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := buildRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			runner.Run(cmd.Context())
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run every job a single time and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cleanup, err := buildRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			runner.RunOnce(cmd.Context())
			return nil
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("worker failed", "err", err)
		os.Exit(1)
	}
}

func buildRunner(ctx context.Context) (*worker.Runner, func(), error) {
	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ensure(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	var store cache.Store
	if cfg.RedisURL != "" {
		store, err = cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis connect failed, degrading to in-process store", "err", err)
			store = cache.NewMemory()
		}
	} else {
		logger.Warn("no REDIS_URL configured, using in-process store")
		store = cache.NewMemory()
	}

	svc := game.NewService(pool, store, &events.LogBus{Log: logger}, logger)
	runner := worker.New(svc, store, logger)
	runner.SweepEvery = cfg.SweepEvery
	runner.RotateEvery = cfg.RotateEvery
	runner.BurnEvery = cfg.BurnEvery
	runner.HeatEvery = cfg.HeatEvery
	return runner, pool.Close, nil
}
