package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridmind/internal/api"
	"gridmind/internal/cache"
	"gridmind/internal/config"
	"gridmind/internal/db"
	"gridmind/internal/events"
	"gridmind/internal/game"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Ensure(ctx, pool); err != nil {
		logger.Error("schema ensure failed", "err", err)
		os.Exit(1)
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

	hub := events.NewHub(logger)
	bus := events.Multi{&events.LogBus{Log: logger}, hub}
	gameSvc := game.NewService(pool, store, bus, logger)

	server := api.New(cfg, logger, gameSvc, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("gridmind api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
