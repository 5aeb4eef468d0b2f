// Package worker is the periodic scheduler: it materializes ambient decay,
// runs cascade ticks and death sweeps, rotates world modifiers and retries
// queued burns. Every job takes a short cache lock so overlapping worker
// replicas never run the same job concurrently.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gridmind/internal/cache"
	"gridmind/internal/game"
	"gridmind/internal/metrics"
)

type Runner struct {
	svc   *game.Service
	cache cache.Store
	log   *slog.Logger

	SweepEvery  time.Duration
	RotateEvery time.Duration
	BurnEvery   time.Duration
	HeatEvery   time.Duration
}

func New(svc *game.Service, store cache.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		svc:         svc,
		cache:       store,
		log:         logger,
		SweepEvery:  30 * time.Minute,
		RotateEvery: time.Hour,
		BurnEvery:   time.Hour,
		HeatEvery:   time.Hour,
	}
}

// runJob executes one named job under a cross-replica lock. A held lock
// means another replica is on it; that is routine, not an error.
func (r *Runner) runJob(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) {
	token, err := cache.AcquireLock(ctx, r.cache, "worker:"+name, ttl)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			r.log.Debug("job held elsewhere", "job", name)
			return
		}
		r.log.Error("job lock failed", "job", name, "error", err)
		return
	}
	defer func() {
		if rerr := cache.ReleaseLock(context.WithoutCancel(ctx), r.cache, "worker:"+name, token); rerr != nil {
			r.log.Warn("job lock release failed", "job", name, "error", rerr)
		}
	}()

	start := time.Now()
	err = fn(ctx)
	metrics.WorkerJobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		r.log.Error("job failed", "job", name, "error", err)
		return
	}
	r.log.Info("job complete", "job", name, "took", time.Since(start).String())
}

func (r *Runner) sweep(ctx context.Context) error {
	deaths, err := r.svc.SweepSystems(ctx)
	if err != nil {
		return err
	}
	if deaths > 0 {
		r.log.Info("cascade sweep executed deaths", "count", deaths)
	}
	return nil
}

func (r *Runner) rotate(ctx context.Context) error {
	if err := r.svc.RotateDailyModifier(ctx); err != nil {
		return err
	}
	if err := r.svc.RotateWeeklyTopology(ctx); err != nil {
		return err
	}
	cleared, err := r.svc.ResetArenaFlags(ctx)
	if err != nil {
		return err
	}
	if cleared > 0 {
		r.log.Info("arena cleared", "players", cleared)
	}
	return nil
}

func (r *Runner) heat(ctx context.Context) error {
	cooled, err := r.svc.DecayHeat(ctx)
	if err != nil {
		return err
	}
	if cooled > 0 {
		r.log.Info("heat decayed", "players", cooled)
	}
	return nil
}

func (r *Runner) burns(ctx context.Context) error {
	done, err := r.svc.RetryPendingBurns(ctx)
	if err != nil {
		return err
	}
	if done > 0 {
		r.log.Info("burns completed", "count", done)
	}
	return nil
}

// RunOnce executes every job a single time; used by the `once` command and
// by deploy smoke checks.
func (r *Runner) RunOnce(ctx context.Context) {
	r.runJob(ctx, "system_sweep", 10*time.Minute, r.sweep)
	r.runJob(ctx, "rotation", 5*time.Minute, r.rotate)
	r.runJob(ctx, "heat_decay", 5*time.Minute, r.heat)
	r.runJob(ctx, "burn_retry", 5*time.Minute, r.burns)
}

// Run blocks until the context ends, firing each job on its own ticker.
func (r *Runner) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(r.SweepEvery)
	rotateTicker := time.NewTicker(r.RotateEvery)
	burnTicker := time.NewTicker(r.BurnEvery)
	heatTicker := time.NewTicker(r.HeatEvery)
	defer sweepTicker.Stop()
	defer rotateTicker.Stop()
	defer burnTicker.Stop()
	defer heatTicker.Stop()

	r.log.Info("worker started",
		"sweep_every", r.SweepEvery.String(),
		"rotate_every", r.RotateEvery.String(),
		"burn_every", r.BurnEvery.String(),
		"heat_every", r.HeatEvery.String())

	// Prime the world records so the first requests of the day never race
	// the first tick.
	r.runJob(ctx, "rotation", 5*time.Minute, r.rotate)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("worker shutdown")
			return
		case <-sweepTicker.C:
			r.runJob(ctx, "system_sweep", 10*time.Minute, r.sweep)
		case <-rotateTicker.C:
			r.runJob(ctx, "rotation", 5*time.Minute, r.rotate)
		case <-heatTicker.C:
			r.runJob(ctx, "heat_decay", 5*time.Minute, r.heat)
		case <-burnTicker.C:
			r.runJob(ctx, "burn_retry", 5*time.Minute, r.burns)
		}
	}
}
