// Package metrics exposes the core's Prometheus instruments. Labels are
// bounded (no per-player values).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CombatsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmind_combats_resolved_total",
		Help: "Combats resolved by result and opponent kind",
	}, []string{"result", "opponent"}) // result: attacker_win|defender_win; opponent: human|bot

	HacksResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmind_hacks_resolved_total",
		Help: "Infiltration attempts by outcome",
	}, []string{"outcome"}) // outcome: success|undetected|detected

	DeathsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridmind_deaths_executed_total",
		Help: "Terminal failures executed",
	})

	PassiveAwards = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridmind_passive_awards_total",
		Help: "Passive income materializations applied",
	})

	LockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridmind_lock_conflicts_total",
		Help: "Cache lock acquisitions rejected as conflicts",
	})

	CascadeDamage = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridmind_cascade_damage_points_total",
		Help: "Health points removed by cascade propagation",
	})

	WorkerJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridmind_worker_job_duration_seconds",
		Help:    "Duration of scheduled worker jobs",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"job"})

	BurnRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridmind_burn_retries_total",
		Help: "External burn attempts by outcome",
	}, []string{"outcome"}) // outcome: succeeded|failed
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
