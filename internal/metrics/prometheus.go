// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the order engine.
var (
	// Order lifecycle.
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total order placement attempts by outcome",
		},
		[]string{"outcome"},
	)

	OrdersProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_processed_total",
			Help: "Total order processing attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	StockExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_exhausted_total",
			Help: "Total acceptances refused because no stock remained",
		},
		[]string{"scope"},
	)

	// Allocation ledger.
	AllocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocations_total",
			Help: "Total admin allocation calls",
		},
	)

	AllocatedUnitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocated_units_total",
			Help: "Total units granted to vendors",
		},
	)

	// Gamification.
	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total badge tier promotions",
		},
		[]string{"level"},
	)

	StreakRevocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_revocations_total",
			Help: "Total streaks revoked by the daily reset",
		},
	)

	// Scheduler jobs.
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	JobLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of the last run of each job",
		},
		[]string{"job"},
	)

	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"job"},
	)

	// HTTP edge.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Total requests refused by the rate limiter",
		},
		[]string{"route"},
	)
)

// RecordOrderPlaced records the outcome of a placement attempt.
func RecordOrderPlaced(outcome string) {
	OrdersPlacedTotal.WithLabelValues(outcome).Inc()
}

// RecordOrderProcessed records the outcome of an accept or reject.
func RecordOrderProcessed(action, outcome string) {
	OrdersProcessedTotal.WithLabelValues(action, outcome).Inc()
}

// RecordStockExhausted records a refused acceptance. scope is "vendor" or "global".
func RecordStockExhausted(scope string) {
	StockExhaustedTotal.WithLabelValues(scope).Inc()
}

// RecordAllocation records an admin allocation.
func RecordAllocation(quantity int) {
	AllocationsTotal.Inc()
	AllocatedUnitsTotal.Add(float64(quantity))
}

// RecordBadgeAwarded records a badge tier promotion.
func RecordBadgeAwarded(level string) {
	BadgesAwardedTotal.WithLabelValues(level).Inc()
}

// RecordStreakRevocations adds n revoked streaks.
func RecordStreakRevocations(n int) {
	StreakRevocationsTotal.Add(float64(n))
}

// RecordJobRun records a job execution.
func RecordJobRun(job, status string) {
	JobRunsTotal.WithLabelValues(job, status).Inc()
}

// SetJobLastRun sets the timestamp of the last run of job.
func SetJobLastRun(job string) {
	JobLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveJobDuration observes the duration of a job run.
func ObserveJobDuration(job string, seconds float64) {
	JobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordRateLimited records a refused request.
func RecordRateLimited(route string) {
	RateLimitedTotal.WithLabelValues(route).Inc()
}
