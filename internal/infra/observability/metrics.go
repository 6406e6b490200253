package observability

import (
	"time"

	"github.com/juniorcfabio/ViralizaAi-sub005/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the affiliate engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration       *prometheus.HistogramVec
	externalErrors        *prometheus.CounterVec
	cacheHits             *prometheus.CounterVec
	cacheMisses           *prometheus.CounterVec
	commissionsRegistered prometheus.Counter
	commissionValue       prometheus.Counter
	commissionsConfirmed  prometheus.Counter
	withdrawalsByStatus   *prometheus.CounterVec
	settlementCycles      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "affiliate_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		commissionsRegistered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "affiliate_commissions_registered_total",
				Help: "Total commissions recorded from sale events.",
			},
		),
		commissionValue: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "affiliate_commission_value_total",
				Help: "Total monetary value of recorded commissions.",
			},
		),
		commissionsConfirmed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "affiliate_commissions_confirmed_total",
				Help: "Total commissions confirmed by settlement cycles.",
			},
		),
		withdrawalsByStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_withdrawals_total",
				Help: "Withdrawal lifecycle events by resulting status.",
			},
			[]string{"status"},
		),
		settlementCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_settlement_cycles_total",
				Help: "Settlement cycle runs by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordCommission records a registered commission and its value.
func (m *Metrics) RecordCommission(value float64) {
	m.commissionsRegistered.Inc()
	m.commissionValue.Add(value)
}

// RecordConfirmed adds confirmed commissions from a settlement cycle.
func (m *Metrics) RecordConfirmed(count int) {
	m.commissionsConfirmed.Add(float64(count))
}

// IncrWithdrawal increments the withdrawal counter for a resulting status.
func (m *Metrics) IncrWithdrawal(status string) {
	m.withdrawalsByStatus.WithLabelValues(status).Inc()
}

// IncrSettlementCycle increments the cycle counter with an outcome label.
func (m *Metrics) IncrSettlementCycle(outcome string) {
	m.settlementCycles.WithLabelValues(outcome).Inc()
}

// ProgramStats is the admin-facing snapshot of program-wide counters.
type ProgramStats struct {
	CommissionsRegistered float64 `json:"commissions_registered"`
	CommissionValueTotal  float64 `json:"commission_value_total"`
	CommissionsConfirmed  float64 `json:"commissions_confirmed"`
	WithdrawalsPaid       float64 `json:"withdrawals_paid"`
	WithdrawalsRejected   float64 `json:"withdrawals_rejected"`
	SettlementRuns        float64 `json:"settlement_runs"`
}

// GetProgramStats returns a snapshot of program counters suitable for the
// GET /v1/admin/stats endpoint.
func (m *Metrics) GetProgramStats() *ProgramStats {
	return &ProgramStats{
		CommissionsRegistered: getCounterValue(m.commissionsRegistered),
		CommissionValueTotal:  getCounterValue(m.commissionValue),
		CommissionsConfirmed:  getCounterValue(m.commissionsConfirmed),
		WithdrawalsPaid:       getVecCounterValue(m.withdrawalsByStatus, domain.WithdrawalPaid),
		WithdrawalsRejected:   getVecCounterValue(m.withdrawalsByStatus, domain.WithdrawalRejected),
		SettlementRuns:        getVecCounterValue(m.settlementCycles, "ok") + getVecCounterValue(m.settlementCycles, "partial"),
	}
}

// getCounterValue extracts the current float64 value from a Counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// getVecCounterValue extracts the current value from a CounterVec for a label.
func getVecCounterValue(cv *prometheus.CounterVec, label string) float64 {
	m := &dto.Metric{}
	if err := cv.WithLabelValues(label).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
