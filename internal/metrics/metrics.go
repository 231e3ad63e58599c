// Package metrics provides Prometheus instrumentation for the
// coordination engine's lease lifecycle, enforcement gate, and recovery
// runs, modeled on the teacher's pkg/metadata/lock/metrics.go (same
// namespace/subsystem/label conventions, nil-receiver-safe methods so
// metrics are optional everywhere they're called from).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for lease metrics.
const (
	LabelKind      = "kind"   // "finite" | "indefinite"
	LabelStatus    = "status" // "granted" | "denied"
	LabelReason    = "reason" // release/evict reason
	LabelOperation = "operation"
	LabelMode      = "mode" // enforcement gate mode
)

// Status constants for lease operations.
const (
	StatusGranted = "granted"
	StatusDenied  = "denied"
)

// Reason constants for lease release/eviction.
const (
	ReasonExplicit    = "explicit"
	ReasonExpired     = "expired"
	ReasonForceEvict  = "force_evict"
	ReasonAutoEvict   = "auto_evict"
	ReasonTransferred = "transferred"
)

// Metrics provides Prometheus metrics for lease and gate activity.
type Metrics struct {
	leaseAcquireTotal *prometheus.CounterVec
	leaseReleaseTotal *prometheus.CounterVec
	leaseActiveGauge  *prometheus.GaugeVec
	leaseRenewTotal   *prometheus.CounterVec
	leaseHoldDuration *prometheus.HistogramVec

	enforcementDecisionTotal *prometheus.CounterVec

	recoveryRunsTotal     prometheus.Counter
	recoveryEvictedTotal  prometheus.Counter
	recoveryLocksCulled   prometheus.Counter
	recoveryIndexRebuilds prometheus.Counter

	registered bool
}

// New creates and, if registry is non-nil, registers the coordination
// engine's metrics. A nil registry is useful for tests.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		leaseAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "leases",
				Name:      "acquire_total",
				Help:      "Total number of lease acquire attempts",
			},
			[]string{LabelKind, LabelStatus},
		),
		leaseReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "leases",
				Name:      "release_total",
				Help:      "Total number of lease releases and evictions",
			},
			[]string{LabelReason},
		),
		leaseActiveGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "coord",
				Subsystem: "leases",
				Name:      "active",
				Help:      "Number of currently active leases",
			},
			[]string{LabelKind},
		),
		leaseRenewTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "leases",
				Name:      "renew_total",
				Help:      "Total number of lease renewals and heartbeats",
			},
			[]string{LabelOperation},
		),
		leaseHoldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "coord",
				Subsystem: "leases",
				Name:      "hold_duration_seconds",
				Help:      "Time a lease was held before release or eviction",
				Buckets:   []float64{1, 5, 30, 60, 300, 600, 1800, 3600, 7200, 86400},
			},
			[]string{LabelKind},
		),
		enforcementDecisionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "enforcement",
				Name:      "decision_total",
				Help:      "Total number of enforcement gate decisions",
			},
			[]string{LabelMode, LabelStatus},
		),
		recoveryRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "recovery",
				Name:      "runs_total",
				Help:      "Total number of recovery passes executed",
			},
		),
		recoveryEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "recovery",
				Name:      "auto_evicted_total",
				Help:      "Total number of leases auto-evicted during recovery",
			},
		),
		recoveryLocksCulled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "recovery",
				Name:      "locks_culled_total",
				Help:      "Total number of stale lock files removed during recovery",
			},
		),
		recoveryIndexRebuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "coord",
				Subsystem: "recovery",
				Name:      "index_rebuilds_total",
				Help:      "Total number of times the derived index was rebuilt from the log",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.leaseAcquireTotal,
			m.leaseReleaseTotal,
			m.leaseActiveGauge,
			m.leaseRenewTotal,
			m.leaseHoldDuration,
			m.enforcementDecisionTotal,
			m.recoveryRunsTotal,
			m.recoveryEvictedTotal,
			m.recoveryLocksCulled,
			m.recoveryIndexRebuilds,
		)
		m.registered = true
	}

	return m
}

func kindLabel(indefinite bool) string {
	if indefinite {
		return "indefinite"
	}
	return "finite"
}

// ObserveAcquire records a lease acquire attempt.
func (m *Metrics) ObserveAcquire(indefinite bool, granted bool) {
	if m == nil {
		return
	}
	status := StatusGranted
	if !granted {
		status = StatusDenied
	}
	m.leaseAcquireTotal.WithLabelValues(kindLabel(indefinite), status).Inc()
}

// ObserveRelease records a lease release or eviction along with how long
// it was held.
func (m *Metrics) ObserveRelease(indefinite bool, reason string, held time.Duration) {
	if m == nil {
		return
	}
	m.leaseReleaseTotal.WithLabelValues(reason).Inc()
	m.leaseHoldDuration.WithLabelValues(kindLabel(indefinite)).Observe(held.Seconds())
}

// SetActiveLeases sets the current count of active leases of one kind.
func (m *Metrics) SetActiveLeases(indefinite bool, count float64) {
	if m == nil {
		return
	}
	m.leaseActiveGauge.WithLabelValues(kindLabel(indefinite)).Set(count)
}

// ObserveRenew records a renew or heartbeat call.
func (m *Metrics) ObserveRenew(operation string) {
	if m == nil {
		return
	}
	m.leaseRenewTotal.WithLabelValues(operation).Inc()
}

// ObserveEnforcementDecision records one enforcement gate decision.
func (m *Metrics) ObserveEnforcementDecision(mode string, permitted bool) {
	if m == nil {
		return
	}
	status := StatusGranted
	if !permitted {
		status = StatusDenied
	}
	m.enforcementDecisionTotal.WithLabelValues(mode, status).Inc()
}

// ObserveRecovery records the outcome of one recovery pass.
func (m *Metrics) ObserveRecovery(locksCulled, autoEvicted int, indexRebuilt bool) {
	if m == nil {
		return
	}
	m.recoveryRunsTotal.Inc()
	m.recoveryLocksCulled.Add(float64(locksCulled))
	m.recoveryEvictedTotal.Add(float64(autoEvicted))
	if indexRebuilt {
		m.recoveryIndexRebuilds.Inc()
	}
}
