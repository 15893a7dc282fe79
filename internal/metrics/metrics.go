package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry          *prometheus.Registry
	planTargets       *prometheus.CounterVec // planner outcomes per provider
	fanoutOutcomes    *prometheus.CounterVec // fan-out execution outcomes
	providerRequests  *prometheus.CounterVec // dns provider requests
	orphanTransitions *prometheus.CounterVec // lifecycle state transitions
	storeRequests     *prometheus.CounterVec // badgerdb requests
	sweepRuns         *prometheus.CounterVec // orphan sweep runs
	sweepDuration     prometheus.Histogram   // time to sweep
	apiRequests       *prometheus.CounterVec // http api requests
}

// Public interface for metrics operations
func (m *Metrics) IncPlanTarget(providerID string, ok bool) {
	if providerID == "" {
		return
	}
	m.planTargets.WithLabelValues(providerID, boolToResult(ok)).Inc()
}

func (m *Metrics) IncFanoutOutcome(providerID, outcome string) {
	if providerID == "" || !isValidOutcome(outcome) {
		return
	}
	m.fanoutOutcomes.WithLabelValues(providerID, outcome).Inc()
}

func (m *Metrics) IncProviderRequest(operation, providerID string, success bool) {
	if !isValidOperation(operation) || providerID == "" {
		return
	}
	m.providerRequests.WithLabelValues(operation, providerID, boolToResult(success)).Inc()
}

func (m *Metrics) IncOrphanTransition(transition string) {
	if !isValidTransition(transition) {
		return
	}
	m.orphanTransitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) IncStoreRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.storeRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncSweepRun(success bool) {
	m.sweepRuns.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetSweepDuration(duration time.Duration) {
	m.sweepDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncAPIRequest(route string, code int) {
	m.apiRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "create", "read", "update", "delete":
		return true
	}
	return false
}

func isValidOutcome(outcome string) bool {
	switch outcome {
	case "created", "duplicate", "failed":
		return true
	}
	return false
}

func isValidTransition(t string) bool {
	switch t {
	case "orphaned", "resurrected", "deleted", "delete_failed":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "dns_fanout"

	m := &Metrics{
		registry: registry,

		planTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_targets_total",
			Help:      "Total planned targets by outcome",
		}, []string{"provider", "status"}),

		fanoutOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_outcomes_total",
			Help:      "Total fan-out execution outcomes",
		}, []string{"provider", "outcome"}),

		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "provider", "status"}),

		orphanTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_transitions_total",
			Help:      "Total orphan lifecycle transitions",
		}, []string{"transition"}),

		storeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total badgerdb requests",
		}, []string{"operation", "status"}),

		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total orphan sweep runs",
		}, []string{"status"}),

		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of orphan sweep runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total http api requests",
		}, []string{"route", "code"}),
	}

	if register {
		registry.MustRegister(
			m.planTargets,
			m.fanoutOutcomes,
			m.providerRequests,
			m.orphanTransitions,
			m.storeRequests,
			m.sweepRuns,
			m.sweepDuration,
			m.apiRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
