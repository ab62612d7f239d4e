// Package metrics exposes the Prometheus instrumentation for the compliance
// pipeline. One Registry is created per process and shared by the API layer
// and the orchestrator wiring.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cgb"

// Registry holds the domain metric instruments.
type Registry struct {
	ChecksTotal     *prometheus.CounterVec
	CheckDuration   prometheus.Histogram
	ComplianceScore prometheus.Histogram
	RiskScore       prometheus.Histogram

	StageRequests *prometheus.GaugeVec
	StageErrors   *prometheus.GaugeVec

	ActiveSessions prometheus.Gauge
	MemoryEntries  prometheus.Gauge
	Compactions    prometheus.Gauge

	RegulatoryChanges prometheus.Counter
}

// NewRegistry registers the domain metrics against the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid global state.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "checks_total",
				Help:      "Total number of compliance checks by terminal status",
			},
			[]string{"status"},
		),
		CheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "check_duration_seconds",
				Help:      "End-to-end compliance check duration",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		ComplianceScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "compliance_score",
				Help:      "Distribution of overall compliance scores",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),
		RiskScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "risk_score",
				Help:      "Distribution of overall risk scores",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),
		StageRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "requests_processed",
				Help:      "Requests processed per pipeline stage",
			},
			[]string{"stage"},
		),
		StageErrors: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "errors_total",
				Help:      "Errors observed per pipeline stage",
			},
			[]string{"stage"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active_total",
				Help:      "Number of active workflow sessions",
			},
		),
		MemoryEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "memory",
				Name:      "entries_total",
				Help:      "Entries currently held in the memory bank",
			},
		),
		Compactions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "memory",
				Name:      "compactions_total",
				Help:      "Compaction passes performed by the memory bank",
			},
		),
		RegulatoryChanges: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "regulatory_changes_total",
				Help:      "Regulatory changes detected by continuous monitoring",
			},
		),
	}
}

// ObserveCheck records one finished compliance check.
func (r *Registry) ObserveCheck(status string, duration time.Duration, complianceScore, riskScore int) {
	r.ChecksTotal.WithLabelValues(status).Inc()
	r.CheckDuration.Observe(duration.Seconds())
	if status == "completed" {
		r.ComplianceScore.Observe(float64(complianceScore))
		r.RiskScore.Observe(float64(riskScore))
	}
}

// SetStageCounters mirrors a stage's counters into the gauges.
func (r *Registry) SetStageCounters(stage string, requests, errors int64) {
	r.StageRequests.WithLabelValues(stage).Set(float64(requests))
	r.StageErrors.WithLabelValues(stage).Set(float64(errors))
}
