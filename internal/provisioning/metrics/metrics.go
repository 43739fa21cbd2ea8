package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks provisioning attempts and external tool steps.
type Metrics struct {
	Provisions        *prometheus.CounterVec
	ProvisionDuration prometheus.Histogram
	StepDuration      *prometheus.HistogramVec
	BootstrapSkipped  prometheus.Counter
	QueueDepth        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Provisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_provisions_total",
			Help: "Provisioning attempts by outcome",
		}, []string{"outcome"}),
		ProvisionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboarding_provision_duration_seconds",
			Help:    "End-to-end duration of a provisioning attempt",
			Buckets: []float64{30, 60, 120, 300, 600, 900, 1800, 3600},
		}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboarding_tool_step_duration_seconds",
			Help:    "Duration of each infrastructure tool subcommand",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"step", "outcome"}),
		BootstrapSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboarding_bootstrap_skipped_total",
			Help: "Provisioning attempts that skipped bootstrap because outputs were unusable",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_provision_queue_depth",
			Help: "Registrations waiting for a provisioning worker",
		}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) ObserveProvision(d time.Duration, err error) {
	m.Provisions.WithLabelValues(outcome(err)).Inc()
	m.ProvisionDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	m.StepDuration.WithLabelValues(step, outcome(err)).Observe(d.Seconds())
}

func (m *Metrics) IncrementBootstrapSkipped() {
	m.BootstrapSkipped.Inc()
}
