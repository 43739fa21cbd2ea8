package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a reminder fire.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	Reminders     *prometheus.CounterVec
	Armed         prometheus.Gauge
	CycleDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Reminders: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_trial_reminders_total",
			Help: "Trial reminder fires by outcome",
		}, []string{"outcome"}),
		Armed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_trial_reminders_armed",
			Help: "Reminder timers currently armed in this process",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboarding_reminder_cycle_duration_seconds",
			Help:    "Duration of a full reminder cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementReminder(outcome string) {
	m.Reminders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetArmed(n int) {
	m.Armed.Set(float64(n))
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.CycleDuration.Observe(d.Seconds())
}
