package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments for the engine. A nil *Metrics is
// valid and records nothing, so callers never need to guard instrumentation.
type Metrics struct {
	sessionsOpened  prometheus.Counter
	sessionFailures prometheus.Counter
	invokes         prometheus.Counter
	invalidOptions  prometheus.Counter
	droppedEvents   prometheus.Counter
	stackDepth      prometheus.Gauge
	evaluations     *prometheus.CounterVec
	decisionSeconds prometheus.Histogram
}

// NewMetrics creates and registers the engine instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "sessions_opened_total",
			Help:      "Oracle sessions successfully opened.",
		}),
		sessionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "session_failures_total",
			Help:      "Oracle sessions that failed to open or died mid-turn.",
		}),
		invokes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "invokes_total",
			Help:      "Sub-evaluation requests serviced by decision workers.",
		}),
		invalidOptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "invalid_option_total",
			Help:      "Invokes rejected because the option index was out of range.",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "dropped_events_total",
			Help:      "Inbound events dropped because no worker was registered.",
		}),
		stackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbor",
			Name:      "router_stack_depth",
			Help:      "Currently registered decision workers.",
		}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "evaluations_total",
			Help:      "Top-level tree evaluations by result.",
		}, []string{"result"}),
		decisionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbor",
			Name:      "decision_duration_seconds",
			Help:      "Wall time of decision sessions from open to terminal.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.sessionsOpened,
		m.sessionFailures,
		m.invokes,
		m.invalidOptions,
		m.droppedEvents,
		m.stackDepth,
		m.evaluations,
		m.decisionSeconds,
	)
	return m
}

// SessionOpened records a successfully opened oracle session.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc()
}

// SessionFailed records a session that failed to open or died mid-turn.
func (m *Metrics) SessionFailed() {
	if m == nil {
		return
	}
	m.sessionFailures.Inc()
}

// InvokeServiced records one serviced invoke; invalid marks an out-of-range index.
func (m *Metrics) InvokeServiced(invalid bool) {
	if m == nil {
		return
	}
	m.invokes.Inc()
	if invalid {
		m.invalidOptions.Inc()
	}
}

// EventDropped records an inbound event that arrived with an empty stack.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}

// StackDepth sets the current router stack depth.
func (m *Metrics) StackDepth(depth int) {
	if m == nil {
		return
	}
	m.stackDepth.Set(float64(depth))
}

// EvaluationDone records the outcome of one top-level evaluation.
func (m *Metrics) EvaluationDone(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.evaluations.WithLabelValues(result).Inc()
}

// DecisionObserved records the wall time of one decision session.
func (m *Metrics) DecisionObserved(seconds float64) {
	if m == nil {
		return
	}
	m.decisionSeconds.Observe(seconds)
}
