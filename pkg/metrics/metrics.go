package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tick metrics
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remud_tick_duration_seconds",
			Help:    "Time taken for one full engine tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remud_ticks_total",
			Help: "Total number of engine ticks completed",
		},
	)

	// Entity/world metrics
	EntitiesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remud_entities_total",
			Help: "Total number of live entities by kind",
		},
		[]string{"kind"},
	)

	PlayersOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remud_players_online",
			Help: "Number of players currently in game",
		},
	)

	// Action pipeline metrics
	ActionsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remud_actions_processed_total",
			Help: "Total number of actions processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ActionApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remud_action_apply_duration_seconds",
			Help:    "Time taken to apply an action by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Script host metrics
	ScriptRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remud_script_runs_total",
			Help: "Total number of script runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	ScriptRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remud_script_run_duration_seconds",
			Help:    "Time taken for a single script run",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScriptsBroken = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remud_scripts_broken",
			Help: "Number of scripts currently in a broken (uncompiled) state",
		},
	)

	// Messaging & persistence bus metrics
	MessageQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remud_message_queue_depth",
			Help: "Total queued outgoing messages across all players",
		},
	)

	PersistenceQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remud_persistence_queue_depth",
			Help: "Number of update groups waiting to be drained to storage",
		},
	)

	PersistenceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remud_persistence_failures_total",
			Help: "Total number of durable updates that failed to apply",
		},
	)

	PersistenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remud_persistence_group_duration_seconds",
			Help:    "Time taken to drain one update group to storage",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remud_sessions_active",
			Help: "Number of connections currently in a non-terminal session state",
		},
	)

	LoginFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "remud_login_failures_total",
			Help: "Total number of failed login/registration attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(EntitiesTotal)
	prometheus.MustRegister(PlayersOnline)
	prometheus.MustRegister(ActionsProcessedTotal)
	prometheus.MustRegister(ActionApplyDuration)
	prometheus.MustRegister(ScriptRunsTotal)
	prometheus.MustRegister(ScriptRunDuration)
	prometheus.MustRegister(ScriptsBroken)
	prometheus.MustRegister(MessageQueueDepth)
	prometheus.MustRegister(PersistenceQueueDepth)
	prometheus.MustRegister(PersistenceFailuresTotal)
	prometheus.MustRegister(PersistenceDuration)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(LoginFailuresTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
