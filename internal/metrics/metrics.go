package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed pipeline runs.
	OutcomeSuccess = "success"
	// OutcomeError labels runs aborted by a collection failure.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsgrid",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "opsgrid",
			Name:      "pipeline_run_seconds",
			Help:      "Pipeline run latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 30},
		},
	)

	signalsRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsgrid",
			Name:      "signals_routed_total",
			Help:      "Signals routed by the pipeline, partitioned by decision.",
		},
		[]string{"decision"},
	)

	pendingEscalations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "opsgrid",
			Name:      "pending_escalations",
			Help:      "Escalations currently awaiting operator resolution.",
		},
	)
)

// Register attaches collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		signalsRoutedTotal,
		pendingEscalations,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a pipeline run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// AddDecisions records how many signals each routing decision received in a run.
func AddDecisions(executed, escalated, observed int) {
	signalsRoutedTotal.WithLabelValues("execute").Add(float64(executed))
	signalsRoutedTotal.WithLabelValues("escalate").Add(float64(escalated))
	signalsRoutedTotal.WithLabelValues("observe").Add(float64(observed))
}

// SetPendingEscalations updates the pending escalation gauge.
func SetPendingEscalations(n int) {
	pendingEscalations.Set(float64(n))
}
