package vlm

import "github.com/prometheus/client_golang/prometheus"

var (
	submitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmd",
			Subsystem: "vlm",
			Name:      "submits_total",
			Help:      "Submissions to the model gate by result",
		},
		[]string{"result"},
	)

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmd",
			Subsystem: "vlm",
			Name:      "calls_total",
			Help:      "Completed model calls by outcome",
		},
		[]string{"outcome"},
	)

	callDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vlmd",
			Subsystem: "vlm",
			Name:      "call_duration_seconds",
			Help:      "Duration of model calls in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	busyGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vlmd",
			Subsystem: "vlm",
			Name:      "busy",
			Help:      "1 while a model call is in flight",
		},
	)
)

func init() {
	prometheus.MustRegister(submitsTotal, callsTotal, callDuration, busyGauge)
}
