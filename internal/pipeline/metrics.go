package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vlmd",
		Subsystem: "pipeline",
		Name:      "frames_total",
		Help:      "Frames read from the video source",
	})

	framesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vlmd",
			Subsystem: "pipeline",
			Name:      "frames_skipped_total",
			Help:      "Frames not submitted for inference",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(framesTotal, framesSkipped)
}
