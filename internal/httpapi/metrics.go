package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace, metricsSubsystem = "vlmd", "http"

var (
	requestLabels = []string{"path", "method", "status"}

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: metricsSubsystem,
		Name: "requests_total",
		Help: "HTTP requests served, by route pattern.",
	}, requestLabels)

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace, Subsystem: metricsSubsystem,
		Name: "request_duration_seconds",
		Help: "HTTP request latency. /query latency includes the wait for the model.",
		// query waits run up to the reply timeout
		Buckets: []float64{.005, .025, .1, .5, 1, 2.5, 5, 10, 30},
	}, requestLabels)

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: metricsSubsystem,
		Name: "inflight_requests",
		Help: "Requests currently being served, including waiting queries and open streams.",
	})

	queriesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: metricsSubsystem,
		Name: "queries_rejected_total",
		Help: "Queries answered with 429, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, queriesRejected)
}

// MetricsMiddleware records request counts and latency. The path label is
// the chi route pattern, read after routing so it is set for mounted routes.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		labels := prometheus.Labels{"path": routeLabel(r), "method": r.Method, "status": strconv.Itoa(code)}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// routeLabel keeps label cardinality bounded: unmatched paths share one value.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
		return "unmatched"
	}
	return r.URL.Path
}

func countRejected(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	queriesRejected.WithLabelValues(reason).Inc()
}
