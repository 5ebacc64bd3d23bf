package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"vlmd/internal/relay"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

// TestMetricsMiddleware_EmitsRequestCounters verifies that wrapping a handler
// with MetricsMiddleware results in request metrics being exposed via the
// Prometheus /metrics handler.
func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/test", "GET", "200")); got < 1 {
		t.Fatalf("counter=%v", got)
	}
	if !bytes.Contains(scrape(t), []byte("vlmd_http_requests_total")) {
		t.Fatal("expected vlmd_http_requests_total in metrics")
	}
}

// TestMetricsMiddleware_UsesRoutePattern ensures labels use the chi route
// pattern instead of the raw URL path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/12345", nil))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/items/{id}", "GET", "202")); got < 1 {
		t.Fatalf("pattern counter=%v", got)
	}
	if bytes.Contains(scrape(t), []byte("/items/12345")) {
		t.Fatal("raw path leaked into labels")
	}
}

func TestCountRejected(t *testing.T) {
	before := testutil.ToFloat64(queriesRejected.WithLabelValues("unspecified"))
	countRejected("")
	if after := testutil.ToFloat64(queriesRejected.WithLabelValues("unspecified")); after != before+1 {
		t.Fatalf("unspecified reason: before=%v after=%v", before, after)
	}
}

func TestQuery_MailboxFullCountsRejection(t *testing.T) {
	before := testutil.ToFloat64(queriesRejected.WithLabelValues("mailbox_full"))
	get(t, NewMux(&mockService{queryErr: relay.ErrMailboxFull}), "/query?query=x")
	if got := testutil.ToFloat64(queriesRejected.WithLabelValues("mailbox_full")); got != before+1 {
		t.Fatalf("rejected=%v want %v", got, before+1)
	}
}

func TestMetricsMiddleware_UnmatchedPathsShareLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/known", func(w http.ResponseWriter, r *http.Request) {})
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("unmatched", "GET", "404"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/random/abc", nil))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("unmatched", "GET", "404")); got != before+1 {
		t.Fatalf("unmatched counter=%v", got)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	if w := get(t, NewMux(&mockService{}), "/metrics"); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}
