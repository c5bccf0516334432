package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playground_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "playground_http_request_duration_seconds",
		Help: "HTTP request latency by route. Image edits dominate the long tail.",
		// Edits regularly take tens of seconds, so the buckets stretch far
		// beyond the defaults.
		Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60, 120, 240},
	}, []string{"route", "method"})
)

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// The route pattern keeps label cardinality bounded; template names
		// and other params never become label values.
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}

		requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.status)).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(started).Seconds())
	})
}
