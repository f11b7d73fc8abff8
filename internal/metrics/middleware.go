package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests no route matched.
const unmatchedRoute = "unmatched"

var httpLabels = []string{"method", "route", "collection", "status"}

var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "popolodex",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency by route pattern",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, httpLabels)

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popolodex",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "API requests by route pattern and status",
	}, httpLabels)

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "popolodex",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "API requests currently being served",
	})
)

// Middleware records latency, count and concurrency per chi route pattern.
// The collection URL parameter is a label unless the request ended in 404.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			labels := requestLabels(r, ww.Status())
			httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
			httpRequestsTotal.With(labels).Inc()
		})
	}
}

func requestLabels(r *http.Request, status int) prometheus.Labels {
	if status == 0 {
		status = http.StatusOK
	}
	route, collection := unmatchedRoute, ""
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			route = p
		}
		if status != http.StatusNotFound {
			collection = rc.URLParam("collection")
		}
	}
	return prometheus.Labels{
		"method":     r.Method,
		"route":      route,
		"collection": collection,
		"status":     strconv.Itoa(status),
	}
}
