package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests handled by the rewards API",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_operation_duration_seconds",
		Help:    "Time spent executing record store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	rateAttemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rate_attempt_duration_seconds",
		Help:    "Duration of individual rate server attempts",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	payoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_duration_seconds",
		Help:    "Time spent submitting payouts to the payment provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	claimTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_transitions_total",
		Help: "Claim status transitions persisted by the workflow",
	}, []string{"status"})
)

// ObserveHTTPRequest tracks the handling time of HTTP requests.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveStore returns a func that records the elapsed time for operation
// when called. Usage: defer metrics.ObserveStore("claims.get")().
func ObserveStore(operation string) func() {
	start := time.Now()
	return func() {
		storeOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// ObserveRateAttempt tracks one rate server call.
func ObserveRateAttempt(endpoint string, err error, d time.Duration) {
	rateAttemptDuration.WithLabelValues(endpoint, outcome(err)).Observe(d.Seconds())
}

// ObservePayout tracks one payout submission.
func ObservePayout(err error, d time.Duration) {
	payoutDuration.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// CountTransition increments the counter for a persisted claim status.
func CountTransition(status string) {
	claimTransitions.WithLabelValues(status).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records http_request_duration_seconds labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ObserveHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
