package observability

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
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	// PaymentsTotal counts payment workflow outcomes: settled, declined, rejected, failed.
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by workflow outcome.",
		},
		[]string{"outcome"},
	)
	LessonTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lesson_transitions_total",
			Help: "Lesson progress transitions by result.",
		},
		[]string{"transition", "result"},
	)
	CertificationsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "certifications_issued_total",
			Help: "Certifications issued on course completion.",
		},
	)
	BusMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_total",
			Help: "Messages handled by the message bus.",
		},
		[]string{"topic", "result"},
	)
)

// NewMetricsMiddleware Creates HTTP middleware for collecting Prometheus metrics.
// Paths are labelled with the chi route pattern so ids do not explode cardinality.
func NewMetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				duration := time.Since(start)
				path := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						path = pattern
					}
				}

				httpRequestDuration.WithLabelValues(serviceName, r.Method, path).Observe(duration.Seconds())
				httpRequestsTotal.WithLabelValues(serviceName, r.Method, path, strconv.Itoa(ww.Status())).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
