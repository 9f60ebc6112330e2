package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Store metrics
	StoreOperationDuration *prometheus.HistogramVec

	// Business metrics
	ContestsCreated        prometheus.Counter
	ContestStatusChanges   *prometheus.CounterVec
	WinnersDeclared        prometheus.Counter
	Submissions            prometheus.Counter
	CheckoutSessions       *prometheus.CounterVec
	Enrollments            *prometheus.CounterVec
	CreatorRequests        prometheus.Counter
	CreatorDecisions       *prometheus.CounterVec
	PaymentProviderLatency *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

var (
	metrics  *Metrics
	initOnce sync.Once
)

// Init registers the collectors once and returns the shared instance
func Init() *Metrics {
	initOnce.Do(func() {
		metrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"method", "path"},
			),
			HTTPRequestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),

			AuthFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "auth_failures_total",
					Help: "Requests rejected by the authorization pipeline",
				},
				[]string{"reason"},
			),

			RateLimitHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_hits_total",
					Help: "Total number of rate limit hits",
				},
				[]string{"limiter"},
			),

			StoreOperationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "store_operation_duration_seconds",
					Help:    "Document store operation duration in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"driver", "operation"},
			),

			ContestsCreated: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "contests_created_total",
					Help: "Total number of contests created",
				},
			),
			ContestStatusChanges: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "contest_status_changes_total",
					Help: "Contest review decisions",
				},
				[]string{"status"},
			),
			WinnersDeclared: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "contest_winners_declared_total",
					Help: "Total number of winners declared",
				},
			),
			Submissions: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "contest_submissions_total",
					Help: "Total number of task submissions recorded",
				},
			),
			CheckoutSessions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "checkout_sessions_total",
					Help: "Checkout sessions created",
				},
				[]string{"status"},
			),
			Enrollments: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "enrollments_total",
					Help: "Payment confirmations by outcome",
				},
				[]string{"outcome"},
			),
			CreatorRequests: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "creator_requests_total",
					Help: "Total number of creator requests filed",
				},
			),
			CreatorDecisions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "creator_decisions_total",
					Help: "Creator request decisions",
				},
				[]string{"status"},
			),
			PaymentProviderLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "payment_provider_latency_seconds",
					Help:    "Payment processor call latency in seconds",
					Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
				},
				[]string{"operation", "status"},
			),

			CircuitBreakerState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
				},
				[]string{"upstream"},
			),
		}
	})
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinHandler returns a Gin-compatible handler for Prometheus metrics
func GinHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Init()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthFailure records a request rejected by authentication or a role gate
func RecordAuthFailure(reason string) {
	Init().AuthFailures.WithLabelValues(reason).Inc()
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit(limiter string) {
	Init().RateLimitHits.WithLabelValues(limiter).Inc()
}

// RecordStoreOperation records a store operation duration
func RecordStoreOperation(driver, operation string, duration time.Duration) {
	Init().StoreOperationDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

// RecordContestCreated records a contest creation
func RecordContestCreated() {
	Init().ContestsCreated.Inc()
}

// RecordContestStatusChange records an admin review decision
func RecordContestStatusChange(status string) {
	Init().ContestStatusChanges.WithLabelValues(status).Inc()
}

// RecordWinnerDeclared records a winner declaration
func RecordWinnerDeclared() {
	Init().WinnersDeclared.Inc()
}

// RecordSubmission records a task submission
func RecordSubmission() {
	Init().Submissions.Inc()
}

// RecordCheckoutSession records a checkout session creation attempt
func RecordCheckoutSession(status string) {
	Init().CheckoutSessions.WithLabelValues(status).Inc()
}

// RecordEnrollment records a payment confirmation outcome
func RecordEnrollment(outcome string) {
	Init().Enrollments.WithLabelValues(outcome).Inc()
}

// RecordCreatorRequest records a filed creator request
func RecordCreatorRequest() {
	Init().CreatorRequests.Inc()
}

// RecordCreatorDecision records a creator request decision
func RecordCreatorDecision(status string) {
	Init().CreatorDecisions.WithLabelValues(status).Inc()
}

// RecordPaymentProviderCall records payment processor latency
func RecordPaymentProviderCall(operation, status string, duration time.Duration) {
	Init().PaymentProviderLatency.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the circuit breaker state
// state: 0=closed, 1=open, 0.5=half-open
func SetCircuitBreakerState(upstream string, state float64) {
	Init().CircuitBreakerState.WithLabelValues(upstream).Set(state)
}
