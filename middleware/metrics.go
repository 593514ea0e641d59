package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Total number of order finalizations by result",
		},
		[]string{"result"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Total number of payment webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	paymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Total number of gateway verification calls by status",
		},
		[]string{"status"},
	)

	checkoutInitiationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_initiations_total",
			Help: "Total number of card checkout initiations by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersFinalizedTotal)
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(paymentVerificationsTotal)
	prometheus.MustRegister(checkoutInitiationsTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderFinalized(result string) {
	ordersFinalizedTotal.WithLabelValues(result).Inc()
}

func RecordWebhookEvent(outcome string) {
	webhookEventsTotal.WithLabelValues(outcome).Inc()
}

func RecordPaymentVerification(status string) {
	paymentVerificationsTotal.WithLabelValues(status).Inc()
}

func RecordCheckoutInitiation(outcome string) {
	checkoutInitiationsTotal.WithLabelValues(outcome).Inc()
}
