package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mechlocator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_searches_total",
			Help: "Total number of location searches",
		},
		[]string{"query_type"},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mechlocator_search_results",
			Help:    "Number of shops returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_login_attempts_total",
			Help: "Credential checks by outcome",
		},
		[]string{"result"},
	)

	OTPDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_otp_dispatch_total",
			Help: "OTP deliveries by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	OTPVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_otp_verifications_total",
			Help: "OTP verifications by outcome",
		},
		[]string{"result"},
	)

	ActivityWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mechlocator_activity_write_failures_total",
			Help: "Activity log rows that could not be stored",
		},
	)

	KafkaPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mechlocator_kafka_publish_errors_total",
			Help: "Activity events that could not be published",
		},
	)

	SMSStatusCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_sms_status_callbacks_total",
			Help: "Twilio message status callbacks by status",
		},
		[]string{"status"},
	)

	CleanupRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mechlocator_cleanup_removed_total",
			Help: "Rows removed or closed by the cleanup job",
		},
		[]string{"kind"},
	)
)
