package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ponto",
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome",
	}, []string{"method", "reason"})

	MatchSimilarity = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ponto",
		Name:      "match_best_similarity",
		Help:      "Best cosine similarity found per face identification",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	IncompatibleEnrollments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ponto",
		Name:      "incompatible_enrollments_skipped_total",
		Help:      "Gallery entries skipped because of model version or dimension mismatch",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ponto",
		Name:      "stage_duration_seconds",
		Help:      "Duration of check-in pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ponto",
		Name:      "enrollments_total",
		Help:      "Enrollment writes by operation",
	}, []string{"operation"})

	OpenIntervalAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ponto",
		Name:      "open_interval_anomalies_total",
		Help:      "Employees found with more than one open interval",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ponto",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ponto",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ponto",
		Name:      "webhook_deliveries_total",
		Help:      "Attendance webhook deliveries by outcome",
	}, []string{"outcome"})
)
