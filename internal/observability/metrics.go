package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "frames_accepted_total",
		Help:      "Total number of frames accepted for processing",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "frames_dropped_total",
		Help:      "Total number of frames dropped by the per-connection gate",
	})

	FacesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "faces_classified_total",
		Help:      "Total number of faces classified, by confidence band",
	}, []string{"band"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "active_sessions",
		Help:      "Number of currently active attendance sessions",
	})

	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "sessions_opened_total",
		Help:      "Total number of attendance sessions opened",
	})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "sessions_closed_total",
		Help:      "Total number of attendance sessions closed, by reason",
	}, []string{"reason"})

	StrangersConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "strangers_confirmed_total",
		Help:      "Total number of stranger candidates confirmed and promoted",
	})

	TempVisitors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "temp_visitors",
		Help:      "Number of auto-registered temporary visitors currently tracked",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "notifications_sent_total",
		Help:      "Total number of notifications dispatched, by sink",
	}, []string{"sink"})

	WebhookFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "presence",
		Name:      "webhook_failures_total",
		Help:      "Total number of failed webhook deliveries, by sink",
	}, []string{"sink"})

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "frame_processing_duration_seconds",
		Help:      "Duration of frame processing stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "presence",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "presence",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
