package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medops_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medops_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesLogged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medops_chat_messages_logged_total",
			Help: "Total chat messages logged",
		},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medops_readings_ingested_total",
			Help: "Total device readings ingested",
		},
		[]string{"kind"},
	)

	DevicesRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medops_devices_registered_total",
			Help: "Total devices registered",
		},
	)

	SpeechUploads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medops_speech_uploads_total",
			Help: "Total speech-to-text uploads accepted",
		},
	)

	// Infrastructure metrics
	MongoLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medops_mongo_latency_seconds",
			Help:    "MongoDB operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medops_postgres_latency_seconds",
			Help:    "Relational store query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
