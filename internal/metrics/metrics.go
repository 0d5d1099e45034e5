package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "site",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "site",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	// Chat turns by how the reply was chosen and the topic it left behind.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "site",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total assistant replies delivered",
		},
		[]string{"match", "rule", "topic"},
	)

	ChatActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "site",
			Subsystem: "chat",
			Name:      "active_sessions",
			Help:      "Chat sessions currently held in memory",
		},
	)

	TranscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "site",
			Subsystem: "chat",
			Name:      "transcriptions_total",
			Help:      "Total voice transcriptions",
		},
		[]string{"status"},
	)

	// Checkout operations against the payment provider
	CheckoutOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "site",
			Subsystem: "checkout",
			Name:      "operations_total",
			Help:      "Total checkout operations",
		},
		[]string{"operation", "status"},
	)

	CheckoutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "site",
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Checkout operation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 20},
		},
		[]string{"operation"},
	)

	PriceLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "site",
			Subsystem: "checkout",
			Name:      "price_lookups_total",
			Help:      "Price resolutions by source (cache, found, created)",
		},
		[]string{"source"},
	)
)
