// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Connection registry
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatroom_connections_active",
			Help: "Currently registered websocket connections",
		},
	)

	BroadcastDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_broadcast_deliveries_total",
			Help: "Per-recipient broadcast deliveries",
		},
		[]string{"result"}, // "ok", "closed" or "queue_full"
	)

	// Session pipeline
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_messages_persisted_total",
			Help: "Total chat messages written to the store",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_messages_dropped_total",
			Help: "Inbound frames that were not persisted",
		},
		[]string{"reason"}, // "empty", "rate_limited", "store_error"
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_presence_transitions_total",
			Help: "Online/offline transitions written to the store",
		},
		[]string{"state"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
