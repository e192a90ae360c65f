// Package metrics exposes Prometheus instrumentation for the admission queue
// and realtime fan-out.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks the number of pending spectators per session.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spectator_queue_depth",
			Help: "Current number of pending spectators per session",
		},
		[]string{"session_id"},
	)

	// QueueOperations counts admission engine operations by outcome.
	QueueOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spectator_queue_operations_total",
			Help: "Total admission queue operations",
		},
		[]string{"operation", "status"},
	)

	// RoomClients tracks connected realtime clients per session room.
	RoomClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_room_clients",
			Help: "Current number of connected clients per session room",
		},
		[]string{"session_id"},
	)

	// EventsBroadcast counts fan-out events by name.
	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_broadcast_total",
			Help: "Total events broadcast to session rooms",
		},
		[]string{"event"},
	)

	// UpstreamRequests counts calls to the SRS negotiation API by outcome.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "srs_upstream_requests_total",
			Help: "Total requests to the SRS streaming server",
		},
		[]string{"endpoint", "status"},
	)
)
