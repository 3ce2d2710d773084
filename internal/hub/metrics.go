package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockflow",
		Subsystem: "hub",
		Name:      "connections_active",
		Help:      "Realtime connections currently registered",
	})

	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockflow",
		Subsystem: "hub",
		Name:      "invocations_total",
		Help:      "Client invocations by method and outcome",
	}, []string{"method", "outcome"})

	eventsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockflow",
		Subsystem: "hub",
		Name:      "events_sent_total",
		Help:      "Events queued to clients by event name",
	}, []string{"event"})

	framesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stockflow",
		Subsystem: "hub",
		Name:      "frames_dropped_total",
		Help:      "Frames dropped because a client buffer was full or closed",
	})

	staleClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stockflow",
		Subsystem: "hub",
		Name:      "stale_connections_closed_total",
		Help:      "Connections closed by the heartbeat sweep",
	})
)
