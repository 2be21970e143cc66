package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomlink_rooms_created_total",
		Help: "Total number of rooms created.",
	})

	RoomsTornDown = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomlink_rooms_torn_down_total",
		Help: "Total number of rooms explicitly torn down.",
	})

	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomlink_messages_total",
		Help: "Total number of chat messages appended.",
	})

	MessagesBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomlink_messages_broadcast_total",
		Help: "Total number of chat messages fanned out to live connections.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomlink_ws_connections_active",
		Help: "Number of currently attached websocket connections.",
	})

	ConnectionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomlink_ws_connections_rejected_total",
		Help: "Websocket connections rejected at the admission check.",
	})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
