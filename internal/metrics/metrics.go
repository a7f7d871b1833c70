package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_connections_active",
		Help: "Currently open websocket connections.",
	})
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_ws_events_total",
		Help: "Inbound live events by type.",
	}, []string{"type"})
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_ws_broadcasts_total",
		Help: "Events fanned out to connections.",
	})
	NotificationsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_notifications_published_total",
		Help: "Notifications handed to the push pipeline.",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
