// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FeedEvents counts live events applied to a feed view, by kind and
	// outcome ("applied" or "ignored").
	FeedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_feed_events_total",
			Help: "Live feed events processed, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// PageFetches counts backward pagination attempts by outcome
	// ("fetched", "dropped", "failed").
	PageFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_feed_page_fetches_total",
			Help: "Backward pagination requests, by outcome",
		},
		[]string{"outcome"},
	)

	TopicFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_topic_failures_total",
			Help: "Failed topic subscribe/unsubscribe calls",
		},
		[]string{"op"},
	)

	FanoutSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_sends_total",
			Help: "Topic notifications published by the fan-out trigger, by outcome",
		},
		[]string{"outcome"},
	)

	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Open WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(FeedEvents)
	prometheus.MustRegister(PageFetches)
	prometheus.MustRegister(TopicFailures)
	prometheus.MustRegister(FanoutSends)
	prometheus.MustRegister(Connections)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
