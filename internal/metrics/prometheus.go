// Package metrics exposes Prometheus counters for the board server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CommentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_comments_created_total",
			Help: "Total number of comments accepted by the server",
		},
	)

	CommentsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "board_comments_deleted_total",
			Help: "Total number of comments removed by moderators",
		},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_events_published_total",
			Help: "Events handed to the event bus, by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	StreamSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "board_stream_subscribers",
			Help: "Currently connected insert subscribers, by transport",
		},
		[]string{"transport"},
	)
)

var registerOnce sync.Once

// Init registers metrics with the default Prometheus registry. It is safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(CommentsCreated)
		prometheus.MustRegister(CommentsDeleted)
		prometheus.MustRegister(EventsPublished)
		prometheus.MustRegister(StreamSubscribers)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
