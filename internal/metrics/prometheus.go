package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_handled_total",
			Help: "Total number of queue messages handled, by outcome",
		},
		[]string{"outcome"},
	)

	WorkerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_worker_active_goroutines",
			Help: "Number of active listener worker goroutines",
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_queue_depth",
			Help: "Current RabbitMQ queue depth",
		},
		[]string{"queue"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(MessagesHandled)
	prometheus.MustRegister(WorkerActive)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(HTTPRequests)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
