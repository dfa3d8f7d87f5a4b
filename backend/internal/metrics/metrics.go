package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for one running instance. It owns its
// registry, so tests can build as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Content and engagement
	PostsCreated prometheus.Counter
	Interactions *prometheus.CounterVec

	// Messaging
	LiveConnections     prometheus.Gauge
	FramesDelivered     prometheus.Counter
	DeliveryFailures    prometheus.Counter
	PersistenceFailures *prometheus.CounterVec
	RelayMessages       *prometheus.CounterVec
}

// NewCollector creates a collector with every metric registered under namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PostsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "posts_created_total",
				Help:      "Total number of posts created",
			},
		),
		Interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interactions_total",
				Help:      "Engagement events by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		LiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chat_live_connections",
				Help:      "Currently registered real-time connections",
			},
		),
		FramesDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_frames_delivered_total",
				Help:      "Outbound chat frames queued to live connections",
			},
		),
		DeliveryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_delivery_failures_total",
				Help:      "Connections dropped because a frame could not be queued",
			},
		),
		PersistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_persistence_failures_total",
				Help:      "Best-effort chat writes that did not reach the store",
			},
			[]string{"reason"},
		),
		RelayMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_relay_messages_total",
				Help:      "Frames exchanged with other instances",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.PostsCreated,
		c.Interactions,
		c.LiveConnections,
		c.FramesDelivered,
		c.DeliveryFailures,
		c.PersistenceFailures,
		c.RelayMessages,
	)
	return c
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
