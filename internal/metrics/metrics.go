package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-frontdesk/internal/domain"
)

// Metrics holds the front-desk collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Events          *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
	WaitingPatients prometheus.GaugeFunc
	StreamClients   prometheus.GaugeFunc
}

// Gauges are sampled at scrape time.
type Gauges struct {
	Waiting       func() int
	StreamClients func() int
}

func New(namespace string, g Gauges) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed queue and appointment events",
		}, []string{"source", "type"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.Events, m.HTTPRequests, m.HTTPLatency)

	if g.Waiting != nil {
		m.WaitingPatients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_waiting_patients",
			Help:      "Tokens currently waiting",
		}, func() float64 { return float64(g.Waiting()) })
		reg.MustRegister(m.WaitingPatients)
	}
	if g.StreamClients != nil {
		m.StreamClients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_stream_clients",
			Help:      "Open event stream subscriptions",
		}, func() float64 { return float64(g.StreamClients()) })
		reg.MustRegister(m.StreamClients)
	}

	return m
}

func (m *Metrics) Name() string { return "metrics" }

// Handle counts the event. It never fails.
func (m *Metrics) Handle(_ context.Context, ev domain.Event) error {
	m.Events.WithLabelValues(ev.Source, ev.Type).Inc()
	return nil
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request. route should be the
// matched pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
