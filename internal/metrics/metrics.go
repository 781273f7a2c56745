// Package metrics exposes Prometheus collectors for the ingestion pipeline and read API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"tradecollector/pkg/bitget"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradecollector"

// Metrics holds every collector on a private registry. All methods are safe
// on a nil receiver so components can run without metrics.
type Metrics struct {
	Registry *prometheus.Registry

	TradesReceived   *prometheus.CounterVec
	Flushes          *prometheus.CounterVec
	Rotations        prometheus.Counter
	BufferedRecords  prometheus.Gauge
	ConnectionState  prometheus.Gauge
	StateTransitions *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	CacheRefreshes   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TradesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "trades_received_total",
			Help:      "Trade records appended to the ingestion buffer",
		}, []string{"symbol"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "flushes_total",
			Help:      "Store flushes by result",
		}, []string{"result"}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rotations_total",
			Help:      "Store rotations (backup + truncate)",
		}),
		BufferedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "buffered_records",
			Help:      "Records held in memory after the last flush",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connection_state",
			Help:      "0=disconnected 1=connecting 2=subscribing 3=streaming 4=stopped",
		}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state_transitions_total",
			Help:      "Connection state changes by target state",
		}, []string{"state"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "sink_errors_total",
			Help:      "Failed mirror writes by sink",
		}, []string{"sink"}),
		CacheRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_refreshes_total",
			Help:      "Read cache reloads from disk by result",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.Registry.MustRegister(
		m.TradesReceived, m.Flushes, m.Rotations, m.BufferedRecords,
		m.ConnectionState, m.StateTransitions, m.SinkErrors, m.CacheRefreshes,
		m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TradeReceived(symbol string) {
	if m == nil {
		return
	}
	m.TradesReceived.WithLabelValues(symbol).Inc()
}

func (m *Metrics) FlushDone(err error, buffered int) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Flushes.WithLabelValues(result).Inc()
	m.BufferedRecords.Set(float64(buffered))
}

func (m *Metrics) Rotated() {
	if m == nil {
		return
	}
	m.Rotations.Inc()
}

func (m *Metrics) ConnectionStateChanged(s bitget.State) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(s))
	m.StateTransitions.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) CacheRefreshed(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CacheRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
