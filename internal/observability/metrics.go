// Package observability exposes Prometheus counters for the sampler, the message
// ingestor, the query path and the HTTP surface.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK            = "ok"
	ResultPlatformError = "platform_error"
	ResultStorageError  = "storage_error"
	ResultRenderError   = "render_error"
	ResultIgnored       = "ignored"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SamplerTicksTotal     *prometheus.CounterVec
	ScheduledGuilds       prometheus.Gauge
	MessagesIngestedTotal *prometheus.CounterVec
	QueriesTotal          *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplerTicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildmetrics_sampler_ticks_total",
				Help: "Member-count sampling ticks by outcome",
			},
			[]string{"result"},
		),
		ScheduledGuilds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "guildmetrics_sampler_guilds",
				Help: "Number of guilds with an active sampling schedule",
			},
		),
		MessagesIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildmetrics_messages_ingested_total",
				Help: "Observed guild messages by outcome; storage_error means the message was dropped from the count",
			},
			[]string{"result"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildmetrics_queries_total",
				Help: "Series queries by metric kind and outcome",
			},
			[]string{"kind", "result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildmetrics_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guildmetrics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.SamplerTicksTotal,
		m.ScheduledGuilds,
		m.MessagesIngestedTotal,
		m.QueriesTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) SamplerTick(result string) {
	if m == nil {
		return
	}
	m.SamplerTicksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetScheduledGuilds(n int) {
	if m == nil {
		return
	}
	m.ScheduledGuilds.Set(float64(n))
}

func (m *Metrics) MessageIngested(result string) {
	if m == nil {
		return
	}
	m.MessagesIngestedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Query(kind, result string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(kind, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware labels requests by route template rather than raw path so
// guild ids do not explode label cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func Handler(registry prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
