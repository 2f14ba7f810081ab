package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackbridge/internal/core"
	"trackbridge/internal/flood"
)

const metricsNamespace = "trackbridge"

// Metrics implements core.Recorder on a private registry so several servers
// can coexist in one process (and in tests).
type Metrics struct {
	registry *prometheus.Registry

	MatchesTotal     *prometheus.CounterVec
	NoMatchesTotal   *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	PagesTotal       *prometheus.CounterVec
	ResolutionTime   prometheus.Histogram
	ResourcesTotal   prometheus.Counter
	RequestsTotal    *prometheus.CounterVec
	DuplicatesTotal  prometheus.Counter
	RateLimitedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "matches_total",
				Help:      "Total number of cross-catalog matches found",
			},
			[]string{"source", "target", "strategy"},
		),
		NoMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "no_matches_total",
				Help:      "Total number of resources without an equivalent in a target catalog",
			},
			[]string{"source", "target"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),
		PagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "pages_total",
				Help:      "Total number of listing pages fetched",
			},
			[]string{"service"},
		),
		ResolutionTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "resolution_duration_seconds",
				Help:      "Time spent resolving one message",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ResourcesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "resources_total",
				Help:      "Total number of links resolved",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "resolve_requests_total",
				Help:      "Total number of resolve API requests",
			},
			[]string{"status"},
		),
		DuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "duplicates_total",
				Help:      "Total number of redelivered messages answered from cache",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the flood gate",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MatchesTotal,
		m.NoMatchesTotal,
		m.ErrorsTotal,
		m.PagesTotal,
		m.ResolutionTime,
		m.ResourcesTotal,
		m.RequestsTotal,
		m.DuplicatesTotal,
		m.RateLimitedTotal,
	)
	return m
}

// ObserveFloodgate exposes the number of callers fg currently tracks. A
// second floodgate on the same Metrics keeps the first gauge.
func (m *Metrics) ObserveFloodgate(fg *flood.Floodgate) {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_active_callers",
			Help:      "Number of callers tracked by the resolve rate limiter",
		},
		func() float64 { return float64(fg.GetStats().ActiveCallers) },
	)

	var registered prometheus.AlreadyRegisteredError
	if err := m.registry.Register(gauge); err != nil && !errors.As(err, &registered) {
		panic(err)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordMatch(source, target core.Service, strategy core.Strategy) {
	m.MatchesTotal.WithLabelValues(string(source), string(target), string(strategy)).Inc()
}

func (m *Metrics) RecordNoMatch(source, target core.Service) {
	m.NoMatchesTotal.WithLabelValues(string(source), string(target)).Inc()
}

func (m *Metrics) RecordError(component, kind string) {
	m.ErrorsTotal.WithLabelValues(component, kind).Inc()
}

func (m *Metrics) RecordPage(service core.Service) {
	m.PagesTotal.WithLabelValues(string(service)).Inc()
}

func (m *Metrics) RecordResolution(resources int, duration time.Duration) {
	m.ResourcesTotal.Add(float64(resources))
	m.ResolutionTime.Observe(duration.Seconds())
}

func (m *Metrics) recordRequest(status int) {
	m.RequestsTotal.WithLabelValues(http.StatusText(status)).Inc()
}
