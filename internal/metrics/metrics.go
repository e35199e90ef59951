// Package metrics holds the Prometheus collectors for the hunt engine.
// A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "duckhunt"

type Metrics struct {
	inferenceStage  *prometheus.CounterVec
	guardrailBlocks *prometheus.CounterVec
	hintTier        *prometheus.CounterVec
	levelScans      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry along with Go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg. gatherer backs Handler and may be nil.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		inferenceStage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_stage_total",
			Help:      "Replies by the pipeline stage that produced them",
		}, []string{"stage"}),
		guardrailBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_blocks_total",
			Help:      "Content-safety blocks by direction",
		}, []string{"direction"}),
		hintTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hint_tier_total",
			Help:      "Replies by dwell tier",
		}, []string{"tier"}),
		levelScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_scans_total",
			Help:      "Marker scans by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		gatherer: gatherer,
	}
	reg.MustRegister(m.inferenceStage, m.guardrailBlocks, m.hintTier, m.levelScans, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) InferenceStage(stage string) {
	if m == nil {
		return
	}
	m.inferenceStage.WithLabelValues(stage).Inc()
}

func (m *Metrics) GuardrailBlock(direction string) {
	if m == nil {
		return
	}
	m.guardrailBlocks.WithLabelValues(direction).Inc()
}

func (m *Metrics) HintTier(tier string) {
	if m == nil {
		return
	}
	m.hintTier.WithLabelValues(tier).Inc()
}

func (m *Metrics) LevelScan(outcome string) {
	if m == nil {
		return
	}
	m.levelScans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
