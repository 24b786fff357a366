// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus collectors for the fetch, index, and
// answer stages. A nil *Metrics is valid and records nothing, so library
// code can be exercised without a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research_chat"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	fetchRequests  *prometheus.CounterVec
	fetchRecords   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	indexBuilds    *prometheus.CounterVec
	indexDocuments prometheus.Histogram
	llmCalls       *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	activeSessions prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		fetchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_records_total",
			Help:      "Paper records returned by source.",
		}, []string{"source"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Retrieval index builds by outcome.",
		}, []string{"outcome"}),
		indexDocuments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents per retrieval index.",
			Buckets:   []float64{0, 1, 3, 6, 9, 15, 30},
		}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "OpenAI API calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_duration_seconds",
			Help:      "OpenAI API latency by kind.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Chat sessions currently registered.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchRequests,
		m.fetchRecords,
		m.fetchDuration,
		m.indexBuilds,
		m.indexDocuments,
		m.llmCalls,
		m.llmDuration,
		m.activeSessions,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one fetch against source.
func (m *Metrics) ObserveFetch(source string, records int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetchRequests.WithLabelValues(source, outcome(err)).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(d.Seconds())
	if err == nil {
		m.fetchRecords.WithLabelValues(source).Add(float64(records))
	}
}

// ObserveIndexBuild records one index build.
func (m *Metrics) ObserveIndexBuild(documents int, err error) {
	if m == nil {
		return
	}
	m.indexBuilds.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.indexDocuments.Observe(float64(documents))
	}
}

// ObserveLLM records one OpenAI call of the given kind ("chat" or "embeddings").
func (m *Metrics) ObserveLLM(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(kind, outcome(err)).Inc()
	m.llmDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SetActiveSessions reports the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
