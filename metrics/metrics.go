// PurpleKit Analytics - Prometheus Metrics
// Copyright (c) 2024 PurpleKit. All rights reserved.

package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds metrics configuration
type Config struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Port      int    `mapstructure:"port" json:"port"`
	Path      string `mapstructure:"path" json:"path"`
	Namespace string `mapstructure:"namespace" json:"namespace"`
	Subsystem string `mapstructure:"subsystem" json:"subsystem"`
}

// Collector registers and exposes the service's Prometheus metrics. A nil
// *Collector is a valid no-op so callers never need to branch on whether
// metrics are enabled.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	queryDuration *prometheus.HistogramVec
	queriesTotal  *prometheus.CounterVec

	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
}

// NewCollector creates a collector with the service's metric families
// registered on a dedicated registry.
func NewCollector(cfg Config) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "repository_query_duration_seconds",
			Help:      "Repository query latency, by query name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "repository_queries_total",
			Help:      "Repository queries executed, by query name and result.",
		}, []string{"query", "result"}),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_hits_total",
			Help:      "Dashboard cache hits.",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cache_misses_total",
			Help:      "Dashboard cache misses.",
		}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.queryDuration,
		c.queriesTotal,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
	)

	return c
}

// Handler returns the scrape handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveQuery records one repository query execution.
func (c *Collector) ObserveQuery(query string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.queriesTotal.WithLabelValues(query, result).Inc()
	c.queryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// CacheHit records a dashboard cache hit.
func (c *Collector) CacheHit() {
	if c == nil {
		return
	}
	c.cacheHitsTotal.Inc()
}

// CacheMiss records a dashboard cache miss.
func (c *Collector) CacheMiss() {
	if c == nil {
		return
	}
	c.cacheMissesTotal.Inc()
}

// ListenAddress renders the scrape listener address for the config.
func (cfg Config) ListenAddress() string {
	return fmt.Sprintf(":%d", cfg.Port)
}
