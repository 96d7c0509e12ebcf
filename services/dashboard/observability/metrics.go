// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the dashboard server.
//
// # Description
//
// Metrics include:
//   - HTTP request counters and latency by route
//   - Cache events by key class (hit, miss, expired, set, invalidate)
//   - Store errors by operation
//   - Icon listing reloads by reason
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anhmake/dashhub/pkg/board/cache"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "dashhub"

// Metrics holds the server's Prometheus collectors.
//
// # Fields
//
//   - RequestsTotal: requests by method, route and status code
//   - RequestDurationSeconds: latency by method and route
//   - CacheEventsTotal: cache events by event and key class
//   - StoreErrorsTotal: failed store calls by operation
//   - IconReloadsTotal: icon listing invalidations by reason
type Metrics struct {
	// Labels: method, route, status
	RequestsTotal *prometheus.CounterVec

	// Labels: method, route
	RequestDurationSeconds *prometheus.HistogramVec

	// Labels: event, key_class
	CacheEventsTotal *prometheus.CounterVec

	// Labels: operation
	StoreErrorsTotal *prometheus.CounterVec

	// Labels: reason (watch, ttl)
	IconReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg. A nil reg uses
// the default Prometheus registerer.
//
// # Outputs
//
//   - *Metrics: ready for use. Registering twice on the same registry panics,
//     so tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		CacheEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "cache",
				Name:      "events_total",
				Help:      "Cache events by event type and key class",
			},
			[]string{"event", "key_class"},
		),
		StoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "store",
				Name:      "errors_total",
				Help:      "Failed store operations",
			},
			[]string{"operation"},
		),
		IconReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "icons",
				Name:      "reloads_total",
				Help:      "Icon listing invalidations by reason",
			},
			[]string{"reason"},
		),
	}
}

// =============================================================================
// Recording
// =============================================================================

// ObserveRequest records one finished HTTP request. route is the matched
// route pattern, not the raw path, to bound label cardinality.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// CacheEvent implements cache.Observer.
func (m *Metrics) CacheEvent(event, key string) {
	if m == nil {
		return
	}
	m.CacheEventsTotal.WithLabelValues(event, KeyClass(key)).Inc()
}

// StoreError records a failed store call.
func (m *Metrics) StoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(operation).Inc()
}

// IconReload records an icon listing invalidation.
func (m *Metrics) IconReload(reason string) {
	if m == nil {
		return
	}
	m.IconReloadsTotal.WithLabelValues(reason).Inc()
}

// keyClasses are cache key prefixes whose suffix is an identifier.
var keyClasses = []string{"auth-token", "dashboard-full"}

// KeyClass strips per-entity suffixes from a cache key, so
// "dashboard-full-42" and "dashboard-full-7" share one label value.
func KeyClass(key string) string {
	for _, class := range keyClasses {
		if strings.HasPrefix(key, class+"-") {
			return class
		}
	}
	return key
}

var _ cache.Observer = (*Metrics)(nil)
