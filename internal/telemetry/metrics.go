/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_api_requests_total",
		Help: "Total HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chorus_api_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chorus_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// PlayerActiveSessions gauges live playback sessions in the registry.
	PlayerActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chorus_player_active_sessions",
		Help: "Live playback sessions.",
	})

	// PlaybackCommands counts playback commands by command and result.
	PlaybackCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_playback_commands_total",
		Help: "Playback commands processed, by command and result.",
	}, []string{"command", "result"})

	// CatalogLookups counts catalog lookups by outcome (hit, miss, error).
	CatalogLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_catalog_lookups_total",
		Help: "Catalog lookups by outcome.",
	}, []string{"outcome"})

	// EventsPublished counts bus events by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_events_published_total",
		Help: "Events published to the event bus.",
	}, []string{"type"})

	// DatabaseQueryDuration observes database operation latency in seconds.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chorus_db_query_duration_seconds",
		Help:    "Database operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts database errors by operation and kind.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_db_errors_total",
		Help: "Database errors by operation.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chorus_db_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
