// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics holds the Prometheus collectors of the buddy server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. Methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge

	// Completions
	completions        *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec

	// Shaping
	diagramRepairs *prometheus.CounterVec
	malformed      *prometheus.CounterVec

	startTime time.Time
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	buckets := []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30}

	m := &Metrics{registry: reg, startTime: time.Now()}

	m.httpRequests = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)
	m.httpDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buddy_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: buckets,
		},
		[]string{"route"},
	)
	m.httpInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "buddy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.completions = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_completions_total",
			Help: "Completion calls by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)
	m.completionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buddy_completion_duration_seconds",
			Help:    "Duration of completion calls in seconds",
			Buckets: buckets,
		},
		[]string{"purpose"},
	)

	m.diagramRepairs = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_diagram_repairs_total",
			Help: "Diagrams that needed a repair, by outcome",
		},
		[]string{"outcome"},
	)
	m.malformed = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buddy_malformed_outputs_total",
			Help: "Completions rejected by strict decoding",
		},
		[]string{"purpose"},
	)

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "buddy_uptime_seconds",
			Help: "Seconds since the server started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records one finished request.
func (m *Metrics) RecordHTTPRequest(route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// InFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) InFlight() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// RecordCompletion records one completion call.
func (m *Metrics) RecordCompletion(purpose, outcome string, d time.Duration) {
	m.completions.WithLabelValues(purpose, outcome).Inc()
	if d > 0 {
		m.completionDuration.WithLabelValues(purpose).Observe(d.Seconds())
	}
}

// RecordRepair records a diagram that was not valid on the first completion.
func (m *Metrics) RecordRepair(outcome string) {
	m.diagramRepairs.WithLabelValues(outcome).Inc()
}

// RecordMalformed records a completion rejected by strict decoding.
func (m *Metrics) RecordMalformed(purpose string) {
	m.malformed.WithLabelValues(purpose).Inc()
}
