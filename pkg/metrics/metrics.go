/*
Copyright 2026 The KServe Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kserve/tensorwire/pkg/constants"
)

var (
	registerOnce sync.Once

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: "dispatcher",
			Name:      "requests_total",
			Help:      "Total dispatched requests.",
		},
		[]string{"route", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: "dispatcher",
			Name:      "request_duration_seconds",
			Help:      "Dispatched request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: "wire",
			Name:      "frame_bytes",
			Help:      "Size of tensor frames sent and received.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 12),
		},
		[]string{"direction"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently held by the session store.",
		},
	)
	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Sessions created on first sight of a caller identity.",
		},
	)
	sessionsEvicted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Subsystem: "sessions",
			Name:      "evicted_total",
			Help:      "Sessions evicted by capacity or idle expiry.",
		},
		[]string{"reason"},
	)
)

// Eviction reasons.
const (
	EvictCapacity = "capacity"
	EvictExpired  = "expired"
)

// Frame directions.
const (
	FrameIn  = "in"
	FrameOut = "out"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requests, requestDuration, frameBytes, sessionsActive, sessionsCreated, sessionsEvicted)
	})
}

func RecordRequest(route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	requests.WithLabelValues(route, statusLabel).Inc()
	requestDuration.WithLabelValues(route, statusLabel).Observe(duration.Seconds())
}

func RecordFrame(direction string, size int) {
	RegisterMetrics()
	frameBytes.WithLabelValues(direction).Observe(float64(size))
}

func RecordSessionCreated() {
	RegisterMetrics()
	sessionsCreated.Inc()
	sessionsActive.Inc()
}

func RecordSessionEvicted(reason string) {
	RegisterMetrics()
	sessionsEvicted.WithLabelValues(reason).Inc()
	sessionsActive.Dec()
}
