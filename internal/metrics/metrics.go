// Package metrics exposes Prometheus instrumentation for telemetry polling.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/heartboard/telemetry"
)

const namespace = "heartboard"

// outcomeOK labels polls that produced a reading.
const outcomeOK = "ok"

// Metrics holds the collectors of one heartboard instance.
//
// Each instance owns its registry so several boards (and tests) can coexist
// in one process.
type Metrics struct {
	registry *prometheus.Registry

	polls       *prometheus.CounterVec
	latency     prometheus.Histogram
	bpm         prometheus.Gauge
	status      prometheus.Gauge
	connected   prometheus.Gauge
	transitions prometheus.Counter
	actuations  *prometheus.CounterVec
}

// New creates and registers the heartboard collectors, plus the standard Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Completed telemetry polls, labelled by outcome (ok or error kind).",
			},
			[]string{"outcome"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_latency_ms",
				Help:      "Telemetry request latency in milliseconds.",
				Buckets:   []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
			},
		),
		bpm: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "heart_rate_bpm",
				Help:      "Latest reported heart rate, 0 when not reporting.",
			},
		),
		status: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "device_status",
				Help:      "Latest device status code (-1 sensor absent, 0 source absent, 1 collecting, 2 reporting), NaN while disconnected.",
			},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connected",
				Help:      "1 when the latest poll produced a reading, 0 otherwise.",
			},
		),
		transitions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Device state transitions, including to and from disconnected.",
			},
		),
		actuations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actuations_total",
				Help:      "Actuator writes, labelled by result.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.polls, m.latency, m.bpm, m.status, m.connected, m.transitions, m.actuations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePoll records one completed poll. A nil reading marks the device as
// disconnected and sets device_status to NaN; err, if set, labels the outcome
// with its kind.
func (m *Metrics) ObservePoll(reading *telemetry.Reading, err error, latency time.Duration) {
	outcome := outcomeOK
	if err != nil {
		outcome = string(telemetry.KindOf(err))
	}
	m.polls.WithLabelValues(outcome).Inc()
	m.latency.Observe(float64(latency.Milliseconds()))

	if reading == nil {
		m.connected.Set(0)
		m.bpm.Set(0)
		m.status.Set(math.NaN())
		return
	}
	m.connected.Set(1)
	m.status.Set(float64(reading.Status()))
	if v, ok := reading.Value(); ok {
		m.bpm.Set(float64(v))
	} else {
		m.bpm.Set(0)
	}
}

// ObserveTransition counts a device state transition.
func (m *Metrics) ObserveTransition() {
	m.transitions.Inc()
}

// ObserveActuation counts an actuator write.
func (m *Metrics) ObserveActuation(err error) {
	if err != nil {
		m.actuations.WithLabelValues("error").Inc()
		return
	}
	m.actuations.WithLabelValues("ok").Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
