// Package stats wraps rcrowley/go-metrics the way common/stats does:
// a small StatsReceiver interface so the rest of the module never
// imports go-metrics directly, a Scope() for hierarchical names, and a
// NilStatsReceiver for tests and code paths that don't care about
// metrics. Simplified from common/stats/stats.go -- we drop its
// Finagle-style pretty-printing and latched-update machinery, which
// exist to match an internal reporting format this module has no
// equivalent of.
package stats

import (
	"strings"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// Counter is a monotonically-increasing event count.
type Counter interface {
	Inc(delta int64)
}

// Gauge holds an arbitrary int64 value.
type Gauge interface {
	Update(value int64)
}

// Latency records sampled durations.
type Latency interface {
	Time(d time.Duration)
}

// StatsReceiver is the scoped handle callers use to record metrics,
// e.g. scheduler-wide counters for tasks placed/completed/failed.
type StatsReceiver interface {
	Scope(scope ...string) StatsReceiver
	Counter(name ...string) Counter
	Gauge(name ...string) Gauge
	Latency(name ...string) Latency
}

type registryReceiver struct {
	registry metrics.Registry
	prefix   []string
}

// NewStatsReceiver returns a receiver backed by a fresh go-metrics registry.
func NewStatsReceiver() StatsReceiver {
	return &registryReceiver{registry: metrics.NewRegistry()}
}

func (r *registryReceiver) fullName(name []string) string {
	parts := append(append([]string{}, r.prefix...), name...)
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "/", "_SLASH_")
	}
	return strings.Join(parts, "/")
}

func (r *registryReceiver) Scope(scope ...string) StatsReceiver {
	return &registryReceiver{registry: r.registry, prefix: append(append([]string{}, r.prefix...), scope...)}
}

func (r *registryReceiver) Counter(name ...string) Counter {
	c := r.registry.GetOrRegister(r.fullName(name), metrics.NewCounter).(metrics.Counter)
	return counterAdapter{c}
}

func (r *registryReceiver) Gauge(name ...string) Gauge {
	g := r.registry.GetOrRegister(r.fullName(name), metrics.NewGauge).(metrics.Gauge)
	return gaugeAdapter{g}
}

func (r *registryReceiver) Latency(name ...string) Latency {
	h := r.registry.GetOrRegister(r.fullName(name), metrics.NewHistogram(metrics.NewUniformSample(1028))).(metrics.Histogram)
	return latencyAdapter{h}
}

type counterAdapter struct{ c metrics.Counter }

func (a counterAdapter) Inc(delta int64) { a.c.Inc(delta) }

type gaugeAdapter struct{ g metrics.Gauge }

func (a gaugeAdapter) Update(value int64) { a.g.Update(value) }

type latencyAdapter struct{ h metrics.Histogram }

func (a latencyAdapter) Time(d time.Duration) { a.h.Update(d.Nanoseconds()) }

// nilReceiver discards everything; used where a StatsReceiver is
// required but the caller (e.g. a unit test) doesn't care.
type nilReceiver struct{}

var nilOnce sync.Once
var nilInstance StatsReceiver

// NilStatsReceiver returns a StatsReceiver that discards all recordings.
func NilStatsReceiver() StatsReceiver {
	nilOnce.Do(func() { nilInstance = nilReceiver{} })
	return nilInstance
}

func (nilReceiver) Scope(scope ...string) StatsReceiver { return nilReceiver{} }
func (nilReceiver) Counter(name ...string) Counter       { return nilCounter{} }
func (nilReceiver) Gauge(name ...string) Gauge           { return nilGauge{} }
func (nilReceiver) Latency(name ...string) Latency       { return nilLatency{} }

type nilCounter struct{}

func (nilCounter) Inc(delta int64) {}

type nilGauge struct{}

func (nilGauge) Update(value int64) {}

type nilLatency struct{}

func (nilLatency) Time(d time.Duration) {}
