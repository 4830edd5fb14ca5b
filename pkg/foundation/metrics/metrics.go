// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines labeled metrics that are created once and reported
// to every registered Registry.
package metrics

import (
	"time"
)

// Registry creates labeled metrics. All routestream metrics carry labels,
// such as the source type or the record status.
type Registry interface {
	NewLabeledCounter(name, help string, labels []string, opts ...Option) LabeledCounter
	NewLabeledGauge(name, help string, labels []string, opts ...Option) LabeledGauge
	NewLabeledTimer(name, help string, labels []string, opts ...Option) LabeledTimer
	NewLabeledHistogram(name, help string, labels []string, opts ...Option) LabeledHistogram
}

// Option is an option that can be applied on a metric. Registry implementations
// define their own options and ignore options meant for other registries.
type Option interface{}

// Counter is a metric that can only increment its current count.
type Counter interface {
	// Inc adds Sum(vs) to the counter, or 1 if vs is empty.
	Inc(vs ...float64)
}

// Gauge is a metric that allows incrementing and decrementing a value.
type Gauge interface {
	// Inc adds Sum(vs) to the gauge, or 1 if vs is empty.
	Inc(vs ...float64)
	// Dec subtracts Sum(vs) from the gauge, or 1 if vs is empty.
	Dec(vs ...float64)
	Set(float64)
}

// Timer collects durations in seconds.
type Timer interface {
	Update(time.Duration)
	// UpdateSince records the time that passed since start.
	UpdateSince(start time.Time)
}

type Histogram interface {
	Observe(float64)
}

// LabeledCounter returns the counter for the given label values, in the order
// of the label names used when it was created.
type LabeledCounter interface {
	WithValues(vs ...string) Counter
}

type LabeledGauge interface {
	WithValues(vs ...string) Gauge
}

type LabeledTimer interface {
	WithValues(vs ...string) Timer
}

type LabeledHistogram interface {
	WithValues(vs ...string) Histogram
}

var global struct {
	metrics    []metric
	registries []Registry
}

// Register adds a Registry to the global registries. Metrics created before
// or after the call are created in r as well. Register is not safe for
// concurrent use with the New functions.
func Register(r Registry) {
	global.registries = append(global.registries, r)
	for _, mt := range global.metrics {
		mt.New(r)
	}
}

func NewLabeledCounter(name, help string, labels []string, opts ...Option) LabeledCounter {
	return labeledCounter{newVec(name, help, labels, opts, Registry.NewLabeledCounter, LabeledCounter.WithValues)}
}

func NewLabeledGauge(name, help string, labels []string, opts ...Option) LabeledGauge {
	return labeledGauge{newVec(name, help, labels, opts, Registry.NewLabeledGauge, LabeledGauge.WithValues)}
}

func NewLabeledTimer(name, help string, labels []string, opts ...Option) LabeledTimer {
	return labeledTimer{newVec(name, help, labels, opts, Registry.NewLabeledTimer, LabeledTimer.WithValues)}
}

func NewLabeledHistogram(name, help string, labels []string, opts ...Option) LabeledHistogram {
	return labeledHistogram{newVec(name, help, labels, opts, Registry.NewLabeledHistogram, LabeledHistogram.WithValues)}
}

type metric interface {
	New(Registry)
}

// vec is a labeled metric of type L created in every registry. M is the type
// of the metric returned for a set of label values.
type vec[L, M any] struct {
	name   string
	help   string
	labels []string
	opts   []Option

	create func(Registry, string, string, []string, ...Option) L
	with   func(L, ...string) M
	vecs   []L
}

func newVec[L, M any](
	name, help string,
	labels []string,
	opts []Option,
	create func(Registry, string, string, []string, ...Option) L,
	with func(L, ...string) M,
) *vec[L, M] {
	v := &vec[L, M]{
		name:   name,
		help:   help,
		labels: labels,
		opts:   opts,
		create: create,
		with:   with,
	}
	global.metrics = append(global.metrics, v)
	for _, r := range global.registries {
		v.New(r)
	}
	return v
}

func (v *vec[L, M]) New(r Registry) {
	v.vecs = append(v.vecs, v.create(r, v.name, v.help, v.labels, v.opts...))
}

func (v *vec[L, M]) values(vs []string) []M {
	out := make([]M, len(v.vecs))
	for i, l := range v.vecs {
		out[i] = v.with(l, vs...)
	}
	return out
}

type labeledCounter struct {
	*vec[LabeledCounter, Counter]
}

func (l labeledCounter) WithValues(vs ...string) Counter { return counters(l.values(vs)) }

type labeledGauge struct {
	*vec[LabeledGauge, Gauge]
}

func (l labeledGauge) WithValues(vs ...string) Gauge { return gauges(l.values(vs)) }

type labeledTimer struct {
	*vec[LabeledTimer, Timer]
}

func (l labeledTimer) WithValues(vs ...string) Timer { return timers(l.values(vs)) }

type labeledHistogram struct {
	*vec[LabeledHistogram, Histogram]
}

func (l labeledHistogram) WithValues(vs ...string) Histogram { return histograms(l.values(vs)) }

type counters []Counter

func (cs counters) Inc(vs ...float64) {
	for _, c := range cs {
		c.Inc(vs...)
	}
}

type gauges []Gauge

func (gs gauges) Inc(vs ...float64) {
	for _, g := range gs {
		g.Inc(vs...)
	}
}

func (gs gauges) Dec(vs ...float64) {
	for _, g := range gs {
		g.Dec(vs...)
	}
}

func (gs gauges) Set(v float64) {
	for _, g := range gs {
		g.Set(v)
	}
}

type timers []Timer

func (ts timers) Update(d time.Duration) {
	for _, t := range ts {
		t.Update(d)
	}
}

func (ts timers) UpdateSince(start time.Time) {
	// one duration for all registries
	ts.Update(time.Since(start))
}

type histograms []Histogram

func (hs histograms) Observe(v float64) {
	for _, h := range hs {
		h.Observe(v)
	}
}
