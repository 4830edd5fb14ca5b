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

package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/routestream/routestream/pkg/foundation/metrics"
)

type labeledCounter struct {
	cv *prometheus.CounterVec
}

func (l labeledCounter) WithValues(vs ...string) metrics.Counter {
	return counter{c: l.cv.WithLabelValues(vs...)}
}

type counter struct {
	c prometheus.Counter
}

func (c counter) Inc(vs ...float64) {
	if len(vs) == 0 {
		c.c.Inc()
		return
	}
	c.c.Add(sum(vs))
}

type labeledGauge struct {
	gv *prometheus.GaugeVec
}

func (l labeledGauge) WithValues(vs ...string) metrics.Gauge {
	return gauge{g: l.gv.WithLabelValues(vs...)}
}

type gauge struct {
	g prometheus.Gauge
}

func (g gauge) Inc(vs ...float64) {
	if len(vs) == 0 {
		g.g.Inc()
		return
	}
	g.g.Add(sum(vs))
}

func (g gauge) Dec(vs ...float64) {
	if len(vs) == 0 {
		g.g.Dec()
		return
	}
	g.g.Sub(sum(vs))
}

func (g gauge) Set(v float64) {
	g.g.Set(v)
}

type labeledHistogram struct {
	hv *prometheus.HistogramVec
}

func (l labeledHistogram) WithValues(vs ...string) metrics.Histogram {
	return l.hv.WithLabelValues(vs...)
}

type labeledTimer struct {
	hv *prometheus.HistogramVec
}

func (l labeledTimer) WithValues(vs ...string) metrics.Timer {
	return timer{o: l.hv.WithLabelValues(vs...)}
}

type timer struct {
	o prometheus.Observer
}

func (t timer) Update(d time.Duration) {
	t.o.Observe(d.Seconds())
}

func (t timer) UpdateSince(start time.Time) {
	t.Update(time.Since(start))
}

func sum(vs []float64) float64 {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}
