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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/routestream/routestream/pkg/foundation/metrics"
)

// NewRegistry returns a registry that is responsible for managing a collection
// of metrics.
//
// Labels allows constant labels to be added to all metrics created in this
// registry, although this parameter should be used responsibly. See also
// https://prometheus.io/docs/instrumenting/writing_exporters/#target-labels,-not-static-scraped-labels
func NewRegistry(labels map[string]string) *Registry {
	return &Registry{
		labels: labels,
	}
}

// Registry implements metrics.Registry as well as prometheus.Collector and
// can thus be used as an adapter to deliver routestream metrics to the
// prometheus client.
type Registry struct {
	labels     map[string]string
	mu         sync.Mutex
	collectors []prometheus.Collector
}

var _ metrics.Registry = (*Registry)(nil)

// HistogramOpts configures histograms and timers.
type HistogramOpts struct {
	Buckets []float64
}

func (r *Registry) NewLabeledCounter(name, help string, labels []string, _ ...metrics.Option) metrics.LabeledCounter {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}, labels)
	r.add(cv)
	return labeledCounter{cv: cv}
}

func (r *Registry) NewLabeledGauge(name, help string, labels []string, _ ...metrics.Option) metrics.LabeledGauge {
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}, labels)
	r.add(gv)
	return labeledGauge{gv: gv}
}

func (r *Registry) NewLabeledHistogram(name, help string, labels []string, opts ...metrics.Option) metrics.LabeledHistogram {
	return labeledHistogram{hv: r.newHistogramVec(name, help, labels, opts)}
}

// NewLabeledTimer creates a histogram that observes durations in seconds.
func (r *Registry) NewLabeledTimer(name, help string, labels []string, opts ...metrics.Option) metrics.LabeledTimer {
	return labeledTimer{hv: r.newHistogramVec(name, help, labels, opts)}
}

func (r *Registry) newHistogramVec(name, help string, labels []string, opts []metrics.Option) *prometheus.HistogramVec {
	po := prometheus.HistogramOpts{
		Name:        name,
		Help:        help,
		ConstLabels: r.labels,
	}
	for _, opt := range opts {
		// options of other registries are skipped
		if o, ok := opt.(HistogramOpts); ok && o.Buckets != nil {
			po.Buckets = o.Buckets
		}
	}
	hv := prometheus.NewHistogramVec(po, labels)
	r.add(hv)
	return hv
}

func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.collectors {
		c.Describe(ch)
	}
}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.collectors {
		c.Collect(ch)
	}
}

func (r *Registry) add(c prometheus.Collector) {
	r.mu.Lock()
	r.collectors = append(r.collectors, c)
	r.mu.Unlock()
}
