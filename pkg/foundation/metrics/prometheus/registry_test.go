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
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_Counter(t *testing.T) {
	is := is.New(t)
	r := NewRegistry(map[string]string{"stream": "test"})

	c := r.NewLabeledCounter("test_records_total", "test", []string{"status"})
	c.WithValues("valid").Inc()
	c.WithValues("valid").Inc(2)
	c.WithValues("corrupted").Inc()

	is.Equal(testutil.CollectAndCount(r, "test_records_total"), 2)

	want := `
# HELP test_records_total test
# TYPE test_records_total counter
test_records_total{status="corrupted",stream="test"} 1
test_records_total{status="valid",stream="test"} 3
`
	is.NoErr(testutil.CollectAndCompare(r, strings.NewReader(want), "test_records_total"))
}

func TestRegistry_Gauge(t *testing.T) {
	is := is.New(t)
	r := NewRegistry(nil)

	g := r.NewLabeledGauge("test_sources", "test", []string{"type"})
	g.WithValues("singlefile").Inc()
	g.WithValues("singlefile").Inc(3)
	g.WithValues("singlefile").Dec()
	g.WithValues("broker").Set(7)
	g.WithValues("broker").Dec(2)

	want := `
# HELP test_sources test
# TYPE test_sources gauge
test_sources{type="broker"} 5
test_sources{type="singlefile"} 3
`
	is.NoErr(testutil.CollectAndCompare(r, strings.NewReader(want), "test_sources"))
}

func TestRegistry_Timer(t *testing.T) {
	is := is.New(t)
	r := NewRegistry(nil)

	tm := r.NewLabeledTimer("test_decode_seconds", "test", []string{"type"}, HistogramOpts{Buckets: []float64{1, 2}})
	tm.WithValues("csvfile").Update(time.Second)
	tm.WithValues("csvfile").Update(3 * time.Second)

	want := `
# HELP test_decode_seconds test
# TYPE test_decode_seconds histogram
test_decode_seconds_bucket{type="csvfile",le="1"} 1
test_decode_seconds_bucket{type="csvfile",le="2"} 1
test_decode_seconds_bucket{type="csvfile",le="+Inf"} 2
test_decode_seconds_sum{type="csvfile"} 4
test_decode_seconds_count{type="csvfile"} 2
`
	is.NoErr(testutil.CollectAndCompare(r, strings.NewReader(want), "test_decode_seconds"))
}

func TestRegistry_HistogramIgnoresForeignOptions(t *testing.T) {
	is := is.New(t)
	r := NewRegistry(nil)

	h := r.NewLabeledHistogram("test_bytes", "test", []string{"type"}, struct{}{}, HistogramOpts{Buckets: []float64{10}})
	h.WithValues("kafka").Observe(5)
	h.WithValues("kafka").Observe(50)

	want := `
# HELP test_bytes test
# TYPE test_bytes histogram
test_bytes_bucket{type="kafka",le="10"} 1
test_bytes_bucket{type="kafka",le="+Inf"} 2
test_bytes_sum{type="kafka"} 55
test_bytes_count{type="kafka"} 2
`
	is.NoErr(testutil.CollectAndCompare(r, strings.NewReader(want), "test_bytes"))
}
