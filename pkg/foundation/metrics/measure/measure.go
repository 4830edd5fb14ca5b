// Copyright © 2022 Meroxa, Inc.
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

package measure

import (
	"github.com/routestream/routestream/pkg/foundation/metrics"
	"github.com/routestream/routestream/pkg/foundation/metrics/prometheus"
)

var (
	RoutestreamInfo = metrics.NewLabeledGauge("routestream_info",
		"Information about routestream.",
		[]string{"version"})

	StreamsGauge = metrics.NewLabeledGauge("routestream_streams",
		"Number of streams by state.",
		[]string{"state"})
	SourcesGauge = metrics.NewLabeledGauge("routestream_sources",
		"Number of open sources by type.",
		[]string{"type"})

	DumpsCounter = metrics.NewLabeledCounter("routestream_dumps_total",
		"Number of dumps read from sources by source type and dump kind.",
		[]string{"type", "kind"})
	DumpsRejectedCounter = metrics.NewLabeledCounter("routestream_dumps_rejected_total",
		"Number of dumps dropped by dump-scope filters by source type.",
		[]string{"type"})
	RecordsCounter = metrics.NewLabeledCounter("routestream_records_total",
		"Number of records returned by status.",
		[]string{"status"})
	ElementsCounter = metrics.NewLabeledCounter("routestream_elements_total",
		"Number of elements returned by element type.",
		[]string{"type"})

	DumpBytesHistogram = metrics.NewLabeledHistogram("routestream_dump_bytes",
		"Size of raw dumps by source type.",
		[]string{"type"},
		// buckets from 64B to 128KiB
		prometheus.HistogramOpts{Buckets: []float64{64, 64 << 1, 64 << 2, 64 << 3, 64 << 4, 64 << 5, 64 << 6, 64 << 7, 64 << 8, 64 << 9, 64 << 10, 64 << 11}},
	)
	DecodeDurationTimer = metrics.NewLabeledTimer("routestream_decode_duration_seconds",
		"Amount of time spent decoding a dump by source type.",
		[]string{"type"},
		prometheus.HistogramOpts{Buckets: []float64{.00001, .000025, .00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05}},
	)
)
