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

package stream

import (
	"context"
	"time"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/ctxutil"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/metrics/measure"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

// recordReader turns merged dumps into records. Decode failures do not fail
// the stream, they are reported as the status of the record.
type recordReader struct {
	logger log.CtxLogger
	mux    *multiplexer
	chain  *filter.Chain
}

func (r *recordReader) next(ctx context.Context) (*record.Record, error) {
	d, c, err := r.mux.next(ctx)
	if err != nil {
		return nil, err
	}
	rec := r.decode(ctx, d, c)
	measure.RecordsCounter.WithValues(rec.Status.String()).Inc()
	return rec, nil
}

func (r *recordReader) decode(ctx context.Context, d source.Dump, c *cursor) *record.Record {
	if d.Err != nil {
		return record.New(d.Metadata, record.StatusCorruptedSource, nil, d.Err)
	}

	start := time.Now()
	p, err := c.decoder.Decode(ctx, d)
	measure.DecodeDurationTimer.WithValues(c.desc.Type).UpdateSince(start)
	if err != nil {
		r.logger.Debug(ctxutil.ContextWithSourceID(ctx, d.SourceID)).
			Err(err).
			Uint32(log.DumpTimeField, d.Timestamp).
			Msg("could not decode dump")
		return record.New(d.Metadata, record.StatusCorruptedSource, nil, source.Corrupted(err))
	}
	if p == nil {
		return record.New(d.Metadata, record.StatusCorruptedSource, nil, source.Corrupted(cerrors.New("decoder returned no payload")))
	}
	measure.DumpBytesHistogram.WithValues(c.desc.Type).Observe(float64(len(p.Raw())))

	md := d.Metadata
	if o, ok := p.(record.Origin); ok {
		project, collector := o.Origin()
		if md.Project == "" {
			md.Project = project
		}
		if md.Collector == "" {
			md.Collector = collector
		}
	}

	switch {
	case !r.chain.AdmitRecord(md):
		return record.New(md, record.StatusFilteredSource, nil, nil)
	case p.Empty():
		return record.New(md, record.StatusEmptySource, nil, nil)
	default:
		return record.New(md, record.StatusValid, p, nil)
	}
}
