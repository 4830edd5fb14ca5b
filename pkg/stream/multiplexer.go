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
	"container/heap"
	"context"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/multierror"
	"github.com/routestream/routestream/pkg/source"
	"github.com/sourcegraph/conc/pool"
)

var errMuxExhausted = cerrors.New("all sources exhausted")

// multiplexer merges the dumps of all cursors into one sequence ordered by
// timestamp, collector and source index.
type multiplexer struct {
	logger  log.CtxLogger
	cursors []*cursor
	heads   headHeap
	// refill holds cursors whose head was handed out and needs to be replaced
	// before the next merge step.
	refill []*cursor
}

// openMultiplexer opens the decoders concurrently and starts a cursor for each
// of them. If any decoder can not be opened the ones that were opened are
// closed again and the joined errors are returned.
func openMultiplexer(
	ctx context.Context,
	logger log.CtxLogger,
	descs []source.Descriptor,
	decoders []source.Decoder,
	chain *filter.Chain,
	prefetch int,
) (*multiplexer, error) {
	opened := make([]bool, len(decoders))
	p := pool.New().WithErrors()
	for i, dec := range decoders {
		p.Go(func() error {
			if err := dec.Open(ctx); err != nil {
				return cerrors.Errorf("source %q: %w", descs[i].ID, source.Unavailable(err))
			}
			opened[i] = true
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		for i, dec := range decoders {
			if opened[i] {
				err = multierror.Append(err, dec.Close(ctx))
			}
		}
		return nil, err
	}

	m := &multiplexer{logger: logger}
	for i, dec := range decoders {
		c := newCursor(logger, i, descs[i], dec, chain, prefetch)
		m.cursors = append(m.cursors, c)
		m.refill = append(m.refill, c)
	}
	for _, c := range m.cursors {
		c.start()
	}
	return m, nil
}

// next returns the dump with the smallest (timestamp, collector) among the
// cursor heads. It returns errMuxExhausted once all cursors are retired.
func (m *multiplexer) next(ctx context.Context) (source.Dump, *cursor, error) {
	for len(m.refill) > 0 {
		c := m.refill[len(m.refill)-1]
		d, ok, err := c.next(ctx)
		if err != nil {
			return source.Dump{}, nil, err
		}
		m.refill = m.refill[:len(m.refill)-1]
		if ok {
			heap.Push(&m.heads, head{dump: d, cursor: c})
		}
	}
	if m.heads.Len() == 0 {
		return source.Dump{}, nil, errMuxExhausted
	}
	h := heap.Pop(&m.heads).(head)
	m.refill = append(m.refill, h.cursor)
	return h.dump, h.cursor, nil
}

// stop stops all cursors and closes their decoders.
func (m *multiplexer) stop() error {
	p := pool.New().WithErrors()
	for _, c := range m.cursors {
		p.Go(func() error {
			if err := c.stop(); err != nil {
				return cerrors.Errorf("source %q: %w", c.desc.ID, err)
			}
			return nil
		})
	}
	return p.Wait()
}

type head struct {
	dump   source.Dump
	cursor *cursor
}

type headHeap []head

func (h headHeap) Len() int { return len(h) }

func (h headHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.dump.Timestamp != b.dump.Timestamp {
		return a.dump.Timestamp < b.dump.Timestamp
	}
	if a.dump.Collector != b.dump.Collector {
		return a.dump.Collector < b.dump.Collector
	}
	return a.cursor.index < b.cursor.index
}

func (h headHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *headHeap) Push(x any) { *h = append(*h, x.(head)) }

func (h *headHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = head{}
	*h = old[:n-1]
	return x
}
