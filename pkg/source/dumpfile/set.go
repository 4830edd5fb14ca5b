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

package dumpfile

import (
	"container/heap"
	"context"
	"sort"

	"github.com/routestream/routestream/pkg/foundation/ctxutil"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/multierror"
	"github.com/routestream/routestream/pkg/source"
)

// Set merges the dumps of many files into one sequence ordered by timestamp
// and collector. A file is opened once the merge frontier reaches its nominal
// start time, and closed as soon as it is exhausted.
type Set struct {
	logger   log.CtxLogger
	opener   *Opener
	sourceID string

	pending []File
	open    streamHeap
	seq     int
}

func NewSet(logger log.CtxLogger, opener *Opener, sourceID string, files []File) *Set {
	s := &Set{
		logger:   logger.WithComponentFromType(Set{}),
		opener:   opener,
		sourceID: sourceID,
	}
	s.Add(files...)
	return s
}

// Add queues more files. Files can be added while the set is read, e.g. when
// a live index lists new files.
func (s *Set) Add(files ...File) {
	s.pending = append(s.pending, files...)
	sort.SliceStable(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Collector != b.Collector {
			return a.Collector < b.Collector
		}
		return a.Kind > b.Kind // RIBs before updates of the same time
	})
}

// Pending returns the number of files that were not opened yet.
func (s *Set) Pending() int {
	return len(s.pending)
}

// Next returns the next dump across all files or source.ErrEndOfDumps if all
// queued files were read. A file that can not be opened is returned as a
// single dump with Err set.
func (s *Set) Next(ctx context.Context) (source.Dump, error) {
	for {
		if d, ok := s.openDue(ctx); ok {
			return d, nil
		}
		if s.open.Len() == 0 {
			if len(s.pending) == 0 {
				return source.Dump{}, source.ErrEndOfDumps
			}
			continue
		}

		fs := s.open.items[0]
		d := fs.Pop()
		if _, ok := fs.Peek(); ok {
			heap.Fix(&s.open, 0)
		} else {
			heap.Pop(&s.open)
			if err := fs.Close(); err != nil {
				s.logger.Warn(ctx).Err(err).Str(log.DumpURLField, fs.file.URL).Msg("could not close dump file")
			}
		}
		return d, nil
	}
}

// openDue opens pending files whose start time is not after the head of the
// merge. If a file can not be opened a corrupted dump is returned for it.
func (s *Set) openDue(ctx context.Context) (source.Dump, bool) {
	for len(s.pending) > 0 {
		f := s.pending[0]
		if s.open.Len() > 0 {
			head, _ := s.open.items[0].Peek()
			if f.Time > head.Timestamp {
				return source.Dump{}, false
			}
		}
		s.pending = s.pending[1:]

		fctx := ctxutil.ContextWithDumpURL(ctx, f.URL)
		fs, err := openFileStream(fctx, s.opener, s.sourceID, f)
		if err != nil {
			s.logger.Warn(fctx).Err(err).Msg("could not open dump file")
			md := f.Metadata()
			md.SourceID = s.sourceID
			return source.Dump{Metadata: md, Err: source.Unavailable(err)}, true
		}
		if _, ok := fs.Peek(); !ok {
			s.logger.Debug(fctx).Msg("dump file is empty")
			_ = fs.Close()
			continue
		}
		s.seq++
		heap.Push(&s.open, streamItem{fileStream: fs, seq: s.seq})
	}
	return source.Dump{}, false
}

// Close closes all open files.
func (s *Set) Close() error {
	var err error
	for _, fs := range s.open.items {
		err = multierror.Append(err, fs.Close())
	}
	s.open.items = nil
	s.pending = nil
	return err
}

type streamItem struct {
	*fileStream
	seq int
}

// streamHeap orders open files by the timestamp and collector of their next
// dump, ties are broken by the order in which files were opened.
type streamHeap struct {
	items []streamItem
}

func (h *streamHeap) Len() int { return len(h.items) }

func (h *streamHeap) Less(i, j int) bool {
	a, _ := h.items[i].Peek()
	b, _ := h.items[j].Peek()
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Collector != b.Collector {
		return a.Collector < b.Collector
	}
	return h.items[i].seq < h.items[j].seq
}

func (h *streamHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *streamHeap) Push(x any) { h.items = append(h.items, x.(streamItem)) }

func (h *streamHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
