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
	"context"
	"io"
	"sync"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/multierror"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

// Index lists the dump files of a source.
type Index interface {
	// List returns the files of the source. Files not admitted by the hints
	// are dropped by the caller, indexes may use the hints to narrow their
	// query. An error means the index is unavailable.
	List(ctx context.Context, hints filter.Hints) ([]File, error)
}

// LiveIndex is an index that publishes new files over time.
type LiveIndex interface {
	Index
	// Poll blocks until files newer than the ones returned so far are
	// published and returns them. It returns source.ErrEndOfDumps if no more
	// files will be published.
	Poll(ctx context.Context, hints filter.Hints) ([]File, error)
}

// Decoder implements source.Decoder for sources whose dumps are stored in MRT
// files listed by an index.
type Decoder struct {
	logger   log.CtxLogger
	sourceID string
	opener   *Opener
	index    Index
	hints    filter.Hints
	live     bool

	set       *Set
	closeOnce sync.Once
}

var _ source.Decoder = (*Decoder)(nil)

// NewDecoder creates a decoder reading the files of index. If live is true and
// index implements LiveIndex the decoder polls for new files once all listed
// files were read.
func NewDecoder(desc source.Descriptor, env source.Env, cfg OpenerConfig, index Index, live bool) *Decoder {
	logger := env.Logger.WithComponentFromType(Decoder{})
	return &Decoder{
		logger:   logger,
		sourceID: desc.ID,
		opener:   NewOpener(logger, cfg),
		index:    index,
		hints:    env.Hints,
		live:     live,
	}
}

func (d *Decoder) Open(ctx context.Context) error {
	files, err := d.index.List(ctx, d.hints)
	if err != nil {
		return source.Unavailable(err)
	}
	admitted := d.admit(files)
	d.logger.Debug(ctx).
		Int("files", len(files)).
		Int("admitted", len(admitted)).
		Msg("listed dump files")
	d.set = NewSet(d.logger, d.opener, d.sourceID, admitted)
	return nil
}

func (d *Decoder) Next(ctx context.Context) (source.Dump, error) {
	if d.set == nil {
		return source.Dump{}, cerrors.New("decoder is not open")
	}
	for {
		dump, err := d.set.Next(ctx)
		if !cerrors.Is(err, source.ErrEndOfDumps) {
			return dump, err
		}
		li, ok := d.index.(LiveIndex)
		if !d.live || !ok {
			return source.Dump{}, source.ErrEndOfDumps
		}
		files, err := li.Poll(ctx, d.hints)
		if err != nil {
			return source.Dump{}, err
		}
		d.set.Add(d.admit(files)...)
	}
}

func (d *Decoder) Decode(ctx context.Context, dump source.Dump) (record.Payload, error) {
	return Decode(ctx, dump)
}

func (d *Decoder) Close(context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		if d.set != nil {
			err = multierror.Append(err, d.set.Close())
		}
		if c, ok := d.index.(io.Closer); ok {
			err = multierror.Append(err, c.Close())
		}
	})
	return err
}

func (d *Decoder) admit(files []File) []File {
	out := files[:0:0]
	for _, f := range files {
		if d.hints.AdmitFile(f.Project, f.Collector, f.Kind, f.Time, f.Duration) {
			out = append(out, f)
		}
	}
	return out
}
