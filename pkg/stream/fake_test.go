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

package stream_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

const fakeType = "fake"

// fakePayload is a decoded dump holding a fixed list of elements.
type fakePayload struct {
	elems  []record.Element
	origin [2]string
	// elemErr is returned by the element iterator after elems
	elemErr error
}

func (p fakePayload) Elements() record.ElementIterator {
	if p.elemErr == nil {
		return record.NewSliceIterator(p.elems)
	}
	it := record.NewSliceIterator(p.elems)
	return record.IteratorFunc(func() (record.Element, error) {
		e, err := it.Next()
		if cerrors.Is(err, record.ErrEndOfElements) {
			return record.Element{}, p.elemErr
		}
		return e, err
	})
}

func (p fakePayload) Empty() bool              { return len(p.elems) == 0 && p.elemErr == nil }
func (p fakePayload) Raw() []byte              { return []byte("raw") }
func (p fakePayload) Origin() (string, string) { return p.origin[0], p.origin[1] }

// fakeDump is a dump produced by a fakeDecoder.
type fakeDump struct {
	md      record.Metadata
	payload fakePayload
	// decodeErr makes Decode fail for this dump
	decodeErr error
}

// fakeDecoder replays a fixed list of dumps.
type fakeDecoder struct {
	dumps   []fakeDump
	openErr error
	// failErr is returned by Next after all dumps were returned
	failErr error
	// block makes Next block until its context is done once all dumps were
	// returned
	block bool

	m      sync.Mutex
	pos    int
	nexts  atomic.Int32
	closes atomic.Int32
	opened atomic.Bool
}

func (d *fakeDecoder) Open(context.Context) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.opened.Store(true)
	return nil
}

func (d *fakeDecoder) Next(ctx context.Context) (source.Dump, error) {
	d.nexts.Add(1)
	d.m.Lock()
	defer d.m.Unlock()
	if d.pos >= len(d.dumps) {
		switch {
		case d.block:
			d.m.Unlock()
			<-ctx.Done()
			d.m.Lock()
			return source.Dump{}, ctx.Err()
		case d.failErr != nil:
			return source.Dump{}, d.failErr
		}
		return source.Dump{}, source.ErrEndOfDumps
	}
	fd := d.dumps[d.pos]
	d.pos++
	return source.Dump{Metadata: fd.md, Handle: fd}, nil
}

func (d *fakeDecoder) Decode(_ context.Context, dump source.Dump) (record.Payload, error) {
	fd := dump.Handle.(fakeDump)
	if fd.decodeErr != nil {
		return nil, source.Corrupted(fd.decodeErr)
	}
	return fd.payload, nil
}

func (d *fakeDecoder) Close(context.Context) error {
	d.closes.Add(1)
	return nil
}

// fakeRegistry returns a registry whose "fake" type hands out the decoder
// registered under the ID of the descriptor.
func fakeRegistry(decoders map[string]source.Decoder) *source.Registry {
	return source.NewRegistry(log.Nop(), source.Spec{
		Type:    fakeType,
		Summary: "test source",
		Parameters: config.Parameters{
			"flavor": {Type: config.ParameterTypeString},
		},
		New: func(desc source.Descriptor, _ config.Config, _ source.Env) (source.Decoder, error) {
			dec, ok := decoders[desc.ID]
			if !ok {
				return nil, cerrors.Errorf("no fake decoder %q", desc.ID)
			}
			return dec, nil
		},
	})
}

func dumpsAt(collector string, ts ...uint32) []fakeDump {
	out := make([]fakeDump, len(ts))
	for i, t := range ts {
		out[i] = fakeDump{
			md: record.Metadata{Project: "test", Collector: collector, Timestamp: t, Kind: record.KindUpdate},
			payload: fakePayload{elems: []record.Element{{
				Type:      record.ElementAnnouncement,
				Timestamp: t,
			}}},
		}
	}
	return out
}
