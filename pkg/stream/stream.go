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

// Package stream merges the dumps of many sources into one time-ordered
// sequence of records and decomposes records into routing elements.
//
// A Stream is configured with sources and filters, started, and then pulled
// by a single consumer:
//
//	s := stream.New(logger, builtin.DefaultRegistry(logger))
//	_ = s.AddSource(source.Descriptor{Type: "singlefile", Options: opts})
//	_ = s.AddIntervalFilter(1427846400, 1427846700)
//	if err := s.Start(ctx); err != nil { ... }
//	defer s.Stop(ctx)
//	for {
//		rec, err := s.NextRecord(ctx)
//		if cerrors.Is(err, stream.ErrEndOfStream) { break }
//		for {
//			elem, err := s.NextElem()
//			if cerrors.Is(err, record.ErrEndOfElements) { break }
//		}
//	}
package stream

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/csync"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/metrics/measure"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

var (
	// ErrInvalidState is returned when a method is called in a state that
	// does not allow it.
	ErrInvalidState = cerrors.New("invalid stream state")
	// ErrEndOfStream is returned by NextRecord once all sources are
	// exhausted.
	ErrEndOfStream = cerrors.New("end of stream")
)

const (
	StateConfiguring State = iota + 1
	StateRunning
	StateExhausted
	StateStopped
)

type State int

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateExhausted:
		return "exhausted"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stream reads records from a set of sources. NextRecord and NextElem must be
// called by a single consumer, Stop can be called from any goroutine.
type Stream struct {
	logger   log.CtxLogger
	registry *source.Registry
	opts     options
	chain    *filter.Chain

	m       sync.Mutex
	state   State
	watcher csync.ValueWatcher[State]
	descs   []source.Descriptor
	mux     *multiplexer
	reader  *recordReader

	current *record.Record
	elems   *decomposer
}

func New(logger log.CtxLogger, registry *source.Registry, opts ...Option) *Stream {
	o := options{prefetch: DefaultPrefetch}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Stream{
		logger:   logger.WithComponentFromType(Stream{}),
		registry: registry,
		opts:     o,
		chain:    filter.NewChain(),
		state:    StateConfiguring,
	}
	s.watcher.Set(s.state)
	measure.StreamsGauge.WithValues(s.state.String()).Inc()
	return s
}

func (s *Stream) State() State {
	s.m.Lock()
	defer s.m.Unlock()
	return s.state
}

// setState needs to be called with the lock held.
func (s *Stream) setState(st State) {
	measure.StreamsGauge.WithValues(s.state.String()).Dec()
	measure.StreamsGauge.WithValues(st.String()).Inc()
	s.state = st
	s.watcher.Set(st)
}

// WaitForState blocks until the stream reaches one of the given states and
// returns the state it reached. It can be called from any goroutine.
func (s *Stream) WaitForState(ctx context.Context, want ...State) (State, error) {
	if len(want) == 0 {
		return 0, cerrors.Errorf("%w: no state to wait for", ErrInvalidState)
	}
	return s.watcher.Watch(ctx, csync.WatchValues(want...))
}

// configuring returns an error matching ErrConfiguration and ErrInvalidState
// if the stream was already started. It needs to be called with the lock held.
func (s *Stream) configuring() error {
	if s.state != StateConfiguring {
		return cerrors.Mark(cerrors.Errorf("stream is %s: %w", s.state, ErrInvalidState), source.ErrConfiguration)
	}
	return nil
}

// AddSource adds a source to the stream. The type of the source is checked
// right away, its options are validated by Start. Sources without an ID get
// one made of their type and position.
func (s *Stream) AddSource(desc source.Descriptor) error {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.configuring(); err != nil {
		return err
	}
	if _, err := s.registry.Lookup(desc.Type); err != nil {
		return err
	}
	if desc.ID == "" {
		desc.ID = fmt.Sprintf("%s-%d", desc.Type, len(s.descs))
	}
	for _, d := range s.descs {
		if d.ID == desc.ID {
			return cerrors.Errorf("%w: duplicate source id %q", source.ErrConfiguration, desc.ID)
		}
	}
	desc.Options = maps.Clone(desc.Options)
	s.descs = append(s.descs, desc)
	return nil
}

// AddFilter adds a built-in filter, see the Filter constants of package filter.
func (s *Stream) AddFilter(name, value string) error {
	return s.configure(func(c *filter.Chain) error { return c.AddFilter(name, value) })
}

// AddFilterString adds all filters of a filter expression such as
// "collector rrc00 and type updates and prefix more 10.0.0.0/8".
func (s *Stream) AddFilterString(expr string) error {
	return s.configure(func(c *filter.Chain) error { return c.Parse(expr) })
}

// AddIntervalFilter admits dumps with from <= timestamp <= until. An until of
// 0 makes the interval open-ended, which turns index sources into live ones.
func (s *Stream) AddIntervalFilter(from, until uint32) error {
	return s.configure(func(c *filter.Chain) error { return c.AddInterval(from, until) })
}

// AddPredicate adds a custom dump or record scope filter.
func (s *Stream) AddPredicate(scope filter.Scope, p filter.MetadataPredicate) error {
	return s.configure(func(c *filter.Chain) error { return c.Add(scope, p) })
}

// AddElementPredicate adds a custom element scope filter.
func (s *Stream) AddElementPredicate(p filter.ElementPredicate) error {
	return s.configure(func(c *filter.Chain) error {
		c.AddElement(p)
		return nil
	})
}

func (s *Stream) configure(fn func(*filter.Chain) error) error {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.configuring(); err != nil {
		return err
	}
	return fn(s.chain)
}

// Start creates and opens a decoder for every source. It fails with
// ErrConfiguration if a source has invalid options and with
// ErrSourceUnavailable if a source can not be opened. Decoders opened before
// the failure are closed again and the stream stays unstarted.
func (s *Stream) Start(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.state != StateConfiguring {
		return cerrors.Errorf("%w: can not start a stream that is %s", ErrInvalidState, s.state)
	}
	if len(s.descs) == 0 {
		return cerrors.Errorf("%w: stream has no sources", source.ErrConfiguration)
	}

	env := source.Env{Logger: s.logger, Hints: s.chain.Hints()}
	decoders := make([]source.Decoder, 0, len(s.descs))
	for _, desc := range s.descs {
		dec, err := s.registry.NewDecoder(desc, env)
		if err != nil {
			return err
		}
		decoders = append(decoders, dec)
	}

	mux, err := openMultiplexer(ctx, s.logger, s.descs, decoders, s.chain, s.opts.prefetch)
	if err != nil {
		return err
	}
	s.mux = mux
	s.reader = &recordReader{logger: s.logger, mux: mux, chain: s.chain}
	s.setState(StateRunning)
	s.logger.Info(ctx).
		Int("sources", len(s.descs)).
		Any("intervals", s.chain.Intervals()).
		Msg("stream started")
	return nil
}

// NextRecord returns the next record in (timestamp, collector) order. Unread
// elements of the previous record are dropped. Records of corrupted, empty
// and filtered dumps are returned too, their Status tells them apart.
// ErrEndOfStream is returned once all sources are exhausted.
func (s *Stream) NextRecord(ctx context.Context) (*record.Record, error) {
	s.m.Lock()
	if s.state != StateRunning {
		st := s.state
		s.m.Unlock()
		return nil, cerrors.Errorf("%w: can not read records from a stream that is %s", ErrInvalidState, st)
	}
	s.current, s.elems = nil, nil
	s.m.Unlock()

	rec, err := s.reader.next(ctx)

	s.m.Lock()
	defer s.m.Unlock()
	if s.state == StateStopped {
		return nil, cerrors.Errorf("%w: stream was stopped", ErrInvalidState)
	}
	switch {
	case cerrors.Is(err, errMuxExhausted):
		s.setState(StateExhausted)
		s.logger.Info(ctx).Msg("all sources exhausted")
		return nil, ErrEndOfStream
	case err != nil:
		return nil, err
	}
	s.current = rec
	s.elems = newDecomposer(rec, s.chain)
	return rec, nil
}

// NextElem returns the next admitted element of the current record. It returns
// record.ErrEndOfElements once the record has no more elements, including for
// records that are not valid.
func (s *Stream) NextElem() (record.Element, error) {
	s.m.Lock()
	defer s.m.Unlock()
	switch {
	case s.state != StateRunning:
		return record.Element{}, cerrors.Errorf("%w: can not read elements from a stream that is %s", ErrInvalidState, s.state)
	case s.elems == nil:
		return record.Element{}, cerrors.Errorf("%w: no current record", ErrInvalidState)
	}
	return s.elems.next()
}

// Stop closes all decoders. Pulling from a stopped stream fails with
// ErrInvalidState. Calling Stop more than once is a no-op.
func (s *Stream) Stop(ctx context.Context) error {
	s.m.Lock()
	if s.state == StateStopped {
		s.m.Unlock()
		return nil
	}
	s.setState(StateStopped)
	mux := s.mux
	s.current, s.elems = nil, nil
	s.m.Unlock()

	if mux == nil {
		return nil
	}
	if err := mux.stop(); err != nil {
		s.logger.Warn(ctx).Err(err).Msg("stream stopped with errors")
		return err
	}
	s.logger.Info(ctx).Msg("stream stopped")
	return nil
}
