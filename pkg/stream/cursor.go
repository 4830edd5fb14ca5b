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
	"sync"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/foundation/metrics/measure"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"gopkg.in/tomb.v2"
)

var errCursorStopped = cerrors.New("cursor stopped")

// cursor prefetches the dumps of one decoder on its own goroutine. Dumps
// rejected by dump scope filters never reach the buffer. The decoder is closed
// as soon as the worker is done, either because the source is exhausted,
// failed, went past the end of the intervals or the cursor was stopped.
type cursor struct {
	logger  log.CtxLogger
	index   int
	desc    source.Descriptor
	decoder source.Decoder
	chain   *filter.Chain

	buffer chan source.Dump
	tomb   *tomb.Tomb

	closeOnce sync.Once
	closeErr  error
}

func newCursor(logger log.CtxLogger, index int, desc source.Descriptor, dec source.Decoder, chain *filter.Chain, prefetch int) *cursor {
	return &cursor{
		logger:  logger.WithSource(desc.ID, desc.Type),
		index:   index,
		desc:    desc,
		decoder: dec,
		chain:   chain,
		buffer:  make(chan source.Dump, prefetch),
		tomb:    &tomb.Tomb{},
	}
}

func (c *cursor) start() {
	measure.SourcesGauge.WithValues(c.desc.Type).Inc()
	c.tomb.Go(c.run)
}

// next returns the next admitted dump. The second return value is false once
// the cursor is retired.
func (c *cursor) next(ctx context.Context) (source.Dump, bool, error) {
	select {
	case d, ok := <-c.buffer:
		return d, ok, nil
	case <-ctx.Done():
		return source.Dump{}, false, ctx.Err()
	}
}

// stop stops the worker and waits until the decoder is closed.
func (c *cursor) stop() error {
	c.tomb.Kill(errCursorStopped)
	err := c.tomb.Wait()
	if cerrors.Is(err, errCursorStopped) {
		err = nil
	}
	if err != nil {
		return err
	}
	return c.closeErr
}

func (c *cursor) run() error {
	defer close(c.buffer)
	defer c.close()

	ctx := c.tomb.Context(nil) //nolint:staticcheck // tomb expects nil
	var last record.Metadata
	for {
		d, err := c.decoder.Next(ctx)
		switch {
		case cerrors.Is(err, source.ErrEndOfDumps):
			c.logger.Debug(ctx).Msg("source exhausted")
			return nil
		case err != nil:
			if !c.tomb.Alive() {
				return nil
			}
			// the source can not continue, hand out what happened as one
			// corrupted dump and retire
			c.logger.Warn(ctx).Err(err).Msg("source failed, retiring it")
			md := last
			md.SourceID = c.desc.ID
			md.Position = record.PositionEnd
			c.push(source.Dump{Metadata: md, Err: source.Corrupted(err)})
			return nil
		}

		if d.SourceID == "" {
			d.SourceID = c.desc.ID
		}
		measure.DumpsCounter.WithValues(c.desc.Type, d.Kind.String()).Inc()

		if d.Err != nil {
			if c.chain.AdmitCorrupted(d.Metadata) && !c.push(d) {
				return nil
			}
			continue
		}
		last = d.Metadata
		if c.chain.PastEnd(d.Timestamp) {
			c.logger.Debug(ctx).
				Uint32("timestamp", d.Timestamp).
				Msg("source is past the end of all intervals, retiring it")
			return nil
		}
		if !c.chain.AdmitDump(d.Metadata) {
			measure.DumpsRejectedCounter.WithValues(c.desc.Type).Inc()
			continue
		}
		if !c.push(d) {
			return nil
		}
	}
}

func (c *cursor) push(d source.Dump) bool {
	select {
	case c.buffer <- d:
		return true
	case <-c.tomb.Dying():
		return false
	}
}

func (c *cursor) close() {
	c.closeOnce.Do(func() {
		measure.SourcesGauge.WithValues(c.desc.Type).Dec()
		c.closeErr = c.decoder.Close(context.Background())
		if c.closeErr != nil {
			c.logger.Warn(context.Background()).Err(c.closeErr).Msg("could not close source")
		}
	})
}
