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
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/metrics/measure"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
)

// decomposer yields the elements of one record in payload order, skipping
// elements rejected by element scope filters. Once it reported the end it
// keeps doing so.
type decomposer struct {
	it    record.ElementIterator
	chain *filter.Chain
	done  bool
}

func newDecomposer(rec *record.Record, chain *filter.Chain) *decomposer {
	d := &decomposer{chain: chain}
	if rec.Status != record.StatusValid || rec.Payload() == nil {
		d.done = true
		return d
	}
	d.it = rec.Payload().Elements()
	return d
}

func (d *decomposer) next() (record.Element, error) {
	for !d.done {
		e, err := d.it.Next()
		if cerrors.Is(err, record.ErrEndOfElements) {
			d.done = true
			break
		}
		if err != nil {
			// the payload is broken past this point
			d.done = true
			return record.Element{}, source.Corrupted(err)
		}
		if d.chain.AdmitElement(e) {
			measure.ElementsCounter.WithValues(e.Type.String()).Inc()
			return e, nil
		}
	}
	return record.Element{}, record.ErrEndOfElements
}
