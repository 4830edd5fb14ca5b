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

package record

import (
	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

const (
	StatusValid Status = iota + 1
	StatusFilteredSource
	StatusEmptySource
	StatusCorruptedSource
)

// Status is the processing outcome of a dump. It is set once when the record
// is created and never changes afterwards.
type Status int

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusFilteredSource:
		return "filtered-source"
	case StatusEmptySource:
		return "empty-source"
	case StatusCorruptedSource:
		return "corrupted-source"
	default:
		return "unknown"
	}
}

// Record is one admitted dump decorated with its processing outcome. Elements
// of a valid record are produced lazily from its payload.
type Record struct {
	Metadata
	// Status is the outcome of reading the dump.
	Status Status
	// Err contains the cause of a corrupted record, it is nil otherwise.
	Err error

	payload Payload
}

// New creates a record. The payload is only retained for valid records.
func New(md Metadata, status Status, payload Payload, err error) *Record {
	r := &Record{
		Metadata: md,
		Status:   status,
		Err:      err,
	}
	if status == StatusValid {
		r.payload = payload
	}
	return r
}

// Payload returns the decoded payload of a valid record or nil.
func (r *Record) Payload() Payload {
	return r.payload
}

// Raw returns the undecoded bytes of the dump, if the payload retained them.
func (r *Record) Raw() []byte {
	if r.payload == nil {
		return nil
	}
	return r.payload.Raw()
}

// ErrEndOfElements is returned by ElementIterator.Next when all elements were
// produced.
var ErrEndOfElements = cerrors.New("end of elements")

// ElementIterator produces the elements of a payload one at a time, in the
// order they appear in the payload. Once it returned ErrEndOfElements it keeps
// returning it.
type ElementIterator interface {
	Next() (Element, error)
}

// Payload is a decoded dump.
type Payload interface {
	// Elements returns an iterator positioned at the first element.
	Elements() ElementIterator
	// Empty reports whether the payload contains no routing events at all.
	Empty() bool
	// Raw returns the bytes the payload was decoded from.
	Raw() []byte
}

// Origin is implemented by payloads that learn the project or collector only
// while decoding. Empty values mean the payload does not know them either.
type Origin interface {
	Origin() (project, collector string)
}

// SliceIterator iterates over a pre-built slice of elements.
type SliceIterator struct {
	elems []Element
	pos   int
}

func NewSliceIterator(elems []Element) *SliceIterator {
	return &SliceIterator{elems: elems}
}

func (it *SliceIterator) Next() (Element, error) {
	if it.pos >= len(it.elems) {
		return Element{}, ErrEndOfElements
	}
	e := it.elems[it.pos]
	it.pos++
	return e, nil
}

// IteratorFunc adapts a function to ElementIterator. The function is not
// called again after it returned an error.
type IteratorFunc func() (Element, error)

func (f IteratorFunc) Next() (Element, error) {
	return f()
}
