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

//go:generate mockgen -destination=mock/decoder.go -package=mock -mock_names=Decoder=Decoder . Decoder

// Package source defines the decoder capability implemented by every source
// type and the registry used to instantiate decoders from descriptors.
package source

import (
	"context"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
)

var (
	// ErrConfiguration is returned for unknown source types and bad options.
	ErrConfiguration = cerrors.New("configuration error")
	// ErrSourceUnavailable is returned when the origin of a source can not be
	// opened.
	ErrSourceUnavailable = cerrors.New("source unavailable")
	// ErrCorrupted is returned when a dump can not be decoded.
	ErrCorrupted = cerrors.New("corrupted dump")
	// ErrEndOfDumps is returned by Decoder.Next when the source is exhausted.
	ErrEndOfDumps = cerrors.New("end of dumps")
)

// Descriptor identifies one data origin.
type Descriptor struct {
	// ID identifies the source in logs and record metadata. It defaults to
	// the type followed by the position of the source in the stream.
	ID      string
	Type    string
	Options map[string]string
}

// Dump is one raw unit of source output. Its metadata is known without
// decoding the payload.
type Dump struct {
	record.Metadata
	// Handle is decoder specific and passed back to Decoder.Decode.
	Handle any
	// Err is set if the decoder failed to read the dump. Such a dump can not
	// be decoded and ends up as a corrupted record.
	Err error
}

// Decoder produces the dumps of a single source in non-decreasing timestamp
// order and decodes them on demand.
type Decoder interface {
	// Open opens the origin of the source. It returns ErrSourceUnavailable if
	// the origin can not be reached.
	Open(ctx context.Context) error
	// Next returns the next dump. Only metadata needs to be read, the payload
	// is decoded lazily. ErrEndOfDumps signals that the source is exhausted.
	Next(ctx context.Context) (Dump, error)
	// Decode decodes the payload of a dump returned by Next. It returns
	// ErrCorrupted if the payload can not be decoded. Decode can be called
	// concurrently with Next and after Close.
	Decode(ctx context.Context, d Dump) (record.Payload, error)
	// Close releases all resources of the decoder. Calling it more than once
	// is a no-op.
	Close(ctx context.Context) error
}

// Env contains the stream level dependencies handed to a new decoder.
type Env struct {
	Logger log.CtxLogger
	// Hints are the dump level filter parameters of the stream. Decoders
	// reading an index can use them to skip files.
	Hints filter.Hints
}

// Corrupted wraps err so it matches ErrCorrupted.
func Corrupted(err error) error {
	if err == nil || cerrors.Is(err, ErrCorrupted) {
		return err
	}
	return cerrors.Mark(err, ErrCorrupted)
}

// Unavailable wraps err so it matches ErrSourceUnavailable.
func Unavailable(err error) error {
	if err == nil || cerrors.Is(err, ErrSourceUnavailable) {
		return err
	}
	return cerrors.Mark(err, ErrSourceUnavailable)
}
