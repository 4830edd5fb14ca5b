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

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/mrt"
)

// File describes one dump file listed in an index.
type File struct {
	URL       string
	Project   string
	Collector string
	Kind      record.Kind
	// Time is the nominal start time of the file, records in the file are
	// not older than Time.
	Time uint32
	// Duration is the time span covered by the file, 0 for RIB files.
	Duration uint32
}

// Metadata returns the dump metadata known from the index.
func (f File) Metadata() record.Metadata {
	return record.Metadata{
		Project:   f.Project,
		Collector: f.Collector,
		Timestamp: f.Time,
		Kind:      f.Kind,
		DumpTime:  f.Time,
		URL:       f.URL,
	}
}

// fileStream reads the dumps of a single file with a lookahead of one dump,
// so the last dump of the file can be tagged.
type fileStream struct {
	file     File
	sourceID string
	rc       io.ReadCloser
	r        *mrt.Reader

	head   source.Dump
	ok     bool
	seen   int
	lastTS uint32
	done   bool
}

func openFileStream(ctx context.Context, opener *Opener, sourceID string, f File) (*fileStream, error) {
	rc, err := opener.Open(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	fs := &fileStream{
		file:     f,
		sourceID: sourceID,
		rc:       rc,
		r:        mrt.NewReader(rc),
		lastTS:   f.Time,
	}
	fs.advance()
	return fs, nil
}

// Peek returns the next dump of the file without consuming it. The second
// return value is false if the file is exhausted.
func (fs *fileStream) Peek() (source.Dump, bool) {
	return fs.head, fs.ok
}

// Pop consumes the next dump.
func (fs *fileStream) Pop() source.Dump {
	d := fs.head
	fs.advance()
	if !fs.ok && d.Position != record.PositionStart {
		d.Position = record.PositionEnd
	}
	return d
}

func (fs *fileStream) advance() {
	if fs.done {
		fs.head, fs.ok = source.Dump{}, false
		return
	}
	msg, err := fs.r.Next()
	switch {
	case err == io.EOF:
		fs.done = true
		fs.head, fs.ok = source.Dump{}, false
		return
	case err != nil:
		// the rest of the file can not be read, surface it as one corrupted dump
		fs.done = true
		md := fs.file.Metadata()
		md.Timestamp = fs.lastTS
		fs.head, fs.ok = fs.dump(md, nil, source.Corrupted(cerrors.Errorf("%s: %w", fs.file.URL, err))), true
		return
	}

	md := fs.file.Metadata()
	md.Timestamp = msg.Header.Timestamp
	md.Kind = msg.Kind()
	fs.lastTS = msg.Header.Timestamp
	fs.head, fs.ok = fs.dump(md, msg, nil), true
}

func (fs *fileStream) dump(md record.Metadata, handle any, err error) source.Dump {
	md.SourceID = fs.sourceID
	md.Position = record.PositionMiddle
	if fs.seen == 0 {
		md.Position = record.PositionStart
	}
	fs.seen++
	return source.Dump{Metadata: md, Handle: handle, Err: err}
}

func (fs *fileStream) Close() error {
	return fs.rc.Close()
}

// Decode decodes a dump produced by a Set or a single file reader. It can be
// used as the Decode implementation of all sources reading MRT files.
func Decode(_ context.Context, d source.Dump) (record.Payload, error) {
	if d.Err != nil {
		return nil, source.Corrupted(d.Err)
	}
	msg, ok := d.Handle.(mrt.Message)
	if !ok {
		return nil, source.Corrupted(cerrors.Errorf("unexpected dump handle %T", d.Handle))
	}
	p, err := mrt.Decode(msg)
	if err != nil {
		return nil, source.Corrupted(err)
	}
	return p, nil
}
