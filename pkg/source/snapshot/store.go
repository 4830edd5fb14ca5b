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

package snapshot

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/database"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source/mrt"
)

const DefaultPrefix = "dumps"

// Key identifies a dump stored in a snapshot. Its string form is
// <prefix>/<project>/<collector>/<kind>/<timestamp>/<seq>.
type Key struct {
	Project   string
	Collector string
	Kind      record.Kind
	Timestamp uint32
	// Seq orders dumps with the same timestamp and collector.
	Seq uint64
}

func (k Key) String(prefix string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%010d/%08d",
		prefix, url.PathEscape(k.Project), url.PathEscape(k.Collector), k.Kind, k.Timestamp, k.Seq)
}

func (k Key) compare(o Key) int {
	switch {
	case k.Timestamp != o.Timestamp:
		return cmp.Compare(k.Timestamp, o.Timestamp)
	case k.Collector != o.Collector:
		return strings.Compare(k.Collector, o.Collector)
	default:
		return cmp.Compare(k.Seq, o.Seq)
	}
}

// ParseKey parses the string form of a key stored under prefix.
func ParseKey(prefix, s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, prefix+"/")
	if !ok {
		return Key{}, cerrors.Errorf("key %q is not under prefix %q", s, prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 5 {
		return Key{}, cerrors.Errorf("malformed snapshot key %q", s)
	}
	var (
		k   Key
		err error
	)
	if k.Project, err = url.PathUnescape(parts[0]); err != nil {
		return Key{}, cerrors.Errorf("malformed snapshot key %q: %w", s, err)
	}
	if k.Collector, err = url.PathUnescape(parts[1]); err != nil {
		return Key{}, cerrors.Errorf("malformed snapshot key %q: %w", s, err)
	}
	if k.Kind, err = record.ParseKind(parts[2]); err != nil {
		return Key{}, cerrors.Errorf("malformed snapshot key %q: %w", s, err)
	}
	ts, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return Key{}, cerrors.Errorf("malformed snapshot key %q: %w", s, err)
	}
	k.Timestamp = uint32(ts)
	if k.Seq, err = strconv.ParseUint(parts[4], 10, 64); err != nil {
		return Key{}, cerrors.Errorf("malformed snapshot key %q: %w", s, err)
	}
	return k, nil
}

// Store reads and writes dumps in a snapshot.
type Store struct {
	db     database.DB
	prefix string

	m       sync.Mutex
	nextSeq uint64
	seqInit bool
}

func NewStore(db database.DB, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{db: db, prefix: prefix}
}

// Put stores the raw bytes of the dump with metadata md and returns its key.
// RIB records are stored together with their peer index table.
func (s *Store) Put(ctx context.Context, md record.Metadata, p record.Payload) (Key, error) {
	var buf bytes.Buffer
	w := mrt.NewWriter(&buf)
	if mp, ok := p.(interface{ Message() mrt.Message }); ok {
		if err := w.WriteMessage(mp.Message()); err != nil {
			return Key{}, err
		}
	} else if err := w.WriteRaw(p.Raw()); err != nil {
		return Key{}, err
	}

	seq, err := s.seq(ctx)
	if err != nil {
		return Key{}, err
	}
	k := Key{
		Project:   md.Project,
		Collector: md.Collector,
		Kind:      md.Kind,
		Timestamp: md.Timestamp,
		Seq:       seq,
	}
	if err := s.db.Set(ctx, k.String(s.prefix), buf.Bytes()); err != nil {
		return Key{}, cerrors.Errorf("could not store dump: %w", err)
	}
	return k, nil
}

// seq returns the next sequence number, continuing after the keys already in
// the store.
func (s *Store) seq(ctx context.Context) (uint64, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if !s.seqInit {
		keys, err := s.Keys(ctx, filter.Hints{})
		if err != nil {
			return 0, err
		}
		for _, k := range keys {
			s.nextSeq = max(s.nextSeq, k.Seq+1)
		}
		s.seqInit = true
	}
	seq := s.nextSeq
	s.nextSeq++
	return seq, nil
}

// Keys returns the keys of all dumps admitted by hints ordered by timestamp,
// collector and sequence number.
func (s *Store) Keys(ctx context.Context, hints filter.Hints) ([]Key, error) {
	raw, err := s.db.GetKeys(ctx, s.prefix+"/")
	if err != nil {
		return nil, cerrors.Errorf("could not list snapshot: %w", err)
	}
	keys := make([]Key, 0, len(raw))
	for _, r := range raw {
		k, err := ParseKey(s.prefix, r)
		if err != nil {
			return nil, err
		}
		if hints.AdmitFile(k.Project, k.Collector, k.Kind, k.Timestamp, 0) {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, Key.compare)
	return keys, nil
}

// Get returns the raw MRT bytes stored under k.
func (s *Store) Get(ctx context.Context, k Key) ([]byte, error) {
	return s.db.Get(ctx, k.String(s.prefix))
}

// Batch writes dumps to a store in a single transaction. It must be either
// committed or discarded.
type Batch struct {
	s   *Store
	txn database.Transaction
	ctx context.Context
	n   int
}

// NewBatch starts a write transaction. The transaction is bound to ctx.
func (s *Store) NewBatch(ctx context.Context) (*Batch, error) {
	txn, tctx, err := s.db.NewTransaction(ctx, true)
	if err != nil {
		return nil, cerrors.Errorf("could not start snapshot batch: %w", err)
	}
	return &Batch{s: s, txn: txn, ctx: tctx}, nil
}

// Put adds a dump to the batch, see Store.Put.
func (b *Batch) Put(md record.Metadata, p record.Payload) (Key, error) {
	k, err := b.s.Put(b.ctx, md, p)
	if err != nil {
		return Key{}, err
	}
	b.n++
	return k, nil
}

// Len returns the number of dumps in the batch.
func (b *Batch) Len() int { return b.n }

func (b *Batch) Commit() error {
	if err := b.txn.Commit(); err != nil {
		return cerrors.Errorf("could not commit snapshot batch: %w", err)
	}
	return nil
}

// Discard drops the batch. It is safe to call after Commit.
func (b *Batch) Discard() {
	b.txn.Discard()
}
