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

// Package inmemory keeps snapshots in a map. They only live as long as the
// process, which is enough for tests and one-shot runs.
package inmemory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/ctxutil"
	"github.com/routestream/routestream/pkg/foundation/database"
)

// DB is safe for concurrent use. The zero value is ready to use.
type DB struct {
	m      sync.Mutex
	values map[string][]byte
	// version is bumped by every write and lets transactions detect
	// conflicting commits.
	version map[string]uint64
}

var _ database.DB = (*DB)(nil)

// Txn works on a copy of the values taken when it started. Commit fails if
// any key it wrote was changed by someone else in the meantime.
type Txn struct {
	db      *DB
	view    map[string][]byte
	seen    map[string]uint64
	changes map[string][]byte
}

func (t *Txn) Commit() error {
	t.db.m.Lock()
	defer t.db.m.Unlock()

	for k := range t.changes {
		if t.db.version[k] != t.seen[k] {
			return cerrors.Errorf("inmemory: conflict on key %q", k)
		}
	}
	for k, v := range t.changes {
		t.db.write(k, v)
	}
	t.changes = nil
	return nil
}

// Discard drops uncommitted changes.
func (t *Txn) Discard() {
	t.changes = nil
}

func (t *Txn) get(key string) ([]byte, bool) {
	if v, ok := t.changes[key]; ok {
		return v, v != nil
	}
	v, ok := t.view[key]
	return v, ok
}

func (d *DB) NewTransaction(ctx context.Context, _ bool) (database.Transaction, context.Context, error) {
	d.m.Lock()
	defer d.m.Unlock()

	t := &Txn{
		db:      d,
		view:    maps.Clone(d.values),
		seen:    maps.Clone(d.version),
		changes: make(map[string][]byte),
	}
	return t, ctxutil.ContextWithTransaction(ctx, t), nil
}

// Set stores value under key, a nil value deletes the key.
func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	if t, ok := ctxutil.TransactionAs[*Txn](ctx); ok {
		t.changes[key] = value
		return nil
	}

	d.m.Lock()
	defer d.m.Unlock()
	d.write(key, value)
	return nil
}

func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		v  []byte
		ok bool
	)
	if t, inTxn := ctxutil.TransactionAs[*Txn](ctx); inTxn {
		v, ok = t.get(key)
	} else {
		d.m.Lock()
		v, ok = d.values[key]
		d.m.Unlock()
	}
	if !ok {
		return nil, database.ErrKeyNotExist
	}
	return v, nil
}

func (d *DB) GetKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	match := func(k string) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	t, inTxn := ctxutil.TransactionAs[*Txn](ctx)
	if !inTxn {
		d.m.Lock()
		defer d.m.Unlock()
		for k := range d.values {
			match(k)
		}
		return keys, nil
	}

	for k := range t.view {
		if _, changed := t.changes[k]; !changed {
			match(k)
		}
	}
	for k, v := range t.changes {
		if v != nil {
			match(k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close is a noop.
func (d *DB) Close() error {
	return nil
}

// write applies a change, d.m must be held.
func (d *DB) write(key string, value []byte) {
	if d.values == nil {
		d.values = make(map[string][]byte)
		d.version = make(map[string]uint64)
	}
	d.version[key]++
	if value == nil {
		delete(d.values, key)
		return
	}
	d.values[key] = value
}
