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

// Package badger stores snapshots in an embedded badger key-value store.
package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/ctxutil"
	"github.com/routestream/routestream/pkg/foundation/database"
	"github.com/routestream/routestream/pkg/foundation/log"
)

// DB implements database.DB on top of badger. It is the default backend for
// persisted snapshots.
type DB struct {
	db *badger.DB
}

var _ database.DB = (*DB)(nil)

// New opens or creates a badger store in the directory path.
func New(logger log.CtxLogger, path string) (*DB, error) {
	opt := badger.DefaultOptions(path).
		WithLogger(newLogger(logger.WithComponent("badger.DB")))

	db, err := badger.Open(opt)
	if err != nil {
		return nil, cerrors.Errorf("badger: could not open db: %w", err)
	}
	return &DB{db: db}, nil
}

// NewTransaction starts a new transaction and returns a context that contains
// it. Operations called with that context are executed in the transaction.
func (d *DB) NewTransaction(ctx context.Context, update bool) (database.Transaction, context.Context, error) {
	txn := d.db.NewTransaction(update)
	return txn, ctxutil.ContextWithTransaction(ctx, txn), nil
}

// Close flushes pending writes and closes the db.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := d.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if cerrors.Is(err, badger.ErrKeyNotFound) {
			return database.ErrKeyNotExist
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, cerrors.Errorf("badger: could not get key %q: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. A nil value deletes the key, an empty value
// has to be stored as an empty slice.
func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	err := d.update(ctx, func(txn *badger.Txn) error {
		if value == nil {
			return txn.Delete([]byte(key))
		}
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return cerrors.Errorf("badger: could not set key %q: %w", key, err)
	}
	return nil
}

func (d *DB) GetKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := d.view(ctx, func(txn *badger.Txn) error {
		opt := badger.DefaultIteratorOptions
		opt.Prefix = []byte(prefix)
		opt.PrefetchValues = false
		it := txn.NewIterator(opt)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()))
		}
		return nil
	})
	if err != nil {
		return nil, cerrors.Errorf("badger: could not list keys with prefix %q: %w", prefix, err)
	}
	return keys, nil
}

// view runs fn in the transaction of ctx or in a new read-only transaction.
func (d *DB) view(ctx context.Context, fn func(*badger.Txn) error) error {
	if txn, ok := ctxutil.TransactionAs[*badger.Txn](ctx); ok {
		return fn(txn)
	}
	return d.db.View(fn)
}

// update runs fn in the transaction of ctx or in a new transaction that is
// committed if fn succeeds.
func (d *DB) update(ctx context.Context, fn func(*badger.Txn) error) error {
	if txn, ok := ctxutil.TransactionAs[*badger.Txn](ctx); ok {
		return fn(txn)
	}
	return d.db.Update(fn)
}
