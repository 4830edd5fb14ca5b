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

// Package database is the key-value store behind dump snapshots. Backends
// live in sub-packages and share the acceptance test in this package.
package database

import (
	"context"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

// ErrKeyNotExist is returned by Get for a missing key.
var ErrKeyNotExist = cerrors.New("key does not exist")

// DB is a key-value store. Methods called with a context returned by
// NewTransaction run inside that transaction.
type DB interface {
	// NewTransaction starts a transaction, read-only unless update is set.
	NewTransaction(ctx context.Context, update bool) (Transaction, context.Context, error)
	// Close flushes pending writes and releases the store.
	Close() error

	// Set stores value under key. A nil value deletes the key.
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GetKeys lists the keys starting with prefix in no particular order.
	GetKeys(ctx context.Context, prefix string) ([]string, error)
}

// Transaction groups writes so they become visible together.
type Transaction interface {
	// Commit fails if the transaction conflicts with another commit.
	Commit() error
	// Discard drops uncommitted writes. It is safe to call after Commit and
	// more than once, so it can be deferred right away.
	Discard()
}
