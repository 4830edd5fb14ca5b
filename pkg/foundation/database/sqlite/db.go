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

// Package sqlite stores snapshots in a single key-value table of an SQLite
// file, which makes them easy to share.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/ctxutil"
	"github.com/routestream/routestream/pkg/foundation/database"
	"github.com/routestream/routestream/pkg/foundation/log"
	_ "modernc.org/sqlite"
)

// FileName is the name of the database file created in the snapshot
// directory.
const FileName = "routestream.db"

type DB struct {
	db     *sql.DB
	logger log.CtxLogger
	table  string
}

var _ database.DB = (*DB)(nil)

// New opens the database in directory dir and creates table if needed.
func New(ctx context.Context, logger log.CtxLogger, dir, table string) (*DB, error) {
	dsn, err := dataSourceName(dir)
	if err != nil {
		return nil, cerrors.Errorf("sqlite: could not prepare %q: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cerrors.Errorf("sqlite: could not open database: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			key TEXT NOT NULL PRIMARY KEY CHECK(key != ''),
			value BLOB
		)`, table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return nil, cerrors.Errorf("sqlite: could not create table %q: %w", table, err)
	}

	return &DB{
		db:     db,
		logger: logger.WithComponent("sqlite.DB"),
		table:  table,
	}, nil
}

// Transaction is an SQLite transaction. It is rolled back when the context
// it was started with is canceled.
type Transaction struct {
	ctx    context.Context
	tx     *sql.Tx
	logger log.CtxLogger
}

var _ database.Transaction = (*Transaction)(nil)

func (t *Transaction) Commit() error {
	return t.tx.Commit()
}

func (t *Transaction) Discard() {
	if err := t.tx.Rollback(); err != nil && !cerrors.Is(err, sql.ErrTxDone) {
		t.logger.Err(t.ctx, err).Msg("could not discard transaction")
	}
}

// NewTransaction starts a transaction, read-only unless update is set. The
// returned context carries the transaction into the other methods of DB.
func (d *DB) NewTransaction(ctx context.Context, update bool) (database.Transaction, context.Context, error) {
	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: !update})
	if err != nil {
		return nil, nil, cerrors.Errorf("sqlite: could not start transaction: %w", err)
	}
	txn := &Transaction{ctx: ctx, tx: tx, logger: d.logger}
	return txn, ctxutil.ContextWithTransaction(ctx, txn), nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Set stores v under key, a nil value deletes the key.
func (d *DB) Set(ctx context.Context, key string, v []byte) error {
	if v == nil {
		query := fmt.Sprintf("DELETE FROM %q WHERE key = $1", d.table)
		if _, err := d.querier(ctx).ExecContext(ctx, query, key); err != nil {
			return cerrors.Errorf("sqlite: could not delete %q: %w", key, err)
		}
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %q (key, value) VALUES ($1, $2)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, d.table)
	if _, err := d.querier(ctx).ExecContext(ctx, query, key, v); err != nil {
		return cerrors.Errorf("sqlite: could not set %q: %w", key, err)
	}
	return nil
}

func (d *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	query := fmt.Sprintf("SELECT value FROM %q WHERE key = $1", d.table)
	err := d.querier(ctx).QueryRowContext(ctx, query, key).Scan(&v)
	if cerrors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrKeyNotExist
	}
	if err != nil {
		return nil, cerrors.Errorf("sqlite: could not get %q: %w", key, err)
	}
	return v, nil
}

func (d *DB) GetKeys(ctx context.Context, prefix string) ([]string, error) {
	query := fmt.Sprintf("SELECT key FROM %q WHERE substr(key, 1, length($1)) = $1", d.table)
	rows, err := d.querier(ctx).QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, cerrors.Errorf("sqlite: could not list keys with prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, cerrors.Errorf("sqlite: could not scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Errorf("sqlite: could not list keys with prefix %q: %w", prefix, err)
	}
	return keys, nil
}

type querier interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// querier returns the transaction of ctx if there is one.
func (d *DB) querier(ctx context.Context) querier {
	if txn, ok := ctxutil.TransactionAs[*Transaction](ctx); ok {
		return txn.tx
	}
	return d.db
}

// dataSourceName builds the modernc connection string for the database file
// in dir, creating dir if needed.
func dataSourceName(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return "", err
	}

	v := url.Values{}
	v.Add("_pragma", "journal_mode(WAL)")
	v.Add("_pragma", "synchronous(NORMAL)")
	v.Add("_pragma", "busy_timeout(5000)")
	// writers queue on the busy timeout at BEGIN instead of failing when a
	// read lock can not be upgraded
	v.Set("_txlock", "immediate")
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.Join(abs, FileName),
		RawQuery: v.Encode(),
	}
	return u.String(), nil
}
