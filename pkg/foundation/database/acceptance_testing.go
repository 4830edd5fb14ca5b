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

package database

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/sourcegraph/conc/pool"
)

// AcceptanceTest checks the behavior every DB implementation has to provide.
// Keys follow the layout of dump snapshots. Call it from each implementation:
//
//	func TestDB(t *testing.T) {
//	    database.AcceptanceTest(t, newDB(t))
//	}
func AcceptanceTest(t *testing.T, db DB) {
	t.Run("SetGet", func(t *testing.T) { acceptSetGet(t, db) })
	t.Run("Delete", func(t *testing.T) { acceptDelete(t, db) })
	t.Run("GetKeys", func(t *testing.T) { acceptGetKeys(t, db) })
	t.Run("Isolation", func(t *testing.T) { acceptIsolation(t, db) })
	t.Run("Discard", func(t *testing.T) { acceptDiscard(t, db) })
	t.Run("Concurrent", func(t *testing.T) { acceptConcurrent(t, db) })
}

func dumpKey(project, collector, typ string, ts, seq int) string {
	return fmt.Sprintf("dumps/%s/%s/%s/%010d/%08d", project, collector, typ, ts, seq)
}

// inTxn runs fn in a transaction that is discarded afterwards, so tests do
// not leak keys into each other.
func inTxn(t *testing.T, db DB, fn func(ctx context.Context)) {
	t.Helper()
	txn, ctx, err := db.NewTransaction(context.Background(), true)
	if err != nil {
		t.Fatalf("could not start transaction: %v", err)
	}
	defer txn.Discard()
	fn(ctx)
}

func acceptSetGet(t *testing.T, db DB) {
	is := is.New(t)
	inTxn(t, db, func(ctx context.Context) {
		key := dumpKey("ris", "rrc06", "updates", 1427846400, 0)

		is.NoErr(db.Set(ctx, key, []byte("first")))
		is.NoErr(db.Set(ctx, key, []byte("second")))

		got, err := db.Get(ctx, key)
		is.NoErr(err)
		is.Equal(string(got), "second") // last write wins
	})
}

func acceptDelete(t *testing.T, db DB) {
	is := is.New(t)
	inTxn(t, db, func(ctx context.Context) {
		key := dumpKey("ris", "rrc06", "ribs", 1427846400, 0)

		is.NoErr(db.Set(ctx, key, []byte("rib")))
		is.NoErr(db.Set(ctx, key, nil))

		got, err := db.Get(ctx, key)
		is.True(cerrors.Is(err, ErrKeyNotExist))
		is.Equal(got, nil)
	})
}

func acceptGetKeys(t *testing.T, db DB) {
	const n = 50
	is := is.New(t)
	inTxn(t, db, func(ctx context.Context) {
		var want []string
		for i := range n {
			key := dumpKey("ris", "rrc00", "updates", 1427846400+i*300, i)
			want = append(want, key)
			is.NoErr(db.Set(ctx, key, []byte{byte(i)}))
		}
		other := dumpKey("routeviews", "route-views2", "ribs", 1427846400, 0)
		is.NoErr(db.Set(ctx, other, []byte("rib")))

		for _, tt := range []struct {
			prefix string
			want   []string
		}{
			{prefix: "dumps/ris/rrc00/", want: want},
			{prefix: "", want: append(slices.Clone(want), other)},
			{prefix: "dumps/ris/rrc01/", want: nil},
		} {
			got, err := db.GetKeys(ctx, tt.prefix)
			is.NoErr(err)
			slices.Sort(got)
			slices.Sort(tt.want)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("prefix %q: keys mismatch (-want +got):\n%s", tt.prefix, diff)
			}
		}
	})
}

func acceptIsolation(t *testing.T, db DB) {
	is := is.New(t)
	ctx := context.Background()
	key := dumpKey("ris", "rrc11", "updates", 1427846700, 1)

	txn, txnCtx, err := db.NewTransaction(ctx, true)
	is.NoErr(err)
	defer txn.Discard()

	is.NoErr(db.Set(txnCtx, key, []byte("pending")))

	_, err = db.Get(ctx, key)
	is.True(cerrors.Is(err, ErrKeyNotExist)) // uncommitted write is not visible

	is.NoErr(txn.Commit())
	t.Cleanup(func() { _ = db.Set(ctx, key, nil) })

	got, err := db.Get(ctx, key)
	is.NoErr(err)
	is.Equal(string(got), "pending")
}

func acceptDiscard(t *testing.T, db DB) {
	is := is.New(t)
	ctx := context.Background()
	key := dumpKey("ris", "rrc11", "updates", 1427847000, 2)

	txn, txnCtx, err := db.NewTransaction(ctx, true)
	is.NoErr(err)
	is.NoErr(db.Set(txnCtx, key, []byte("dropped")))
	txn.Discard()

	_, err = db.Get(ctx, key)
	is.True(cerrors.Is(err, ErrKeyNotExist))
}

// acceptConcurrent has workers write their own keys, every other round in a
// transaction of which half are discarded.
func acceptConcurrent(t *testing.T, db DB) {
	const (
		workers = 20
		rounds  = 50
	)
	round := func(ctx context.Context, worker, i int) (err error) {
		if i%2 == 0 {
			var txn Transaction
			txn, ctx, err = db.NewTransaction(ctx, true)
			if err != nil {
				return err
			}
			defer func() {
				if err != nil || i%4 == 0 {
					txn.Discard()
					return
				}
				err = txn.Commit()
			}()
		}

		key := dumpKey("generator", fmt.Sprintf("worker-%d", worker), "updates", i, 0)
		want := fmt.Sprintf("%d/%d", worker, i)
		if _, err := db.Get(ctx, key); !cerrors.Is(err, ErrKeyNotExist) {
			return cerrors.Errorf("get %q before set: %w", key, err)
		}
		if err := db.Set(ctx, key, []byte(want)); err != nil {
			return err
		}
		got, err := db.Get(ctx, key)
		if err != nil {
			return err
		}
		if string(got) != want {
			return cerrors.Errorf("key %q: got %q, want %q", key, got, want)
		}
		return nil
	}

	p := pool.New().WithErrors().WithContext(context.Background())
	for w := range workers {
		p.Go(func(ctx context.Context) error {
			for i := range rounds {
				if err := round(ctx, w, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	is.New(t).NoErr(p.Wait())
}
