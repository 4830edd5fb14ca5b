// Copyright © 2024 Meroxa, Inc.
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

package sqlite

import (
	"context"
	"sort"
	"testing"

	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/database"
	"github.com/routestream/routestream/pkg/foundation/log"
)

func TestDB(t *testing.T) {
	t.Skip("the concurrent writers of the acceptance test are flaky on sqlite")
	is := is.New(t)

	db, err := New(
		context.Background(),
		log.Nop(),
		t.TempDir(),
		"routestream_kv_test",
	)
	is.NoErr(err)
	database.AcceptanceTest(t, db)
}

func TestDB_SetGetKeys(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	db, err := New(ctx, log.Nop(), t.TempDir(), "snapshot")
	is.NoErr(err)
	t.Cleanup(func() { is.NoErr(db.Close()) })

	keys := []string{
		"dumps/ris/rrc06/updates/1427846400/00000000",
		"dumps/ris/rrc06/updates/1427846400/00000001",
		"dumps/ris/rrc00/ribs/1427846400/00000000",
	}
	for i, k := range keys {
		is.NoErr(db.Set(ctx, k, []byte{byte(i)}))
	}

	got, err := db.GetKeys(ctx, "dumps/ris/rrc06/")
	is.NoErr(err)
	sort.Strings(got)
	is.Equal(got, keys[:2])

	v, err := db.Get(ctx, keys[1])
	is.NoErr(err)
	is.Equal(v, []byte{1})

	is.NoErr(db.Set(ctx, keys[1], nil))
	_, err = db.Get(ctx, keys[1])
	is.True(cerrors.Is(err, database.ErrKeyNotExist))
}
