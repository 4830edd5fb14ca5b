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
	"context"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/database"
	"github.com/routestream/routestream/pkg/foundation/database/badger"
	"github.com/routestream/routestream/pkg/foundation/database/inmemory"
	"github.com/routestream/routestream/pkg/foundation/database/postgres"
	"github.com/routestream/routestream/pkg/foundation/database/sqlite"
	"github.com/routestream/routestream/pkg/foundation/log"
)

const (
	DBTypeBadger   = "badger"
	DBTypePostgres = "postgres"
	DBTypeSQLite   = "sqlite"
	DBTypeInMemory = "inmemory"

	DefaultTable = "routestream_snapshot"
)

// DBConfig selects the key-value store holding a snapshot.
type DBConfig struct {
	Type string `json:"db"`
	// Path is the directory of a badger or sqlite store.
	Path  string `json:"path"`
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

func (c DBConfig) Validate() error {
	switch c.Type {
	case DBTypeBadger, DBTypeSQLite:
		if c.Path == "" {
			return cerrors.Errorf("%s snapshot requires a path", c.Type)
		}
	case DBTypePostgres:
		if c.DSN == "" {
			return cerrors.New("postgres snapshot requires a dsn")
		}
	case DBTypeInMemory:
	default:
		return cerrors.Errorf("invalid snapshot db type %q", c.Type)
	}
	return nil
}

// OpenDB opens the store described by cfg.
func OpenDB(ctx context.Context, logger log.CtxLogger, cfg DBConfig) (database.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	var (
		db  database.DB
		err error
	)
	switch cfg.Type {
	case DBTypeBadger:
		db, err = badger.New(logger, cfg.Path)
	case DBTypePostgres:
		db, err = postgres.New(ctx, logger, cfg.DSN, table)
	case DBTypeSQLite:
		db, err = sqlite.New(ctx, logger, cfg.Path, table)
	case DBTypeInMemory:
		db = &inmemory.DB{}
		logger.Warn(ctx).Msg("using in-memory snapshot store, the snapshot is lost when the process stops")
	}
	if err != nil {
		return nil, cerrors.Errorf("failed to open snapshot store: %w", err)
	}
	return db, nil
}
