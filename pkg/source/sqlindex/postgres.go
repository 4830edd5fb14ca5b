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

package sqlindex

import (
	"context"

	"github.com/conduitio/conduit-commons/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/database/postgres"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
)

const TypePostgres = "postgres"

type PostgresConfig struct {
	dumpfile.OpenerConfig `json:",squash"`

	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

func PostgresSpec() source.Spec {
	return source.Spec{
		Type:    TypePostgres,
		Summary: "Reads the dump files listed in a Postgres index table.",
		Parameters: dumpfile.MergeParameters(dumpfile.Parameters(), config.Parameters{
			"dsn": {
				Description: "Postgres connection string.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
			"table": {
				Default:     defaultTable,
				Description: "Name of the index table.",
				Type:        config.ParameterTypeString,
			},
		}),
		New: NewPostgres,
	}
}

func NewPostgres(desc source.Descriptor, cfg config.Config, env source.Env) (source.Decoder, error) {
	var c PostgresConfig
	if err := cfg.DecodeInto(&c); err != nil {
		return nil, err
	}
	idx := &postgresIndex{cfg: c, logger: env.Logger}
	return dumpfile.NewDecoder(desc, env, c.OpenerConfig, idx, false), nil
}

type postgresIndex struct {
	cfg    PostgresConfig
	logger log.CtxLogger
	pool   *pgxpool.Pool
}

func (i *postgresIndex) List(ctx context.Context, hints filter.Hints) ([]dumpfile.File, error) {
	pool, err := postgres.NewPool(ctx, i.logger.WithComponent("sqlindex.postgres"), i.cfg.DSN)
	if err != nil {
		return nil, err
	}
	i.pool = pool

	q, args := query(i.cfg.Table, hints, dollar)
	rows, err := pool.Query(ctx, q, args...)
	if err != nil {
		return nil, cerrors.Errorf("could not query index: %w", err)
	}
	defer rows.Close()

	var files []dumpfile.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Errorf("could not read index: %w", err)
	}
	return files, nil
}

func (i *postgresIndex) Close() error {
	if i.pool != nil {
		i.pool.Close()
	}
	return nil
}
