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
	"database/sql"
	"os"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
	_ "modernc.org/sqlite"
)

const TypeSQLite = "sqlite"

type SQLiteConfig struct {
	dumpfile.OpenerConfig `json:",squash"`

	DBFile string `json:"db-file"`
	Table  string `json:"table"`
}

func SQLiteSpec() source.Spec {
	return source.Spec{
		Type:    TypeSQLite,
		Summary: "Reads the dump files listed in an SQLite index table.",
		Parameters: dumpfile.MergeParameters(dumpfile.Parameters(), config.Parameters{
			"db-file": {
				Description: "Path of the SQLite database.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
			"table": {
				Default:     defaultTable,
				Description: "Name of the index table.",
				Type:        config.ParameterTypeString,
			},
		}),
		New: NewSQLite,
	}
}

func NewSQLite(desc source.Descriptor, cfg config.Config, env source.Env) (source.Decoder, error) {
	var c SQLiteConfig
	if err := cfg.DecodeInto(&c); err != nil {
		return nil, err
	}
	return dumpfile.NewDecoder(desc, env, c.OpenerConfig, &sqliteIndex{cfg: c}, false), nil
}

type sqliteIndex struct {
	cfg SQLiteConfig
	db  *sql.DB
}

func (i *sqliteIndex) List(ctx context.Context, hints filter.Hints) ([]dumpfile.File, error) {
	// sqlite would create a missing file
	if _, err := os.Stat(i.cfg.DBFile); err != nil {
		return nil, cerrors.Errorf("could not open index: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+i.cfg.DBFile+"?mode=ro")
	if err != nil {
		return nil, cerrors.Errorf("could not open index: %w", err)
	}
	i.db = db

	q, args := query(i.cfg.Table, hints, questionMark)
	rows, err := db.QueryContext(ctx, q, args...)
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

func (i *sqliteIndex) Close() error {
	if i.db == nil {
		return nil
	}
	return i.db.Close()
}
