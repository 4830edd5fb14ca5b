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

// Package sqlindex implements sources reading an index of dump files from an
// SQL table, stored either in SQLite or in Postgres. The table needs the
// columns url, project, collector, type, time and duration.
package sqlindex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source/dumpfile"
)

const defaultTable = "dump_files"

// Schema is the DDL of an index table, it is used by tests and documented in
// the CLI help.
const Schema = `CREATE TABLE IF NOT EXISTS %q (
	url       TEXT    NOT NULL PRIMARY KEY,
	project   TEXT    NOT NULL,
	collector TEXT    NOT NULL,
	type      TEXT    NOT NULL,
	time      BIGINT  NOT NULL,
	duration  BIGINT  NOT NULL
)`

// query builds a select statement narrowed by the hints. placeholder returns
// the bind parameter for the n-th argument (starting at 1).
func query(table string, hints filter.Hints, placeholder func(n int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		ps := make([]string, len(values))
		for i, v := range values {
			ps[i] = bind(v)
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", column, strings.Join(ps, ", ")))
	}

	in("project", hints.Projects)
	in("collector", hints.Collectors)
	kinds := make([]string, len(hints.Kinds))
	for i, k := range hints.Kinds {
		kinds[i] = k.String()
	}
	in("type", kinds)
	if start := hints.Start(); start > 0 {
		where = append(where, "time + duration >= "+bind(int64(start)))
	}
	if end := hints.End(); end > 0 {
		where = append(where, "time <= "+bind(int64(end)))
	}

	q := fmt.Sprintf("SELECT url, project, collector, type, time, duration FROM %q", table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY time, collector, url", args
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (dumpfile.File, error) {
	var (
		f       dumpfile.File
		kind    string
		ts, dur int64
	)
	if err := row.Scan(&f.URL, &f.Project, &f.Collector, &kind, &ts, &dur); err != nil {
		return dumpfile.File{}, cerrors.Errorf("could not scan index row: %w", err)
	}
	k, err := record.ParseKind(kind)
	if err != nil {
		return dumpfile.File{}, cerrors.Errorf("index row %q: %w", f.URL, err)
	}
	f.Kind = k
	f.Time = uint32(ts)
	f.Duration = uint32(dur)
	return f, nil
}
