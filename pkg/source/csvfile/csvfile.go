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

// Package csvfile implements a source reading an index of dump files from a
// CSV file with the columns url, project, type, collector, time and duration.
package csvfile

import (
	"context"
	"encoding/csv"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
)

const Type = "csvfile"

type Config struct {
	dumpfile.OpenerConfig `json:",squash"`

	CSVFile string `json:"csv-file"`
}

func Spec() source.Spec {
	return source.Spec{
		Type:    Type,
		Summary: "Reads the dump files listed in a CSV index.",
		Parameters: dumpfile.MergeParameters(dumpfile.Parameters(), config.Parameters{
			"csv-file": {
				Description: "Path or URL of the CSV index.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationRequired{}},
			},
		}),
		New: New,
	}
}

func New(desc source.Descriptor, cfg config.Config, env source.Env) (source.Decoder, error) {
	var c Config
	if err := cfg.DecodeInto(&c); err != nil {
		return nil, err
	}
	idx := &Index{
		URL:    c.CSVFile,
		opener: dumpfile.NewOpener(env.Logger, c.OpenerConfig),
	}
	return dumpfile.NewDecoder(desc, env, c.OpenerConfig, idx, false), nil
}

// Index reads a CSV index. Lines starting with # are comments, a first line
// starting with "url" is treated as a header. Relative file paths are
// resolved against the location of the index.
type Index struct {
	URL    string
	opener *dumpfile.Opener
}

func (i *Index) List(ctx context.Context, _ filter.Hints) ([]dumpfile.File, error) {
	rc, err := i.opener.Open(ctx, i.URL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Parse(rc, i.URL)
}

// Parse parses a CSV index. base is the location of the index and used to
// resolve relative file paths.
func Parse(r io.Reader, base string) ([]dumpfile.File, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var files []dumpfile.File
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, cerrors.Errorf("could not read CSV index: %w", err)
		}
		if line == 1 && strings.EqualFold(row[0], "url") {
			continue
		}
		f, err := parseRow(row, base)
		if err != nil {
			return nil, cerrors.Errorf("CSV index line %d: %w", line, err)
		}
		files = append(files, f)
	}
}

func parseRow(row []string, base string) (dumpfile.File, error) {
	if len(row) < 6 {
		return dumpfile.File{}, cerrors.Errorf("expected at least 6 columns, got %d", len(row))
	}
	kind, err := record.ParseKind(row[2])
	if err != nil {
		return dumpfile.File{}, err
	}
	ts, err := strconv.ParseUint(row[4], 10, 32)
	if err != nil {
		return dumpfile.File{}, cerrors.Errorf("invalid time %q: %w", row[4], err)
	}
	dur, err := strconv.ParseUint(row[5], 10, 32)
	if err != nil {
		return dumpfile.File{}, cerrors.Errorf("invalid duration %q: %w", row[5], err)
	}
	return dumpfile.File{
		URL:       resolve(base, row[0]),
		Project:   row[1],
		Kind:      kind,
		Collector: row[3],
		Time:      uint32(ts),
		Duration:  uint32(dur),
	}, nil
}

func resolve(base, p string) string {
	if strings.Contains(p, "://") || filepath.IsAbs(p) {
		return p
	}
	if strings.Contains(base, "://") {
		i := strings.LastIndex(base, "/")
		return base[:i+1] + path.Clean(p)
	}
	return filepath.Join(filepath.Dir(base), p)
}
