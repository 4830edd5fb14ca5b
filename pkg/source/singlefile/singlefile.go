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

// Package singlefile implements a source reading one RIB file and/or one
// updates file.
package singlefile

import (
	"context"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
)

const Type = "singlefile"

type Config struct {
	dumpfile.OpenerConfig `json:",squash"`

	RIBFile   string `json:"rib-file"`
	UpdFile   string `json:"upd-file"`
	Project   string `json:"project"`
	Collector string `json:"collector"`
}

func Spec() source.Spec {
	return source.Spec{
		Type:    Type,
		Summary: "Reads a single RIB dump file and/or a single updates dump file.",
		Parameters: dumpfile.MergeParameters(dumpfile.Parameters(), config.Parameters{
			"rib-file": {
				Description: "Path or URL of an MRT RIB dump.",
				Type:        config.ParameterTypeString,
			},
			"upd-file": {
				Description: "Path or URL of an MRT updates dump.",
				Type:        config.ParameterTypeString,
			},
			"project": {
				Default:     Type,
				Description: "Project name assigned to the dumps.",
				Type:        config.ParameterTypeString,
			},
			"collector": {
				Default:     Type,
				Description: "Collector name assigned to the dumps.",
				Type:        config.ParameterTypeString,
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
	if c.RIBFile == "" && c.UpdFile == "" {
		return nil, cerrors.Errorf("%w: at least one of rib-file and upd-file is required", source.ErrConfiguration)
	}
	idx := &index{cfg: c, opener: dumpfile.NewOpener(env.Logger, c.OpenerConfig)}
	return dumpfile.NewDecoder(desc, env, c.OpenerConfig, idx, false), nil
}

// index lists the configured files. Both files are opened from the start,
// the RIB is listed first so it wins ties with updates of the same second.
type index struct {
	cfg    Config
	opener *dumpfile.Opener
}

func (i *index) List(ctx context.Context, _ filter.Hints) ([]dumpfile.File, error) {
	var files []dumpfile.File
	add := func(url string, kind record.Kind) error {
		if url == "" {
			return nil
		}
		rc, err := i.opener.Open(ctx, url)
		if err != nil {
			return err
		}
		_ = rc.Close()
		files = append(files, dumpfile.File{
			URL:       url,
			Project:   i.cfg.Project,
			Collector: i.cfg.Collector,
			Kind:      kind,
		})
		return nil
	}
	if err := add(i.cfg.RIBFile, record.KindRIB); err != nil {
		return nil, err
	}
	if err := add(i.cfg.UpdFile, record.KindUpdate); err != nil {
		return nil, err
	}
	return files, nil
}
