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

// Package snapshot implements a source replaying dumps persisted in a
// key-value store. Snapshots are written with Store, usually by running a
// stream with the snapshot command.
package snapshot

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/database"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/dumpfile"
	"github.com/routestream/routestream/pkg/source/mrt"
)

const Type = "snapshot"

type Config struct {
	DBConfig `json:",squash"`

	Prefix string `json:"prefix"`
}

func Spec() source.Spec {
	return source.Spec{
		Type:    Type,
		Summary: "Replays dumps persisted in a snapshot store.",
		Parameters: config.Parameters{
			"db": {
				Default:     DBTypeBadger,
				Description: "Type of the snapshot store.",
				Type:        config.ParameterTypeString,
				Validations: []config.Validation{config.ValidationInclusion{List: []string{DBTypeBadger, DBTypeSQLite, DBTypePostgres}}},
			},
			"path": {
				Description: "Directory of a badger or sqlite store.",
				Type:        config.ParameterTypeString,
			},
			"dsn": {
				Description: "Connection string of a postgres store.",
				Type:        config.ParameterTypeString,
			},
			"table": {
				Default:     DefaultTable,
				Description: "Table of a sqlite or postgres store.",
				Type:        config.ParameterTypeString,
			},
			"prefix": {
				Default:     DefaultPrefix,
				Description: "Key prefix of the snapshot.",
				Type:        config.ParameterTypeString,
			},
		},
		New: New,
	}
}

func New(desc source.Descriptor, cfg config.Config, env source.Env) (source.Decoder, error) {
	var c Config
	if err := cfg.DecodeInto(&c); err != nil {
		return nil, err
	}
	if err := c.DBConfig.Validate(); err != nil {
		return nil, err
	}
	logger := env.Logger.WithComponentFromType(Decoder{})
	return NewDecoder(desc, env, c.Prefix, func(ctx context.Context) (database.DB, error) {
		return OpenDB(ctx, logger, c.DBConfig)
	}), nil
}

// Decoder implements source.Decoder for a snapshot.
type Decoder struct {
	logger   log.CtxLogger
	sourceID string
	prefix   string
	hints    filter.Hints
	openDB   func(context.Context) (database.DB, error)

	db        database.DB
	store     *Store
	keys      []Key
	pos       int
	closeOnce sync.Once
}

var _ source.Decoder = (*Decoder)(nil)

// NewDecoder creates a decoder reading the snapshot stored under prefix in the
// database returned by openDB.
func NewDecoder(desc source.Descriptor, env source.Env, prefix string, openDB func(context.Context) (database.DB, error)) *Decoder {
	return &Decoder{
		logger:   env.Logger.WithComponentFromType(Decoder{}),
		sourceID: desc.ID,
		prefix:   prefix,
		hints:    env.Hints,
		openDB:   openDB,
	}
}

func (d *Decoder) Open(ctx context.Context) error {
	db, err := d.openDB(ctx)
	if err != nil {
		return source.Unavailable(err)
	}
	d.db = db
	d.store = NewStore(db, d.prefix)
	keys, err := d.store.Keys(ctx, d.hints)
	if err != nil {
		return source.Unavailable(err)
	}
	d.keys = keys
	d.logger.Debug(ctx).Int("dumps", len(keys)).Msg("opened snapshot")
	return nil
}

func (d *Decoder) Next(ctx context.Context) (source.Dump, error) {
	if d.store == nil {
		return source.Dump{}, cerrors.New("decoder is not open")
	}
	if d.pos >= len(d.keys) {
		return source.Dump{}, source.ErrEndOfDumps
	}
	k := d.keys[d.pos]
	d.pos++

	md := record.Metadata{
		Project:   k.Project,
		Collector: k.Collector,
		Timestamp: k.Timestamp,
		Kind:      k.Kind,
		DumpTime:  k.Timestamp,
		Position:  record.PositionMiddle,
		SourceID:  d.sourceID,
		URL:       k.String(d.prefix),
	}
	switch d.pos {
	case 1:
		md.Position = record.PositionStart
	case len(d.keys):
		md.Position = record.PositionEnd
	}

	raw, err := d.store.Get(ctx, k)
	if err != nil {
		if cerrors.Is(err, database.ErrKeyNotExist) {
			return source.Dump{Metadata: md, Err: source.Corrupted(err)}, nil
		}
		return source.Dump{}, err
	}
	msg, err := readOne(raw)
	if err != nil {
		return source.Dump{Metadata: md, Err: source.Corrupted(err)}, nil
	}
	return source.Dump{Metadata: md, Handle: msg}, nil
}

// readOne frames the last record of a stored dump, the records before it
// only carry reader state.
func readOne(raw []byte) (mrt.Message, error) {
	r := mrt.NewReader(bytes.NewReader(raw))
	var (
		msg   mrt.Message
		found bool
	)
	for {
		m, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return mrt.Message{}, err
		}
		msg, found = m, true
	}
	if !found {
		return mrt.Message{}, cerrors.New("stored dump contains no supported record")
	}
	return msg, nil
}

func (d *Decoder) Decode(ctx context.Context, dump source.Dump) (record.Payload, error) {
	return dumpfile.Decode(ctx, dump)
}

func (d *Decoder) Close(context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		if d.db != nil {
			err = d.db.Close()
		}
	})
	return err
}
