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
	"fmt"
	"io"
	"os"

	"github.com/conduitio/ecdysis"
	"github.com/routestream/routestream/cmd/routestream/cecdysis"
	"github.com/routestream/routestream/cmd/routestream/global"
	"github.com/routestream/routestream/cmd/routestream/root/stream"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/record"
	"github.com/routestream/routestream/pkg/routestream"
	"github.com/routestream/routestream/pkg/source/snapshot"
)

var (
	_ ecdysis.CommandWithFlags               = (*SnapshotCommand)(nil)
	_ ecdysis.CommandWithArgs                = (*SnapshotCommand)(nil)
	_ ecdysis.CommandWithDocs                = (*SnapshotCommand)(nil)
	_ cecdysis.CommandWithExecuteWithRuntime = (*SnapshotCommand)(nil)
)

type SnapshotFlags struct {
	DBType  string `long:"db" usage:"snapshot store type; accepts badger, sqlite, postgres, or inmemory for a dry run"`
	DBPath  string `long:"db.path" usage:"directory of a badger or sqlite snapshot store"`
	DBDSN   string `long:"db.dsn" usage:"postgres connection string"`
	DBTable string `long:"db.table" usage:"postgres or sqlite table of the snapshot store"`
	Prefix  string `long:"prefix" usage:"key prefix of the stored dumps"`
	Batch   int    `long:"db.batch" usage:"number of dumps written in one transaction"`

	Path      string `long:"stream.path" usage:"path to a YAML stream definition"`
	Filter    string `long:"filter" short:"f" usage:"filter expression, e.g. 'collector rrc06 and type updates'"`
	Intervals string `long:"interval" short:"i" usage:"time intervals in the form from,until separated by ';'"`
	Prefetch  int    `long:"stream.prefetch" usage:"number of dumps prefetched per source"`
}

// SnapshotCommand runs a stream and stores the raw dump of every valid record
// in a snapshot store. The snapshot can be replayed with the snapshot source.
type SnapshotCommand struct {
	RootFlags *global.Flags

	flags   SnapshotFlags
	sources []string
	out     io.Writer
}

func (c *SnapshotCommand) Usage() string { return "snapshot [SOURCE...]" }

func (c *SnapshotCommand) Flags() []ecdysis.Flag {
	flags := ecdysis.BuildFlags(&c.flags)
	flags.SetDefault("db", snapshot.DBTypeBadger)
	flags.SetDefault("db.path", "routestream.snapshot")
	flags.SetDefault("db.table", snapshot.DefaultTable)
	flags.SetDefault("prefix", snapshot.DefaultPrefix)
	flags.SetDefault("db.batch", defaultBatchSize)
	flags.SetDefault("stream.prefetch", routestream.DefaultConfig().Stream.Prefetch)
	return flags
}

func (c *SnapshotCommand) Args(args []string) error {
	c.sources = args
	return nil
}

func (c *SnapshotCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Store the dumps of a stream in a snapshot",
		Long: `Runs a stream like the stream command and stores the raw dump of every valid
record in a key-value store. Records that are corrupted, empty or filtered are
skipped. The snapshot is read back with the snapshot source type.`,
		Example: "routestream snapshot singlefile:upd-file=./updates.gz --db sqlite --db.path ./snap\n" +
			"routestream stream snapshot:db=sqlite,path=./snap",
	}
}

func (c *SnapshotCommand) RuntimeConfig() routestream.Config {
	cfg := routestream.DefaultConfig()
	c.RootFlags.Apply(&cfg)
	cfg.Stream.Path = c.flags.Path
	cfg.Stream.Filter = c.flags.Filter
	cfg.Stream.Intervals = stream.SplitIntervals(c.flags.Intervals)
	if c.flags.Prefetch > 0 {
		cfg.Stream.Prefetch = c.flags.Prefetch
	}
	cfg.Stream.Sources = c.sources
	cfg.Stream.Records = true
	return cfg
}

func (c *SnapshotCommand) dbConfig() snapshot.DBConfig {
	return snapshot.DBConfig{
		Type:  c.flags.DBType,
		Path:  c.flags.DBPath,
		DSN:   c.flags.DBDSN,
		Table: c.flags.DBTable,
	}
}

func (c *SnapshotCommand) ExecuteWithRuntime(ctx context.Context, r *routestream.Runtime) (err error) {
	logger := r.Logger()

	db, err := snapshot.OpenDB(ctx, logger, c.dbConfig())
	if err != nil {
		return err
	}
	defer func() {
		cerr := db.Close()
		err = cerrors.LogOrReplace(err, cerr, func() {
			logger.Err(ctx, cerr).Msg("could not close snapshot store")
		})
	}()
	store := snapshot.NewStore(db, c.flags.Prefix)

	s, err := r.NewStream(ctx)
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if serr := s.Stop(context.Background()); serr != nil {
			logger.Warn(context.Background()).Err(serr).Msg("stream did not stop cleanly")
		}
	}()

	w := &batchWriter{store: store, size: c.flags.Batch}
	defer w.discard()

	var skipped int
	err = routestream.Drain(ctx, s, func(rec *record.Record) error {
		if rec.Status != record.StatusValid {
			skipped++
			return nil
		}
		if err := w.put(ctx, rec); err != nil {
			return cerrors.Errorf("failed to store dump of %s at %d: %w", rec.SourceID, rec.Timestamp, err)
		}
		return nil
	})
	if err == nil {
		err = w.flush()
	}
	logger.Info(ctx).
		Int("stored", w.committed).
		Int("skipped", skipped).
		Str(log.DatabaseTypeField, c.flags.DBType).
		Msg("snapshot finished")
	if err != nil && !cerrors.Is(err, context.Canceled) {
		return err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	_, _ = fmt.Fprintf(out, "stored %d dumps, skipped %d records\n", w.committed, skipped)
	return nil
}

const defaultBatchSize = 256

// batchWriter stores dumps in batches of size. Dumps of a batch that was not
// committed when the snapshot is interrupted are lost.
type batchWriter struct {
	store *snapshot.Store
	size  int

	batch     *snapshot.Batch
	committed int
}

func (w *batchWriter) put(ctx context.Context, rec *record.Record) error {
	if w.batch == nil {
		b, err := w.store.NewBatch(ctx)
		if err != nil {
			return err
		}
		w.batch = b
	}
	if _, err := w.batch.Put(rec.Metadata, rec.Payload()); err != nil {
		return err
	}
	if w.batch.Len() >= max(w.size, 1) {
		return w.flush()
	}
	return nil
}

func (w *batchWriter) flush() error {
	if w.batch == nil {
		return nil
	}
	b := w.batch
	w.batch = nil
	defer b.Discard()
	if err := b.Commit(); err != nil {
		return err
	}
	w.committed += b.Len()
	return nil
}

func (w *batchWriter) discard() {
	if w.batch != nil {
		w.batch.Discard()
		w.batch = nil
	}
}
