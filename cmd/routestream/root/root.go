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

package root

import (
	"context"
	"fmt"
	"os"

	"github.com/conduitio/ecdysis"
	"github.com/routestream/routestream/cmd/routestream/global"
	"github.com/routestream/routestream/cmd/routestream/root/snapshot"
	"github.com/routestream/routestream/cmd/routestream/root/sources"
	"github.com/routestream/routestream/cmd/routestream/root/stream"
	"github.com/routestream/routestream/cmd/routestream/root/version"
	"github.com/routestream/routestream/pkg/routestream"
)

var (
	_ ecdysis.CommandWithFlags       = (*RootCommand)(nil)
	_ ecdysis.CommandWithExecute     = (*RootCommand)(nil)
	_ ecdysis.CommandWithDocs        = (*RootCommand)(nil)
	_ ecdysis.CommandWithSubCommands = (*RootCommand)(nil)
)

type RootCommand struct {
	flags global.Flags
}

func (c *RootCommand) Execute(_ context.Context) error {
	if c.flags.Version {
		_, _ = fmt.Fprintf(os.Stdout, "%s\n", routestream.Version(true))
		return nil
	}
	_, _ = fmt.Fprintln(os.Stderr, "missing command, run 'routestream --help' for usage")
	return nil
}

func (c *RootCommand) Usage() string { return "routestream" }

func (c *RootCommand) Flags() []ecdysis.Flag {
	flags := ecdysis.BuildFlags(&c.flags)

	cfg := routestream.DefaultConfig()
	flags.SetDefault("log.level", cfg.Log.Level)
	flags.SetDefault("log.format", cfg.Log.Format)
	return flags
}

func (c *RootCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Stream BGP routing data",
		Long: `routestream reads BGP routing data from MRT archives, dump indexes, live feeds
and snapshots, merges it into one time ordered stream and prints records and
their elements.`,
	}
}

func (c *RootCommand) SubCommands() []ecdysis.Command {
	return []ecdysis.Command{
		&stream.StreamCommand{RootFlags: &c.flags},
		&sources.SourcesCommand{},
		&snapshot.SnapshotCommand{RootFlags: &c.flags},
		&version.VersionCommand{},
	}
}
