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

package stream

import (
	"context"
	"strings"

	"github.com/conduitio/ecdysis"
	"github.com/routestream/routestream/cmd/routestream/cecdysis"
	"github.com/routestream/routestream/cmd/routestream/global"
	"github.com/routestream/routestream/pkg/routestream"
)

var (
	_ ecdysis.CommandWithFlags               = (*StreamCommand)(nil)
	_ ecdysis.CommandWithArgs                = (*StreamCommand)(nil)
	_ ecdysis.CommandWithDocs                = (*StreamCommand)(nil)
	_ cecdysis.CommandWithExecuteWithRuntime = (*StreamCommand)(nil)
)

type StreamFlags struct {
	Path           string `long:"stream.path" usage:"path to a YAML stream definition"`
	Filter         string `long:"filter" short:"f" usage:"filter expression, e.g. 'collector rrc06 and type updates'"`
	Intervals      string `long:"interval" short:"i" usage:"time intervals in the form from,until separated by ';', until may be omitted for live mode"`
	Prefetch       int    `long:"stream.prefetch" usage:"number of dumps prefetched per source"`
	RecordsOnly    bool   `long:"records-only" usage:"print records without their elements"`
	Template       string `long:"template" usage:"Go template executed for every record instead of the default output, sprig functions are available"`
	MetricsAddress string `long:"metrics.address" usage:"address for serving prometheus metrics, disabled if empty"`
}

// Apply copies the flags into cfg.
func (f StreamFlags) Apply(cfg *routestream.Config) {
	cfg.Stream.Path = f.Path
	cfg.Stream.Filter = f.Filter
	cfg.Stream.Intervals = SplitIntervals(f.Intervals)
	if f.Prefetch > 0 {
		cfg.Stream.Prefetch = f.Prefetch
	}
	cfg.Stream.Records = f.RecordsOnly
	cfg.Stream.Template = f.Template
	cfg.Metrics.Address = f.MetricsAddress
}

// SplitIntervals splits a list of intervals separated by semicolons.
func SplitIntervals(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ";") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type StreamCommand struct {
	RootFlags *global.Flags

	flags   StreamFlags
	sources []string
}

func (c *StreamCommand) Usage() string { return "stream [SOURCE...]" }

func (c *StreamCommand) Flags() []ecdysis.Flag {
	flags := ecdysis.BuildFlags(&c.flags)
	flags.SetDefault("stream.prefetch", routestream.DefaultConfig().Stream.Prefetch)
	return flags
}

func (c *StreamCommand) Args(args []string) error {
	c.sources = args
	return nil
}

func (c *StreamCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short: "Print a stream of BGP records and elements",
		Long: `Reads all sources, merges their dumps by time and collector and prints one line
per record followed by one indented line per element.

Sources are given as TYPE or TYPE:KEY=VALUE,KEY=VALUE, run 'routestream sources'
to list the available types and their options. Sources and filters of a stream
definition file (--stream.path) are combined with the ones on the command line.`,
		Example: "routestream stream singlefile:upd-file=./ris.rrc06.updates.1427846400.gz -i 1427846570,1427846670\n" +
			"routestream stream broker:url=http://localhost:8080,collector=rrc06 -f 'type updates and prefix more 192.0.0.0/8'",
	}
}

// RuntimeConfig returns the runtime config built from the flags and arguments.
func (c *StreamCommand) RuntimeConfig() routestream.Config {
	cfg := routestream.DefaultConfig()
	c.RootFlags.Apply(&cfg)
	c.flags.Apply(&cfg)
	cfg.Stream.Sources = c.sources
	return cfg
}

func (c *StreamCommand) ExecuteWithRuntime(ctx context.Context, r *routestream.Runtime) error {
	return r.Run(ctx)
}
