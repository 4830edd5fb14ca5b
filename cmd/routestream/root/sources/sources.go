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

package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alexeyco/simpletable"
	"github.com/conduitio/conduit-commons/config"
	"github.com/conduitio/ecdysis"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/builtin"
)

var (
	_ ecdysis.CommandWithFlags   = (*SourcesCommand)(nil)
	_ ecdysis.CommandWithAliases = (*SourcesCommand)(nil)
	_ ecdysis.CommandWithExecute = (*SourcesCommand)(nil)
	_ ecdysis.CommandWithDocs    = (*SourcesCommand)(nil)
)

type SourcesFlags struct {
	Type string `long:"type" short:"t" usage:"show the options of a source type"`
}

type SourcesCommand struct {
	flags SourcesFlags

	// Registry defaults to the built-in source types.
	Registry *source.Registry
	out      io.Writer
}

func (c *SourcesCommand) Usage() string { return "sources" }

func (c *SourcesCommand) Aliases() []string { return []string{"src"} }

func (c *SourcesCommand) Flags() []ecdysis.Flag {
	return ecdysis.BuildFlags(&c.flags)
}

func (c *SourcesCommand) Docs() ecdysis.Docs {
	return ecdysis.Docs{
		Short:   "List source types and their options",
		Example: "routestream sources\nroutestream sources --type broker",
	}
}

func (c *SourcesCommand) Execute(_ context.Context) error {
	registry := c.Registry
	if registry == nil {
		registry = builtin.DefaultRegistry(log.Nop())
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	if c.flags.Type == "" {
		displaySpecs(out, registry.List())
		return nil
	}
	spec, err := registry.Lookup(c.flags.Type)
	if err != nil {
		return err
	}
	displayParameters(out, spec)
	return nil
}

func displaySpecs(out io.Writer, specs []source.Spec) {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "TYPE"},
			{Align: simpletable.AlignCenter, Text: "SUMMARY"},
		},
	}
	for _, s := range specs {
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Align: simpletable.AlignLeft, Text: s.Type},
			{Align: simpletable.AlignLeft, Text: s.Summary},
		})
	}
	table.SetStyle(simpletable.StyleCompact)
	_, _ = fmt.Fprintln(out, table.String())
}

func displayParameters(out io.Writer, spec source.Spec) {
	_, _ = fmt.Fprintf(out, "%s: %s\n\n", spec.Type, spec.Summary)

	names := make([]string, 0, len(spec.Parameters))
	for name := range spec.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "OPTION"},
			{Align: simpletable.AlignCenter, Text: "TYPE"},
			{Align: simpletable.AlignCenter, Text: "DEFAULT"},
			{Align: simpletable.AlignCenter, Text: "VALIDATIONS"},
			{Align: simpletable.AlignCenter, Text: "DESCRIPTION"},
		},
	}
	for _, name := range names {
		p := spec.Parameters[name]
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Align: simpletable.AlignLeft, Text: name},
			{Align: simpletable.AlignLeft, Text: parameterType(p.Type)},
			{Align: simpletable.AlignLeft, Text: p.Default},
			{Align: simpletable.AlignLeft, Text: formatValidations(p.Validations)},
			{Align: simpletable.AlignLeft, Text: p.Description},
		})
	}
	table.SetStyle(simpletable.StyleCompact)
	_, _ = fmt.Fprintln(out, table.String())
}

func parameterType(t config.ParameterType) string {
	switch t {
	case config.ParameterTypeString:
		return "string"
	case config.ParameterTypeInt:
		return "int"
	case config.ParameterTypeFloat:
		return "float"
	case config.ParameterTypeBool:
		return "bool"
	case config.ParameterTypeFile:
		return "file"
	case config.ParameterTypeDuration:
		return "duration"
	default:
		return "unknown"
	}
}

func formatValidations(vs []config.Validation) string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		switch v := v.(type) {
		case config.ValidationRequired:
			out = append(out, "required")
		case config.ValidationInclusion:
			out = append(out, "one of "+strings.Join(v.List, ","))
		case config.ValidationGreaterThan:
			out = append(out, fmt.Sprintf("> %v", v.V))
		default:
			out = append(out, v.Value())
		}
	}
	return strings.Join(out, "; ")
}
