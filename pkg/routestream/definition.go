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

package routestream

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/conduitio/yaml/v3"
	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/stream"
)

// definitionVersion is the newest stream definition version that is known.
// Definitions with the same major version are accepted.
var definitionVersion = semver.MustParse("1.0")

// Definition is a stream described in a YAML file.
type Definition struct {
	Version  string             `yaml:"version"`
	Sources  []SourceDefinition `yaml:"sources"`
	Filters  FilterDefinition   `yaml:"filters"`
	Prefetch int                `yaml:"prefetch"`
}

type SourceDefinition struct {
	ID      string            `yaml:"id"`
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// FilterDefinition lists the built-in filters of a stream. Values of the same
// filter are combined with a logical OR, different filters with AND.
type FilterDefinition struct {
	Intervals   []string `yaml:"intervals"`
	Projects    []string `yaml:"projects"`
	Collectors  []string `yaml:"collectors"`
	RecordTypes []string `yaml:"record-types"`
	PeerASNs    []uint32 `yaml:"peer-asns"`
	// Prefixes are either a bare prefix or "<match> <prefix>" where match is
	// one of exact, more, less, any.
	Prefixes    []string `yaml:"prefixes"`
	Communities []string `yaml:"communities"`
	ElemTypes   []string `yaml:"elem-types"`
	IPVersion   int      `yaml:"ip-version"`
	ASPath      string   `yaml:"aspath"`
	// Expr is a filter expression as accepted by filter.Chain.Parse.
	Expr string `yaml:"expr"`
}

// ParseDefinition reads a stream definition. Environment variables in string
// values are expanded, unknown fields are rejected.
func ParseDefinition(ctx context.Context, logger log.CtxLogger, r io.Reader) (Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	dec.WithHook(envDecoderHook)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if cerrors.Is(err, io.EOF) {
			return Definition{}, cerrors.Errorf("%w: empty stream definition", source.ErrConfiguration)
		}
		return Definition{}, cerrors.Mark(cerrors.Errorf("parsing stream definition: %w", err), source.ErrConfiguration)
	}
	if err := checkDefinitionVersion(ctx, logger, def.Version); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func checkDefinitionVersion(ctx context.Context, logger log.CtxLogger, v string) error {
	if v == "" {
		logger.Warn(ctx).Msgf("stream definition has no version, assuming %s", definitionVersion)
		return nil
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return cerrors.Mark(cerrors.Errorf("invalid stream definition version %q: %w", v, err), source.ErrConfiguration)
	}
	if ver.Major() != definitionVersion.Major() {
		return cerrors.Errorf("%w: unsupported stream definition version %q", source.ErrConfiguration, v)
	}
	if ver.GreaterThan(definitionVersion) {
		logger.Warn(ctx).Msgf("stream definition version %s is newer than %s", ver, definitionVersion)
	}
	return nil
}

// ReadDefinition parses the stream definition in the file at path.
func ReadDefinition(ctx context.Context, logger log.CtxLogger, path string) (Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return Definition{}, cerrors.Mark(err, source.ErrConfiguration)
	}
	defer f.Close()
	return ParseDefinition(ctx, logger, f)
}

func envDecoderHook(_ []string, node *yaml.Node) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		node.SetString(os.ExpandEnv(node.Value))
	}
}

// Apply adds the sources and filters of the definition to a stream that was
// not started yet.
func (d Definition) Apply(s *stream.Stream) error {
	for _, sd := range d.Sources {
		err := s.AddSource(source.Descriptor{ID: sd.ID, Type: sd.Type, Options: sd.Options})
		if err != nil {
			return err
		}
	}
	return d.Filters.Apply(s)
}

// Apply adds the filters to a stream that was not started yet.
func (f FilterDefinition) Apply(s *stream.Stream) error {
	for _, v := range f.Intervals {
		i, err := filter.ParseInterval(v)
		if err != nil {
			return err
		}
		if err := s.AddIntervalFilter(i.From, i.Until); err != nil {
			return err
		}
	}

	type entry struct{ name, value string }
	var entries []entry
	add := func(name string, values ...string) {
		for _, v := range values {
			entries = append(entries, entry{name, v})
		}
	}
	add(filter.FilterProject, f.Projects...)
	add(filter.FilterCollector, f.Collectors...)
	add(filter.FilterRecordType, f.RecordTypes...)
	for _, asn := range f.PeerASNs {
		add(filter.FilterPeerASN, strconv.FormatUint(uint64(asn), 10))
	}
	for _, p := range f.Prefixes {
		match, prefix, ok := strings.Cut(strings.TrimSpace(p), " ")
		if !ok {
			add(filter.FilterPrefix, p)
			continue
		}
		add(filter.FilterPrefix+"-"+match, prefix)
	}
	add(filter.FilterCommunity, f.Communities...)
	add(filter.FilterElemType, f.ElemTypes...)
	if f.IPVersion != 0 {
		add(filter.FilterIPVersion, strconv.Itoa(f.IPVersion))
	}
	if f.ASPath != "" {
		add(filter.FilterASPath, f.ASPath)
	}

	for _, e := range entries {
		if err := s.AddFilter(e.name, e.value); err != nil {
			return err
		}
	}
	if f.Expr != "" {
		return s.AddFilterString(f.Expr)
	}
	return nil
}
