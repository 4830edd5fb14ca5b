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
	"os"
	"strings"

	"github.com/routestream/routestream/pkg/filter"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/source"
)

// Config holds all configurable values of a routestream run.
type Config struct {
	Log struct {
		Level  string
		Format string
	}

	Stream struct {
		// Path points to a YAML stream definition. Sources and filters of the
		// config are added after the ones in the file.
		Path string
		// Sources in the form accepted by ParseSource.
		Sources   []string
		Filter    string
		Intervals []string
		Prefetch  int
		// Records disables printing of elements.
		Records bool
		// Template replaces the default output with a Go template executed
		// for every record, see NewTemplatePrinter.
		Template string
	}

	Metrics struct {
		Address string
	}

	// Registry holds the source types available to the stream. When nil the
	// built-in registry is used.
	Registry *source.Registry
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Log.Level = "info"
	cfg.Log.Format = "cli"
	cfg.Stream.Prefetch = 1
	return cfg
}

func (c Config) Validate() error {
	if c.Log.Level == "" {
		return requiredConfigFieldErr("log.level")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return invalidConfigFieldErr("log.level")
	}

	if c.Log.Format == "" {
		return requiredConfigFieldErr("log.format")
	}
	if _, err := log.ParseFormat(c.Log.Format); err != nil {
		return invalidConfigFieldErr("log.format")
	}

	if c.Stream.Prefetch < 1 {
		return invalidConfigFieldErr("stream.prefetch")
	}
	if c.Stream.Path != "" {
		if _, err := os.Stat(c.Stream.Path); err != nil {
			return invalidConfigFieldErr("stream.path")
		}
	}
	if c.Stream.Path == "" && len(c.Stream.Sources) == 0 {
		return cerrors.Errorf("%w: a stream definition or at least one source is required", source.ErrConfiguration)
	}
	for _, s := range c.Stream.Sources {
		if _, err := ParseSource(s); err != nil {
			return err
		}
	}
	for _, i := range c.Stream.Intervals {
		if _, err := filter.ParseInterval(i); err != nil {
			return err
		}
	}
	if c.Stream.Template != "" {
		if _, err := ParseTemplate(c.Stream.Template); err != nil {
			return err
		}
	}
	return nil
}

// ParseSource parses the compact form of a source used on the command line,
// "type:key=value,key=value". The ID of the source can be set with the
// reserved key "id".
func ParseSource(s string) (source.Descriptor, error) {
	typ, opts, _ := strings.Cut(strings.TrimSpace(s), ":")
	if typ == "" {
		return source.Descriptor{}, cerrors.Errorf("%w: source %q has no type", source.ErrConfiguration, s)
	}
	desc := source.Descriptor{Type: typ, Options: map[string]string{}}
	if opts == "" {
		return desc, nil
	}
	for _, kv := range strings.Split(opts, ",") {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return source.Descriptor{}, cerrors.Errorf("%w: source %q: option %q must have the form key=value", source.ErrConfiguration, s, kv)
		}
		if k == "id" {
			desc.ID = v
			continue
		}
		desc.Options[k] = v
	}
	return desc, nil
}

func invalidConfigFieldErr(name string) error {
	return cerrors.Errorf("%w: %q config value is invalid", source.ErrConfiguration, name)
}

func requiredConfigFieldErr(name string) error {
	return cerrors.Errorf("%w: %q config value is required", source.ErrConfiguration, name)
}
