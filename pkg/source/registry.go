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

package source

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/conduitio/conduit-commons/config"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/log"
)

// Spec describes a source type.
type Spec struct {
	Type    string
	Summary string
	// Parameters lists the options the type accepts. Options that are not
	// listed here are rejected.
	Parameters config.Parameters
	// New creates a decoder from sanitized and validated options.
	New func(desc Descriptor, cfg config.Config, env Env) (Decoder, error)
}

// Registry holds the known source types.
type Registry struct {
	logger log.CtxLogger
	specs  map[string]Spec
}

func NewRegistry(logger log.CtxLogger, specs ...Spec) *Registry {
	r := &Registry{
		logger: logger.WithComponentFromType(Registry{}),
		specs:  make(map[string]Spec, len(specs)),
	}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			// built-in types are static, a duplicate is a programming error
			panic(err)
		}
	}
	r.logger.Debug(context.Background()).Int("count", len(r.specs)).Msg("source types registered")
	return r
}

// Register adds a source type.
func (r *Registry) Register(s Spec) error {
	if s.Type == "" || s.New == nil {
		return cerrors.Errorf("%w: source spec needs a type and a constructor", ErrConfiguration)
	}
	if _, ok := r.specs[s.Type]; ok {
		return cerrors.Errorf("%w: source type %q already registered", ErrConfiguration, s.Type)
	}
	r.specs[s.Type] = s
	return nil
}

// Lookup returns the spec of a source type. It returns ErrConfiguration if the
// type is unknown.
func (r *Registry) Lookup(typ string) (Spec, error) {
	s, ok := r.specs[typ]
	if !ok {
		return Spec{}, cerrors.Errorf("%w: unknown source type %q (known types: %s)", ErrConfiguration, typ, strings.Join(r.types(), ", "))
	}
	return s, nil
}

// List returns all registered specs sorted by type.
func (r *Registry) List() []Spec {
	out := make([]Spec, 0, len(r.specs))
	for _, t := range r.types() {
		out = append(out, r.specs[t])
	}
	return out
}

// NewDecoder validates the options of desc against the parameters of its type
// and creates a decoder. Unknown, missing or invalid options are reported as
// ErrConfiguration.
func (r *Registry) NewDecoder(desc Descriptor, env Env) (Decoder, error) {
	s, err := r.Lookup(desc.Type)
	if err != nil {
		return nil, err
	}

	var unknown []string
	for k := range desc.Options {
		if _, ok := s.Parameters[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, cerrors.Errorf("%w: source %q: unrecognized options %q", ErrConfiguration, desc.ID, unknown)
	}

	cfg := config.Config(copyOptions(desc.Options)).Sanitize().ApplyDefaults(s.Parameters)
	if err := cfg.Validate(s.Parameters); err != nil {
		return nil, cerrors.Mark(cerrors.Errorf("source %q: %w", desc.ID, err), ErrConfiguration)
	}

	env.Logger = env.Logger.WithSource(desc.ID, desc.Type)
	d, err := s.New(desc, cfg, env)
	if err != nil {
		if cerrors.Is(err, ErrConfiguration) {
			return nil, err
		}
		return nil, cerrors.Mark(cerrors.Errorf("source %q: %w", desc.ID, err), ErrConfiguration)
	}
	return d, nil
}

func (r *Registry) types() []string {
	types := make([]string, 0, len(r.specs))
	for t := range r.specs {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func copyOptions(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
