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
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/source"
)

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		setupConfig func(Config) Config
		wantErr     bool
	}{{
		name:        "valid",
		setupConfig: func(c Config) Config { return c },
	}, {
		name: "required log level",
		setupConfig: func(c Config) Config {
			c.Log.Level = ""
			return c
		},
		wantErr: true,
	}, {
		name: "invalid log level",
		setupConfig: func(c Config) Config {
			c.Log.Level = "loud"
			return c
		},
		wantErr: true,
	}, {
		name: "invalid log format",
		setupConfig: func(c Config) Config {
			c.Log.Format = "xml"
			return c
		},
		wantErr: true,
	}, {
		name: "invalid prefetch",
		setupConfig: func(c Config) Config {
			c.Stream.Prefetch = 0
			return c
		},
		wantErr: true,
	}, {
		name: "no sources",
		setupConfig: func(c Config) Config {
			c.Stream.Sources = nil
			return c
		},
		wantErr: true,
	}, {
		name: "missing stream definition",
		setupConfig: func(c Config) Config {
			c.Stream.Path = filepath.Join(t.TempDir(), "stream.yaml")
			return c
		},
		wantErr: true,
	}, {
		name: "bad source",
		setupConfig: func(c Config) Config {
			c.Stream.Sources = []string{"singlefile:upd-file"}
			return c
		},
		wantErr: true,
	}, {
		name: "bad interval",
		setupConfig: func(c Config) Config {
			c.Stream.Intervals = []string{"200,100"}
			return c
		},
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			cfg := DefaultConfig()
			cfg.Stream.Sources = []string{"generator"}
			err := tc.setupConfig(cfg).Validate()
			if !tc.wantErr {
				is.NoErr(err)
				return
			}
			is.True(err != nil)
		})
	}
}

func TestConfig_ValidateIsConfigurationError(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()
	cfg.Stream.Sources = []string{"generator"}
	cfg.Log.Level = "loud"
	is.True(cerrors.Is(cfg.Validate(), source.ErrConfiguration))
}

func TestParseSource(t *testing.T) {
	testCases := []struct {
		in      string
		want    source.Descriptor
		wantErr bool
	}{{
		in:   "generator",
		want: source.Descriptor{Type: "generator", Options: map[string]string{}},
	}, {
		in: "singlefile:upd-file=./updates.gz,project=ris,collector=rrc06",
		want: source.Descriptor{Type: "singlefile", Options: map[string]string{
			"upd-file":  "./updates.gz",
			"project":   "ris",
			"collector": "rrc06",
		}},
	}, {
		in: "kafka:id=live,brokers=localhost:9092,topic=mrt",
		want: source.Descriptor{ID: "live", Type: "kafka", Options: map[string]string{
			"brokers": "localhost:9092",
			"topic":   "mrt",
		}},
	}, {
		in:      ":upd-file=x",
		wantErr: true,
	}, {
		in:      "singlefile:upd-file",
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			is := is.New(t)
			got, err := ParseSource(tc.in)
			if tc.wantErr {
				is.True(cerrors.Is(err, source.ErrConfiguration))
				return
			}
			is.NoErr(err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
