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

// Package global holds the flags shared by all routestream commands.
package global

import "github.com/routestream/routestream/pkg/routestream"

// Flags are persistent flags of the root command.
type Flags struct {
	LogLevel  string `long:"log.level" usage:"sets logging level; accepts debug, info, warn, error, trace" persistent:"true"`
	LogFormat string `long:"log.format" usage:"sets the format of the logging; accepts json, cli" persistent:"true"`

	Version bool `long:"version" short:"v" usage:"show version" persistent:"true"`
}

// Apply copies the flags into cfg. Empty flags keep the value of cfg.
func (f *Flags) Apply(cfg *routestream.Config) {
	if f == nil {
		return
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Log.Format = f.LogFormat
	}
}
