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

// Package builtin wires all source types shipped with routestream.
package builtin

import (
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/routestream/routestream/pkg/source"
	"github.com/routestream/routestream/pkg/source/broker"
	"github.com/routestream/routestream/pkg/source/csvfile"
	"github.com/routestream/routestream/pkg/source/generator"
	"github.com/routestream/routestream/pkg/source/kafka"
	"github.com/routestream/routestream/pkg/source/singlefile"
	"github.com/routestream/routestream/pkg/source/snapshot"
	"github.com/routestream/routestream/pkg/source/sqlindex"
)

// Specs returns the specs of all built-in source types.
func Specs() []source.Spec {
	return []source.Spec{
		singlefile.Spec(),
		csvfile.Spec(),
		sqlindex.SQLiteSpec(),
		sqlindex.PostgresSpec(),
		broker.Spec(),
		kafka.Spec(),
		snapshot.Spec(),
		generator.Spec(),
	}
}

// DefaultRegistry returns a registry containing all built-in source types.
func DefaultRegistry(logger log.CtxLogger) *source.Registry {
	return source.NewRegistry(logger, Specs()...)
}
