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

package badger

import (
	"context"
	"strings"

	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/rs/zerolog"
)

// logger forwards badger logs to a CtxLogger. Badger debug logs are chatty
// and are logged on trace level.
type logger struct {
	l log.CtxLogger
}

func newLogger(l log.CtxLogger) logger {
	return logger{l: l}
}

func (b logger) Errorf(s string, args ...any)   { b.log(zerolog.ErrorLevel, s, args) }
func (b logger) Warningf(s string, args ...any) { b.log(zerolog.WarnLevel, s, args) }
func (b logger) Infof(s string, args ...any)    { b.log(zerolog.InfoLevel, s, args) }
func (b logger) Debugf(s string, args ...any)   { b.log(zerolog.TraceLevel, s, args) }

func (b logger) log(level zerolog.Level, s string, args []any) {
	b.l.WithLevel(context.Background(), level).Msgf(strings.TrimSuffix(s, "\n"), args...)
}
