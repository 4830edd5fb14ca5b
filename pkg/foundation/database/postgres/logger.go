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

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/rs/zerolog"
)

// traceLogger forwards pgx trace logs to a CtxLogger.
type traceLogger struct {
	log.CtxLogger
}

var _ tracelog.Logger = traceLogger{}

func (l traceLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	l.WithLevel(ctx, zerologLevel(level)).Fields(data).Msg(msg)
}

// zerologLevel maps pgx levels. Every query is traced at info, which is
// demoted to debug to keep normal output quiet.
func zerologLevel(l tracelog.LogLevel) zerolog.Level {
	switch l {
	case tracelog.LogLevelTrace:
		return zerolog.TraceLevel
	case tracelog.LogLevelWarn:
		return zerolog.WarnLevel
	case tracelog.LogLevelError:
		return zerolog.ErrorLevel
	case tracelog.LogLevelNone:
		return zerolog.NoLevel
	default:
		return zerolog.DebugLevel
	}
}
