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

package ctxutil

import (
	"context"

	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/rs/zerolog"
)

// dumpURLCtxKey is used as the key when saving the dump file URL in a context.
type dumpURLCtxKey struct{}

// ContextWithDumpURL wraps ctx and returns a context that contains the URL of
// the dump file currently being read.
func ContextWithDumpURL(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, dumpURLCtxKey{}, url)
}

// DumpURLFromContext fetches the dump URL from the context. If the context
// does not contain a dump URL it returns an empty string.
func DumpURLFromContext(ctx context.Context) string {
	url := ctx.Value(dumpURLCtxKey{})
	if url != nil {
		return url.(string)
	}
	return ""
}

// DumpURLLogCtxHook fetches the dump URL from the context and if it exists it
// adds it to the log output.
type DumpURLLogCtxHook struct{}

// Run executes the log hook.
func (h DumpURLLogCtxHook) Run(ctx context.Context, e *zerolog.Event, _ zerolog.Level) {
	u := DumpURLFromContext(ctx)
	if u != "" {
		e.Str(log.DumpURLField, u)
	}
}
