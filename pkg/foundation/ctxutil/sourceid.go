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

// sourceIDCtxKey is used as the key when saving the source ID in a context.
type sourceIDCtxKey struct{}

// ContextWithSourceID wraps ctx and returns a context that contains the ID of
// the stream source.
func ContextWithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, sourceIDCtxKey{}, sourceID)
}

// SourceIDFromContext fetches the source ID from the context. If the context
// does not contain a source ID it returns an empty string.
func SourceIDFromContext(ctx context.Context) string {
	sourceID := ctx.Value(sourceIDCtxKey{})
	if sourceID != nil {
		return sourceID.(string)
	}
	return ""
}

// SourceIDLogCtxHook fetches the source ID from the context and if it exists
// it adds the source ID to the log output.
type SourceIDLogCtxHook struct{}

// Run executes the log hook.
func (h SourceIDLogCtxHook) Run(ctx context.Context, e *zerolog.Event, _ zerolog.Level) {
	id := SourceIDFromContext(ctx)
	if id != "" {
		e.Str(log.SourceIDField, id)
	}
}
