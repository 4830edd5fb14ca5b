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
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/log"
	"github.com/rs/zerolog"
)

func TestContextWithSourceID(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	id := uuid.NewString()

	is.Equal(SourceIDFromContext(ctx), "")

	ctx = ContextWithSourceID(ctx, "existing id")
	ctx = ContextWithSourceID(ctx, id)
	is.Equal(SourceIDFromContext(ctx), id)
}

func TestContextWithDumpURL(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	u := "https://data.ris.ripe.net/rrc06/2015.04/updates.20150401.0000.gz"

	is.Equal(DumpURLFromContext(ctx), "")
	is.Equal(DumpURLFromContext(ContextWithDumpURL(ctx, u)), u)
}

func TestLogCtxHooks(t *testing.T) {
	id := uuid.NewString()
	u := "/tmp/updates.gz"

	testCases := []struct {
		name string
		ctx  context.Context
		hook log.CtxHook
		want string
	}{{
		name: "source id",
		ctx:  ContextWithSourceID(context.Background(), id),
		hook: SourceIDLogCtxHook{},
		want: fmt.Sprintf(`{"level":"info","%s":"%s"}`, log.SourceIDField, id) + "\n",
	}, {
		name: "source id empty ctx",
		ctx:  context.Background(),
		hook: SourceIDLogCtxHook{},
		want: `{"level":"info"}` + "\n",
	}, {
		name: "dump url",
		ctx:  ContextWithDumpURL(context.Background(), u),
		hook: DumpURLLogCtxHook{},
		want: fmt.Sprintf(`{"level":"info","%s":"%s"}`, log.DumpURLField, u) + "\n",
	}, {
		name: "dump url empty ctx",
		ctx:  context.Background(),
		hook: DumpURLLogCtxHook{},
		want: `{"level":"info"}` + "\n",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			var logOutput bytes.Buffer
			logger := zerolog.New(&logOutput)
			e := logger.Info()
			tc.hook.Run(tc.ctx, e, zerolog.InfoLevel)
			e.Send()
			is.Equal(logOutput.String(), tc.want)
		})
	}
}
