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

package cecdysis

import (
	"bytes"
	"context"
	"testing"

	"github.com/conduitio/ecdysis"
	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/routestream"
	"github.com/routestream/routestream/pkg/source"
)

type testCommand struct {
	cfg routestream.Config
	err error

	args    []string
	runtime *routestream.Runtime
	ctx     context.Context
}

var (
	_ CommandWithExecuteWithRuntime = (*testCommand)(nil)
	_ ecdysis.CommandWithArgs       = (*testCommand)(nil)
)

func (c *testCommand) Usage() string { return "test" }

func (c *testCommand) Args(args []string) error {
	c.args = args
	return nil
}

func (c *testCommand) RuntimeConfig() routestream.Config { return c.cfg }

func (c *testCommand) ExecuteWithRuntime(ctx context.Context, r *routestream.Runtime) error {
	c.ctx, c.runtime = ctx, r
	return c.err
}

func execute(t *testing.T, c *testCommand, args ...string) error {
	t.Helper()
	e := ecdysis.New(ecdysis.WithDecorators(CommandWithExecuteWithRuntimeDecorator{}))
	cmd := e.MustBuildCobraCommand(c)
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

func TestCommandWithExecuteWithRuntimeDecorator(t *testing.T) {
	is := is.New(t)

	cfg := routestream.DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Stream.Sources = []string{"generator"}
	c := &testCommand{cfg: cfg}

	is.NoErr(execute(t, c, "generator:count=2"))
	is.Equal(c.args, []string{"generator:count=2"})
	is.True(c.runtime != nil)
	is.Equal(c.runtime.Config.Log.Level, "warn")
	is.True(c.ctx != nil)
}

func TestCommandWithExecuteWithRuntimeDecorator_InvalidConfig(t *testing.T) {
	is := is.New(t)

	c := &testCommand{cfg: routestream.DefaultConfig()} // no sources
	err := execute(t, c)
	is.True(cerrors.Is(err, source.ErrConfiguration))
	is.True(c.runtime == nil)
}

func TestCommandWithExecuteWithRuntimeDecorator_Errors(t *testing.T) {
	is := is.New(t)

	cfg := routestream.DefaultConfig()
	cfg.Stream.Sources = []string{"generator"}

	c := &testCommand{cfg: cfg, err: context.Canceled}
	is.NoErr(execute(t, c))

	wantErr := cerrors.New("boom")
	c = &testCommand{cfg: cfg, err: wantErr}
	is.Equal(execute(t, c), wantErr)
}
