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

// Package cecdysis contains routestream specific ecdysis decorators.
package cecdysis

import (
	"context"

	"github.com/conduitio/ecdysis"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/routestream"
	"github.com/spf13/cobra"
)

// ------------------- CommandWithExecuteWithRuntime

// CommandWithExecuteWithRuntime can be implemented by a command that needs a
// configured runtime during the execution.
type CommandWithExecuteWithRuntime interface {
	ecdysis.Command

	// RuntimeConfig returns the configuration of the runtime. It is called
	// after flags and arguments are parsed.
	RuntimeConfig() routestream.Config
	// ExecuteWithRuntime is the actual work function. The context is canceled
	// on the first interrupt signal.
	ExecuteWithRuntime(context.Context, *routestream.Runtime) error
}

// CommandWithExecuteWithRuntimeDecorator is a decorator that creates a
// runtime before the command is executed.
type CommandWithExecuteWithRuntimeDecorator struct{}

func (CommandWithExecuteWithRuntimeDecorator) Decorate(_ *ecdysis.Ecdysis, cmd *cobra.Command, c ecdysis.Command) error {
	v, ok := c.(CommandWithExecuteWithRuntime)
	if !ok {
		return nil
	}

	old := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if old != nil {
			err := old(cmd, args)
			if err != nil {
				return err
			}
		}

		r, err := routestream.NewRuntime(v.RuntimeConfig())
		if err != nil {
			return err
		}

		ctx := ecdysis.ContextWithCobraCommand(cmd.Context(), cmd)
		err = v.ExecuteWithRuntime(routestream.CancelOnInterrupt(ctx), r)
		if cerrors.Is(err, context.Canceled) {
			// interrupted by the user
			return nil
		}
		return err
	}

	return nil
}
