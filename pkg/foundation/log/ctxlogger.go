// Copyright © 2022 Meroxa, Inc.
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

package log

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.ErrorStackMarshaler = cerrors.GetStackTrace
}

// CtxLogger is a wrapper around a zerolog.Logger which adds support for adding
// context hooks to it. All methods that return *zerolog.Event are switched for
// versions that take a context and trigger context hooks before returning the
// entry.
type CtxLogger struct {
	zerolog.Logger
	// component is attached to all messages and can be replaced
	component string
	hooks     []CtxHook
}

// CtxHook is a hook that is executed every time an enabled event is created.
// It receives the context the event was created with.
type CtxHook interface {
	Run(ctx context.Context, e *zerolog.Event, l zerolog.Level)
}

// CtxHookFunc is an adapter to allow the use of ordinary functions as CtxHook.
type CtxHookFunc func(ctx context.Context, e *zerolog.Event, l zerolog.Level)

func (f CtxHookFunc) Run(ctx context.Context, e *zerolog.Event, l zerolog.Level) {
	f(ctx, e, l)
}

// New creates a new CtxLogger with the supplied zerolog.Logger.
func New(logger zerolog.Logger) CtxLogger {
	return CtxLogger{Logger: logger}
}

// Nop returns a disabled logger for which all operation are no-op.
func Nop() CtxLogger {
	return CtxLogger{Logger: zerolog.Nop()}
}

// Test returns a test logger that writes to the supplied testing.TB.
func Test(t testing.TB) CtxLogger {
	return CtxLogger{Logger: zerolog.New(zerolog.NewTestWriter(t))}
}

// InitLogger returns a logger initialized with the wanted level and format.
// Output goes to stderr so that the stream itself can be written to stdout.
func InitLogger(level zerolog.Level, f Format) CtxLogger {
	w := GetWriter(f)
	logger := zerolog.New(w).
		With().
		Timestamp().
		Stack().
		Logger().
		Level(level)

	return New(logger)
}

// CtxHook returns a logger that runs the supplied hooks on every enabled
// event, in addition to hooks that were already attached.
func (l CtxLogger) CtxHook(hooks ...CtxHook) CtxLogger {
	merged := make([]CtxHook, 0, len(l.hooks)+len(hooks))
	merged = append(merged, l.hooks...)
	l.hooks = append(merged, hooks...)
	return l
}

// WithComponent adds the component to the output. This function can be called
// multiple times with the same value and it will produce the same result. If
// component is an empty string then nothing will be added to the output.
func (l CtxLogger) WithComponent(component string) CtxLogger {
	l.component = component
	return l
}

// WithComponentFromType derives the component name from the package path and
// name of the type of c, e.g. "stream.Multiplexer".
func (l CtxLogger) WithComponentFromType(c any) CtxLogger {
	cType := reflect.TypeOf(c)
	for cType.Kind() == reflect.Ptr || cType.Kind() == reflect.Interface {
		cType = cType.Elem()
	}

	pkgPath := cType.PkgPath()
	pkgPath = strings.TrimPrefix(pkgPath, "github.com/routestream/routestream/pkg/")
	pkgPath = strings.ReplaceAll(pkgPath, "/", ".")
	typeName := cType.Name()
	l.component = pkgPath + "." + typeName
	return l
}

func (l CtxLogger) Component() string {
	return l.component
}

// WithSource returns a logger that attaches the ID and type of a stream source
// to every entry.
func (l CtxLogger) WithSource(id, typ string) CtxLogger {
	l.Logger = l.Logger.With().
		Str(SourceIDField, id).
		Str(SourceTypeField, typ).
		Logger()
	return l
}

// The level methods below mirror zerolog.Logger but take the context that
// hooks read from. Msg has to be called on the returned event to emit it.

func (l CtxLogger) Trace(ctx context.Context) *zerolog.Event {
	return l.WithLevel(ctx, zerolog.TraceLevel)
}

func (l CtxLogger) Debug(ctx context.Context) *zerolog.Event {
	return l.WithLevel(ctx, zerolog.DebugLevel)
}

func (l CtxLogger) Info(ctx context.Context) *zerolog.Event {
	return l.WithLevel(ctx, zerolog.InfoLevel)
}

func (l CtxLogger) Warn(ctx context.Context) *zerolog.Event {
	return l.WithLevel(ctx, zerolog.WarnLevel)
}

func (l CtxLogger) Error(ctx context.Context) *zerolog.Event {
	return l.WithLevel(ctx, zerolog.ErrorLevel)
}

// Err logs at error level with err attached, or at info level if err is nil.
func (l CtxLogger) Err(ctx context.Context, err error) *zerolog.Event {
	if err == nil {
		return l.Info(ctx)
	}
	return l.Error(ctx).Err(err)
}

// WithLevel never exits or panics, even for the fatal and panic levels.
func (l CtxLogger) WithLevel(ctx context.Context, level zerolog.Level) *zerolog.Event {
	e := l.Logger.WithLevel(level)
	if !e.Enabled() {
		return e
	}
	e = e.Ctx(ctx)
	for _, h := range l.hooks {
		h.Run(ctx, e, level)
	}
	if l.component != "" {
		e.Str(ComponentField, l.component)
	}
	return e
}
