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

// Package cerrors contains functions related to error handling.
//
// The standard library's errors package is missing some functionality which we
// need, such as stack traces. To be certain that all errors created in
// routestream carry the additional information, usage of this package is
// mandatory.
//
// At present, the package acts as a "thin forwarding layer", where we "mix and
// match" functions from different packages.
package cerrors

import (
	"errors" //nolint:depguard // the std. errors package is allowed only in this package
	"reflect"
	"runtime"

	"golang.org/x/xerrors" //nolint:depguard // the xerrors package is allowed only in this package
)

var (
	New    = xerrors.New    //nolint:forbidigo // xerrors.New is allowed here, but not anywhere else
	Errorf = xerrors.Errorf //nolint:forbidigo // xerrors.Errorf is allowed here, but not anywhere else
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Mark returns an error wrapping err that additionally matches mark in Is.
// The message of the returned error is the message of mark followed by the
// message of err. Errorf wraps a single error only, Mark is used to attach a
// sentinel to an error that already carries a cause.
func Mark(err, mark error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, mark: mark}
}

type markedError struct {
	err  error
	mark error
}

func (e *markedError) Error() string {
	return e.mark.Error() + ": " + e.err.Error()
}

func (e *markedError) Unwrap() error {
	return e.err
}

func (e *markedError) Is(target error) bool {
	return errors.Is(e.mark, target)
}

// LogOrReplace is used when a function may produce an error in its body and
// another one in a deferred call. If oldErr is not nil it is kept and log is
// called so the caller can record newErr, otherwise newErr is returned.
func LogOrReplace(oldErr, newErr error, log func()) error {
	switch {
	case oldErr != nil && newErr != nil:
		log()
		return oldErr
	case oldErr == nil:
		return newErr
	default:
		return oldErr
	}
}

// ForEach calls fn for every leaf error joined in err. Errors that were not
// created with Join are passed to fn directly.
func ForEach(err error, fn func(err error)) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			ForEach(e, fn)
		}
		return
	}
	fn(err)
}

type Frame struct {
	Func string `json:"func,omitempty"`
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// GetStackTrace returns the frames recorded by xerrors in the chain of err. It
// is meant to be used as zerolog.ErrorStackMarshaler.
func GetStackTrace(err error) interface{} {
	defer func() { recover() }() //nolint:errcheck // used for logging, a panic here must not crash the process

	var frames []Frame
	for w := err; w != nil; w = errors.Unwrap(w) {
		if hasStackTrace(w) {
			frames = append(frames, getRuntimeFrame(w))
		}
	}

	return frames
}

func hasStackTrace(err error) bool {
	errT := reflect.TypeOf(err)
	return errT != nil && errT.Kind() == reflect.Ptr && errT.Elem().PkgPath() == "golang.org/x/xerrors"
}

func getRuntimeFrame(err error) Frame {
	frame := reflect.ValueOf(err).Elem().FieldByName("frame") // type Frame struct{ frames [3]uintptr }
	framesField := frame.FieldByName("frames")
	pc := make([]uintptr, framesField.Len())
	for i := 0; i < framesField.Len(); i++ {
		pc[i] = uintptr(framesField.Index(i).Uint())
	}

	// mimic xerrors' printing of an error in extended format
	frames := runtime.CallersFrames(pc)
	if _, ok := frames.Next(); !ok {
		return Frame{}
	}
	fr, ok := frames.Next()
	if !ok {
		return Frame{}
	}
	return Frame{
		Func: fr.Function,
		File: fr.File,
		Line: fr.Line,
	}
}
