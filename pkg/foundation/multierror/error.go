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

// Package multierror collects the errors of teardown paths that have to keep
// going after a failure, e.g. closing every decoder of a stream.
package multierror

import "strings"

// Error holds a list of errors. It matches every error it contains with
// errors.Is and errors.As.
type Error struct {
	errs []error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}

	var sb strings.Builder
	for i, err := range e.errs {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func (e *Error) Errors() []error {
	return e.errs
}

func (e *Error) Unwrap() []error {
	return e.errs
}

// Append appends errs to err, skipping nil errors. Errors of type *Error are
// flattened. It returns nil if all errors are nil and the single error if only
// one is not nil.
func Append(err error, errs ...error) error {
	var out []error
	for _, e := range append([]error{err}, errs...) {
		switch e := e.(type) {
		case nil:
		case *Error:
			if e != nil {
				out = append(out, e.errs...)
			}
		default:
			out = append(out, e)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return &Error{errs: out}
	}
}
