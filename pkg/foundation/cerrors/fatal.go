// Copyright © 2024 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cerrors

// fatalError marks errors that must not be retried, e.g. a broker answering
// with a client error while it is being polled.
type fatalError struct {
	err error
}

// FatalError wraps err so that IsFatalError reports true for it. Wrapping an
// error that is already fatal returns it unchanged. A nil error stays nil.
func FatalError(err error) error {
	if err == nil {
		return nil
	}
	if IsFatalError(err) {
		return err
	}
	return &fatalError{err: err}
}

// IsFatalError checks if err or any error it wraps is a fatal error.
func IsFatalError(err error) bool {
	var fe *fatalError
	return As(err, &fe)
}

func (f *fatalError) Unwrap() error {
	return f.err
}

func (f *fatalError) Error() string {
	return "fatal error: " + f.err.Error()
}
