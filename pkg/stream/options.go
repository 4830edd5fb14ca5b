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

package stream

const DefaultPrefetch = 1

type options struct {
	prefetch int
}

// Option configures a Stream.
type Option func(*options)

// WithPrefetch sets how many admitted dumps each source may read ahead of the
// consumer. Values below 1 are treated as 1.
func WithPrefetch(n int) Option {
	return func(o *options) {
		o.prefetch = max(n, 1)
	}
}
