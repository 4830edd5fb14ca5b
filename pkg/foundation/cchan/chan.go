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

// Package cchan makes receiving from channels respect a context.
package cchan

import (
	"context"
	"time"
)

// Chan wraps a receive-only channel.
type Chan[T any] <-chan T

// Recv receives like <-c and reports whether the channel is still open. A
// done ctx wins and its error is returned.
func (c Chan[T]) Recv(ctx context.Context) (v T, ok bool, err error) {
	select {
	case v, ok = <-c:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return v, ok, err
}

// RecvTimeout is Recv bounded by timeout, after which it returns
// context.DeadlineExceeded.
func (c Chan[T]) RecvTimeout(ctx context.Context, timeout time.Duration) (T, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Recv(ctx)
}
