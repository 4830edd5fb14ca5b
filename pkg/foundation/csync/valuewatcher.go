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

// Package csync has synchronization helpers used by the stream lifecycle.
package csync

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ValueWatcher holds a value that goroutines can wait on. Set never blocks:
// each watcher only ever sees the latest value, intermediate values may be
// skipped. The zero value is ready to use.
type ValueWatcher[T any] struct {
	m        sync.Mutex
	val      T
	watchers map[uuid.UUID]chan T
}

// ValueWatcherFunc reports whether the watched value is the one waited for.
type ValueWatcherFunc[T any] func(T) bool

// WatchValues matches any of want. It panics without values, since such a
// watch could never return.
func WatchValues[T comparable](want ...T) ValueWatcherFunc[T] {
	if len(want) == 0 {
		panic("csync: WatchValues needs at least one value")
	}
	return func(v T) bool { return slices.Contains(want, v) }
}

// Set replaces the value and wakes up all watchers.
func (w *ValueWatcher[T]) Set(val T) {
	w.m.Lock()
	defer w.m.Unlock()

	w.val = val
	for _, c := range w.watchers {
		// drop a value the watcher has not picked up yet
		select {
		case <-c:
		default:
		}
		c <- val
	}
}

func (w *ValueWatcher[T]) Get() T {
	w.m.Lock()
	defer w.m.Unlock()
	return w.val
}

// Watch blocks until f accepts the current or a later value and returns it.
// It returns the context error if ctx is done first.
func (w *ValueWatcher[T]) Watch(ctx context.Context, f ValueWatcherFunc[T]) (T, error) {
	w.m.Lock()
	if f(w.val) {
		defer w.m.Unlock()
		return w.val, nil
	}
	id, c := uuid.New(), make(chan T, 1)
	if w.watchers == nil {
		w.watchers = make(map[uuid.UUID]chan T)
	}
	w.watchers[id] = c
	w.m.Unlock()

	defer func() {
		w.m.Lock()
		delete(w.watchers, id)
		w.m.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case v := <-c:
			if f(v) {
				return v, nil
			}
		}
	}
}
