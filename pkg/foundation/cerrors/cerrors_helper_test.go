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

package cerrors_test

import (
	"github.com/routestream/routestream/pkg/foundation/cerrors"
)

// The helpers below live in their own file so that the frames they record
// are stable when the tests change.

func badMarker() error {
	return cerrors.New("unexpected MRT type 99")
}

func decodeRecord() error {
	if err := readHeader(); err != nil {
		return cerrors.Errorf("could not decode record: %w", err)
	}
	return nil
}

func readHeader() error {
	if err := badMarker(); err != nil {
		return cerrors.Errorf("could not read header: %w", err)
	}
	return nil
}
