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

package multierror_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/routestream/routestream/pkg/foundation/multierror"
)

func TestAppend_Nil(t *testing.T) {
	is := is.New(t)
	is.Equal(multierror.Append(nil, nil), nil)
	is.Equal(multierror.Append(nil), nil)
}

func TestAppend_Single(t *testing.T) {
	is := is.New(t)
	want := cerrors.New("close failed")
	is.Equal(multierror.Append(nil, want), want)
	is.Equal(multierror.Append(want, nil), want)
}

func TestAppend_Flattens(t *testing.T) {
	is := is.New(t)
	errs := []error{
		cerrors.New("err 1"),
		cerrors.New("err 2"),
		cerrors.New("err 3"),
	}

	var err error
	err = multierror.Append(err, errs[0], nil)
	err = multierror.Append(err, errs[1])
	err = multierror.Append(err, multierror.Append(nil, errs[2]))

	var merr *multierror.Error
	is.True(cerrors.As(err, &merr))
	is.Equal(merr.Errors(), errs)
	is.Equal(err.Error(), "err 1; err 2; err 3")
}

func TestError_Is(t *testing.T) {
	is := is.New(t)
	sentinel := cerrors.New("source unavailable")
	err := multierror.Append(
		cerrors.New("other"),
		cerrors.Errorf("source x: %w", sentinel),
	)
	is.True(cerrors.Is(err, sentinel))
}
