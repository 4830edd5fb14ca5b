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

package ctxutil

import (
	"context"

	"github.com/routestream/routestream/pkg/foundation/database"
)

type transactionCtxKey struct{}

// ContextWithTransaction returns a copy of ctx carrying txn. Database methods
// called with it run inside txn.
func ContextWithTransaction(ctx context.Context, txn database.Transaction) context.Context {
	return context.WithValue(ctx, transactionCtxKey{}, txn)
}

// TransactionFromContext returns the transaction carried by ctx or nil.
func TransactionFromContext(ctx context.Context) database.Transaction {
	txn, _ := ctx.Value(transactionCtxKey{}).(database.Transaction)
	return txn
}

// TransactionAs returns the transaction carried by ctx if it is a T, so each
// backend can get at its own transaction type.
func TransactionAs[T database.Transaction](ctx context.Context) (T, bool) {
	t, ok := TransactionFromContext(ctx).(T)
	return t, ok
}
