// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package txn

import (
	"context"

	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

// TransactionShell is a shell bound to one attempt of a transaction.
//
// Reads go through the embedded shell. Commit and Rollback end the
// transaction; if the body returns without doing either, the runner rolls the
// transaction back.
type TransactionShell struct {
	*shell.Shell

	active bool
}

func newTransactionShell(s *shell.Shell) *TransactionShell {
	return &TransactionShell{Shell: s, active: s.InTransaction()}
}

// Active is true until the transaction is committed or rolled back.
func (t *TransactionShell) Active() bool { return t.active }

// Commit commits the transaction with the mutations of b.
//
// An empty batch returns without a call and leaves the transaction active,
// so the runner releases it with a rollback.
func (t *TransactionShell) Commit(ctx context.Context, b *datastore.MutationBatch) (*datastore.MutationResponse, error) {
	if b.Empty() {
		return &datastore.MutationResponse{}, nil
	}
	res, err := t.Shell.Commit(ctx, b)
	if err == nil {
		t.active = false
	}
	return res, err
}

// Rollback abandons the transaction.
func (t *TransactionShell) Rollback(ctx context.Context) error {
	err := t.Shell.Rollback(ctx, nil)
	if err == nil {
		t.active = false
	}
	return err
}
