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

package shell

import (
	"context"
	"iter"

	"cloud.google.com/go/datastore/apiv1/datastorepb"

	"go.chromium.org/luci/common/errors"

	"go.chromium.org/dsaccess/service/datastore"
)

// Commit applies a batch of mutations, inside the shell's transaction if it
// has one.
//
// An empty batch makes no call and returns an empty response.
func (s *Shell) Commit(ctx context.Context, b *datastore.MutationBatch) (*datastore.MutationResponse, error) {
	if b.Empty() {
		return &datastore.MutationResponse{}, nil
	}
	req := &datastorepb.CommitRequest{
		ProjectId:  s.projectID,
		DatabaseId: s.databaseID,
		Mode:       datastorepb.CommitRequest_NON_TRANSACTIONAL,
		Mutations:  b.ToPB(),
	}
	if s.txn != nil {
		req.Mode = datastorepb.CommitRequest_TRANSACTIONAL
		req.TransactionSelector = &datastorepb.CommitRequest_Transaction{Transaction: s.txn}
	}
	res, err := call(ctx, s, "Commit", req, s.tr.Commit)
	if err != nil {
		return nil, err
	}
	ret, err := datastore.MutationResponseFromPB(res)
	if err != nil {
		return nil, errors.Annotate(err, "decoding commit response").Err()
	}
	return ret, nil
}

// BeginTransaction starts a read-write transaction and returns a shell bound
// to it.
//
// previous, if not nil, is the token of a transaction that failed and is
// being retried. The service uses it to keep the retry's place in line.
func (s *Shell) BeginTransaction(ctx context.Context, previous []byte) (*Shell, error) {
	res, err := call(ctx, s, "BeginTransaction", &datastorepb.BeginTransactionRequest{
		ProjectId:  s.projectID,
		DatabaseId: s.databaseID,
		TransactionOptions: &datastorepb.TransactionOptions{
			Mode: &datastorepb.TransactionOptions_ReadWrite_{
				ReadWrite: &datastorepb.TransactionOptions_ReadWrite{PreviousTransaction: previous},
			},
		},
	}, s.tr.BeginTransaction)
	if err != nil {
		return nil, err
	}
	return s.WithTransaction(res.GetTransaction()), nil
}

// BeginReadOnlyTransaction starts a read-only transaction and returns a shell
// bound to it. Such a transaction sees a consistent snapshot and cannot
// commit mutations.
func (s *Shell) BeginReadOnlyTransaction(ctx context.Context) (*Shell, error) {
	res, err := call(ctx, s, "BeginTransaction", &datastorepb.BeginTransactionRequest{
		ProjectId:  s.projectID,
		DatabaseId: s.databaseID,
		TransactionOptions: &datastorepb.TransactionOptions{
			Mode: &datastorepb.TransactionOptions_ReadOnly_{
				ReadOnly: &datastorepb.TransactionOptions_ReadOnly{},
			},
		},
	}, s.tr.BeginTransaction)
	if err != nil {
		return nil, err
	}
	return s.WithTransaction(res.GetTransaction()), nil
}

// Rollback rolls back the transaction with the given token, or the shell's
// own transaction if token is nil. Without either it does nothing.
func (s *Shell) Rollback(ctx context.Context, token []byte) error {
	if token == nil {
		token = s.txn
	}
	if token == nil {
		return nil
	}
	_, err := call(ctx, s, "Rollback", &datastorepb.RollbackRequest{
		ProjectId:   s.projectID,
		DatabaseId:  s.databaseID,
		Transaction: token,
	}, s.tr.Rollback)
	return err
}

func keysToPB(keys iter.Seq[*datastore.Key]) []*datastorepb.Key {
	var ret []*datastorepb.Key
	for k := range keys {
		ret = append(ret, k.ToPB())
	}
	return ret
}

// AllocateIDs completes incomplete keys with ids reserved by the service.
// The result matches keys one to one.
func (s *Shell) AllocateIDs(ctx context.Context, keys iter.Seq[*datastore.Key]) ([]*datastore.Key, error) {
	pbs := keysToPB(keys)
	if len(pbs) == 0 {
		return nil, nil
	}
	res, err := call(ctx, s, "AllocateIds", &datastorepb.AllocateIdsRequest{
		ProjectId:  s.projectID,
		DatabaseId: s.databaseID,
		Keys:       pbs,
	}, s.tr.AllocateIds)
	if err != nil {
		return nil, err
	}
	if len(res.GetKeys()) != len(pbs) {
		return nil, errors.Reason("AllocateIds returned %d keys for %d requested", len(res.GetKeys()), len(pbs)).Err()
	}
	ret := make([]*datastore.Key, len(pbs))
	for i, pb := range res.GetKeys() {
		if ret[i], err = datastore.KeyFromPB(pb); err != nil {
			return nil, errors.Annotate(err, "decoding allocated key").Err()
		}
	}
	return ret, nil
}

// ReserveIDs stops the service from allocating the ids of complete keys.
func (s *Shell) ReserveIDs(ctx context.Context, keys iter.Seq[*datastore.Key]) error {
	pbs := keysToPB(keys)
	if len(pbs) == 0 {
		return nil
	}
	_, err := call(ctx, s, "ReserveIds", &datastorepb.ReserveIdsRequest{
		ProjectId:  s.projectID,
		DatabaseId: s.databaseID,
		Keys:       pbs,
	}, s.tr.ReserveIds)
	return err
}
