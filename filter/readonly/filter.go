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

// Package readonly implements a transport filter that enforces read-only
// access to datastore.
//
// This is useful for tools pointed at production data that must never change
// it, and for read replicas of a service sharing its datastore.
package readonly

import (
	"context"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

// ErrReadOnly is returned for calls that would change read-only data.
var ErrReadOnly = status.Error(codes.FailedPrecondition, "readonly: datastore is read-only")

type transport struct {
	shell.Transport

	isRO func(*datastore.Key) bool
}

// readOnly is true if the key may not be written. Undecodable keys are
// treated as read-only.
func (t *transport) readOnly(pb *datastorepb.Key) bool {
	if t.isRO == nil {
		return true
	}
	k, err := datastore.KeyFromPB(pb)
	return err != nil || t.isRO(k)
}

func mutationKey(m *datastorepb.Mutation) *datastorepb.Key {
	switch op := m.GetOperation().(type) {
	case *datastorepb.Mutation_Insert:
		return op.Insert.GetKey()
	case *datastorepb.Mutation_Update:
		return op.Update.GetKey()
	case *datastorepb.Mutation_Upsert:
		return op.Upsert.GetKey()
	case *datastorepb.Mutation_Delete:
		return op.Delete
	}
	return nil
}

func (t *transport) Commit(ctx context.Context, in *datastorepb.CommitRequest, opts ...grpc.CallOption) (*datastorepb.CommitResponse, error) {
	for _, m := range in.GetMutations() {
		if t.readOnly(mutationKey(m)) {
			return nil, ErrReadOnly
		}
	}
	return t.Transport.Commit(ctx, in, opts...)
}

func (t *transport) AllocateIds(ctx context.Context, in *datastorepb.AllocateIdsRequest, opts ...grpc.CallOption) (*datastorepb.AllocateIdsResponse, error) {
	for _, k := range in.GetKeys() {
		if t.readOnly(k) {
			return nil, ErrReadOnly
		}
	}
	return t.Transport.AllocateIds(ctx, in, opts...)
}

func (t *transport) ReserveIds(ctx context.Context, in *datastorepb.ReserveIdsRequest, opts ...grpc.CallOption) (*datastorepb.ReserveIdsResponse, error) {
	for _, k := range in.GetKeys() {
		if t.readOnly(k) {
			return nil, ErrReadOnly
		}
	}
	return t.Transport.ReserveIds(ctx, in, opts...)
}

// Filter wraps tr into a transport rejecting writes of read-only keys with
// ErrReadOnly.
//
// isRO decides if a key is read-only. If nil, all keys are. Commits without
// mutations still go through, so transactions can be used for consistent
// reads.
func Filter(tr shell.Transport, isRO func(*datastore.Key) bool) shell.Transport {
	return &transport{tr, isRO}
}
