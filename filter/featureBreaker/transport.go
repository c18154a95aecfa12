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

package featureBreaker

import (
	"context"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc"

	"go.chromium.org/dsaccess/impl/shell"
)

type transport struct {
	*state

	tr shell.Transport
}

var _ shell.Transport = (*transport)(nil)

func run[Resp any](ctx context.Context, s *state, feature string, f func() (Resp, error)) (ret Resp, err error) {
	if err = s.check(ctx, feature); err != nil {
		return ret, err
	}
	return f()
}

func (t *transport) Lookup(ctx context.Context, in *datastorepb.LookupRequest, opts ...grpc.CallOption) (*datastorepb.LookupResponse, error) {
	return run(ctx, t.state, "Lookup", func() (*datastorepb.LookupResponse, error) {
		return t.tr.Lookup(ctx, in, opts...)
	})
}

func (t *transport) RunQuery(ctx context.Context, in *datastorepb.RunQueryRequest, opts ...grpc.CallOption) (*datastorepb.RunQueryResponse, error) {
	return run(ctx, t.state, "RunQuery", func() (*datastorepb.RunQueryResponse, error) {
		return t.tr.RunQuery(ctx, in, opts...)
	})
}

func (t *transport) BeginTransaction(ctx context.Context, in *datastorepb.BeginTransactionRequest, opts ...grpc.CallOption) (*datastorepb.BeginTransactionResponse, error) {
	return run(ctx, t.state, "BeginTransaction", func() (*datastorepb.BeginTransactionResponse, error) {
		return t.tr.BeginTransaction(ctx, in, opts...)
	})
}

func (t *transport) Commit(ctx context.Context, in *datastorepb.CommitRequest, opts ...grpc.CallOption) (*datastorepb.CommitResponse, error) {
	return run(ctx, t.state, "Commit", func() (*datastorepb.CommitResponse, error) {
		return t.tr.Commit(ctx, in, opts...)
	})
}

func (t *transport) Rollback(ctx context.Context, in *datastorepb.RollbackRequest, opts ...grpc.CallOption) (*datastorepb.RollbackResponse, error) {
	return run(ctx, t.state, "Rollback", func() (*datastorepb.RollbackResponse, error) {
		return t.tr.Rollback(ctx, in, opts...)
	})
}

func (t *transport) AllocateIds(ctx context.Context, in *datastorepb.AllocateIdsRequest, opts ...grpc.CallOption) (*datastorepb.AllocateIdsResponse, error) {
	return run(ctx, t.state, "AllocateIds", func() (*datastorepb.AllocateIdsResponse, error) {
		return t.tr.AllocateIds(ctx, in, opts...)
	})
}

func (t *transport) ReserveIds(ctx context.Context, in *datastorepb.ReserveIdsRequest, opts ...grpc.CallOption) (*datastorepb.ReserveIdsResponse, error) {
	return run(ctx, t.state, "ReserveIds", func() (*datastorepb.ReserveIdsResponse, error) {
		return t.tr.ReserveIds(ctx, in, opts...)
	})
}

// Filter wraps tr into a transport whose features can be broken.
//
// defaultError is returned by features broken without an explicit error. If
// nil, it is ErrBrokenFeaturesBroken.
func Filter(tr shell.Transport, defaultError error) (shell.Transport, FeatureBreaker) {
	state := newState(defaultError)
	return &transport{state, tr}, state
}
