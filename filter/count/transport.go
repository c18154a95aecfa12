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

package count

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc"

	"go.chromium.org/dsaccess/impl/shell"
)

// Counter counts the calls of every RPC of a transport.
type Counter struct {
	Lookup           Entry
	RunQuery         Entry
	BeginTransaction Entry
	Commit           Entry
	Rollback         Entry
	AllocateIds      Entry
	ReserveIds       Entry
}

func (c *Counter) String() string {
	return fmt.Sprintf(
		"{Lookup:%s, RunQuery:%s, BeginTransaction:%s, Commit:%s, Rollback:%s, AllocateIds:%s, ReserveIds:%s}",
		&c.Lookup, &c.RunQuery, &c.BeginTransaction, &c.Commit, &c.Rollback, &c.AllocateIds, &c.ReserveIds)
}

type transport struct {
	c *Counter

	tr shell.Transport
}

var _ shell.Transport = (*transport)(nil)

func (t *transport) Lookup(ctx context.Context, in *datastorepb.LookupRequest, opts ...grpc.CallOption) (*datastorepb.LookupResponse, error) {
	ret, err := t.tr.Lookup(ctx, in, opts...)
	return ret, t.c.Lookup.up(err)
}

func (t *transport) RunQuery(ctx context.Context, in *datastorepb.RunQueryRequest, opts ...grpc.CallOption) (*datastorepb.RunQueryResponse, error) {
	ret, err := t.tr.RunQuery(ctx, in, opts...)
	return ret, t.c.RunQuery.up(err)
}

func (t *transport) BeginTransaction(ctx context.Context, in *datastorepb.BeginTransactionRequest, opts ...grpc.CallOption) (*datastorepb.BeginTransactionResponse, error) {
	ret, err := t.tr.BeginTransaction(ctx, in, opts...)
	return ret, t.c.BeginTransaction.up(err)
}

func (t *transport) Commit(ctx context.Context, in *datastorepb.CommitRequest, opts ...grpc.CallOption) (*datastorepb.CommitResponse, error) {
	ret, err := t.tr.Commit(ctx, in, opts...)
	return ret, t.c.Commit.up(err)
}

func (t *transport) Rollback(ctx context.Context, in *datastorepb.RollbackRequest, opts ...grpc.CallOption) (*datastorepb.RollbackResponse, error) {
	ret, err := t.tr.Rollback(ctx, in, opts...)
	return ret, t.c.Rollback.up(err)
}

func (t *transport) AllocateIds(ctx context.Context, in *datastorepb.AllocateIdsRequest, opts ...grpc.CallOption) (*datastorepb.AllocateIdsResponse, error) {
	ret, err := t.tr.AllocateIds(ctx, in, opts...)
	return ret, t.c.AllocateIds.up(err)
}

func (t *transport) ReserveIds(ctx context.Context, in *datastorepb.ReserveIdsRequest, opts ...grpc.CallOption) (*datastorepb.ReserveIdsResponse, error) {
	ret, err := t.tr.ReserveIds(ctx, in, opts...)
	return ret, t.c.ReserveIds.up(err)
}

// Filter wraps tr into a transport counting its calls.
func Filter(tr shell.Transport) (shell.Transport, *Counter) {
	c := &Counter{}
	return &transport{c, tr}, c
}
