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

// Package shell issues the Cloud Datastore RPCs on behalf of typed callers.
//
// A Shell binds a Transport to a project and database and, optionally, to an
// open transaction. Shells are immutable: starting a transaction returns a
// new Shell and leaves the original untouched, so a Shell may be shared
// between goroutines.
package shell

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"go.chromium.org/luci/common/clock"

	"go.chromium.org/dsaccess/internal/tracing"
	"go.chromium.org/dsaccess/service/datastore"
)

// Transport is the subset of the Datastore gRPC API used by the shell.
//
// datastorepb.DatastoreClient implements it. Filters wrap it.
type Transport interface {
	Lookup(ctx context.Context, in *datastorepb.LookupRequest, opts ...grpc.CallOption) (*datastorepb.LookupResponse, error)
	RunQuery(ctx context.Context, in *datastorepb.RunQueryRequest, opts ...grpc.CallOption) (*datastorepb.RunQueryResponse, error)
	BeginTransaction(ctx context.Context, in *datastorepb.BeginTransactionRequest, opts ...grpc.CallOption) (*datastorepb.BeginTransactionResponse, error)
	Commit(ctx context.Context, in *datastorepb.CommitRequest, opts ...grpc.CallOption) (*datastorepb.CommitResponse, error)
	Rollback(ctx context.Context, in *datastorepb.RollbackRequest, opts ...grpc.CallOption) (*datastorepb.RollbackResponse, error)
	AllocateIds(ctx context.Context, in *datastorepb.AllocateIdsRequest, opts ...grpc.CallOption) (*datastorepb.AllocateIdsResponse, error)
	ReserveIds(ctx context.Context, in *datastorepb.ReserveIdsRequest, opts ...grpc.CallOption) (*datastorepb.ReserveIdsResponse, error)
}

var _ Transport = datastorepb.DatastoreClient(nil)

// DefaultLookupBatchSize is the number of keys sent in one Lookup call.
const DefaultLookupBatchSize = 1000

// Shell issues datastore RPCs for one project and database.
type Shell struct {
	tr          Transport
	projectID   string
	databaseID  string
	txn         []byte
	lookupBatch int
	readRetries int
}

// New returns a shell over tr for the default database of the project.
func New(tr Transport, projectID string) *Shell {
	return &Shell{
		tr:          tr,
		projectID:   projectID,
		lookupBatch: DefaultLookupBatchSize,
	}
}

func (s *Shell) clone() *Shell {
	ret := *s
	return &ret
}

// WithDatabase returns a shell talking to the named database. "" is the
// default database.
func (s *Shell) WithDatabase(databaseID string) *Shell {
	ret := s.clone()
	ret.databaseID = databaseID
	return ret
}

// WithLookupBatchSize returns a shell sending at most n keys per Lookup. n
// <= 0 restores the default.
func (s *Shell) WithLookupBatchSize(n int) *Shell {
	if n <= 0 {
		n = DefaultLookupBatchSize
	}
	ret := s.clone()
	ret.lookupBatch = n
	return ret
}

// WithReadRetries returns a shell retrying Lookup and RunQuery calls up to n
// times on transient errors. Commits are never retried.
func (s *Shell) WithReadRetries(n int) *Shell {
	ret := s.clone()
	ret.readRetries = n
	return ret
}

// WithTransaction returns a shell bound to a transaction token. A nil token
// returns a non-transactional shell.
func (s *Shell) WithTransaction(token []byte) *Shell {
	ret := s.clone()
	ret.txn = token
	return ret
}

func (s *Shell) Transport() Transport { return s.tr }
func (s *Shell) ProjectID() string    { return s.projectID }
func (s *Shell) DatabaseID() string   { return s.databaseID }

// Transaction is the token of the transaction the shell is bound to, or nil.
func (s *Shell) Transaction() []byte { return s.txn }

// InTransaction is true if the shell is bound to a transaction.
func (s *Shell) InTransaction() bool { return s.txn != nil }

func (s *Shell) String() string {
	ret := fmt.Sprintf("shell(%s", s.projectID)
	if s.databaseID != "" {
		ret += "/" + s.databaseID
	}
	if s.txn != nil {
		ret += ", in transaction"
	}
	return ret + ")"
}

// readOptions selects the transaction, or strong consistency outside of one.
func (s *Shell) readOptions() *datastorepb.ReadOptions {
	if s.txn != nil {
		return &datastorepb.ReadOptions{
			ConsistencyType: &datastorepb.ReadOptions_Transaction{Transaction: s.txn},
		}
	}
	return &datastorepb.ReadOptions{
		ConsistencyType: &datastorepb.ReadOptions_ReadConsistency_{
			ReadConsistency: datastorepb.ReadOptions_STRONG,
		},
	}
}

func (s *Shell) partition() *datastorepb.PartitionId {
	return &datastorepb.PartitionId{ProjectId: s.projectID, DatabaseId: s.databaseID}
}

// routingParams is the value of the x-goog-request-params header.
func (s *Shell) routingParams() string {
	v := url.Values{}
	v.Set("project_id", s.projectID)
	if s.databaseID != "" {
		v.Set("database_id", s.databaseID)
	}
	return v.Encode()
}

// call runs one RPC with routing metadata, a span and metrics. Transport
// errors come back as RequestFailure errors.
func call[Req, Resp any](ctx context.Context, s *Shell, method string, req Req, rpc func(context.Context, Req, ...grpc.CallOption) (Resp, error)) (resp Resp, err error) {
	ctx, span := tracing.Start(ctx, "go.chromium.org/dsaccess/impl/shell."+method,
		attribute.String("dsaccess.project", s.projectID),
		attribute.String("dsaccess.database", s.databaseID),
		attribute.Bool("dsaccess.transactional", s.txn != nil),
	)
	defer func() { tracing.End(span, err) }()

	ctx = metadata.AppendToOutgoingContext(ctx, "x-goog-request-params", s.routingParams())
	start := clock.Now(ctx)
	resp, err = rpc(ctx, req)
	reportCall(ctx, method, start, err)
	if err != nil {
		return resp, datastore.RequestFailed(method, err)
	}
	return resp, nil
}
