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

package memory

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/clock/testclock"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"go.chromium.org/dsaccess/service/datastore"
)

func entity(kind, name string, props ...any) *datastore.Entity {
	e := datastore.NewEntity(datastore.NewNameKey(kind, name, nil))
	for i := 0; i < len(props); i += 2 {
		e.SetIndexed(props[i].(string), props[i+1].(datastore.Value))
	}
	return e
}

func commit(ctx context.Context, srv *Server, txn []byte, b *datastore.MutationBatch) (*datastorepb.CommitResponse, error) {
	req := &datastorepb.CommitRequest{
		Mode:      datastorepb.CommitRequest_NON_TRANSACTIONAL,
		Mutations: b.ToPB(),
	}
	if txn != nil {
		req.Mode = datastorepb.CommitRequest_TRANSACTIONAL
		req.TransactionSelector = &datastorepb.CommitRequest_Transaction{Transaction: txn}
	}
	return srv.Commit(ctx, req)
}

func lookup(ctx context.Context, srv *Server, txn []byte, keys ...*datastore.Key) (*datastorepb.LookupResponse, error) {
	req := &datastorepb.LookupRequest{}
	for _, k := range keys {
		req.Keys = append(req.Keys, k.ToPB())
	}
	if txn != nil {
		req.ReadOptions = &datastorepb.ReadOptions{
			ConsistencyType: &datastorepb.ReadOptions_Transaction{Transaction: txn},
		}
	}
	return srv.Lookup(ctx, req)
}

func begin(ctx context.Context, srv *Server) []byte {
	res, err := srv.BeginTransaction(ctx, &datastorepb.BeginTransactionRequest{})
	if err != nil {
		panic(err)
	}
	return res.Transaction
}

func TestCommit(t *testing.T) {
	t.Parallel()

	ftt.Run("Commit", t, func(t *ftt.Test) {
		ctx, tc := testclock.UseTime(context.Background(), testclock.TestRecentTimeUTC)
		fresh := func() *Server {
			srv := New()
			srv.Clock = tc
			return srv
		}
		a := entity("K", "a", "n", datastore.Int(1))

		t.Run("insert then lookup", func(t *ftt.Test) {
			srv := fresh()
			res, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Insert(a))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, res.MutationResults, should.HaveLength(1))
			assert.Loosely(t, res.MutationResults[0].Key, should.BeNil)
			assert.Loosely(t, res.IndexUpdates, should.Equal(int32(1)))

			got, err := lookup(ctx, srv, nil, a.Key())
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, got.Found, should.HaveLength(1))
			assert.Loosely(t, got.Found[0].Version, should.Equal(res.MutationResults[0].Version))
			assert.Loosely(t, got.Found[0].CreateTime.AsTime().Equal(tc.Now()), should.BeTrue)
			back, err := datastore.EntityFromPB(got.Found[0].Entity)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, back.String(), should.Equal(a.String()))
		})

		t.Run("insert of an existing entity fails", func(t *ftt.Test) {
			srv := fresh()
			srv.Put(a)
			_, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Insert(a))
			assert.Loosely(t, status.Code(err), should.Equal(codes.AlreadyExists))
		})

		t.Run("update of a missing entity fails", func(t *ftt.Test) {
			srv := fresh()
			_, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Update(entity("K", "missing")))
			assert.Loosely(t, status.Code(err), should.Equal(codes.NotFound))
		})

		t.Run("commits are all or nothing", func(t *ftt.Test) {
			srv := fresh()
			b := entity("K", "b")
			_, err := commit(ctx, srv, nil, datastore.NewMutationBatch().
				Upsert(b).
				Update(entity("K", "missing")))
			assert.Loosely(t, status.Code(err), should.Equal(codes.NotFound))

			got, err := lookup(ctx, srv, nil, b.Key())
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, got.Found, should.BeEmpty)
			assert.Loosely(t, got.Missing, should.HaveLength(1))
		})

		t.Run("earlier mutations count", func(t *ftt.Test) {
			srv := fresh()
			c := entity("K", "c")
			_, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Insert(c).Update(c).Delete(c.Key()))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, srv.Len(), should.Equal(0))
		})

		t.Run("deleting a key that never existed succeeds", func(t *ftt.Test) {
			srv := fresh()
			srv.Put(a)
			res, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Delete(datastore.NewNameKey("K", "never", nil)))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, res.MutationResults, should.HaveLength(1))
			assert.Loosely(t, res.MutationResults[0].Key, should.BeNil)
			assert.Loosely(t, srv.Len(), should.Equal(1))
		})

		t.Run("the second of two upserts wins", func(t *ftt.Test) {
			srv := fresh()
			_, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Upsert(entity("K", "x", "v", datastore.Int(1))))
			assert.Loosely(t, err, should.BeNil)
			_, err = commit(ctx, srv, nil, datastore.NewMutationBatch().Upsert(entity("K", "x", "v", datastore.Int(2))))
			assert.Loosely(t, err, should.BeNil)

			got, err := lookup(ctx, srv, nil, datastore.NewNameKey("K", "x", nil))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, got.Found, should.HaveLength(1))
			back, err := datastore.EntityFromPB(got.Found[0].Entity)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, back.String(), should.Equal(entity("K", "x", "v", datastore.Int(2)).String()))
			assert.Loosely(t, srv.Len(), should.Equal(1))
		})

		t.Run("two upserts of one key in a batch keep the last", func(t *ftt.Test) {
			srv := fresh()
			_, err := commit(ctx, srv, nil, datastore.NewMutationBatch().
				Upsert(entity("K", "y", "v", datastore.Int(1))).
				Upsert(entity("K", "y", "v", datastore.Int(2))))
			assert.Loosely(t, err, should.BeNil)

			got, err := lookup(ctx, srv, nil, datastore.NewNameKey("K", "y", nil))
			assert.Loosely(t, err, should.BeNil)
			back, err := datastore.EntityFromPB(got.Found[0].Entity)
			assert.Loosely(t, err, should.BeNil)
			v, _ := back.Value("v")
			assert.Loosely(t, v.Equal(datastore.Int(2)), should.BeTrue)
		})

		t.Run("upsert keeps the create time", func(t *ftt.Test) {
			srv := fresh()
			srv.Put(a)
			tc.Add(time.Minute)
			res, err := commit(ctx, srv, nil, datastore.NewMutationBatch().Upsert(a))
			assert.Loosely(t, err, should.BeNil)
			mr := res.MutationResults[0]
			assert.Loosely(t, mr.UpdateTime.AsTime().Sub(mr.CreateTime.AsTime()), should.Equal(time.Minute))
		})

		t.Run("incomplete keys get ids", func(t *ftt.Test) {
			srv := fresh()
			res, err := commit(ctx, srv, nil, datastore.NewMutationBatch().
				Insert(datastore.OfKind("K")).
				Upsert(datastore.OfKind("K")))
			assert.Loosely(t, err, should.BeNil)
			k1, err := datastore.KeyFromPB(res.MutationResults[0].Key)
			assert.Loosely(t, err, should.BeNil)
			k2, err := datastore.KeyFromPB(res.MutationResults[1].Key)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, k1.ID(), should.BeGreaterThan(int64(0)))
			assert.Loosely(t, k1.ID(), should.NotEqual(k2.ID()))
			assert.Loosely(t, srv.Len(), should.Equal(2))
		})

		t.Run("unsupported values are rejected", func(t *ftt.Test) {
			srv := fresh()
			_, err := srv.Commit(ctx, &datastorepb.CommitRequest{
				Mode: datastorepb.CommitRequest_NON_TRANSACTIONAL,
				Mutations: []*datastorepb.Mutation{{
					Operation: &datastorepb.Mutation_Upsert{Upsert: &datastorepb.Entity{
						Key: a.Key().ToPB(),
						Properties: map[string]*datastorepb.Value{
							"e": {ValueType: &datastorepb.Value_EntityValue{EntityValue: &datastorepb.Entity{}}},
						},
					}},
				}},
			})
			assert.Loosely(t, status.Code(err), should.Equal(codes.InvalidArgument))
		})
	})
}

func TestTransactions(t *testing.T) {
	t.Parallel()

	ftt.Run("Transactions", t, func(t *ftt.Test) {
		ctx := context.Background()
		a := entity("K", "a", "n", datastore.Int(1))
		fresh := func() *Server {
			srv := New()
			srv.Put(a)
			return srv
		}

		t.Run("commit without conflict", func(t *ftt.Test) {
			srv := fresh()
			txn := begin(ctx, srv)
			_, err := lookup(ctx, srv, txn, a.Key())
			assert.Loosely(t, err, should.BeNil)
			_, err = commit(ctx, srv, txn, datastore.NewMutationBatch().Upsert(a))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, srv.OpenTransactions(), should.Equal(0))
		})

		t.Run("a concurrent write to a read entity aborts", func(t *ftt.Test) {
			srv := fresh()
			txn := begin(ctx, srv)
			_, err := lookup(ctx, srv, txn, a.Key())
			assert.Loosely(t, err, should.BeNil)

			srv.Put(a)

			_, err = commit(ctx, srv, txn, datastore.NewMutationBatch().Upsert(entity("K", "other")))
			assert.Loosely(t, status.Code(err), should.Equal(codes.Aborted))
			assert.Loosely(t, srv.OpenTransactions(), should.Equal(1))

			_, err = srv.Rollback(ctx, &datastorepb.RollbackRequest{Transaction: txn})
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, srv.OpenTransactions(), should.Equal(0))
		})

		t.Run("a concurrent write to a written entity aborts", func(t *ftt.Test) {
			srv := fresh()
			txn := begin(ctx, srv)
			srv.Put(a)
			_, err := commit(ctx, srv, txn, datastore.NewMutationBatch().Delete(a.Key()))
			assert.Loosely(t, status.Code(err), should.Equal(codes.Aborted))
		})

		t.Run("unrelated writes do not abort", func(t *ftt.Test) {
			srv := fresh()
			txn := begin(ctx, srv)
			_, err := lookup(ctx, srv, txn, a.Key())
			assert.Loosely(t, err, should.BeNil)
			srv.Put(entity("K", "unrelated"))
			_, err = commit(ctx, srv, txn, datastore.NewMutationBatch())
			assert.Loosely(t, err, should.BeNil)
		})

		t.Run("rollback ends the transaction", func(t *ftt.Test) {
			srv := fresh()
			txn := begin(ctx, srv)
			_, err := srv.Rollback(ctx, &datastorepb.RollbackRequest{Transaction: txn})
			assert.Loosely(t, err, should.BeNil)
			_, err = srv.Rollback(ctx, &datastorepb.RollbackRequest{Transaction: txn})
			assert.Loosely(t, status.Code(err), should.Equal(codes.InvalidArgument))
			_, err = lookup(ctx, srv, txn, a.Key())
			assert.Loosely(t, status.Code(err), should.Equal(codes.InvalidArgument))
		})

		t.Run("read-only transactions cannot write", func(t *ftt.Test) {
			srv := fresh()
			res, err := srv.BeginTransaction(ctx, &datastorepb.BeginTransactionRequest{
				TransactionOptions: &datastorepb.TransactionOptions{
					Mode: &datastorepb.TransactionOptions_ReadOnly_{ReadOnly: &datastorepb.TransactionOptions_ReadOnly{}},
				},
			})
			assert.Loosely(t, err, should.BeNil)
			_, err = commit(ctx, srv, res.Transaction, datastore.NewMutationBatch().Upsert(a))
			assert.Loosely(t, status.Code(err), should.Equal(codes.FailedPrecondition))
		})
	})
}

func TestLookup(t *testing.T) {
	t.Parallel()

	ftt.Run("Lookup", t, func(t *ftt.Test) {
		ctx := context.Background()
		srv := New()
		var keys []*datastore.Key
		for _, name := range []string{"a", "b", "c", "d", "e"} {
			e := entity("K", name)
			srv.Put(e)
			keys = append(keys, e.Key())
		}

		t.Run("defers keys over the cap", func(t *ftt.Test) {
			srv.MaxLookupKeys = 2
			res, err := lookup(ctx, srv, nil, keys...)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, res.Found, should.HaveLength(2))
			assert.Loosely(t, res.Deferred, should.HaveLength(3))
		})

		t.Run("incomplete keys are rejected", func(t *ftt.Test) {
			_, err := lookup(ctx, srv, nil, datastore.NewKey("K"))
			assert.Loosely(t, status.Code(err), should.Equal(codes.InvalidArgument))
		})
	})
}

func TestIDs(t *testing.T) {
	t.Parallel()

	ftt.Run("AllocateIds / ReserveIds", t, func(t *ftt.Test) {
		ctx := context.Background()
		srv := New()

		_, err := srv.ReserveIds(ctx, &datastorepb.ReserveIdsRequest{
			Keys: []*datastorepb.Key{datastore.NewIDKey("K", 100, nil).ToPB()},
		})
		assert.Loosely(t, err, should.BeNil)

		res, err := srv.AllocateIds(ctx, &datastorepb.AllocateIdsRequest{
			Keys: []*datastorepb.Key{datastore.NewKey("K").ToPB(), datastore.NewKey("K").ToPB()},
		})
		assert.Loosely(t, err, should.BeNil)
		assert.Loosely(t, res.Keys, should.HaveLength(2))
		for _, pb := range res.Keys {
			k, err := datastore.KeyFromPB(pb)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, k.ID(), should.BeGreaterThan(int64(100)))
		}

		_, err = srv.AllocateIds(ctx, &datastorepb.AllocateIdsRequest{
			Keys: []*datastorepb.Key{datastore.NewIDKey("K", 1, nil).ToPB()},
		})
		assert.Loosely(t, status.Code(err), should.Equal(codes.InvalidArgument))
	})
}
