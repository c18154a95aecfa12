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

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"go.chromium.org/dsaccess/service/datastore"
)

// staged is a validated mutation waiting to be applied.
type staged struct {
	id        string
	entity    *datastore.Entity // nil for deletes
	allocated *datastore.Key
}

func (s *Server) Commit(ctx context.Context, req *datastorepb.CommitRequest) (*datastorepb.CommitResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var txn *txnState
	switch req.GetMode() {
	case datastorepb.CommitRequest_TRANSACTIONAL:
		var err error
		if txn, err = s.txnLocked(req.GetTransaction()); err != nil {
			return nil, err
		}
		if txn.readOnly && len(req.GetMutations()) > 0 {
			return nil, status.Errorf(codes.FailedPrecondition, "read-only transaction cannot write")
		}
	case datastorepb.CommitRequest_NON_TRANSACTIONAL:
		if len(req.GetTransaction()) > 0 {
			return nil, status.Errorf(codes.InvalidArgument, "non-transactional commit with a transaction")
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unspecified commit mode")
	}

	plan, err := s.stageLocked(req.GetMutations())
	if err != nil {
		return nil, err
	}

	if txn != nil {
		touched := txn.reads.Dup()
		for _, st := range plan {
			touched.Add(st.id)
		}
		conflict := false
		touched.Iter(func(id string) bool {
			conflict = s.versions[id] > txn.start
			return !conflict
		})
		if conflict {
			return nil, status.Errorf(codes.Aborted, "too much contention on these datastore entities, please try again")
		}
		// A failed commit leaves the transaction open for a rollback.
		delete(s.txns, string(req.GetTransaction()))
	}

	now := s.Clock.Now().UTC()
	res := &datastorepb.CommitResponse{
		MutationResults: make([]*datastorepb.MutationResult, len(plan)),
		CommitTime:      timestamppb.New(now),
	}
	if len(plan) > 0 {
		s.version++
	}
	for i, st := range plan {
		mr := &datastorepb.MutationResult{Version: s.version}
		if st.entity == nil {
			delete(s.entities, st.id)
			s.versions[st.id] = s.version
		} else {
			s.writeLocked(st.id, st.entity, now)
			rec := s.entities[st.id]
			mr.CreateTime = timestamppb.New(rec.createTime)
			mr.UpdateTime = timestamppb.New(rec.updateTime)
			for _, name := range st.entity.Names() {
				if st.entity.IsIndexed(name) {
					res.IndexUpdates++
				}
			}
		}
		if st.allocated != nil {
			mr.Key = st.allocated.ToPB()
		}
		res.MutationResults[i] = mr
	}
	return res, nil
}

// stageLocked validates mutations in order against the current data plus the
// effect of the earlier mutations of the same commit. Nothing is written.
func (s *Server) stageLocked(muts []*datastorepb.Mutation) ([]staged, error) {
	exists := map[string]bool{}
	existsNow := func(id string) bool {
		if e, ok := exists[id]; ok {
			return e
		}
		_, ok := s.entities[id]
		return ok
	}

	plan := make([]staged, 0, len(muts))
	for i, m := range muts {
		var pbEnt *datastorepb.Entity
		var op datastore.MutationOp
		switch o := m.GetOperation().(type) {
		case *datastorepb.Mutation_Insert:
			op, pbEnt = datastore.OpInsert, o.Insert
		case *datastorepb.Mutation_Update:
			op, pbEnt = datastore.OpUpdate, o.Update
		case *datastorepb.Mutation_Upsert:
			op, pbEnt = datastore.OpUpsert, o.Upsert
		case *datastorepb.Mutation_Delete:
			key, err := parseKey(o.Delete, true)
			if err != nil {
				return nil, err
			}
			id := key.String()
			exists[id] = false
			plan = append(plan, staged{id: id})
			continue
		default:
			return nil, status.Errorf(codes.InvalidArgument, "mutation %d has no operation", i)
		}

		e, err := datastore.EntityFromPB(pbEnt)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "mutation %d: %s", i, err)
		}
		if e.Key() == nil {
			return nil, status.Errorf(codes.InvalidArgument, "mutation %d: entity has no key", i)
		}
		st := staged{entity: e}
		if e.Key().IsIncomplete() {
			if op == datastore.OpUpdate {
				return nil, status.Errorf(codes.InvalidArgument, "mutation %d: update of incomplete key %s", i, e.Key())
			}
			st.allocated = e.Key().WithID(s.allocateLocked())
			e.SetKey(st.allocated)
		}
		if _, err := parseKey(e.Key().ToPB(), true); err != nil {
			return nil, err
		}
		st.id = e.Key().String()

		switch {
		case op == datastore.OpInsert && existsNow(st.id):
			return nil, status.Errorf(codes.AlreadyExists, "entity %s already exists", e.Key())
		case op == datastore.OpUpdate && !existsNow(st.id):
			return nil, status.Errorf(codes.NotFound, "no entity to update: %s", e.Key())
		}
		exists[st.id] = true
		plan = append(plan, st)
	}
	return plan, nil
}
