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

package datastore

import (
	"fmt"
	"iter"
	"time"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// MutationOp is the kind of a Mutation.
type MutationOp int

const (
	// OpInsert fails if the entity already exists.
	OpInsert MutationOp = iota + 1
	// OpUpdate fails if the entity does not exist.
	OpUpdate
	// OpUpsert writes the entity whether or not it exists.
	OpUpsert
	// OpDelete removes the entity. Deleting a missing entity is not an error.
	OpDelete
)

func (op MutationOp) String() string {
	switch op {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpUpsert:
		return "upsert"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("MutationOp(%d)", int(op))
}

// Mutation is a single write.
//
// Entity is set for inserts, updates and upserts, Key for deletes.
type Mutation struct {
	Op     MutationOp
	Entity *Entity
	Key    *Key
}

func Insert(e *Entity) Mutation { return Mutation{Op: OpInsert, Entity: e} }
func Update(e *Entity) Mutation { return Mutation{Op: OpUpdate, Entity: e} }
func Upsert(e *Entity) Mutation { return Mutation{Op: OpUpsert, Entity: e} }
func Delete(k *Key) Mutation    { return Mutation{Op: OpDelete, Key: k} }

// TargetKey is the key the mutation writes.
func (m Mutation) TargetKey() *Key {
	if m.Op == OpDelete {
		return m.Key
	}
	return m.Entity.Key()
}

func (m Mutation) String() string {
	if m.Op == OpDelete {
		return fmt.Sprintf("delete(%s)", m.Key)
	}
	return fmt.Sprintf("%s(%s)", m.Op, m.Entity)
}

// ToPB converts m to its wire form.
func (m Mutation) ToPB() *datastorepb.Mutation {
	switch m.Op {
	case OpInsert:
		return &datastorepb.Mutation{Operation: &datastorepb.Mutation_Insert{Insert: m.Entity.ToPB()}}
	case OpUpdate:
		return &datastorepb.Mutation{Operation: &datastorepb.Mutation_Update{Update: m.Entity.ToPB()}}
	case OpUpsert:
		return &datastorepb.Mutation{Operation: &datastorepb.Mutation_Upsert{Upsert: m.Entity.ToPB()}}
	case OpDelete:
		return &datastorepb.Mutation{Operation: &datastorepb.Mutation_Delete{Delete: m.Key.ToPB()}}
	}
	panic(fmt.Sprintf("unknown mutation op %d", m.Op))
}

// MutationBatch is an ordered list of mutations committed together.
//
// The builder methods append and return the batch, so calls can be chained:
//
//	batch := datastore.NewMutationBatch().Upsert(a).Delete(b.Key())
type MutationBatch struct {
	mutations []Mutation
}

// NewMutationBatch returns an empty batch.
func NewMutationBatch() *MutationBatch {
	return &MutationBatch{}
}

// Add appends mutations.
func (b *MutationBatch) Add(ms ...Mutation) *MutationBatch {
	b.mutations = append(b.mutations, ms...)
	return b
}

func (b *MutationBatch) Insert(e *Entity) *MutationBatch { return b.Add(Insert(e)) }
func (b *MutationBatch) Update(e *Entity) *MutationBatch { return b.Add(Update(e)) }
func (b *MutationBatch) Upsert(e *Entity) *MutationBatch { return b.Add(Upsert(e)) }
func (b *MutationBatch) Delete(k *Key) *MutationBatch    { return b.Add(Delete(k)) }

// InsertAll appends an insert per entity.
func (b *MutationBatch) InsertAll(es iter.Seq[*Entity]) *MutationBatch {
	for e := range es {
		b.Insert(e)
	}
	return b
}

// UpdateAll appends an update per entity.
func (b *MutationBatch) UpdateAll(es iter.Seq[*Entity]) *MutationBatch {
	for e := range es {
		b.Update(e)
	}
	return b
}

// UpsertAll appends an upsert per entity.
func (b *MutationBatch) UpsertAll(es iter.Seq[*Entity]) *MutationBatch {
	for e := range es {
		b.Upsert(e)
	}
	return b
}

// DeleteAll appends a delete per key.
func (b *MutationBatch) DeleteAll(keys iter.Seq[*Key]) *MutationBatch {
	for k := range keys {
		b.Delete(k)
	}
	return b
}

func (b *MutationBatch) Len() int    { return len(b.mutations) }
func (b *MutationBatch) Empty() bool { return len(b.mutations) == 0 }

// Mutations returns a copy of the mutations, in order.
func (b *MutationBatch) Mutations() []Mutation {
	return append([]Mutation(nil), b.mutations...)
}

// ToPB converts the batch to its wire form, keeping the order.
func (b *MutationBatch) ToPB() []*datastorepb.Mutation {
	ret := make([]*datastorepb.Mutation, len(b.mutations))
	for i, m := range b.mutations {
		ret[i] = m.ToPB()
	}
	return ret
}

// MutationResult is the outcome of one mutation of a batch.
type MutationResult struct {
	// Key is the key the service allocated for an incomplete key, nil
	// otherwise.
	Key *Key
	// Version of the entity after the write. For deletes of missing entities
	// this is the version of the "missing" entity.
	Version    int64
	CreateTime time.Time
	UpdateTime time.Time
	// ConflictDetected is set if the service saw a conflict with the
	// mutation's base version.
	ConflictDetected bool
}

// MutationResponse is the outcome of a commit.
type MutationResponse struct {
	// Results match the mutations of the committed batch one to one.
	Results      []MutationResult
	IndexUpdates int32
	CommitTime   time.Time
}

// MutationResponseFromPB converts a commit response.
func MutationResponseFromPB(pb *datastorepb.CommitResponse) (*MutationResponse, error) {
	ret := &MutationResponse{
		Results:      make([]MutationResult, len(pb.GetMutationResults())),
		IndexUpdates: pb.GetIndexUpdates(),
		CommitTime:   asTime(pb.GetCommitTime()),
	}
	for i, r := range pb.GetMutationResults() {
		res := MutationResult{
			Version:          r.GetVersion(),
			CreateTime:       asTime(r.GetCreateTime()),
			UpdateTime:       asTime(r.GetUpdateTime()),
			ConflictDetected: r.GetConflictDetected(),
		}
		if r.GetKey() != nil {
			var err error
			if res.Key, err = KeyFromPB(r.Key); err != nil {
				return nil, err
			}
		}
		ret.Results[i] = res
	}
	return ret, nil
}

func asTime(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}
