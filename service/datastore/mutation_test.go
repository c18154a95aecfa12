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
	"slices"
	"testing"
	"time"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
)

func TestMutations(t *testing.T) {
	t.Parallel()

	ftt.Run("MutationBatch", t, func(t *ftt.Test) {
		a := NewEntity(NewNameKey("K", "a", nil))
		b := NewEntity(NewNameKey("K", "b", nil))
		gone := NewIDKey("K", 3, nil)

		t.Run("keeps order", func(t *ftt.Test) {
			batch := NewMutationBatch().Insert(a).Update(b).Upsert(a).Delete(gone)
			assert.Loosely(t, batch.Len(), should.Equal(4))

			pbs := batch.ToPB()
			assert.Loosely(t, pbs[0].GetInsert().GetKey().Path[0].GetName(), should.Equal("a"))
			assert.Loosely(t, pbs[1].GetUpdate().GetKey().Path[0].GetName(), should.Equal("b"))
			assert.Loosely(t, pbs[2].GetUpsert().GetKey().Path[0].GetName(), should.Equal("a"))
			assert.Loosely(t, pbs[3].GetDelete().Path[0].GetId(), should.Equal(int64(3)))

			ms := batch.Mutations()
			assert.Loosely(t, ms[3].TargetKey().Equal(gone), should.BeTrue)
			assert.Loosely(t, ms[1].TargetKey().Equal(b.Key()), should.BeTrue)
			assert.Loosely(t, ms[0].String(), should.Equal(`insert(Entity(K(name:"a")){})`))
			assert.Loosely(t, ms[3].String(), should.Equal(`delete(K(id:3))`))
		})

		t.Run("bulk helpers", func(t *ftt.Test) {
			batch := NewMutationBatch().
				UpsertAll(slices.Values([]*Entity{a, b})).
				DeleteAll(Keys(gone))
			assert.Loosely(t, batch.Len(), should.Equal(3))
			assert.Loosely(t, batch.Mutations()[2].Op, should.Equal(OpDelete))
		})

		t.Run("empty", func(t *ftt.Test) {
			batch := NewMutationBatch()
			assert.Loosely(t, batch.Empty(), should.BeTrue)
			assert.Loosely(t, batch.ToPB(), should.BeEmpty)
		})
	})

	ftt.Run("MutationResponseFromPB", t, func(t *ftt.Test) {
		now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		t.Run("converts results", func(t *ftt.Test) {
			res, err := MutationResponseFromPB(&datastorepb.CommitResponse{
				MutationResults: []*datastorepb.MutationResult{
					{Key: NewIDKey("K", 42, nil).ToPB(), Version: 7, CreateTime: timestamppb.New(now)},
					{Version: 8, ConflictDetected: true},
				},
				IndexUpdates: 3,
				CommitTime:   timestamppb.New(now),
			})
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, res.Results, should.HaveLength(2))
			assert.Loosely(t, res.Results[0].Key.ID(), should.Equal(int64(42)))
			assert.Loosely(t, res.Results[0].Version, should.Equal(int64(7)))
			assert.Loosely(t, res.Results[0].CreateTime.Equal(now), should.BeTrue)
			assert.Loosely(t, res.Results[1].Key, should.BeNil)
			assert.Loosely(t, res.Results[1].ConflictDetected, should.BeTrue)
			assert.Loosely(t, res.Results[1].UpdateTime.IsZero(), should.BeTrue)
			assert.Loosely(t, res.IndexUpdates, should.Equal(int32(3)))
			assert.Loosely(t, res.CommitTime.Equal(now), should.BeTrue)
		})

		t.Run("bad keys fail", func(t *ftt.Test) {
			_, err := MutationResponseFromPB(&datastorepb.CommitResponse{
				MutationResults: []*datastorepb.MutationResult{{Key: &datastorepb.Key{}}},
			})
			assert.Loosely(t, err, should.ErrLike(ErrInvalidKey))
		})
	})
}
