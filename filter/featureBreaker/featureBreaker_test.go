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
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"go.chromium.org/dsaccess/impl/memory"
	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

func TestBrokenFeatures(t *testing.T) {
	t.Parallel()

	ftt.Run("Test featureBreaker", t, func(t *ftt.Test) {
		ctx := context.Background()
		client, stop, err := memory.NewClient(ctx, memory.New())
		assert.Loosely(t, err, should.BeNil)
		defer stop()

		key := datastore.NewNameKey("K", "a", nil)

		t.Run("Can break and unbreak features", func(t *ftt.Test) {
			tr, fb := Filter(client, nil)
			s := shell.New(tr, "proj")

			fb.BreakFeatures(nil, "Lookup")
			_, err := s.GetSingle(ctx, key)
			assert.Loosely(t, datastore.IsKind(err, datastore.RequestFailure), should.BeTrue)
			assert.Loosely(t, status.Code(datastore.TransportError(err)), should.Equal(codes.Unavailable))

			// Other features still work.
			_, err = s.RunQuery(ctx, datastore.NewQuery("K"))
			assert.Loosely(t, err, should.BeNil)

			fb.UnbreakFeatures("Lookup")
			_, err = s.GetSingle(ctx, key)
			assert.Loosely(t, err, should.BeNil)
		})

		t.Run("Can use a custom default error", func(t *ftt.Test) {
			tr, fb := Filter(client, status.Error(codes.PermissionDenied, "nope"))
			fb.BreakFeatures(nil, DatastoreFeatures...)
			_, err := shell.New(tr, "proj").RunQuery(ctx, datastore.NewQuery("K"))
			assert.Loosely(t, status.Code(datastore.TransportError(err)), should.Equal(codes.PermissionDenied))
		})

		t.Run("Can break with an explicit error", func(t *ftt.Test) {
			tr, fb := Filter(client, nil)
			fb.BreakFeatures(status.Error(codes.Aborted, "conflict"), "Commit")
			_, err := shell.New(tr, "proj").Commit(ctx, datastore.NewMutationBatch().Upsert(datastore.NewEntity(key)))
			assert.Loosely(t, status.Code(datastore.TransportError(err)), should.Equal(codes.Aborted))
		})

		t.Run("Callbacks decide call by call", func(t *ftt.Test) {
			tr, fb := Filter(client, nil)
			calls := 0
			fb.BreakFeaturesWithCallback(func(_ context.Context, feature string) error {
				calls++
				assert.Loosely(t, feature, should.Equal("Lookup"))
				if calls == 1 {
					return status.Error(codes.Internal, "first one fails")
				}
				return nil
			}, "Lookup")

			s := shell.New(tr, "proj")
			_, err := s.GetSingle(ctx, key)
			assert.Loosely(t, status.Code(datastore.TransportError(err)), should.Equal(codes.Internal))
			_, err = s.GetSingle(ctx, key)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, calls, should.Equal(2))
		})
	})
}
