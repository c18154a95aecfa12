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
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/retry/transient"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
)

func TestErrors(t *testing.T) {
	t.Parallel()

	ftt.Run("Errors", t, func(t *ftt.Test) {
		t.Run("RequestFailed", func(t *ftt.Test) {
			grpcErr := status.Error(codes.Unavailable, "try later")
			err := RequestFailed("Lookup", grpcErr)

			assert.Loosely(t, KindOf(err), should.Equal(RequestFailure))
			assert.Loosely(t, transient.Tag.In(err), should.BeTrue)
			assert.Loosely(t, status.Code(TransportError(err)), should.Equal(codes.Unavailable))
			assert.Loosely(t, err, should.ErrLike("RequestFailure: Lookup"))

			perm := RequestFailed("Commit", status.Error(codes.InvalidArgument, "bad"))
			assert.Loosely(t, transient.Tag.In(perm), should.BeFalse)
		})

		t.Run("RetriesExhausted carries the transport error", func(t *ftt.Test) {
			last := RequestFailed("Commit", status.Error(codes.Aborted, "contention"))
			err := NewError(RetriesExhausted, last, "gave up after %d attempts", 3)

			assert.Loosely(t, KindOf(err), should.Equal(RetriesExhausted))
			assert.Loosely(t, IsKind(err, RequestFailure), should.BeTrue)
			assert.Loosely(t, status.Code(TransportError(err)), should.Equal(codes.Aborted))
			assert.Loosely(t, err, should.ErrLike("gave up after 3 attempts"))
		})

		t.Run("unclassified", func(t *ftt.Test) {
			plain := errors.New("boom")
			assert.Loosely(t, KindOf(plain), should.Equal(Unknown))
			assert.Loosely(t, IsKind(plain, RequestFailure), should.BeFalse)
			assert.Loosely(t, TransportError(plain), should.BeNil)
			assert.Loosely(t, TransportError(NotFound(NewIDKey("K", 1, nil))), should.BeNil)
		})

		t.Run("annotated errors keep their kind", func(t *ftt.Test) {
			err := errors.Annotate(KindMismatch("A", "B"), "loading").Err()
			assert.Loosely(t, KindOf(err), should.Equal(EntityKindMismatch))
			assert.Loosely(t, err, should.ErrLike(`expected kind "A", got "B"`))
		})

		t.Run("mapping errors wrap their cause", func(t *ftt.Test) {
			err := MappingError(ErrIncompleteKey, "field %s", "ID")
			assert.Loosely(t, errors.Is(err, ErrIncompleteKey), should.BeTrue)
			assert.Loosely(t, err.Error(), should.Equal("PropertyMappingError: field ID: incomplete datastore key"))
		})
	})
}
