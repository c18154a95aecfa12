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

package flaky

import (
	"context"
	"math/rand"
	"testing"

	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
)

func TestErrors(t *testing.T) {
	t.Parallel()

	ftt.Run("Errors", t, func(t *ftt.Test) {
		ctx := context.Background()

		t.Run("never fails with zero probabilities", func(t *ftt.Test) {
			cb := Errors(Params{})
			for range 100 {
				assert.Loosely(t, cb(ctx, "Commit"), should.BeNil)
				assert.Loosely(t, cb(ctx, "Lookup"), should.BeNil)
			}
		})

		t.Run("always fails with probability one", func(t *ftt.Test) {
			cb := Errors(Params{UnavailableProbability: 1})
			assert.Loosely(t, cb(ctx, "Lookup"), should.Equal(ErrFlakyRPCUnavailable))
			assert.Loosely(t, cb(ctx, "Commit"), should.Equal(ErrFlakyRPCUnavailable))
		})

		t.Run("aborts only commits", func(t *ftt.Test) {
			cb := Errors(Params{AbortedProbability: 1})
			assert.Loosely(t, cb(ctx, "Lookup"), should.BeNil)
			assert.Loosely(t, cb(ctx, "Commit"), should.Equal(ErrFlakyCommitAborted))
		})

		t.Run("fails some of the time", func(t *ftt.Test) {
			cb := Errors(Params{
				Rand:                   rand.NewSource(123),
				UnavailableProbability: 0.5,
			})
			failed := 0
			for range 1000 {
				if cb(ctx, "RunQuery") != nil {
					failed++
				}
			}
			assert.Loosely(t, failed, should.BeGreaterThan(300))
			assert.Loosely(t, failed, should.BeLessThan(700))
		})
	})
}
