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

package shell

import (
	"context"
	"time"

	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/retry"
	"go.chromium.org/luci/common/retry/transient"
)

// readRetryPolicy paces the retries of idempotent reads.
func (s *Shell) readRetryPolicy() retry.Iterator {
	return &retry.ExponentialBackoff{
		Limited: retry.Limited{
			Delay:   100 * time.Millisecond,
			Retries: s.readRetries,
		},
		MaxDelay:   5 * time.Second,
		Multiplier: 2,
	}
}

// withReadRetries calls fn until it succeeds, fails with a non-transient
// error or runs out of retries.
func withReadRetries[T any](ctx context.Context, s *Shell, what string, fn func() (T, error)) (ret T, err error) {
	if s.readRetries <= 0 {
		return fn()
	}
	err = retry.Retry(ctx, transient.Only(s.readRetryPolicy), func() (err error) {
		ret, err = fn()
		return err
	}, func(err error, wait time.Duration) {
		logging.WithError(err).Warningf(ctx, "%s failed, retrying in %s", what, wait)
	})
	return ret, err
}
