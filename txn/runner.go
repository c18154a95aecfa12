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

// Package txn runs units of work in datastore transactions, retrying them
// when the service reports contention or a transient failure.
package txn

import (
	"context"
	"math"
	"time"

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/data/rand/mathrand"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

const (
	// DefaultRetryCount is the default number of attempts of a transaction.
	DefaultRetryCount = 16
	// DefaultFirstRetry is the default base delay between attempts.
	DefaultFirstRetry = 25 * time.Millisecond

	// RetryTimerTag tags the timers the runner sleeps on between attempts.
	RetryTimerTag = "txn-retry"
)

// Rand is the source of the retry jitter. *math/rand.Rand implements it.
type Rand interface {
	Int63n(n int64) int64
}

// Runner runs transactions over a shell.
type Runner struct {
	// RetryCount is the number of attempts, including the first one. Values
	// below 1 mean a single attempt.
	RetryCount int
	// FirstRetry is the initial delay between attempts. Negative values mean
	// no delay.
	FirstRetry time.Duration
	// Rand draws the retry jitter. If nil, the context's mathrand generator is
	// used.
	Rand Rand

	shell *shell.Shell
}

// New returns a runner with the default retry policy.
func New(s *shell.Shell) *Runner {
	return &Runner{
		RetryCount: DefaultRetryCount,
		FirstRetry: DefaultFirstRetry,
		shell:      s,
	}
}

func (r *Runner) clone() *Runner {
	ret := *r
	return &ret
}

func (r *Runner) WithRetryCount(n int) *Runner {
	ret := r.clone()
	ret.RetryCount = n
	return ret
}

func (r *Runner) WithFirstRetry(d time.Duration) *Runner {
	ret := r.clone()
	ret.FirstRetry = max(d, 0)
	return ret
}

func (r *Runner) WithRand(rnd Rand) *Runner {
	ret := r.clone()
	ret.Rand = rnd
	return ret
}

// Run runs fn in a transaction. See the package level Run.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context, ts *TransactionShell) error) error {
	_, err := Run(ctx, r, func(ctx context.Context, ts *TransactionShell) (struct{}, error) {
		return struct{}{}, fn(ctx, ts)
	})
	return err
}

// Run runs fn in a transaction and returns what it returns.
//
// Every attempt begins a new transaction, passing the token of the previous
// attempt, and calls fn with a shell bound to it. fn is expected to commit;
// a transaction fn left open is rolled back. A failed rollback is returned
// in place of fn's result.
//
// Errors of fn are classified with Classify. Retriable ones start another
// attempt after a delay picked by the rule, until the attempts run out, in
// which case the error is a RetriesExhausted carrying the last failure. Other
// errors, and failures to begin a transaction, are returned as is.
func Run[T any](ctx context.Context, r *Runner, fn func(ctx context.Context, ts *TransactionShell) (T, error)) (T, error) {
	var zero T

	remaining := max(r.RetryCount, 1)
	delay := max(r.FirstRetry, 0)
	var previous []byte
	var lastErr error

	for attempt := 1; ; attempt++ {
		if remaining == 0 {
			attemptsCounter.Add(ctx, 1, "exhausted")
			return zero, datastore.NewError(datastore.RetriesExhausted, lastErr,
				"transaction failed after %d attempts", attempt-1)
		}
		remaining--

		s, err := r.shell.BeginTransaction(ctx, previous)
		if err != nil {
			attemptsCounter.Add(ctx, 1, "begin_failed")
			return zero, err
		}
		previous = s.Transaction()
		ts := newTransactionShell(s)

		ret, err := fn(ctx, ts)
		if ts.Active() {
			if rbErr := ts.Rollback(ctx); rbErr != nil {
				if err != nil {
					logging.WithError(err).Warningf(ctx, "transaction attempt %d failed and could not be rolled back", attempt)
				}
				attemptsCounter.Add(ctx, 1, "rollback_failed")
				return zero, rbErr
			}
		}
		if err == nil {
			attemptsCounter.Add(ctx, 1, "committed")
			return ret, nil
		}

		rule := Classify(err)
		logging.Debugf(ctx, "transaction attempt %d failed (%s), retry rule %s, %d attempts left", attempt, err, rule, remaining)
		if rule == Never {
			attemptsCounter.Add(ctx, 1, "failed")
			return zero, err
		}
		attemptsCounter.Add(ctx, 1, "retried")
		retriesCounter.Add(ctx, 1, rule.String())
		lastErr = err

		var wait time.Duration
		switch rule {
		case Normal:
			wait = delay
		case Backoff:
			// The delay stops growing once doubling would overflow.
			next := delay
			if delay <= math.MaxInt64/2 {
				next = delay * 2
			}
			wait = delay/2 + time.Duration(r.int63n(ctx, int64(next-delay/2)+1))
			delay = next
		case Once:
			remaining = min(remaining, 1)
			continue
		}
		if wait > 0 {
			if res := clock.Sleep(clock.Tag(ctx, RetryTimerTag), wait); res.Err != nil {
				return zero, res.Err
			}
		}
	}
}

func (r *Runner) int63n(ctx context.Context, n int64) int64 {
	if r.Rand != nil {
		return r.Rand.Int63n(n)
	}
	return mathrand.Get(ctx).Int63n(n)
}
