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

package txn

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/dsaccess/service/datastore"
)

// RetryRule is what the runner does after an attempt failed.
type RetryRule int

const (
	// Never gives up and returns the error.
	Never RetryRule = iota
	// Normal retries after a fixed delay.
	Normal
	// Backoff retries after a randomized delay that doubles every time.
	Backoff
	// Once retries immediately, at most one more time.
	Once
)

var ruleNames = map[RetryRule]string{
	Never:   "never",
	Normal:  "normal",
	Backoff: "backoff",
	Once:    "once",
}

func (r RetryRule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("RetryRule(%d)", int(r))
}

// RuleForCode maps a gRPC code to a retry rule.
func RuleForCode(c codes.Code) RetryRule {
	switch c {
	case codes.Aborted:
		return Normal
	case codes.DeadlineExceeded, codes.Unavailable:
		return Backoff
	case codes.Internal:
		return Once
	default:
		// RESOURCE_EXHAUSTED may be a capacity problem worth retrying, but it
		// can't be told apart from an exhausted quota.
		return Never
	}
}

// RuleForStatus maps a canonical status name, like "ABORTED", to a retry
// rule. Unknown names give Never.
func RuleForStatus(name string) RetryRule {
	c, ok := code.Code_value[name]
	if !ok {
		return Never
	}
	return RuleForCode(codes.Code(c))
}

// Classify picks the retry rule for an error returned by a transaction body.
//
// Only errors carrying a RequestFailure with a gRPC status are retried.
func Classify(err error) RetryRule {
	if !datastore.IsKind(err, datastore.RequestFailure) {
		return Never
	}
	st, ok := status.FromError(datastore.TransportError(err))
	if !ok {
		return Never
	}
	return RuleForCode(st.Code())
}
