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
	"go.chromium.org/luci/common/tsmon/field"
	"go.chromium.org/luci/common/tsmon/metric"
)

var (
	attemptsCounter = metric.NewCounter(
		"dsaccess/txn/attempts",
		"Count of transaction attempts by outcome",
		nil,
		field.String("outcome"), // committed | retried | failed | exhausted | begin_failed | rollback_failed
	)

	retriesCounter = metric.NewCounter(
		"dsaccess/txn/retries",
		"Count of transaction retries by retry rule",
		nil,
		field.String("rule"), // normal | backoff | once
	)
)
