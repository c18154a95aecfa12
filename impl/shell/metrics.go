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

	"go.chromium.org/luci/common/clock"
	"go.chromium.org/luci/common/tsmon/distribution"
	"go.chromium.org/luci/common/tsmon/field"
	"go.chromium.org/luci/common/tsmon/metric"
	"go.chromium.org/luci/common/tsmon/types"
	"go.chromium.org/luci/grpc/grpcutil"
)

var (
	callsCounter = metric.NewCounter(
		"dsaccess/shell/calls",
		"Count of datastore RPCs issued by the shell",
		nil,
		field.String("method"), // Lookup | RunQuery | Commit | ...
		field.String("code"),   // gRPC code, e.g. OK or Aborted
	)

	callsDurationMS = metric.NewCumulativeDistribution(
		"dsaccess/shell/duration",
		"Duration of datastore RPCs issued by the shell",
		&types.MetricMetadata{Units: types.Milliseconds},
		distribution.DefaultBucketer,
		field.String("method"),
	)
)

func reportCall(ctx context.Context, method string, start time.Time, err error) {
	callsCounter.Add(ctx, 1, method, grpcutil.Code(err).String())
	callsDurationMS.Add(ctx, float64(clock.Since(ctx, start).Milliseconds()), method)
}
