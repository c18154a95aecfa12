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

package main

import (
	"net"
	"os"
	"os/signal"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/dsaccess/impl/memory"
)

var subcommandServe = subcommands.Command{
	UsageLine: "serve [options]",
	ShortDesc: "Runs an in-memory datastore.",
	LongDesc: `Runs an in-memory datastore speaking the Cloud Datastore gRPC API until
interrupted. Point clients at it with $DATASTORE_EMULATOR_HOST.`,
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunServe
		cmd.Flags.StringVar(&cmd.addr, "addr", "localhost:8081", "Address to listen on.")
		cmd.Flags.IntVar(&cmd.maxLookupKeys, "max-lookup-keys", 0, "Keys served per lookup, the rest are deferred. 0 for no limit.")
		cmd.Flags.IntVar(&cmd.maxQueryBatch, "max-query-batch", 0, "Results per query batch. 0 for no limit.")
		return &cmd
	},
}

type cmdRunServe struct {
	subcommands.CommandRunBase

	addr          string
	maxLookupKeys int
	maxQueryBatch int
}

func (cmd *cmdRunServe) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	_, ctx := getApplication(baseApp)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	lis, err := net.Listen("tcp", cmd.addr)
	if err != nil {
		renderErr(ctx, errors.Annotate(err, "listening on %q", cmd.addr).Err())
		return 1
	}
	srv := memory.New()
	srv.MaxLookupKeys = cmd.maxLookupKeys
	srv.MaxQueryBatch = cmd.maxQueryBatch
	if err := memory.Serve(ctx, srv, lis); err != nil {
		renderErr(ctx, err)
		return 1
	}
	logging.Infof(ctx, "Stopped with %d entities.", srv.Len())
	return 0
}
