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
	"context"

	"github.com/maruel/subcommands"
	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/errors"
	luciflag "go.chromium.org/luci/common/flag"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

var subcommandPut = subcommands.Command{
	UsageLine: "put [options] NAME=VALUE...",
	ShortDesc: "Writes an entity.",
	LongDesc: `Writes an entity with the given properties.

Values are YAML: 412, 1.5, true, '"quoted"', '[1, 2]'. A value of the form
'key(...)' is a key, e.g. 'key(Shelf:sf)'. A key without an id, e.g. 'Book', gets one
allocated by the service.`,
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunPut
		cmd.Flags.StringVar(&cmd.key, "key", "", "Key of the entity. Required.")
		cmd.Flags.Var(luciflag.StringSlice(&cmd.unindexed), "unindexed", "Property to exclude from indexes. Repeatable.")
		cmd.Flags.BoolVar(&cmd.insert, "insert", false, "Fail if the entity already exists.")
		return &cmd
	},
}

type cmdRunPut struct {
	subcommands.CommandRunBase

	key       string
	unindexed []string
	insert    bool
}

func (cmd *cmdRunPut) entity(args []string) (*datastore.Entity, error) {
	if cmd.key == "" {
		return nil, errors.New("-key is required")
	}
	key, err := parseKey(cmd.key)
	if err != nil {
		return nil, err
	}
	unindexed := stringset.NewFromSlice(cmd.unindexed...)
	e := datastore.NewEntity(key)
	for _, arg := range args {
		name, v, err := parseProperty(arg)
		if err != nil {
			return nil, err
		}
		e.Set(name, v, !unindexed.Has(name))
	}
	return e, nil
}

func (cmd *cmdRunPut) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	_, ctx := getApplication(baseApp)
	e, err := cmd.entity(args)
	if err != nil {
		renderErr(ctx, err)
		return 1
	}

	return run(baseApp, func(ctx context.Context, app *application, s *shell.Shell) error {
		batch := datastore.NewMutationBatch()
		if cmd.insert {
			batch.Insert(e)
		} else {
			batch.Upsert(e)
		}
		res, err := s.Commit(ctx, batch)
		if err != nil {
			return err
		}
		key := e.Key()
		if r := res.Results[0]; r.Key != nil {
			key = r.Key
		}
		logging.Debugf(ctx, "Wrote %s at version %d.", key, res.Results[0].Version)
		return printDoc(app.out, yaml.MapSlice{{Key: "key", Value: formatKey(key)}})
	})
}

var subcommandDelete = subcommands.Command{
	UsageLine: "delete KEY...",
	ShortDesc: "Deletes entities.",
	LongDesc:  "Deletes entities by key in a single commit. Missing entities are not an error.",
	CommandRun: func() subcommands.CommandRun {
		return &cmdRunDelete{}
	},
}

type cmdRunDelete struct {
	subcommands.CommandRunBase
}

func (cmd *cmdRunDelete) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	_, ctx := getApplication(baseApp)
	batch := datastore.NewMutationBatch()
	for _, arg := range args {
		key, err := parseKey(arg)
		if err == nil && key.IsIncomplete() {
			err = errors.Reason("cannot delete incomplete key %q", arg).Err()
		}
		if err != nil {
			renderErr(ctx, err)
			return 1
		}
		batch.Delete(key)
	}

	return run(baseApp, func(ctx context.Context, app *application, s *shell.Shell) error {
		_, err := s.Commit(ctx, batch)
		if err == nil {
			logging.Infof(ctx, "Deleted %d entities.", batch.Len())
		}
		return err
	})
}

var subcommandAllocateIDs = subcommands.Command{
	UsageLine: "allocate-ids [options] KEY",
	ShortDesc: "Allocates numeric ids.",
	LongDesc:  "Allocates ids for an incomplete key, e.g. 'Shelf:sf/Book', and prints the complete keys.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunAllocateIDs
		cmd.Flags.IntVar(&cmd.count, "n", 1, "Number of ids to allocate.")
		return &cmd
	},
}

type cmdRunAllocateIDs struct {
	subcommands.CommandRunBase

	count int
}

func (cmd *cmdRunAllocateIDs) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	_, ctx := getApplication(baseApp)
	if len(args) != 1 {
		renderErr(ctx, errors.New("expecting exactly one key"))
		return 1
	}
	key, err := parseKey(args[0])
	if err == nil && !key.IsIncomplete() {
		err = errors.Reason("key %q already has an id", args[0]).Err()
	}
	if err != nil {
		renderErr(ctx, err)
		return 1
	}

	return run(baseApp, func(ctx context.Context, app *application, s *shell.Shell) error {
		keys := make([]*datastore.Key, cmd.count)
		for i := range keys {
			keys[i] = key
		}
		got, err := s.AllocateIDs(ctx, datastore.Keys(keys...))
		if err != nil {
			return err
		}
		out := make([]string, len(got))
		for i, k := range got {
			out[i] = formatKey(k)
		}
		return printDoc(app.out, out)
	})
}
