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
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/errors"

	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

var subcommandGet = subcommands.Command{
	UsageLine: "get [options] KEY...",
	ShortDesc: "Fetches entities by key.",
	LongDesc:  "Fetches entities by key, e.g. 'Shelf:sf/Book:dune'. Missing entities are reported as such.",
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunGet
		cmd.Flags.IntVar(&cmd.parallel, "parallel", 8, "Number of lookups in flight.")
		return &cmd
	},
}

type cmdRunGet struct {
	subcommands.CommandRunBase

	parallel int
}

func (cmd *cmdRunGet) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	keys := make([]*datastore.Key, len(args))
	for i, arg := range args {
		var err error
		if keys[i], err = parseKey(arg); err != nil {
			_, ctx := getApplication(baseApp)
			renderErr(ctx, err)
			return 1
		}
	}

	return run(baseApp, func(ctx context.Context, app *application, s *shell.Shell) error {
		found := make([]*datastore.Entity, len(keys))
		eg, ectx := errgroup.WithContext(ctx)
		eg.SetLimit(max(cmd.parallel, 1))
		for i, key := range keys {
			eg.Go(func() error {
				e, err := s.GetSingle(ectx, key)
				if err != nil {
					return errors.Annotate(err, "getting %s", key).Err()
				}
				found[i] = e
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		for i, e := range found {
			doc := yaml.MapSlice{{Key: "key", Value: formatKey(keys[i])}, {Key: "missing", Value: true}}
			if e != nil {
				doc = entityDoc(e)
			}
			if err := printDoc(app.out, doc); err != nil {
				return err
			}
		}
		return nil
	})
}
