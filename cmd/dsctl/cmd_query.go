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
	"encoding/base64"

	"github.com/maruel/subcommands"
	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/errors"
	luciflag "go.chromium.org/luci/common/flag"

	"go.chromium.org/dsaccess/impl/shell"
	"go.chromium.org/dsaccess/service/datastore"
)

var subcommandQuery = subcommands.Command{
	UsageLine: "query [options]",
	ShortDesc: "Runs a query.",
	LongDesc: `Runs a query and prints the matching entities.

Prints a single page unless -all is given. The cursor of the next page is
printed last and can be passed back with -start.`,
	CommandRun: func() subcommands.CommandRun {
		var cmd cmdRunQuery
		cmd.Flags.StringVar(&cmd.kind, "kind", "", "Kind to query, empty for a kindless query.")
		cmd.Flags.Var(luciflag.StringSlice(&cmd.filters), "filter", "Filter as name<op>value, e.g. 'pages>=100'. Repeatable.")
		cmd.Flags.Var(luciflag.StringSlice(&cmd.orders), "order", "Property to order by, '-name' for descending. Repeatable.")
		cmd.Flags.StringVar(&cmd.ancestor, "ancestor", "", "Restrict results to descendants of this key.")
		cmd.Flags.Var(luciflag.StringSlice(&cmd.projection), "select", "Property to project. Repeatable.")
		cmd.Flags.Var(luciflag.StringSlice(&cmd.distinct), "distinct", "Property to deduplicate on. Repeatable.")
		cmd.Flags.IntVar(&cmd.limit, "limit", datastore.DefaultQueryLimit, "Maximum number of results per page.")
		cmd.Flags.IntVar(&cmd.offset, "offset", 0, "Number of results to skip.")
		cmd.Flags.BoolVar(&cmd.keysOnly, "keys-only", false, "Print only keys.")
		cmd.Flags.BoolVar(&cmd.all, "all", false, "Follow cursors until the query is exhausted.")
		cmd.Flags.StringVar(&cmd.start, "start", "", "Cursor printed by a previous run.")
		return &cmd
	},
}

type cmdRunQuery struct {
	subcommands.CommandRunBase

	kind       string
	filters    []string
	orders     []string
	ancestor   string
	projection []string
	distinct   []string
	limit      int
	offset     int
	keysOnly   bool
	all        bool
	start      string
}

func (cmd *cmdRunQuery) query() (*datastore.Query, error) {
	q := datastore.NewQuery(cmd.kind).
		WithLimit(int32(cmd.limit)).
		WithOffset(int32(cmd.offset))
	for _, f := range cmd.filters {
		filter, err := parseFilter(f)
		if err != nil {
			return nil, err
		}
		q = q.Where(filter)
	}
	if cmd.ancestor != "" {
		anc, err := parseKey(cmd.ancestor)
		if err != nil {
			return nil, errors.Annotate(err, "bad -ancestor").Err()
		}
		q = q.Where(datastore.Ancestor(anc))
	}
	for _, o := range cmd.orders {
		q = q.OrderBy(parseOrder(o))
	}
	switch {
	case cmd.keysOnly && len(cmd.projection) > 0:
		return nil, errors.New("-keys-only and -select are exclusive")
	case cmd.keysOnly:
		q = q.KeysOnly()
	case len(cmd.projection) > 0:
		q = q.Project(cmd.projection...)
	}
	if len(cmd.distinct) > 0 {
		q = q.Distinct(cmd.distinct...)
	}
	if cmd.start != "" {
		cursor, err := base64.RawURLEncoding.DecodeString(cmd.start)
		if err != nil {
			return nil, errors.Annotate(err, "bad -start cursor").Err()
		}
		q = q.Start(cursor)
	}
	return q, nil
}

func (cmd *cmdRunQuery) Run(baseApp subcommands.Application, args []string, _ subcommands.Env) int {
	_, ctx := getApplication(baseApp)
	if len(args) != 0 {
		renderErr(ctx, errors.Reason("unexpected arguments %q", args).Err())
		return 1
	}
	q, err := cmd.query()
	if err != nil {
		renderErr(ctx, err)
		return 1
	}

	return run(baseApp, func(ctx context.Context, app *application, s *shell.Shell) error {
		emit := func(page *datastore.QueryResult[*datastore.Entity]) error {
			for _, e := range page.Items {
				var doc any = entityDoc(e)
				if cmd.keysOnly {
					doc = formatKey(e.Key())
				}
				if err := printDoc(app.out, doc); err != nil {
					return err
				}
			}
			return nil
		}

		if !cmd.all {
			page, err := s.RunQuery(ctx, q)
			if err != nil {
				return err
			}
			if err := emit(page); err != nil {
				return err
			}
			return printDoc(app.out, yaml.MapSlice{
				{Key: "cursor", Value: base64.RawURLEncoding.EncodeToString(page.EndCursor)},
				{Key: "more", Value: page.MoreResults.String()},
			})
		}

		for page, err := range s.Pages(ctx, q) {
			if err != nil {
				return err
			}
			if err := emit(page); err != nil {
				return err
			}
		}
		return nil
	})
}
