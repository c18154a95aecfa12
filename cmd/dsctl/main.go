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

// Command dsctl inspects and edits Cloud Datastore data from the command line.
//
// It talks to the emulator named by $DATASTORE_EMULATOR_HOST when set, and to
// the production service otherwise:
//
//	dsctl -ds-project my-proj get 'Book:dune'
//	dsctl query -kind Book -filter 'pages>=300' -order -pages
//	dsctl put -key 'Shelf:sf/Book:dune' pages=412 'title="Dune"'
//	dsctl serve -addr localhost:8081
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"

	"go.chromium.org/dsaccess/filter/readonly"
	"go.chromium.org/dsaccess/impl/shell"
)

////////////////////////////////////////////////////////////////////////////////
// main
////////////////////////////////////////////////////////////////////////////////

type application struct {
	cli.Application

	opts     *shell.Options
	profile  string
	readOnly bool
	out      io.Writer

	// dial connects to datastore. Tests replace it.
	dial func(ctx context.Context, opts *shell.Options) (*shell.Shell, func() error, error)
}

func getApplication(base subcommands.Application) (*application, context.Context) {
	app := base.(*application)
	return app, app.Context(context.Background())
}

// connect returns a shell configured by the global flags and the profile.
func (app *application) connect(ctx context.Context) (*shell.Shell, func() error, error) {
	if app.profile != "" {
		p, err := loadProfile(app.profile)
		if err != nil {
			return nil, nil, err
		}
		p.apply(app.opts)
	}
	s, closer, err := app.dial(ctx, app.opts)
	if err != nil || !app.readOnly {
		return s, closer, err
	}
	return app.opts.Shell(readonly.Filter(s.Transport(), nil)), closer, nil
}

func dial(ctx context.Context, opts *shell.Options) (*shell.Shell, func() error, error) {
	return shell.Dial(ctx, opts)
}

func newApplication(logConfig *logging.Config) *application {
	return &application{
		Application: cli.Application{
			Name:  "dsctl",
			Title: "Cloud Datastore command line tool",
			Context: func(ctx context.Context) context.Context {
				return logConfig.Set(gologger.StdConfig.Use(ctx))
			},
			Commands: []*subcommands.Command{
				subcommands.CmdHelp,

				&subcommandGet,
				&subcommandQuery,
				&subcommandPut,
				&subcommandDelete,
				&subcommandAllocateIDs,
				&subcommandServe,
			},
		},
		opts: shell.OptionsFromEnv(),
		out:  os.Stdout,
		dial: dial,
	}
}

func (app *application) addFlags(fs *flag.FlagSet) {
	app.opts.Register(fs)
	fs.StringVar(&app.profile, "profile", "", "YAML file with connection settings. Flags take precedence.")
	fs.BoolVar(&app.readOnly, "read-only", false, "Refuse every write and id allocation.")
}

func mainImpl(ctx context.Context, args []string) int {
	logConfig := logging.Config{Level: logging.Warning}
	app := newApplication(&logConfig)

	fs := flag.NewFlagSet("flags", flag.ExitOnError)
	app.addFlags(fs)
	logConfig.AddFlags(fs)
	fs.Parse(args)

	return subcommands.Run(app, fs.Args())
}

func main() {
	os.Exit(mainImpl(context.Background(), os.Args[1:]))
}

func renderErr(ctx context.Context, err error) {
	logging.Errorf(ctx, "Error encountered during operation: %s\n%s", err,
		errors.RenderStack(err))
}
