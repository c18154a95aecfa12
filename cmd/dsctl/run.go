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
	"fmt"
	"io"

	"github.com/maruel/subcommands"
	"gopkg.in/yaml.v2"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/dsaccess/impl/shell"
)

// run connects and calls fn, reporting errors the way every subcommand does.
func run(base subcommands.Application, fn func(ctx context.Context, app *application, s *shell.Shell) error) int {
	app, ctx := getApplication(base)
	s, closer, err := app.connect(ctx)
	if err != nil {
		renderErr(ctx, err)
		return 1
	}
	defer func() {
		if err := closer(); err != nil {
			logging.WithError(err).Warningf(ctx, "Failed to close the connection.")
		}
	}()
	if err := fn(ctx, app, s); err != nil {
		renderErr(ctx, err)
		return 1
	}
	return 0
}

// printDoc writes v as one YAML document.
func printDoc(w io.Writer, v any) error {
	blob, err := yaml.Marshal(v)
	if err != nil {
		return errors.Annotate(err, "rendering output").Err()
	}
	_, err = fmt.Fprintf(w, "---\n%s", blob)
	return err
}
