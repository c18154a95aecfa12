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
	"flag"
	"os"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/api/option"
	gtransport "google.golang.org/api/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

const (
	// EmulatorHostEnv names the variable the datastore emulator exports with
	// its address.
	EmulatorHostEnv = "DATASTORE_EMULATOR_HOST"
	// ProjectIDEnv names the variable the datastore emulator exports with its
	// project.
	ProjectIDEnv = "DATASTORE_PROJECT_ID"

	prodEndpoint = "datastore.googleapis.com:443"
	scope        = "https://www.googleapis.com/auth/datastore"
)

// Options configure a shell built by Dial.
type Options struct {
	ProjectID       string // cloud project to talk to, required
	DatabaseID      string // "" for the default database
	EmulatorHost    string // host:port of an emulator, "" for production
	LookupBatchSize int    // keys per Lookup, 0 for the default
	ReadRetries     int    // retries of transient read failures, 0 to disable
}

// OptionsFromEnv returns options populated from the emulator environment
// variables.
func OptionsFromEnv() *Options {
	return &Options{
		ProjectID:    os.Getenv(ProjectIDEnv),
		EmulatorHost: os.Getenv(EmulatorHostEnv),
	}
}

// Register registers the command line flags.
//
// Current values of o are used as flag defaults.
func (o *Options) Register(f *flag.FlagSet) {
	f.StringVar(
		&o.ProjectID,
		"ds-project",
		o.ProjectID,
		"Cloud project with the datastore. Defaults to $"+ProjectIDEnv+".",
	)
	f.StringVar(
		&o.DatabaseID,
		"ds-database",
		o.DatabaseID,
		"Datastore database ID, empty for the default database.",
	)
	f.StringVar(
		&o.EmulatorHost,
		"ds-emulator",
		o.EmulatorHost,
		"host:port of a datastore emulator. Defaults to $"+EmulatorHostEnv+".",
	)
	f.IntVar(
		&o.LookupBatchSize,
		"ds-lookup-batch",
		o.LookupBatchSize,
		"Maximum number of keys sent in one lookup call.",
	)
	f.IntVar(
		&o.ReadRetries,
		"ds-read-retries",
		o.ReadRetries,
		"How many times to retry reads failing with a transient error.",
	)
}

// Validate checks the options are usable.
func (o *Options) Validate() error {
	switch {
	case o.ProjectID == "":
		return errors.Reason("a datastore project is required").Err()
	case o.LookupBatchSize < 0:
		return errors.Reason("lookup batch size must not be negative").Err()
	case o.ReadRetries < 0:
		return errors.Reason("read retries must not be negative").Err()
	}
	return nil
}

// Shell returns a shell over tr configured by o.
func (o *Options) Shell(tr Transport) *Shell {
	return New(tr, o.ProjectID).
		WithDatabase(o.DatabaseID).
		WithLookupBatchSize(o.LookupBatchSize).
		WithReadRetries(o.ReadRetries)
}

// Dial connects to the emulator named by the options, or to the production
// service, and returns a shell over the connection and a function closing it.
//
// opts are only used for production connections.
func Dial(ctx context.Context, o *Options, opts ...option.ClientOption) (*Shell, func() error, error) {
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}

	var conn *grpc.ClientConn
	var err error
	if o.EmulatorHost != "" {
		logging.Infof(ctx, "Using datastore emulator at %s", o.EmulatorHost)
		conn, err = grpc.NewClient(o.EmulatorHost, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append([]option.ClientOption{
			option.WithEndpoint(prodEndpoint),
			option.WithScopes(scope),
		}, opts...)
		conn, err = gtransport.Dial(ctx, opts...)
	}
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to connect to datastore").Err()
	}
	return o.Shell(datastorepb.NewDatastoreClient(conn)), conn.Close, nil
}
