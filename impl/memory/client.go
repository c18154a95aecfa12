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

package memory

import (
	"context"
	"net"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

const bufSize = 1 << 20

// NewClient serves srv on an in-process connection and returns a real gRPC
// client talking to it, plus a function that shuts both down.
func NewClient(ctx context.Context, srv *Server, opts ...grpc.ServerOption) (datastorepb.DatastoreClient, func(), error) {
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(opts...)
	datastorepb.RegisterDatastoreServer(gs, srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			logging.WithError(err).Warningf(ctx, "in-memory datastore server stopped")
		}
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		gs.Stop()
		return nil, nil, errors.Annotate(err, "dialing in-memory datastore").Err()
	}
	stop := func() {
		_ = conn.Close()
		gs.Stop()
	}
	return datastorepb.NewDatastoreClient(conn), stop, nil
}

// Serve serves srv on lis until ctx is done.
func Serve(ctx context.Context, srv *Server, lis net.Listener) error {
	gs := grpc.NewServer()
	datastorepb.RegisterDatastoreServer(gs, srv)
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	logging.Infof(ctx, "serving in-memory datastore on %s", lis.Addr())
	return gs.Serve(lis)
}
