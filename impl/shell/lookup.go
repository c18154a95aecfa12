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
	"iter"

	"cloud.google.com/go/datastore/apiv1/datastorepb"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"go.chromium.org/dsaccess/service/datastore"
)

// GetSingle fetches one entity. It returns nil, nil if the entity does not
// exist.
func (s *Shell) GetSingle(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	found, err := s.GetAll(ctx, datastore.Keys(key))
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// GetAll fetches the entities with the given keys.
//
// Keys are sent in chunks of at most the lookup batch size. Keys the service
// defers are queued behind the keys not sent yet and re-requested until every
// key is either found or known to be missing. Missing entities are omitted
// and the order of the result is not specified.
func (s *Shell) GetAll(ctx context.Context, keys iter.Seq[*datastore.Key]) ([]*datastore.Entity, error) {
	var backlog []*datastorepb.Key
	for k := range keys {
		backlog = append(backlog, k.ToPB())
	}

	var found []*datastore.Entity
	for len(backlog) > 0 {
		n := min(len(backlog), s.lookupBatch)
		chunk := backlog[:n:n]
		backlog = backlog[n:]

		res, err := withReadRetries(ctx, s, "Lookup", func() (*datastorepb.LookupResponse, error) {
			return call(ctx, s, "Lookup", &datastorepb.LookupRequest{
				ProjectId:   s.projectID,
				DatabaseId:  s.databaseID,
				ReadOptions: s.readOptions(),
				Keys:        chunk,
			}, s.tr.Lookup)
		})
		if err != nil {
			return nil, err
		}

		for _, r := range res.GetFound() {
			e, err := datastore.EntityFromPB(r.GetEntity())
			if err != nil {
				return nil, errors.Annotate(err, "decoding looked up entity").Err()
			}
			found = append(found, e)
		}
		if d := res.GetDeferred(); len(d) > 0 {
			logging.Debugf(ctx, "lookup deferred %d of %d keys", len(d), len(chunk))
			backlog = append(backlog, d...)
		}
	}
	return found, nil
}
