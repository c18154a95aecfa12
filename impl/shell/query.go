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

	"go.chromium.org/dsaccess/service/datastore"
)

// RunQuery fetches one page of query results.
func (s *Shell) RunQuery(ctx context.Context, q *datastore.Query) (*datastore.QueryResult[*datastore.Entity], error) {
	page, _, err := s.runQuery(ctx, q)
	return page, err
}

func (s *Shell) runQuery(ctx context.Context, q *datastore.Query) (*datastore.QueryResult[*datastore.Entity], *datastorepb.QueryResultBatch, error) {
	res, err := withReadRetries(ctx, s, "RunQuery", func() (*datastorepb.RunQueryResponse, error) {
		return call(ctx, s, "RunQuery", &datastorepb.RunQueryRequest{
			ProjectId:   s.projectID,
			DatabaseId:  s.databaseID,
			PartitionId: s.partition(),
			ReadOptions: s.readOptions(),
			QueryType:   &datastorepb.RunQueryRequest_Query{Query: q.ToPB()},
		}, s.tr.RunQuery)
	})
	if err != nil {
		return nil, nil, err
	}

	batch := res.GetBatch()
	page := &datastore.QueryResult[*datastore.Entity]{
		Items:       make([]*datastore.Entity, 0, len(batch.GetEntityResults())),
		EndCursor:   batch.GetEndCursor(),
		MoreResults: batch.GetMoreResults(),
	}
	for _, r := range batch.GetEntityResults() {
		e, err := datastore.EntityFromPB(r.GetEntity())
		if err != nil {
			return nil, nil, errors.Annotate(err, "decoding query result").Err()
		}
		page.Items = append(page.Items, e)
	}
	return page, batch, nil
}

// Pages runs a query page by page, resuming each page at the end cursor of
// the previous one, until the service reports that nothing is left.
//
// The query's limit bounds each page, not the total. Iteration stops at the
// first error.
func (s *Shell) Pages(ctx context.Context, q *datastore.Query) iter.Seq2[*datastore.QueryResult[*datastore.Entity], error] {
	return func(yield func(*datastore.QueryResult[*datastore.Entity], error) bool) {
		q := q.Clone()
		for {
			page, batch, err := s.runQuery(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			switch page.MoreResults {
			case datastorepb.QueryResultBatch_NOT_FINISHED,
				datastorepb.QueryResultBatch_MORE_RESULTS_AFTER_LIMIT:
			default:
				return
			}
			if len(page.Items) == 0 && batch.GetSkippedResults() == 0 {
				return
			}
			q.Offset = max(0, q.Offset-batch.GetSkippedResults())
			q.StartCursor = page.EndCursor
		}
	}
}
