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
	"encoding/binary"
	"slices"
	"strings"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/luci/common/data/stringset"

	"go.chromium.org/dsaccess/service/datastore"
)

type match func(e *datastore.Entity) bool

func (s *Server) RunQuery(ctx context.Context, req *datastorepb.RunQueryRequest) (*datastorepb.RunQueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, err := s.readTxnLocked(req.GetReadOptions())
	if err != nil {
		return nil, err
	}
	q := req.GetQuery()
	if q == nil {
		return nil, status.Errorf(codes.Unimplemented, "only structured queries are supported")
	}
	if len(q.GetKind()) > 1 {
		return nil, status.Errorf(codes.InvalidArgument, "at most one kind may be queried")
	}

	pred, err := compileFilter(q.GetFilter())
	if err != nil {
		return nil, err
	}
	kind := ""
	if len(q.GetKind()) == 1 {
		kind = q.Kind[0].GetName()
	}
	projection := make([]string, len(q.GetProjection()))
	for i, p := range q.GetProjection() {
		projection[i] = p.GetProperty().GetName()
	}
	orders := q.GetOrder()

	var rows []*record
	for _, rec := range s.entities {
		e := rec.entity
		if kind != "" && e.Kind() != kind {
			continue
		}
		if !sortable(e, orders) || !projectable(e, projection) {
			continue
		}
		if pred != nil && !pred(e) {
			continue
		}
		rows = append(rows, rec)
	}
	slices.SortFunc(rows, func(a, b *record) int { return compareRows(a.entity, b.entity, orders) })
	rows = distinct(rows, q.GetDistinctOn())

	start, err := decodeCursor(q.GetStartCursor(), len(rows))
	if err != nil {
		return nil, err
	}
	end, err := decodeCursor(q.GetEndCursor(), len(rows))
	if err != nil {
		return nil, err
	}
	if len(q.GetEndCursor()) == 0 {
		end = len(rows)
	}

	batch := &datastorepb.QueryResultBatch{
		EntityResultType: resultType(projection),
		ReadTime:         s.now(),
	}

	pos := start
	for skip := q.GetOffset(); skip > 0 && pos < end; skip-- {
		pos++
		batch.SkippedResults++
	}
	if batch.SkippedResults > 0 {
		batch.SkippedCursor = encodeCursor(pos)
	}

	limit := -1
	if q.GetLimit() != nil {
		limit = int(q.GetLimit().GetValue())
	}
	batch.MoreResults = datastorepb.QueryResultBatch_NO_MORE_RESULTS
	for ; pos < end; pos++ {
		switch {
		case limit >= 0 && len(batch.EntityResults) >= limit:
			batch.MoreResults = datastorepb.QueryResultBatch_MORE_RESULTS_AFTER_LIMIT
		case s.MaxQueryBatch > 0 && len(batch.EntityResults) >= s.MaxQueryBatch:
			batch.MoreResults = datastorepb.QueryResultBatch_NOT_FINISHED
		}
		if batch.MoreResults != datastorepb.QueryResultBatch_NO_MORE_RESULTS {
			break
		}
		rec := rows[pos]
		if txn != nil {
			txn.reads.Add(rec.entity.Key().String())
		}
		er := rec.result(project(rec.entity, projection).ToPB())
		er.Cursor = encodeCursor(pos + 1)
		batch.EntityResults = append(batch.EntityResults, er)
	}
	if pos >= end && end < len(rows) {
		batch.MoreResults = datastorepb.QueryResultBatch_MORE_RESULTS_AFTER_CURSOR
	}
	batch.EndCursor = encodeCursor(pos)

	return &datastorepb.RunQueryResponse{Batch: batch, Query: q}, nil
}

func resultType(projection []string) datastorepb.EntityResult_ResultType {
	switch {
	case len(projection) == 0:
		return datastorepb.EntityResult_FULL
	case len(projection) == 1 && projection[0] == datastore.KeyProperty:
		return datastorepb.EntityResult_KEY_ONLY
	}
	return datastorepb.EntityResult_PROJECTION
}

func encodeCursor(pos int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(pos))
}

func decodeCursor(c []byte, n int) (int, error) {
	if len(c) == 0 {
		return 0, nil
	}
	if len(c) != 8 {
		return 0, status.Errorf(codes.InvalidArgument, "malformed cursor")
	}
	pos := binary.BigEndian.Uint64(c)
	if pos > uint64(n) {
		return n, nil
	}
	return int(pos), nil
}

// property returns the value a filter or order sees for name. Unindexed
// properties are invisible to queries.
func property(e *datastore.Entity, name string) (datastore.Value, bool) {
	if name == datastore.KeyProperty {
		return datastore.KeyValue(e.Key()), true
	}
	pv, ok := e.Get(name)
	if !ok || !pv.Indexed {
		return datastore.Value{}, false
	}
	return pv.Value, true
}

// elements returns the individually indexed values of v.
func elements(v datastore.Value) []datastore.Value {
	if els, ok := v.AsArray(); ok {
		return els
	}
	return []datastore.Value{v}
}

func compileFilter(f *datastorepb.Filter) (match, error) {
	switch ft := f.GetFilterType().(type) {
	case nil:
		return nil, nil
	case *datastorepb.Filter_CompositeFilter:
		if ft.CompositeFilter.GetOp() != datastorepb.CompositeFilter_AND {
			return nil, status.Errorf(codes.Unimplemented, "only AND composite filters are supported")
		}
		var subs []match
		for _, sub := range ft.CompositeFilter.GetFilters() {
			m, err := compileFilter(sub)
			if err != nil {
				return nil, err
			}
			if m != nil {
				subs = append(subs, m)
			}
		}
		return func(e *datastore.Entity) bool {
			for _, m := range subs {
				if !m(e) {
					return false
				}
			}
			return true
		}, nil
	case *datastorepb.Filter_PropertyFilter:
		return compilePropertyFilter(ft.PropertyFilter)
	}
	return nil, status.Errorf(codes.InvalidArgument, "unknown filter type")
}

func compilePropertyFilter(pf *datastorepb.PropertyFilter) (match, error) {
	name := pf.GetProperty().GetName()
	want, err := datastore.ValueFromPB(pf.GetValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "filter on %q: %s", name, err)
	}

	if pf.GetOp() == datastorepb.PropertyFilter_HAS_ANCESTOR {
		anc, ok := want.AsKey()
		if !ok || name != datastore.KeyProperty {
			return nil, status.Errorf(codes.InvalidArgument, "HAS_ANCESTOR needs a key value on %s", datastore.KeyProperty)
		}
		return func(e *datastore.Entity) bool { return e.Key().HasAncestor(anc) }, nil
	}

	var test func(v datastore.Value) bool
	switch pf.GetOp() {
	case datastorepb.PropertyFilter_EQUAL:
		test = func(v datastore.Value) bool { return v.Equal(want) }
	case datastorepb.PropertyFilter_NOT_EQUAL:
		test = func(v datastore.Value) bool { return !v.Equal(want) }
	case datastorepb.PropertyFilter_LESS_THAN:
		test = func(v datastore.Value) bool { return v.Type() == want.Type() && v.Compare(want) < 0 }
	case datastorepb.PropertyFilter_LESS_THAN_OR_EQUAL:
		test = func(v datastore.Value) bool { return v.Type() == want.Type() && v.Compare(want) <= 0 }
	case datastorepb.PropertyFilter_GREATER_THAN:
		test = func(v datastore.Value) bool { return v.Type() == want.Type() && v.Compare(want) > 0 }
	case datastorepb.PropertyFilter_GREATER_THAN_OR_EQUAL:
		test = func(v datastore.Value) bool { return v.Type() == want.Type() && v.Compare(want) >= 0 }
	case datastorepb.PropertyFilter_IN, datastorepb.PropertyFilter_NOT_IN:
		set, ok := want.AsArray()
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s on %q needs an array value", pf.GetOp(), name)
		}
		in := func(v datastore.Value) bool {
			return slices.ContainsFunc(set, v.Equal)
		}
		if pf.GetOp() == datastorepb.PropertyFilter_IN {
			test = in
		} else {
			test = func(v datastore.Value) bool { return !in(v) }
		}
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unsupported operator %s", pf.GetOp())
	}

	// A property matches if any of its indexed values does.
	return func(e *datastore.Entity) bool {
		v, ok := property(e, name)
		if !ok {
			return false
		}
		return slices.ContainsFunc(elements(v), test)
	}, nil
}

// sortable is false if the entity lacks an indexed value for an order, in
// which case the service leaves it out of the results.
func sortable(e *datastore.Entity, orders []*datastorepb.PropertyOrder) bool {
	for _, o := range orders {
		if _, ok := property(e, o.GetProperty().GetName()); !ok {
			return false
		}
	}
	return true
}

func projectable(e *datastore.Entity, projection []string) bool {
	for _, name := range projection {
		if _, ok := property(e, name); !ok {
			return false
		}
	}
	return true
}

// sortValue is the value an entity sorts by: the smallest array element
// ascending, the largest descending.
func sortValue(e *datastore.Entity, name string, desc bool) datastore.Value {
	v, _ := property(e, name)
	els := elements(v)
	if len(els) == 0 {
		return datastore.Null()
	}
	cmp := func(a, b datastore.Value) int { return a.Compare(b) }
	if desc {
		return slices.MaxFunc(els, cmp)
	}
	return slices.MinFunc(els, cmp)
}

func compareRows(a, b *datastore.Entity, orders []*datastorepb.PropertyOrder) int {
	for _, o := range orders {
		name := o.GetProperty().GetName()
		desc := o.GetDirection() == datastorepb.PropertyOrder_DESCENDING
		c := sortValue(a, name, desc).Compare(sortValue(b, name, desc))
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return a.Key().Compare(b.Key())
}

func distinct(rows []*record, on []*datastorepb.PropertyReference) []*record {
	if len(on) == 0 {
		return rows
	}
	seen := stringset.New(len(rows))
	ret := rows[:0:0]
	for _, rec := range rows {
		parts := make([]string, len(on))
		for i, ref := range on {
			v, _ := property(rec.entity, ref.GetName())
			parts[i] = v.String()
		}
		if seen.Add(strings.Join(parts, "\x00")) {
			ret = append(ret, rec)
		}
	}
	return ret
}

// project keeps the key and the projected properties of e.
func project(e *datastore.Entity, projection []string) *datastore.Entity {
	if len(projection) == 0 {
		return e
	}
	ret := datastore.NewEntity(e.Key())
	for _, name := range projection {
		if pv, ok := e.Get(name); ok {
			ret.SetAdvanced(name, pv.Value, pv.Indexed, pv.Indexed, pv.Meaning)
		}
	}
	return ret
}
