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

package datastore

import (
	"fmt"
	"strings"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultQueryLimit is the page size NewQuery starts with.
const DefaultQueryLimit = 1000

// KeyProperty is the pseudo-property that filters and orders on entity keys.
const KeyProperty = "__key__"

// FilterOp is the operator of a property filter.
type FilterOp int

const (
	LessThan FilterOp = iota + 1
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Equal
	In
	NotEqual
	HasAncestor
	NotIn
)

var filterOps = map[FilterOp]struct {
	sym string
	pb  datastorepb.PropertyFilter_Operator
}{
	LessThan:           {"<", datastorepb.PropertyFilter_LESS_THAN},
	LessThanOrEqual:    {"<=", datastorepb.PropertyFilter_LESS_THAN_OR_EQUAL},
	GreaterThan:        {">", datastorepb.PropertyFilter_GREATER_THAN},
	GreaterThanOrEqual: {">=", datastorepb.PropertyFilter_GREATER_THAN_OR_EQUAL},
	Equal:              {"=", datastorepb.PropertyFilter_EQUAL},
	In:                 {"IN", datastorepb.PropertyFilter_IN},
	NotEqual:           {"!=", datastorepb.PropertyFilter_NOT_EQUAL},
	HasAncestor:        {"HAS_ANCESTOR", datastorepb.PropertyFilter_HAS_ANCESTOR},
	NotIn:              {"NOT IN", datastorepb.PropertyFilter_NOT_IN},
}

func (op FilterOp) String() string {
	if o, ok := filterOps[op]; ok {
		return o.sym
	}
	return fmt.Sprintf("FilterOp(%d)", int(op))
}

// CompositeOp combines filters. Only AND is supported.
type CompositeOp int

const (
	CompositeAnd CompositeOp = iota + 1
)

// Filter is either a composite filter or a property filter.
//
// Build them with And and the property helpers (Eq, Lt, ...).
type Filter struct {
	// Composite filters.
	Op      CompositeOp
	Filters []*Filter

	// Property filters.
	Property   string
	PropertyOp FilterOp
	Value      Value
}

// IsComposite is true for filters built by And.
func (f *Filter) IsComposite() bool { return f.Op != 0 }

// PropertyFilter builds a filter on one property.
func PropertyFilter(name string, op FilterOp, v Value) *Filter {
	return &Filter{Property: name, PropertyOp: op, Value: v}
}

func Eq(name string, v Value) *Filter  { return PropertyFilter(name, Equal, v) }
func Ne(name string, v Value) *Filter  { return PropertyFilter(name, NotEqual, v) }
func Lt(name string, v Value) *Filter  { return PropertyFilter(name, LessThan, v) }
func Lte(name string, v Value) *Filter { return PropertyFilter(name, LessThanOrEqual, v) }
func Gt(name string, v Value) *Filter  { return PropertyFilter(name, GreaterThan, v) }
func Gte(name string, v Value) *Filter { return PropertyFilter(name, GreaterThanOrEqual, v) }

// InValues matches entities whose property equals any of vals.
func InValues(name string, vals ...Value) *Filter {
	return PropertyFilter(name, In, Array(vals...))
}

// NotInValues matches entities whose property equals none of vals.
func NotInValues(name string, vals ...Value) *Filter {
	return PropertyFilter(name, NotIn, Array(vals...))
}

// Ancestor matches entities under (or at) the given key.
func Ancestor(k *Key) *Filter {
	return PropertyFilter(KeyProperty, HasAncestor, KeyValue(k))
}

// And combines filters.
//
// No filters give nil (no filtering), a single filter is returned unchanged
// and anything else becomes a composite AND. nil filters are skipped.
func And(filters ...*Filter) *Filter {
	nonNil := make([]*Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			nonNil = append(nonNil, f)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	return &Filter{Op: CompositeAnd, Filters: nonNil}
}

func (f *Filter) String() string {
	if f == nil {
		return "<none>"
	}
	if !f.IsComposite() {
		return fmt.Sprintf("%s %s %s", f.Property, f.PropertyOp, f.Value)
	}
	parts := make([]string, len(f.Filters))
	for i, sub := range f.Filters {
		parts[i] = sub.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// ToPB converts f to its wire form.
func (f *Filter) ToPB() *datastorepb.Filter {
	if f == nil {
		return nil
	}
	if f.IsComposite() {
		subs := make([]*datastorepb.Filter, len(f.Filters))
		for i, sub := range f.Filters {
			subs[i] = sub.ToPB()
		}
		return &datastorepb.Filter{
			FilterType: &datastorepb.Filter_CompositeFilter{
				CompositeFilter: &datastorepb.CompositeFilter{
					Op:      datastorepb.CompositeFilter_AND,
					Filters: subs,
				},
			},
		}
	}
	return &datastorepb.Filter{
		FilterType: &datastorepb.Filter_PropertyFilter{
			PropertyFilter: &datastorepb.PropertyFilter{
				Property: &datastorepb.PropertyReference{Name: f.Property},
				Op:       filterOps[f.PropertyOp].pb,
				Value:    ValueToPB(f.Value, true, 0),
			},
		},
	}
}

// Direction is the sort direction of a PropertyOrder.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// PropertyOrder sorts query results by one property.
type PropertyOrder struct {
	Name      string
	Direction Direction
}

func Asc(name string) PropertyOrder  { return PropertyOrder{Name: name} }
func Desc(name string) PropertyOrder { return PropertyOrder{Name: name, Direction: Descending} }

// ToPB converts o to its wire form.
func (o PropertyOrder) ToPB() *datastorepb.PropertyOrder {
	dir := datastorepb.PropertyOrder_ASCENDING
	if o.Direction == Descending {
		dir = datastorepb.PropertyOrder_DESCENDING
	}
	return &datastorepb.PropertyOrder{
		Property:  &datastorepb.PropertyReference{Name: o.Name},
		Direction: dir,
	}
}

// Query describes one page of a query.
//
// Limit 0 means "no limit"; the service then picks a page size, so callers
// paging through results must follow EndCursor rather than rely on getting
// everything at once.
type Query struct {
	Kind        string // "" for kindless queries
	Filter      *Filter
	StartCursor []byte
	EndCursor   []byte
	Projection  []string
	DistinctOn  []string
	Order       []PropertyOrder
	Limit       int32
	Offset      int32
}

// NewQuery starts a query over kind with the default limit.
func NewQuery(kind string) *Query {
	return &Query{Kind: kind, Limit: DefaultQueryLimit}
}

// Where ANDs f into the query filter.
func (q *Query) Where(f *Filter) *Query {
	q.Filter = And(q.Filter, f)
	return q
}

// OrderBy appends sort orders.
func (q *Query) OrderBy(orders ...PropertyOrder) *Query {
	q.Order = append(q.Order, orders...)
	return q
}

// Project appends projected properties.
func (q *Query) Project(names ...string) *Query {
	q.Projection = append(q.Projection, names...)
	return q
}

// Distinct appends distinct-on properties.
func (q *Query) Distinct(names ...string) *Query {
	q.DistinctOn = append(q.DistinctOn, names...)
	return q
}

// Start sets the cursor to resume from.
func (q *Query) Start(cursor []byte) *Query {
	q.StartCursor = cursor
	return q
}

// End sets the cursor to stop at.
func (q *Query) End(cursor []byte) *Query {
	q.EndCursor = cursor
	return q
}

func (q *Query) WithLimit(n int32) *Query {
	q.Limit = n
	return q
}

func (q *Query) WithOffset(n int32) *Query {
	q.Offset = n
	return q
}

// KeysOnly projects on the key alone.
func (q *Query) KeysOnly() *Query {
	q.Projection = []string{KeyProperty}
	return q
}

// Clone returns a copy of q that can be changed independently.
func (q *Query) Clone() *Query {
	ret := *q
	ret.Projection = append([]string(nil), q.Projection...)
	ret.DistinctOn = append([]string(nil), q.DistinctOn...)
	ret.Order = append([]PropertyOrder(nil), q.Order...)
	return &ret
}

// ToPB converts q to its wire form.
func (q *Query) ToPB() *datastorepb.Query {
	ret := &datastorepb.Query{
		Filter:      q.Filter.ToPB(),
		StartCursor: q.StartCursor,
		EndCursor:   q.EndCursor,
		Offset:      q.Offset,
	}
	if q.Kind != "" {
		ret.Kind = []*datastorepb.KindExpression{{Name: q.Kind}}
	}
	for _, name := range q.Projection {
		ret.Projection = append(ret.Projection, &datastorepb.Projection{
			Property: &datastorepb.PropertyReference{Name: name},
		})
	}
	for _, name := range q.DistinctOn {
		ret.DistinctOn = append(ret.DistinctOn, &datastorepb.PropertyReference{Name: name})
	}
	for _, o := range q.Order {
		ret.Order = append(ret.Order, o.ToPB())
	}
	if q.Limit > 0 {
		ret.Limit = wrapperspb.Int32(q.Limit)
	}
	return ret
}

// QueryResult is one page of query results.
type QueryResult[T any] struct {
	Items []T
	// EndCursor points after the last item. Pass it as the StartCursor of the
	// next query to get the next page.
	EndCursor []byte
	// MoreResults is the service's opinion on whether more pages exist.
	MoreResults datastorepb.QueryResultBatch_MoreResultsType
}

// Done is true if the service said there is nothing after this page.
func (r *QueryResult[T]) Done() bool {
	return r.MoreResults == datastorepb.QueryResultBatch_NO_MORE_RESULTS
}

// MapQueryResult converts the items of a page, keeping its cursor.
//
// It stops at the first error.
func MapQueryResult[T, U any](r *QueryResult[T], f func(T) (U, error)) (*QueryResult[U], error) {
	ret := &QueryResult[U]{
		Items:       make([]U, 0, len(r.Items)),
		EndCursor:   r.EndCursor,
		MoreResults: r.MoreResults,
	}
	for _, item := range r.Items {
		u, err := f(item)
		if err != nil {
			return nil, err
		}
		ret.Items = append(ret.Items, u)
	}
	return ret, nil
}
