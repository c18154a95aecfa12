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

package schema

import (
	"context"
	"iter"

	"go.chromium.org/dsaccess/service/datastore"
)

// Reader is the read side of a shell. Both shell.Shell and
// txn.TransactionShell implement it.
type Reader interface {
	GetSingle(ctx context.Context, key *datastore.Key) (*datastore.Entity, error)
	GetAll(ctx context.Context, keys iter.Seq[*datastore.Key]) ([]*datastore.Entity, error)
	RunQuery(ctx context.Context, q *datastore.Query) (*datastore.QueryResult[*datastore.Entity], error)
}

// Adapter reads entities of one kind as T.
type Adapter[T any] struct {
	kind string
}

// NewAdapter returns an adapter for entities of the given kind.
func NewAdapter[T any](kind string) *Adapter[T] {
	return &Adapter[T]{kind: kind}
}

// AdapterOf returns an adapter for the kind of T's schema.
func AdapterOf[T any]() (*Adapter[T], error) {
	kind, err := KindOf[T]()
	if err != nil {
		return nil, err
	}
	return NewAdapter[T](kind), nil
}

func (a *Adapter[T]) Kind() string { return a.kind }

// NewKey returns an incomplete key of the adapter's kind.
func (a *Adapter[T]) NewKey() *datastore.Key             { return datastore.NewKey(a.kind) }
func (a *Adapter[T]) NameKey(name string) *datastore.Key { return a.NewKey().WithName(name) }
func (a *Adapter[T]) IDKey(id int64) *datastore.Key      { return a.NewKey().WithID(id) }

// FetchSingle fetches and loads one entity. A missing entity is a
// RequiredEntityNotFound error.
func (a *Adapter[T]) FetchSingle(ctx context.Context, r Reader, key *datastore.Key) (T, error) {
	var zero T
	e, err := r.GetSingle(ctx, key)
	switch {
	case err != nil:
		return zero, err
	case e == nil:
		return zero, datastore.NotFound(key)
	}
	return FromEntity[T](e)
}

// Get is like FetchSingle, but a missing entity gives nil.
func (a *Adapter[T]) Get(ctx context.Context, r Reader, key *datastore.Key) (*T, error) {
	e, err := r.GetSingle(ctx, key)
	if err != nil || e == nil {
		return nil, err
	}
	v, err := FromEntity[T](e)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FetchAll fetches and loads a batch of entities, keyed by the String() of
// their keys. Missing entities are absent from the map.
func (a *Adapter[T]) FetchAll(ctx context.Context, r Reader, keys iter.Seq[*datastore.Key]) (map[string]T, error) {
	es, err := r.GetAll(ctx, keys)
	if err != nil {
		return nil, err
	}
	ret := make(map[string]T, len(es))
	for _, e := range es {
		v, err := FromEntity[T](e)
		if err != nil {
			return nil, err
		}
		ret[e.Key().String()] = v
	}
	return ret, nil
}

// Query runs one page of q and loads the results. A kindless q is
// restricted to the adapter's kind.
func (a *Adapter[T]) Query(ctx context.Context, r Reader, q *datastore.Query) (*datastore.QueryResult[T], error) {
	if q.Kind == "" {
		q = q.Clone()
		q.Kind = a.kind
	}
	page, err := r.RunQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	return datastore.MapQueryResult(page, FromEntity[T])
}
