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
	"testing"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"

	"go.chromium.org/dsaccess/service/datastore"
)

type counter struct {
	_ struct{} `ds:"$kind,Counter"`

	Key   string `ds:""`
	Value int64  `ds:"value"`
}

// point converts itself without struct tags.
type point struct {
	Name string
	X, Y int64
}

func (p *point) ToEntity() (*datastore.Entity, error) {
	e := datastore.NewEntity(datastore.NewNameKey("Point", p.Name, nil))
	e.SetIndexed("xy", datastore.Array(datastore.Int(p.X), datastore.Int(p.Y)))
	return e, nil
}

func (p *point) LoadEntity(e *datastore.Entity) error {
	if e.Kind() != "Point" {
		return datastore.KindMismatch("Point", e.Kind())
	}
	v, _ := e.Value("xy")
	xy, _ := v.AsArray()
	if len(xy) != 2 {
		return datastore.MappingError(nil, "xy has %d values", len(xy))
	}
	p.Name = e.Key().Name()
	p.X, _ = xy[0].AsInt()
	p.Y, _ = xy[1].AsInt()
	return nil
}

type mapReader struct {
	entities map[string]*datastore.Entity
	err      error
	queries  []*datastore.Query
}

func (r *mapReader) GetSingle(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.entities[key.String()], nil
}

func (r *mapReader) GetAll(ctx context.Context, keys iter.Seq[*datastore.Key]) ([]*datastore.Entity, error) {
	if r.err != nil {
		return nil, r.err
	}
	var ret []*datastore.Entity
	for k := range keys {
		if e, ok := r.entities[k.String()]; ok {
			ret = append(ret, e)
		}
	}
	return ret, nil
}

func (r *mapReader) RunQuery(ctx context.Context, q *datastore.Query) (*datastore.QueryResult[*datastore.Entity], error) {
	r.queries = append(r.queries, q)
	ret := &datastore.QueryResult[*datastore.Entity]{EndCursor: []byte("end")}
	for _, e := range r.entities {
		if e.Kind() == q.Kind {
			ret.Items = append(ret.Items, e)
		}
	}
	return ret, nil
}

func TestModeledUpdate(t *testing.T) {
	t.Parallel()

	ftt.Run("ModeledUpdate", t, func(t *ftt.Test) {
		fetched := datastore.NewEntity(datastore.NewNameKey("Counter", "c", nil))
		fetched.SetIndexed("value", datastore.Int(1))
		fetched.SetUnindexed("owner", datastore.String("someone"))

		t.Run("keeps unmapped properties", func(t *ftt.Test) {
			u, err := NewModeledUpdate[counter](fetched)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, u.Model.Value, should.Equal(int64(1)))

			u.Model.Value++
			out, err := u.UpdateIntoEntity()
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, out, should.Equal(fetched))

			v, _ := out.Value("value")
			assert.Loosely(t, v.Equal(datastore.Int(2)), should.BeTrue)
			owner, ok := out.Get("owner")
			assert.Loosely(t, ok, should.BeTrue)
			assert.Loosely(t, owner.Value.Equal(datastore.String("someone")), should.BeTrue)
			assert.Loosely(t, owner.Indexed, should.BeFalse)
			assert.Loosely(t, out.Key().String(), should.Equal(`Counter(name:"c")`))
		})

		t.Run("UpdateEntity leaves the fetched entity alone", func(t *ftt.Test) {
			before, _ := fetched.Value("value")
			u, err := NewModeledUpdate[counter](fetched)
			assert.Loosely(t, err, should.BeNil)
			u.Model.Value = 10

			out, err := u.UpdateEntity()
			assert.Loosely(t, err, should.BeNil)
			v, _ := out.Value("value")
			assert.Loosely(t, v.Equal(datastore.Int(10)), should.BeTrue)
			assert.Loosely(t, out.Has("owner"), should.BeTrue)

			v, _ = fetched.Value("value")
			assert.Loosely(t, v.Equal(before), should.BeTrue)
		})

		t.Run("mapping failures surface", func(t *ftt.Test) {
			_, err := NewModeledUpdate[counter](datastore.NewEntity(datastore.NewNameKey("Other", "x", nil)))
			assert.Loosely(t, datastore.KindOf(err), should.Equal(datastore.EntityKindMismatch))
		})

		t.Run("works with EntityModel types", func(t *ftt.Test) {
			e, err := ToEntity(&point{Name: "p", X: 1, Y: 2})
			assert.Loosely(t, err, should.BeNil)
			e.SetIndexed("label", datastore.String("keep me"))

			u, err := NewModeledUpdate[point](e)
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, u.Model.Y, should.Equal(int64(2)))

			u.Model.Y = 5
			out, err := u.UpdateIntoEntity()
			assert.Loosely(t, err, should.BeNil)
			xy, _ := out.Value("xy")
			assert.Loosely(t, xy.String(), should.Equal("[int(1),int(5),]"))
			assert.Loosely(t, out.Has("label"), should.BeTrue)
		})
	})
}

func TestAdapter(t *testing.T) {
	t.Parallel()

	ftt.Run("Adapter", t, func(t *ftt.Test) {
		ctx := context.Background()
		a, err := AdapterOf[counter]()
		assert.Loosely(t, err, should.BeNil)
		assert.Loosely(t, a.Kind(), should.Equal("Counter"))

		stored := datastore.NewEntity(a.NameKey("c1"))
		stored.SetIndexed("value", datastore.Int(7))
		r := &mapReader{entities: map[string]*datastore.Entity{stored.Key().String(): stored}}

		t.Run("keys", func(t *ftt.Test) {
			assert.Loosely(t, a.NewKey().IsIncomplete(), should.BeTrue)
			assert.Loosely(t, a.IDKey(3).String(), should.Equal("Counter(id:3)"))
		})

		t.Run("FetchSingle", func(t *ftt.Test) {
			c, err := a.FetchSingle(ctx, r, a.NameKey("c1"))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, c.Key, should.Equal("c1"))
			assert.Loosely(t, c.Value, should.Equal(int64(7)))

			_, err = a.FetchSingle(ctx, r, a.NameKey("nope"))
			assert.Loosely(t, datastore.KindOf(err), should.Equal(datastore.RequiredEntityNotFound))
			assert.Loosely(t, err, should.ErrLike(`Counter(name:"nope")`))
		})

		t.Run("Get", func(t *ftt.Test) {
			c, err := a.Get(ctx, r, a.NameKey("nope"))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, c, should.BeNil)

			c, err = a.Get(ctx, r, a.NameKey("c1"))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, c.Value, should.Equal(int64(7)))
		})

		t.Run("FetchAll", func(t *ftt.Test) {
			got, err := a.FetchAll(ctx, r, datastore.Keys(a.NameKey("c1"), a.NameKey("nope")))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, got, should.HaveLength(1))
			assert.Loosely(t, got[`Counter(name:"c1")`].Value, should.Equal(int64(7)))
		})

		t.Run("Query", func(t *ftt.Test) {
			page, err := a.Query(ctx, r, datastore.NewQuery(""))
			assert.Loosely(t, err, should.BeNil)
			assert.Loosely(t, page.Items, should.HaveLength(1))
			assert.Loosely(t, string(page.EndCursor), should.Equal("end"))
			assert.Loosely(t, r.queries[len(r.queries)-1].Kind, should.Equal("Counter"))
		})

		t.Run("transport errors pass through", func(t *ftt.Test) {
			boom := errors.New("boom")
			r.err = boom
			_, err := a.FetchSingle(ctx, r, a.NameKey("c1"))
			assert.Loosely(t, err, should.ErrLike(boom))
			_, err = a.FetchAll(ctx, r, datastore.Keys(a.NameKey("c1")))
			assert.Loosely(t, err, should.ErrLike(boom))
		})
	})
}
