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
	"testing"

	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/testing/protocmp"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/testing/ftt"
	"go.chromium.org/luci/common/testing/truth/assert"
	"go.chromium.org/luci/common/testing/truth/should"
)

func TestKey(t *testing.T) {
	t.Parallel()

	ftt.Run("Key", t, func(t *ftt.Test) {
		root := NewNameKey("Foo", "parent", nil)
		child := NewIDKey("Bar", 123, root)

		t.Run("is immutable", func(t *ftt.Test) {
			k := NewKey("Foo")
			named := k.WithName("x")
			numbered := named.WithID(7)
			parented := numbered.WithParent(root)

			assert.Loosely(t, k.IsIncomplete(), should.BeTrue)
			assert.Loosely(t, named.Name(), should.Equal("x"))
			assert.Loosely(t, named.Parent(), should.BeNil)
			assert.Loosely(t, numbered.ID(), should.Equal(int64(7)))
			assert.Loosely(t, numbered.Name(), should.BeEmpty)
			assert.Loosely(t, parented.Parent(), should.Equal(root))
			assert.Loosely(t, numbered.Parent(), should.BeNil)
			assert.Loosely(t, parented.WithoutID().IsIncomplete(), should.BeTrue)
			assert.Loosely(t, parented.Complete(), should.BeTrue)
		})

		t.Run("renders", func(t *ftt.Test) {
			assert.Loosely(t, root.String(), should.Equal(`Foo(name:"parent")`))
			assert.Loosely(t, child.String(), should.Equal(`Foo(name:"parent")/Bar(id:123)`))
			assert.Loosely(t, NewKey("Baz").WithParent(child).String(),
				should.Equal(`Foo(name:"parent")/Bar(id:123)/Baz()`))
		})

		t.Run("renders distinct keys distinctly", func(t *ftt.Test) {
			tricky := NewKey("A(id:1)/B")
			nested := NewKey("B").WithParent(NewIDKey("A", 1, nil))
			assert.Loosely(t, tricky.Equal(nested), should.BeFalse)
			assert.Loosely(t, tricky.String(), should.Equal(`"A(id:1)/B"()`))
			assert.Loosely(t, nested.String(), should.Equal(`A(id:1)/B()`))
			assert.Loosely(t, NewNameKey(`a"b`, "x", nil).String(), should.Equal(`"a\"b"(name:"x")`))
		})

		t.Run("path", func(t *ftt.Test) {
			path := child.Path()
			assert.Loosely(t, path, should.HaveLength(2))
			assert.Loosely(t, path[0].Kind(), should.Equal("Foo"))
			assert.Loosely(t, path[1].Kind(), should.Equal("Bar"))
			assert.Loosely(t, path[1].Parent(), should.BeNil)
			assert.Loosely(t, child.Depth(), should.Equal(2))
			assert.Loosely(t, child.Root().Equal(root), should.BeTrue)
		})

		t.Run("equality and ancestry", func(t *ftt.Test) {
			same := NewIDKey("Bar", 123, NewNameKey("Foo", "parent", nil))
			assert.Loosely(t, child.Equal(same), should.BeTrue)
			assert.Loosely(t, child.Equal(child.WithID(124)), should.BeFalse)
			assert.Loosely(t, child.Equal(child.WithParent(nil)), should.BeFalse)
			assert.Loosely(t, child.HasAncestor(root), should.BeTrue)
			assert.Loosely(t, child.HasAncestor(child), should.BeTrue)
			assert.Loosely(t, root.HasAncestor(child), should.BeFalse)
			assert.Loosely(t, child.HasAncestor(NewNameKey("Foo", "other", nil)), should.BeFalse)
		})

		t.Run("ordering", func(t *ftt.Test) {
			assert.Loosely(t, NewIDKey("A", 9, nil).Compare(NewIDKey("A", 10, nil)), should.Equal(-1))
			assert.Loosely(t, NewIDKey("A", 10, nil).Compare(NewNameKey("A", "a", nil)), should.Equal(-1))
			assert.Loosely(t, NewNameKey("B", "a", nil).Compare(NewNameKey("A", "z", nil)), should.Equal(1))
			assert.Loosely(t, root.Compare(child), should.Equal(-1))
			assert.Loosely(t, child.Compare(child.WithParent(root)), should.Equal(0))
		})

		t.Run("wire round trip", func(t *ftt.Test) {
			deep := NewNameKey("C", "leaf", NewKey("B").WithID(5).WithParent(root))
			for _, k := range []*Key{root, child, deep, NewKey("Inc"), NewKey("Inc").WithParent(child)} {
				back, err := KeyFromPB(k.ToPB())
				assert.Loosely(t, err, should.BeNil)
				assert.Loosely(t, back.Equal(k), should.BeTrue)
				assert.Loosely(t, back.String(), should.Equal(k.String()))
			}
		})

		t.Run("wire form is root first", func(t *ftt.Test) {
			want := &datastorepb.Key{
				Path: []*datastorepb.Key_PathElement{
					{Kind: "Foo", IdType: &datastorepb.Key_PathElement_Name{Name: "parent"}},
					{Kind: "Bar", IdType: &datastorepb.Key_PathElement_Id{Id: 123}},
				},
			}
			assert.Loosely(t, cmp.Diff(want, child.ToPB(), protocmp.Transform()), should.BeEmpty)
		})

		t.Run("bad wire keys", func(t *ftt.Test) {
			_, err := KeyFromPB(&datastorepb.Key{})
			assert.Loosely(t, errors.Is(err, ErrInvalidKey), should.BeTrue)

			_, err = KeyFromPB(&datastorepb.Key{Path: []*datastorepb.Key_PathElement{{}}})
			assert.Loosely(t, errors.Is(err, ErrInvalidKey), should.BeTrue)
		})
	})
}
