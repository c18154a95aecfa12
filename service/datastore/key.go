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
	"iter"
	"slices"
	"strconv"
	"strings"
)

// KeyVariant says how the last element of a key path is identified.
type KeyVariant int

const (
	// Incomplete keys have no identifier yet. They are used to request ID
	// allocation.
	Incomplete KeyVariant = iota
	// Named keys are identified by a string.
	Named
	// Numeric keys are identified by an int64.
	Numeric
)

// Key is an immutable, hierarchical datastore key.
//
// A Key is one (kind, identifier) element plus an optional parent Key. Methods
// that "modify" a key return a new one; a constructed Key is never changed, so
// it is safe to share keys between goroutines.
//
// Keys compare by pointer. Use Equal to compare them structurally, or
// String() as a map identity.
type Key struct {
	kind    string
	variant KeyVariant
	name    string
	id      int64
	parent  *Key
}

// NewKey returns an incomplete key of the given kind.
func NewKey(kind string) *Key {
	return &Key{kind: kind}
}

// NewNameKey returns a named key. parent may be nil.
func NewNameKey(kind, name string, parent *Key) *Key {
	return &Key{kind: kind, variant: Named, name: name, parent: parent}
}

// NewIDKey returns a numeric key. parent may be nil.
func NewIDKey(kind string, id int64, parent *Key) *Key {
	return &Key{kind: kind, variant: Numeric, id: id, parent: parent}
}

// WithName returns a copy of k identified by name.
func (k *Key) WithName(name string) *Key {
	ret := *k
	ret.variant, ret.name, ret.id = Named, name, 0
	return &ret
}

// WithID returns a copy of k identified by id.
func (k *Key) WithID(id int64) *Key {
	ret := *k
	ret.variant, ret.name, ret.id = Numeric, "", id
	return &ret
}

// WithParent returns a copy of k with its parent replaced.
func (k *Key) WithParent(parent *Key) *Key {
	ret := *k
	ret.parent = parent
	return &ret
}

// WithoutID returns a copy of k with its identifier dropped.
func (k *Key) WithoutID() *Key {
	ret := *k
	ret.variant, ret.name, ret.id = Incomplete, "", 0
	return &ret
}

func (k *Key) Kind() string        { return k.kind }
func (k *Key) Variant() KeyVariant { return k.variant }
func (k *Key) Parent() *Key        { return k.parent }

// Name returns the string identifier, or "" if k is not a Named key.
func (k *Key) Name() string { return k.name }

// ID returns the numeric identifier, or 0 if k is not a Numeric key.
func (k *Key) ID() int64 { return k.id }

// IsIncomplete is true if the last element of k has no identifier.
func (k *Key) IsIncomplete() bool { return k.variant == Incomplete }

// Complete is true if k identifies a (possibly stored) entity.
func (k *Key) Complete() bool { return k.variant != Incomplete }

// Root returns the top-most ancestor of k (k itself for root keys).
func (k *Key) Root() *Key {
	for k.parent != nil {
		k = k.parent
	}
	return k
}

// Depth is the number of elements in the key path.
func (k *Key) Depth() int {
	n := 0
	for cur := k; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// Path returns the elements of the key path, root first. Each element is a
// key without a parent.
func (k *Key) Path() []*Key {
	ret := make([]*Key, 0, k.Depth())
	for cur := k; cur != nil; cur = cur.parent {
		ret = append(ret, &Key{kind: cur.kind, variant: cur.variant, name: cur.name, id: cur.id})
	}
	slices.Reverse(ret)
	return ret
}

// Equal compares two keys structurally, including all ancestors.
func (k *Key) Equal(other *Key) bool {
	for k != nil && other != nil {
		if k.kind != other.kind || k.variant != other.variant || k.name != other.name || k.id != other.id {
			return false
		}
		k, other = k.parent, other.parent
	}
	return k == nil && other == nil
}

// Compare orders keys the way the service does: path element by element from
// the root, by kind, then IDs before names. An ancestor sorts before its
// descendants.
func (k *Key) Compare(other *Key) int {
	a, b := k.Path(), other.Path()
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].compareElement(b[i]); c != 0 {
			return c
		}
	}
	return cmpOrdered(len(a), len(b))
}

func (k *Key) compareElement(o *Key) int {
	if c := strings.Compare(k.kind, o.kind); c != 0 {
		return c
	}
	rank := func(v KeyVariant) int {
		switch v {
		case Numeric:
			return 1
		case Named:
			return 2
		}
		return 0
	}
	if c := cmpOrdered(rank(k.variant), rank(o.variant)); c != 0 {
		return c
	}
	if k.variant == Numeric {
		return cmpOrdered(k.id, o.id)
	}
	return strings.Compare(k.name, o.name)
}

// HasAncestor is true if ancestor is k or one of k's parents.
func (k *Key) HasAncestor(ancestor *Key) bool {
	depth, adepth := k.Depth(), ancestor.Depth()
	if adepth > depth {
		return false
	}
	cur := k
	for ; depth > adepth; depth-- {
		cur = cur.parent
	}
	return cur.Equal(ancestor)
}

// String renders k as `Parent(name:"a")/Child(id:1)`. Incomplete elements
// render as `Kind()`. Kinds containing any of `()/"` are Go-quoted.
//
// The rendering is canonical: two keys are Equal iff their strings are equal.
func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	sb := strings.Builder{}
	for i, el := range k.Path() {
		if i > 0 {
			sb.WriteByte('/')
		}
		if strings.ContainsAny(el.kind, `()/"`) {
			sb.WriteString(strconv.Quote(el.kind))
		} else {
			sb.WriteString(el.kind)
		}
		sb.WriteByte('(')
		switch el.variant {
		case Named:
			sb.WriteString("name:")
			sb.WriteString(strconv.Quote(el.name))
		case Numeric:
			fmt.Fprintf(&sb, "id:%d", el.id)
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// Keys adapts a list of keys into a key sequence, as accepted by batch
// operations.
func Keys(keys ...*Key) iter.Seq[*Key] {
	return slices.Values(keys)
}
