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
	"maps"
	"slices"
	"strings"
)

// MeaningText is the legacy "long text" meaning. Values with this meaning are
// never indexed.
const MeaningText int32 = 15

// PropertyValue is a Value plus its indexing and meaning metadata.
//
// Meaning 0 means "no meaning", as on the wire. Meaning is always 0 when Value
// is Null.
type PropertyValue struct {
	Value   Value
	Indexed bool
	Meaning int32
}

func (p PropertyValue) String() string {
	ret := p.Value.String()
	if !p.Indexed {
		ret += " noindex"
	}
	if p.Meaning != 0 {
		ret += fmt.Sprintf(" meaning:%d", p.Meaning)
	}
	return ret
}

// Entity is a key plus a set of named properties.
//
// Property names are unique. Properties that no schema knows about are kept
// as is, so an entity that is fetched, partially modified and written back
// loses nothing.
type Entity struct {
	key        *Key
	properties map[string]PropertyValue
}

// NewEntity returns an empty entity with the given key.
func NewEntity(key *Key) *Entity {
	return &Entity{key: key, properties: map[string]PropertyValue{}}
}

// OfKind returns an empty entity with an incomplete key of the given kind.
func OfKind(kind string) *Entity {
	return NewEntity(NewKey(kind))
}

func (e *Entity) Key() *Key       { return e.key }
func (e *Entity) SetKey(key *Key) { e.key = key }
func (e *Entity) Len() int        { return len(e.properties) }

// Has reports whether the property is set, possibly to Null.
func (e *Entity) Has(name string) bool {
	_, ok := e.properties[name]
	return ok
}

// Kind is the kind of the entity key, or "" if it has none.
func (e *Entity) Kind() string {
	if e.key == nil {
		return ""
	}
	return e.key.Kind()
}

// Set stores a value with the given indexing and no meaning.
func (e *Entity) Set(name string, v Value, indexed bool) {
	e.SetAdvanced(name, v, indexed, indexed, 0)
}

func (e *Entity) SetIndexed(name string, v Value)   { e.Set(name, v, true) }
func (e *Entity) SetUnindexed(name string, v Value) { e.Set(name, v, false) }

// SetAdvanced stores a value with full control over its metadata.
//
// An empty array is stored as Null. A Null value is indexed iff indexNulls is
// set, and never carries a meaning. Anything else is indexed iff indexValues
// is set.
func (e *Entity) SetAdvanced(name string, v Value, indexValues, indexNulls bool, meaning int32) {
	if v.IsEmptyArray() {
		v = Null()
	}
	pv := PropertyValue{Value: v, Indexed: indexValues, Meaning: meaning}
	if v.IsNull() {
		pv.Indexed = indexNulls
		pv.Meaning = 0
	}
	e.setProperty(name, pv)
}

func (e *Entity) setProperty(name string, pv PropertyValue) {
	if e.properties == nil {
		e.properties = map[string]PropertyValue{}
	}
	e.properties[name] = pv
}

// Get returns a property with its metadata.
func (e *Entity) Get(name string) (PropertyValue, bool) {
	pv, ok := e.properties[name]
	return pv, ok
}

// Value returns the value of a property. Missing properties read as Null.
func (e *Entity) Value(name string) (Value, bool) {
	pv, ok := e.properties[name]
	return pv.Value, ok
}

// IsIndexed reports whether a property exists and is indexed.
func (e *Entity) IsIndexed(name string) bool {
	return e.properties[name].Indexed
}

// Delete removes a property.
func (e *Entity) Delete(name string) {
	delete(e.properties, name)
}

// Names returns the sorted property names.
func (e *Entity) Names() []string {
	return slices.Sorted(maps.Keys(e.properties))
}

// Properties returns a copy of the property map.
func (e *Entity) Properties() map[string]PropertyValue {
	return maps.Clone(e.properties)
}

// Clone returns a copy of e. Keys and values are immutable and are shared.
func (e *Entity) Clone() *Entity {
	props := maps.Clone(e.properties)
	if props == nil {
		props = map[string]PropertyValue{}
	}
	return &Entity{key: e.key, properties: props}
}

// ConsumePropertiesFrom copies every property of other into e, overwriting
// properties with the same name. Properties of e that other lacks are kept.
// The key of e is not touched.
func (e *Entity) ConsumePropertiesFrom(other *Entity) {
	for name, pv := range other.properties {
		e.setProperty(name, pv)
	}
}

func (e *Entity) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "Entity(%s){", e.key)
	for i, name := range e.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", name, e.properties[name])
	}
	sb.WriteByte('}')
	return sb.String()
}
