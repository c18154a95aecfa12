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
	"reflect"
	"strings"
	"sync"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/errors"

	"go.chromium.org/dsaccess/service/datastore"
)

// IndexPolicy says which values of a property get indexed.
type IndexPolicy int

const (
	// Indexed indexes values and nulls.
	Indexed IndexPolicy = iota
	// Unindexed indexes nothing.
	Unindexed
	// UnindexedNulls indexes values but not nulls.
	UnindexedNulls
)

func (p IndexPolicy) flags() (indexValues, indexNulls bool) {
	switch p {
	case Unindexed:
		return false, false
	case UnindexedNulls:
		return true, false
	}
	return true, true
}

// elemKind is the scalar a field (or each element of a slice field) maps to.
type elemKind int

const (
	elemString elemKind = iota
	elemInt
	elemUint
	elemFloat
	elemBool
	elemBlob
	elemKey
)

type keyShape int

const (
	pkKey keyShape = iota
	pkName
	pkID
	pkOptName
	pkOptID
)

type field struct {
	index    int
	goName   string
	wireName string
	policy   IndexPolicy
	text     bool

	elem     elemKind
	optional bool // *T
	repeated bool // []T
}

type keyField struct {
	index  int
	goName string
	shape  keyShape
}

// Schema describes how a struct type maps to entities.
type Schema struct {
	typ    reflect.Type
	kind   string
	key    keyField
	fields []field

	problem error
}

func (s *Schema) Kind() string       { return s.kind }
func (s *Schema) Type() reflect.Type { return s.typ }

// PropertyNames returns the mapped property names in field order. The
// primary key is not a property.
func (s *Schema) PropertyNames() []string {
	ret := make([]string, len(s.fields))
	for i, f := range s.fields {
		ret[i] = f.wireName
	}
	return ret
}

var (
	typeOfKey   = reflect.TypeOf((*datastore.Key)(nil))
	typeOfBytes = reflect.TypeOf([]byte(nil))
)

var (
	schemasMu sync.RWMutex
	schemas   = map[reflect.Type]*Schema{}
)

// Of returns the schema of struct type T.
func Of[T any]() (*Schema, error) {
	return ForType(reflect.TypeOf((*T)(nil)).Elem())
}

// ForType returns the schema of a struct type or of a pointer to one.
func ForType(t reflect.Type) (*Schema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Reason("schema: %s is not a struct", t).Err()
	}

	schemasMu.RLock()
	s, ok := schemas[t]
	schemasMu.RUnlock()
	if !ok {
		schemasMu.Lock()
		s = getSchemaLocked(t)
		schemasMu.Unlock()
	}
	if s.problem != nil {
		return nil, s.problem
	}
	return s, nil
}

func getSchemaLocked(t reflect.Type) (s *Schema) {
	if s, ok := schemas[t]; ok {
		return s
	}

	me := func(format string, args ...any) error {
		return errors.Reason("schema: %s: "+format, append([]any{t}, args...)...).Err()
	}

	s = &Schema{typ: t, kind: t.Name(), key: keyField{index: -1}}
	defer func() {
		if s.problem != nil {
			s.fields = nil
		}
	}()
	schemas[t] = s

	rename := renameRules[DefaultRenameRule]
	seen := stringset.New(t.NumField())
	var fields []field

	for i := range t.NumField() {
		f := t.Field(i)
		tag, tagged := f.Tag.Lookup("ds")
		if raw := string(f.Tag); !tagged && strings.Contains(raw, "ds:") && !strings.Contains(raw, `ds:"`) {
			s.problem = me("struct tag of field %q is invalid: %q (did you mean `ds:\"...\"`?)", f.Name, f.Tag)
			return
		}

		if f.Name == "_" {
			if !strings.HasPrefix(tag, "$") {
				continue
			}
			meta, val, _ := strings.Cut(tag[1:], ",")
			switch meta {
			case "kind":
				if val == "" {
					s.problem = me("empty $kind")
					return
				}
				s.kind = val
			case "rename":
				r, ok := renameRules[val]
				if !ok {
					s.problem = me("unknown rename rule %q", val)
					return
				}
				rename = r
			default:
				s.problem = me("unknown meta field %q", meta)
				return
			}
			continue
		}

		if tag == "-" || (!tagged && f.Name != "Key") {
			continue
		}
		if !f.IsExported() {
			s.problem = me("field %q is tagged but not exported", f.Name)
			return
		}
		if f.Anonymous {
			s.problem = me("embedded field %q is not supported", f.Name)
			return
		}

		name, opts := parseTag(tag)
		isKey, isField := false, false
		fd := field{index: i, goName: f.Name}
		for _, o := range opts {
			switch o {
			case "key":
				isKey = true
			case "field":
				isField = true
			case "indexed":
				fd.policy = Indexed
			case "unindexed":
				fd.policy = Unindexed
			case "unindexed_nulls":
				fd.policy = UnindexedNulls
			case "text":
				fd.text = true
			default:
				s.problem = me("field %q has unknown option %q", f.Name, o)
				return
			}
		}
		if isKey && isField {
			s.problem = me("field %q is tagged both key and field", f.Name)
			return
		}

		if isKey || (f.Name == "Key" && !isField) {
			if s.key.index >= 0 {
				s.problem = me("fields %q and %q are both primary keys", s.key.goName, f.Name)
				return
			}
			shape, err := keyShapeOf(f.Type)
			if err != nil {
				s.problem = me("primary key %q: %s", f.Name, err)
				return
			}
			s.key = keyField{index: i, goName: f.Name, shape: shape}
			continue
		}

		if name == "" {
			name = rename(f.Name)
		}
		if name == "" || name == datastore.KeyProperty {
			s.problem = me("field %q has invalid property name %q", f.Name, name)
			return
		}
		if !seen.Add(name) {
			s.problem = me("property name %q is used twice", name)
			return
		}
		fd.wireName = name
		if err := fd.setShape(f.Type); err != nil {
			s.problem = me("field %q: %s", f.Name, err)
			return
		}
		fields = append(fields, fd)
	}

	if s.key.index < 0 {
		s.problem = me("no primary key field (name it Key or tag it `ds:\",key\"`)")
		return
	}
	s.fields = fields
	return
}

func parseTag(tag string) (name string, opts []string) {
	parts := strings.Split(tag, ",")
	name = strings.TrimSpace(parts[0])
	for _, o := range parts[1:] {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, o)
		}
	}
	return
}

func keyShapeOf(t reflect.Type) (keyShape, error) {
	switch {
	case t == typeOfKey:
		return pkKey, nil
	case t.Kind() == reflect.String:
		return pkName, nil
	case t.Kind() == reflect.Int64:
		return pkID, nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String:
		return pkOptName, nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Int64:
		return pkOptID, nil
	}
	return 0, errors.Reason("unsupported type %s", t).Err()
}

func (fd *field) setShape(t reflect.Type) error {
	switch {
	case t == typeOfKey || t == typeOfBytes:
	case t.Kind() == reflect.Pointer:
		fd.optional = true
		t = t.Elem()
	case t.Kind() == reflect.Slice:
		fd.repeated = true
		t = t.Elem()
	}
	k, err := elemKindOf(t)
	if err != nil {
		return err
	}
	fd.elem = k
	return nil
}

func elemKindOf(t reflect.Type) (elemKind, error) {
	switch t {
	case typeOfKey:
		return elemKey, nil
	case typeOfBytes:
		return elemBlob, nil
	}
	switch t.Kind() {
	case reflect.String:
		return elemString, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return elemInt, nil
	case reflect.Uint16, reflect.Uint32:
		return elemUint, nil
	case reflect.Float32, reflect.Float64:
		return elemFloat, nil
	case reflect.Bool:
		return elemBool, nil
	}
	return 0, errors.Reason("unsupported type %s", t).Err()
}
