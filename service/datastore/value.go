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
	"bytes"
	"fmt"
	"strings"
)

// ValueType is the type tag of a Value.
type ValueType int

// The order of these matches the cross-type sort order of the service.
const (
	NullType ValueType = iota
	IntegerType
	BooleanType
	StringType
	BlobType
	FloatType
	KeyType
	ArrayType
)

var valueTypeNames = map[ValueType]string{
	NullType:    "null",
	IntegerType: "int",
	BooleanType: "bool",
	StringType:  "string",
	BlobType:    "blob",
	FloatType:   "float",
	KeyType:     "key",
	ArrayType:   "array",
}

func (t ValueType) String() string {
	if s, ok := valueTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Value is a single property value.
//
// The zero Value is Null. Values are immutable once built; constructors copy
// the bytes and slices they are given.
type Value struct {
	typ ValueType

	i   int64 // IntegerType, BooleanType (0 or 1)
	f   float64
	s   string // StringType, BlobType
	arr []Value
	key *Key
}

// Null returns the null value.
func Null() Value { return Value{} }

func Int(v int64) Value     { return Value{typ: IntegerType, i: v} }
func Float(v float64) Value { return Value{typ: FloatType, f: v} }
func String(v string) Value { return Value{typ: StringType, s: v} }
func Blob(v []byte) Value   { return Value{typ: BlobType, s: string(v)} }

func Bool(v bool) Value {
	ret := Value{typ: BooleanType}
	if v {
		ret.i = 1
	}
	return ret
}

// KeyValue wraps a key reference. A nil key is Null.
func KeyValue(k *Key) Value {
	if k == nil {
		return Value{}
	}
	return Value{typ: KeyType, key: k}
}

// Array builds an array value. An empty Array is not Null; see
// Entity.SetAdvanced for where the two are unified.
func Array(vals ...Value) Value {
	return Value{typ: ArrayType, arr: append([]Value(nil), vals...)}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsNull() bool    { return v.typ == NullType }

// IsEmptyArray is true for an array with no elements.
func (v Value) IsEmptyArray() bool { return v.typ == ArrayType && len(v.arr) == 0 }

func (v Value) AsInt() (int64, bool)     { return v.i, v.typ == IntegerType }
func (v Value) AsBool() (bool, bool)     { return v.i != 0, v.typ == BooleanType }
func (v Value) AsString() (string, bool) { return v.s, v.typ == StringType }
func (v Value) AsFloat() (float64, bool) { return v.f, v.typ == FloatType }
func (v Value) AsKey() (*Key, bool)      { return v.key, v.typ == KeyType }

// AsBlob returns a copy of the blob bytes.
func (v Value) AsBlob() ([]byte, bool) {
	if v.typ != BlobType {
		return nil, false
	}
	return []byte(v.s), true
}

// AsArray returns a copy of the array elements.
func (v Value) AsArray() ([]Value, bool) {
	if v.typ != ArrayType {
		return nil, false
	}
	return append([]Value(nil), v.arr...), true
}

// Len is the number of array elements, or 0 for non-arrays.
func (v Value) Len() int { return len(v.arr) }

// Equal compares values structurally. Floats compare with ==, so NaN is not
// equal to itself.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case NullType:
		return true
	case IntegerType, BooleanType:
		return v.i == o.i
	case FloatType:
		return v.f == o.f
	case StringType, BlobType:
		return v.s == o.s
	case KeyType:
		return v.key.Equal(o.key)
	case ArrayType:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders values first by type then by content, the way the service
// orders mixed-type property values. Arrays compare element-wise.
func (v Value) Compare(o Value) int {
	if v.typ != o.typ {
		if v.typ < o.typ {
			return -1
		}
		return 1
	}
	switch v.typ {
	case IntegerType, BooleanType:
		return cmpOrdered(v.i, o.i)
	case FloatType:
		return cmpOrdered(v.f, o.f)
	case StringType, BlobType:
		return bytes.Compare([]byte(v.s), []byte(o.s))
	case KeyType:
		return v.key.Compare(o.key)
	case ArrayType:
		for i := 0; i < len(v.arr) && i < len(o.arr); i++ {
			if c := v.arr[i].Compare(o.arr[i]); c != 0 {
				return c
			}
		}
		return cmpOrdered(len(v.arr), len(o.arr))
	}
	return 0
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// String renders v for humans, e.g. `int(1)`, `string(abc)`, `blob(size: 3)`
// or `[int(1),null,]`.
func (v Value) String() string {
	switch v.typ {
	case NullType:
		return "null"
	case IntegerType:
		return fmt.Sprintf("int(%d)", v.i)
	case BooleanType:
		return fmt.Sprintf("bool(%t)", v.i != 0)
	case StringType:
		return fmt.Sprintf("string(%s)", v.s)
	case BlobType:
		return fmt.Sprintf("blob(size: %d)", len(v.s))
	case FloatType:
		return fmt.Sprintf("float(%v)", v.f)
	case KeyType:
		return fmt.Sprintf("key(%s)", v.key)
	case ArrayType:
		sb := strings.Builder{}
		sb.WriteByte('[')
		for _, el := range v.arr {
			sb.WriteString(el.String())
			sb.WriteByte(',')
		}
		sb.WriteByte(']')
		return sb.String()
	}
	return fmt.Sprintf("<%s>", v.typ)
}
