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
	"cloud.google.com/go/datastore/apiv1/datastorepb"
	"google.golang.org/protobuf/types/known/structpb"

	"go.chromium.org/luci/common/errors"
)

// ToPB converts k to its wire form, root element first.
//
// The partition is left unset: the service fills it in from the request.
func (k *Key) ToPB() *datastorepb.Key {
	if k == nil {
		return nil
	}
	path := k.Path()
	ret := &datastorepb.Key{Path: make([]*datastorepb.Key_PathElement, len(path))}
	for i, el := range path {
		pe := &datastorepb.Key_PathElement{Kind: el.kind}
		switch el.variant {
		case Named:
			pe.IdType = &datastorepb.Key_PathElement_Name{Name: el.name}
		case Numeric:
			pe.IdType = &datastorepb.Key_PathElement_Id{Id: el.id}
		}
		ret.Path[i] = pe
	}
	return ret
}

// KeyFromPB rebuilds a key from its wire form.
func KeyFromPB(pb *datastorepb.Key) (*Key, error) {
	if len(pb.GetPath()) == 0 {
		return nil, errors.Annotate(ErrInvalidKey, "empty key path").Err()
	}
	var cur *Key
	for i, pe := range pb.Path {
		if pe.GetKind() == "" {
			return nil, errors.Annotate(ErrInvalidKey, "path element %d has no kind", i).Err()
		}
		k := &Key{kind: pe.Kind, parent: cur}
		switch id := pe.IdType.(type) {
		case *datastorepb.Key_PathElement_Name:
			k.variant, k.name = Named, id.Name
		case *datastorepb.Key_PathElement_Id:
			k.variant, k.id = Numeric, id.Id
		}
		cur = k
	}
	return cur, nil
}

// ValueToPB converts v to its wire form.
//
// Arrays get the index flag and meaning on each element rather than on the
// array value itself, since the service rejects both on array values.
func ValueToPB(v Value, indexed bool, meaning int32) *datastorepb.Value {
	ret := &datastorepb.Value{ExcludeFromIndexes: !indexed, Meaning: meaning}
	switch v.typ {
	case NullType:
		ret.ValueType = &datastorepb.Value_NullValue{NullValue: structpb.NullValue_NULL_VALUE}
		ret.Meaning = 0
	case IntegerType:
		ret.ValueType = &datastorepb.Value_IntegerValue{IntegerValue: v.i}
	case BooleanType:
		ret.ValueType = &datastorepb.Value_BooleanValue{BooleanValue: v.i != 0}
	case StringType:
		ret.ValueType = &datastorepb.Value_StringValue{StringValue: v.s}
	case BlobType:
		ret.ValueType = &datastorepb.Value_BlobValue{BlobValue: []byte(v.s)}
	case FloatType:
		ret.ValueType = &datastorepb.Value_DoubleValue{DoubleValue: v.f}
	case KeyType:
		ret.ValueType = &datastorepb.Value_KeyValue{KeyValue: v.key.ToPB()}
	case ArrayType:
		vals := make([]*datastorepb.Value, len(v.arr))
		for i, el := range v.arr {
			vals[i] = ValueToPB(el, indexed, meaning)
		}
		ret.ValueType = &datastorepb.Value_ArrayValue{ArrayValue: &datastorepb.ArrayValue{Values: vals}}
		ret.ExcludeFromIndexes = false
		ret.Meaning = 0
	}
	return ret
}

// ValueFromPB converts a wire value.
//
// A nil value or a value with no variant set is Null. Entity, geo point and
// timestamp values fail with ErrUnsupportedValue.
func ValueFromPB(pb *datastorepb.Value) (Value, error) {
	switch v := pb.GetValueType().(type) {
	case nil, *datastorepb.Value_NullValue:
		return Null(), nil
	case *datastorepb.Value_IntegerValue:
		return Int(v.IntegerValue), nil
	case *datastorepb.Value_BooleanValue:
		return Bool(v.BooleanValue), nil
	case *datastorepb.Value_StringValue:
		return String(v.StringValue), nil
	case *datastorepb.Value_BlobValue:
		return Blob(v.BlobValue), nil
	case *datastorepb.Value_DoubleValue:
		return Float(v.DoubleValue), nil
	case *datastorepb.Value_KeyValue:
		k, err := KeyFromPB(v.KeyValue)
		if err != nil {
			return Value{}, err
		}
		return KeyValue(k), nil
	case *datastorepb.Value_ArrayValue:
		vals := v.ArrayValue.GetValues()
		arr := make([]Value, len(vals))
		for i, el := range vals {
			var err error
			if arr[i], err = ValueFromPB(el); err != nil {
				return Value{}, errors.Annotate(err, "array element %d", i).Err()
			}
		}
		return Value{typ: ArrayType, arr: arr}, nil
	case *datastorepb.Value_EntityValue:
		return Value{}, errors.Annotate(ErrUnsupportedValue, "entity value").Err()
	case *datastorepb.Value_GeoPointValue:
		return Value{}, errors.Annotate(ErrUnsupportedValue, "geo point value").Err()
	case *datastorepb.Value_TimestampValue:
		return Value{}, errors.Annotate(ErrUnsupportedValue, "timestamp value").Err()
	default:
		return Value{}, errors.Annotate(ErrUnsupportedValue, "%T", v).Err()
	}
}

// PropertyToPB converts a property with its metadata.
func PropertyToPB(pv PropertyValue) *datastorepb.Value {
	return ValueToPB(pv.Value, pv.Indexed, pv.Meaning)
}

// PropertyFromPB converts a wire value with its metadata.
//
// For arrays the index flag and meaning come from the first element, or from
// the array value itself if it is empty. Arrays whose elements disagree lose
// that distinction.
func PropertyFromPB(pb *datastorepb.Value) (PropertyValue, error) {
	v, err := ValueFromPB(pb)
	if err != nil {
		return PropertyValue{}, err
	}
	meta := pb
	if els := pb.GetArrayValue().GetValues(); len(els) > 0 {
		meta = els[0]
	}
	pv := PropertyValue{Value: v, Indexed: !meta.GetExcludeFromIndexes(), Meaning: meta.GetMeaning()}
	if v.IsNull() {
		pv.Meaning = 0
	}
	return pv, nil
}

// ToPB converts e to its wire form.
func (e *Entity) ToPB() *datastorepb.Entity {
	ret := &datastorepb.Entity{
		Key:        e.key.ToPB(),
		Properties: make(map[string]*datastorepb.Value, len(e.properties)),
	}
	for name, pv := range e.properties {
		ret.Properties[name] = PropertyToPB(pv)
	}
	return ret
}

// EntityFromPB converts a wire entity. An entity without a key gets a nil
// key.
func EntityFromPB(pb *datastorepb.Entity) (*Entity, error) {
	ret := &Entity{properties: make(map[string]PropertyValue, len(pb.GetProperties()))}
	if pb.GetKey() != nil {
		var err error
		if ret.key, err = KeyFromPB(pb.Key); err != nil {
			return nil, err
		}
	}
	for name, v := range pb.GetProperties() {
		pv, err := PropertyFromPB(v)
		if err != nil {
			return nil, errors.Annotate(err, "property %q of %s", name, ret.key).Err()
		}
		ret.properties[name] = pv
	}
	return ret, nil
}
