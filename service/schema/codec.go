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

	"go.chromium.org/luci/common/errors"

	"go.chromium.org/dsaccess/service/datastore"
)

// save converts the struct value v (not a pointer) into an entity.
func (s *Schema) save(v reflect.Value) (*datastore.Entity, error) {
	key, err := s.saveKey(v.Field(s.key.index))
	if err != nil {
		return nil, err
	}
	e := datastore.NewEntity(key)
	for _, fd := range s.fields {
		indexValues, indexNulls := fd.policy.flags()
		meaning := int32(0)
		if fd.text {
			indexValues, meaning = false, datastore.MeaningText
		}
		e.SetAdvanced(fd.wireName, fd.encode(v.Field(fd.index)), indexValues, indexNulls, meaning)
	}
	return e, nil
}

func (s *Schema) saveKey(f reflect.Value) (*datastore.Key, error) {
	incomplete := datastore.NewKey(s.kind)
	switch s.key.shape {
	case pkKey:
		k, _ := f.Interface().(*datastore.Key)
		if k == nil {
			return incomplete, nil
		}
		if k.Kind() != s.kind {
			return nil, datastore.KindMismatch(s.kind, k.Kind())
		}
		return k, nil
	case pkName:
		if name := f.String(); name != "" {
			return incomplete.WithName(name), nil
		}
	case pkID:
		if id := f.Int(); id != 0 {
			return incomplete.WithID(id), nil
		}
	case pkOptName:
		if !f.IsNil() {
			return incomplete.WithName(f.Elem().String()), nil
		}
	case pkOptID:
		if !f.IsNil() {
			return incomplete.WithID(f.Elem().Int()), nil
		}
	}
	return incomplete, nil
}

func (fd *field) encode(f reflect.Value) datastore.Value {
	switch {
	case fd.optional:
		if f.IsNil() {
			return datastore.Null()
		}
		return encodeElem(f.Elem(), fd.elem)
	case fd.repeated:
		vals := make([]datastore.Value, f.Len())
		for i := range vals {
			vals[i] = encodeElem(f.Index(i), fd.elem)
		}
		return datastore.Array(vals...)
	}
	return encodeElem(f, fd.elem)
}

func encodeElem(v reflect.Value, k elemKind) datastore.Value {
	switch k {
	case elemString:
		return datastore.String(v.String())
	case elemInt:
		return datastore.Int(v.Int())
	case elemUint:
		return datastore.Int(int64(v.Uint()))
	case elemFloat:
		return datastore.Float(v.Float())
	case elemBool:
		return datastore.Bool(v.Bool())
	case elemBlob:
		return datastore.Blob(v.Bytes())
	case elemKey:
		k, _ := v.Interface().(*datastore.Key)
		return datastore.KeyValue(k)
	}
	panic("impossible")
}

// load fills the struct value v (addressable, not a pointer) from e.
func (s *Schema) load(e *datastore.Entity, v reflect.Value) error {
	if e.Kind() != s.kind {
		return datastore.KindMismatch(s.kind, e.Kind())
	}
	if err := s.loadKey(e.Key(), v.Field(s.key.index)); err != nil {
		return err
	}

	lme := errors.NewLazyMultiError(len(s.fields))
	for i, fd := range s.fields {
		val, _ := e.Value(fd.wireName)
		if err := fd.decode(val, v.Field(fd.index)); err != nil {
			lme.Assign(i, errors.Annotate(err, "property %q into field %s", fd.wireName, fd.goName).Err())
		}
	}
	if err := lme.Get(); err != nil {
		return datastore.MappingError(err, "loading %s", e.Key())
	}
	return nil
}

func (s *Schema) loadKey(k *datastore.Key, f reflect.Value) error {
	if s.key.shape == pkKey {
		f.Set(reflect.ValueOf(k))
		return nil
	}

	optional := s.key.shape == pkOptName || s.key.shape == pkOptID
	if k == nil || k.IsIncomplete() {
		if optional {
			f.SetZero()
			return nil
		}
		return datastore.MappingError(datastore.ErrIncompleteKey, "primary key %s of %s", s.key.goName, k)
	}

	wantName := s.key.shape == pkName || s.key.shape == pkOptName
	if wantName != (k.Variant() == datastore.Named) {
		return datastore.MappingError(nil, "primary key %s cannot hold %s", s.key.goName, k)
	}
	if optional {
		p := reflect.New(f.Type().Elem())
		f.Set(p)
		f = p.Elem()
	}
	if wantName {
		f.SetString(k.Name())
	} else {
		f.SetInt(k.ID())
	}
	return nil
}

func (fd *field) decode(val datastore.Value, f reflect.Value) error {
	switch {
	case fd.repeated:
		if val.IsNull() {
			f.SetZero()
			return nil
		}
		els, ok := val.AsArray()
		if !ok {
			els = []datastore.Value{val}
		}
		slice := reflect.MakeSlice(f.Type(), len(els), len(els))
		for i, el := range els {
			if err := decodeElem(el, fd.elem, slice.Index(i)); err != nil {
				return errors.Annotate(err, "element %d", i).Err()
			}
		}
		f.Set(slice)
		return nil

	case fd.optional:
		el, present, err := unwrapSingle(val)
		if err != nil || !present {
			f.SetZero()
			return err
		}
		p := reflect.New(f.Type().Elem())
		if err := decodeElem(el, fd.elem, p.Elem()); err != nil {
			return err
		}
		f.Set(p)
		return nil
	}

	el, present, err := unwrapSingle(val)
	if err != nil || !present {
		f.SetZero()
		return err
	}
	return decodeElem(el, fd.elem, f)
}

// unwrapSingle unwraps Null and arrays of at most one element.
func unwrapSingle(val datastore.Value) (el datastore.Value, present bool, err error) {
	if val.IsNull() {
		return val, false, nil
	}
	els, ok := val.AsArray()
	if !ok {
		return val, true, nil
	}
	switch len(els) {
	case 0:
		return val, false, nil
	case 1:
		return els[0], !els[0].IsNull(), nil
	}
	return val, false, errors.Reason("got an array of %d values, want at most one", len(els)).Err()
}

func decodeElem(val datastore.Value, k elemKind, f reflect.Value) error {
	if val.IsNull() {
		f.SetZero()
		return nil
	}
	mismatch := func() error {
		return errors.Reason("cannot load %s into %s", val, f.Type()).Err()
	}
	switch k {
	case elemString:
		s, ok := val.AsString()
		if !ok {
			return mismatch()
		}
		f.SetString(s)
	case elemInt:
		i, ok := val.AsInt()
		if !ok {
			return mismatch()
		}
		if f.OverflowInt(i) {
			return errors.Reason("%d overflows %s", i, f.Type()).Err()
		}
		f.SetInt(i)
	case elemUint:
		i, ok := val.AsInt()
		if !ok {
			return mismatch()
		}
		if i < 0 || f.OverflowUint(uint64(i)) {
			return errors.Reason("%d overflows %s", i, f.Type()).Err()
		}
		f.SetUint(uint64(i))
	case elemFloat:
		x, ok := val.AsFloat()
		if !ok {
			return mismatch()
		}
		f.SetFloat(x)
	case elemBool:
		b, ok := val.AsBool()
		if !ok {
			return mismatch()
		}
		f.SetBool(b)
	case elemBlob:
		b, ok := val.AsBlob()
		if !ok {
			return mismatch()
		}
		f.SetBytes(b)
	case elemKey:
		key, ok := val.AsKey()
		if !ok {
			return mismatch()
		}
		f.Set(reflect.ValueOf(key))
	}
	return nil
}
