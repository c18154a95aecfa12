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

// EntityModel is implemented by types that convert themselves to and from
// entities. ToEntity, FromEntity and Load use it instead of the struct tags.
//
// LoadEntity is called on a pointer to a zero value.
type EntityModel interface {
	ToEntity() (*datastore.Entity, error)
	LoadEntity(e *datastore.Entity) error
}

// ToEntity converts a struct, or a pointer to one, into an entity.
func ToEntity(src any) (*datastore.Entity, error) {
	if m, ok := src.(EntityModel); ok {
		return m.ToEntity()
	}
	v := reflect.ValueOf(src)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, errors.Reason("schema: nil %T", src).Err()
		}
		v = v.Elem()
	}
	s, err := ForType(v.Type())
	if err != nil {
		return nil, err
	}
	return s.save(v)
}

// FromEntity converts an entity into a new T.
func FromEntity[T any](e *datastore.Entity) (T, error) {
	var ret T
	err := Load(e, &ret)
	return ret, err
}

// Load fills the struct dst points to from e.
//
// Mapped fields the entity lacks are reset to their zero value.
func Load(e *datastore.Entity, dst any) error {
	if m, ok := dst.(EntityModel); ok {
		return m.LoadEntity(e)
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.Reason("schema: Load needs a non-nil pointer, got %T", dst).Err()
	}
	s, err := ForType(v.Type())
	if err != nil {
		return err
	}
	return s.load(e, v.Elem())
}

// KindOf returns the kind of T's entities.
func KindOf[T any]() (string, error) {
	s, err := Of[T]()
	if err != nil {
		return "", err
	}
	return s.Kind(), nil
}
