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
	"go.chromium.org/dsaccess/service/datastore"
)

// ModeledUpdate pairs a fetched entity with its typed model for a
// fetch-modify-commit cycle.
//
// Change Model, then call UpdateIntoEntity (or UpdateEntity) to get an entity
// to write back. Properties of the fetched entity that T does not map are
// kept as they were.
type ModeledUpdate[T any] struct {
	Model  T
	Entity *datastore.Entity
}

// NewModeledUpdate loads e into a new T.
func NewModeledUpdate[T any](e *datastore.Entity) (*ModeledUpdate[T], error) {
	m, err := FromEntity[T](e)
	if err != nil {
		return nil, err
	}
	return &ModeledUpdate[T]{Model: m, Entity: e}, nil
}

// UpdateEntity returns a copy of the held entity with the properties of the
// model merged in. The held entity is not changed.
func (u *ModeledUpdate[T]) UpdateEntity() (*datastore.Entity, error) {
	modeled, err := ToEntity(&u.Model)
	if err != nil {
		return nil, err
	}
	ret := u.Entity.Clone()
	ret.ConsumePropertiesFrom(modeled)
	return ret, nil
}

// UpdateIntoEntity merges the properties of the model into the held entity
// and returns it.
func (u *ModeledUpdate[T]) UpdateIntoEntity() (*datastore.Entity, error) {
	modeled, err := ToEntity(&u.Model)
	if err != nil {
		return nil, err
	}
	u.Entity.ConsumePropertiesFrom(modeled)
	return u.Entity, nil
}
