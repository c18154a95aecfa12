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

// Package schema maps Go structs to datastore entities.
//
// A Schema is derived once per struct type from its `ds` struct tags and
// cached. Only tagged fields are mapped:
//
//	type Book struct {
//	  _ struct{} `ds:"$kind,LibraryBook"`
//
//	  Key      string   `ds:""`
//	  Title    string   `ds:"title"`
//	  Pages    int32    `ds:""`
//	  Blurb    string   `ds:",text"`
//	  Subtitle *string  `ds:",unindexed_nulls"`
//	  Tags     []string `ds:",unindexed"`
//
//	  scratch int // not mapped
//	}
//
// The tag value is "[name][,option...]". An empty name is derived from the Go
// field name by the struct's rename rule (camelCase unless a `$rename` meta
// field says otherwise). Options are:
//
//	key             the field is the primary key, whatever its name
//	field           a field named Key is a regular property
//	indexed         index values and nulls (the default)
//	unindexed       index neither values nor nulls
//	unindexed_nulls index values but not nulls
//	text            legacy long text: values are unindexed and carry
//	                meaning 15
//
// Meta fields have the blank name and a tag starting with '$':
//
//	_ struct{} `ds:"$kind,Name"`       overrides the kind (default: type name)
//	_ struct{} `ds:"$rename,snake_case"` sets the rename rule
//
// The primary key is the field named Key or the one tagged `key`. It may be a
// *datastore.Key, a string (key name), an int64 (key id), or a *string or
// *int64. A nil pointer, an empty string or a zero id writes an incomplete
// key; reading an incomplete key into a string or int64 primary key fails.
//
// Types implementing EntityModel convert themselves and skip reflection
// entirely.
package schema
