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

// Package datastore is the data model of dsaccess: keys, values, entities,
// queries and mutation batches, plus their conversion to and from the Cloud
// Datastore v1 wire types (cloud.google.com/go/datastore/apiv1/datastorepb).
//
// Everything here is a plain value without I/O. Calls to the service live in
// impl/shell and transactions in txn.
//
// # Indexing of arrays
//
// The service keeps an index flag per array element, this package keeps one
// per property. Writing an array property puts the property's flag on every
// element; reading one takes the flag of the first element. Arrays whose
// elements were written with mixed flags by other clients therefore come back
// with a single flag.
//
// # Unsupported values
//
// Entity, geo point and timestamp values are not modeled. Reading any of them
// fails with ErrUnsupportedValue rather than losing the data.
package datastore
