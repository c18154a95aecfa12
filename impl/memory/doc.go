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

// Package memory implements the Cloud Datastore gRPC service in memory.
//
// It is a test double: a single process-local store with no persistence, no
// index planning and strongly consistent reads. It does implement the parts
// of the service that callers of this module depend on:
//
//   - entity versions and create/update times;
//   - read-write transactions with optimistic conflict detection: a commit
//     fails with ABORTED if any entity the transaction read or writes changed
//     after the transaction began;
//   - insert/update existence checks (ALREADY_EXISTS, NOT_FOUND), applied
//     all-or-nothing per commit;
//   - id allocation for incomplete keys and id reservation;
//   - a configurable cap on the number of keys a lookup serves, with the
//     rest returned as deferred;
//   - queries with kind, property and ancestor filters (AND only), orders,
//     offset, limit, cursors, projection and distinct-on.
//
// Cursors are positions in the sorted result set of a query, so they are only
// meaningful for the same query against unchanged data.
package memory
