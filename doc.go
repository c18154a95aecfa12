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

// Package dsaccess is a typed access layer over Cloud Datastore.
//
// # Package Organization
//
// The library is organized into several subpackages:
//   - service/datastore  keys, values, entities, queries and mutations.
//   - service/schema     struct tag mapping between Go types and entities.
//   - impl/shell         the access shell issuing datastore RPCs.
//   - impl/memory        an in-memory datastore server for tests.
//   - txn                transactions with conflict-aware retries.
//   - filter/...         transport decorators (counting, fault injection,
//     read-only).
//   - cmd/dsctl          a command line tool over the shell.
package dsaccess
