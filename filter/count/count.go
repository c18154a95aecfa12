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

// Package count contains a transport filter counting the datastore RPCs going
// through it. Tests use it to check that the layers above call the service
// when, and only when, they should.
package count

import (
	"fmt"
	"sync/atomic"
)

// Entry is a success/fail pair for a single RPC method.
type Entry struct {
	successes atomic.Int32
	errors    atomic.Int32
}

func (e *Entry) String() string {
	return fmt.Sprintf("{Successes:%d, Errors:%d}", e.Successes(), e.Errors())
}

// Total is Successes+Errors.
func (e *Entry) Total() int { return e.Successes() + e.Errors() }

// Successes returns the number of successful calls.
func (e *Entry) Successes() int { return int(e.successes.Load()) }

// Errors returns the number of failed calls.
func (e *Entry) Errors() int { return int(e.errors.Load()) }

func (e *Entry) up(err error) error {
	if err == nil {
		e.successes.Add(1)
	} else {
		e.errors.Add(1)
	}
	return err
}
