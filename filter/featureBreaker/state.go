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

// Package featureBreaker contains a transport filter that can break datastore
// RPCs on demand, to test how the layers above cope with failures.
//
// Features are named after the RPC methods: "Lookup", "RunQuery",
// "BeginTransaction", "Commit", "Rollback", "AllocateIds" and "ReserveIds".
package featureBreaker

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrBrokenFeaturesBroken is the default error broken features return.
var ErrBrokenFeaturesBroken = status.Error(codes.Unavailable, "featureBreaker: Unspecified error")

// DatastoreFeatures is the list of all features of the datastore transport.
var DatastoreFeatures = []string{
	"Lookup",
	"RunQuery",
	"BeginTransaction",
	"Commit",
	"Rollback",
	"AllocateIds",
	"ReserveIds",
}

// BreakFeatureCallback decides if a call to a broken feature fails. A nil
// return lets the call through.
type BreakFeatureCallback func(ctx context.Context, feature string) error

// FeatureBreaker breaks and repairs features.
type FeatureBreaker interface {
	// BreakFeatures makes the features fail with err, or with the default
	// error if err is nil.
	BreakFeatures(err error, feature ...string)
	// BreakFeaturesWithCallback lets cb decide the fate of every call to the
	// features.
	BreakFeaturesWithCallback(cb BreakFeatureCallback, feature ...string)
	// UnbreakFeatures repairs the features.
	UnbreakFeatures(feature ...string)
}

type state struct {
	l            sync.RWMutex
	broken       map[string]BreakFeatureCallback
	defaultError error
}

var _ FeatureBreaker = (*state)(nil)

func newState(defaultError error) *state {
	if defaultError == nil {
		defaultError = ErrBrokenFeaturesBroken
	}
	return &state{
		broken:       map[string]BreakFeatureCallback{},
		defaultError: defaultError,
	}
}

func (s *state) BreakFeatures(err error, feature ...string) {
	if err == nil {
		err = s.defaultError
	}
	s.BreakFeaturesWithCallback(func(context.Context, string) error { return err }, feature...)
}

func (s *state) BreakFeaturesWithCallback(cb BreakFeatureCallback, feature ...string) {
	s.l.Lock()
	defer s.l.Unlock()
	for _, f := range feature {
		s.broken[f] = cb
	}
}

func (s *state) UnbreakFeatures(feature ...string) {
	s.l.Lock()
	defer s.l.Unlock()
	for _, f := range feature {
		delete(s.broken, f)
	}
}

// check returns the error a call to the feature should fail with, or nil.
func (s *state) check(ctx context.Context, feature string) error {
	s.l.RLock()
	cb := s.broken[feature]
	s.l.RUnlock()
	if cb == nil {
		return nil
	}
	return cb(ctx, feature)
}
