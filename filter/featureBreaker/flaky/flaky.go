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

// Package flaky emulates datastore errors that happen randomly with some
// probability.
//
// To install it:
//
//	tr, fb := featureBreaker.Filter(tr, nil)
//	fb.BreakFeaturesWithCallback(
//	  flaky.Errors(flaky.Params{...}), featureBreaker.DatastoreFeatures...)
package flaky

import (
	"context"
	"math/rand"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.chromium.org/dsaccess/filter/featureBreaker"
)

var (
	// ErrFlakyRPCUnavailable is returned by Errors to emulate a transient
	// service failure.
	ErrFlakyRPCUnavailable = status.Error(codes.Unavailable, "simulated RPC failure")
	// ErrFlakyCommitAborted is returned by Errors to emulate a commit conflict.
	ErrFlakyCommitAborted = status.Error(codes.Aborted, "simulated transaction conflict")
)

// Params define options for Errors.
type Params struct {
	// Rand is a source of pseudo-randomness to use.
	//
	// It will be accessed under a lock.
	//
	// By default it is rand.NewSource(0).
	Rand interface {
		Int63() int64 // uniformly-distributed pseudo-random value in the range [0, 1<<63)
	}

	// UnavailableProbability is a probability of ErrFlakyRPCUnavailable
	// happening on any call.
	//
	// Default is 0 (no such errors at all).
	UnavailableProbability float64

	// AbortedProbability is a probability of a commit returning
	// ErrFlakyCommitAborted.
	//
	// Default is 0 (no commit errors at all).
	AbortedProbability float64
}

// Errors returns a callback emulating flaky datastore errors.
func Errors(params Params) featureBreaker.BreakFeatureCallback {
	if params.Rand == nil {
		params.Rand = rand.NewSource(0)
	}
	dice := diceRoller{p: &params} // stateful!
	return func(_ context.Context, feature string) error {
		if dice.roll(params.UnavailableProbability) {
			return ErrFlakyRPCUnavailable
		}
		if feature == "Commit" && dice.roll(params.AbortedProbability) {
			return ErrFlakyCommitAborted
		}
		return nil
	}
}

type diceRoller struct {
	l sync.Mutex
	p *Params
}

func (r *diceRoller) roll(prob float64) bool {
	if prob <= 0 {
		return false
	}
	r.l.Lock()
	rnd := r.p.Rand.Int63()
	r.l.Unlock()
	return float64(rnd)/(1<<63) < prob
}
