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

package datastore

import (
	"fmt"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/grpc/grpcutil"
)

// ErrorKind classifies the errors returned by this package and the packages
// built on top of it.
type ErrorKind int

const (
	// Unknown is the kind of errors that were not classified.
	Unknown ErrorKind = iota
	// RequiredEntityNotFound means a fetch of a mandatory entity found nothing.
	RequiredEntityNotFound
	// RequestFailure means a call to the service failed. The transport error
	// is the Cause.
	RequestFailure
	// RetriesExhausted means a transaction used up its attempts. The last
	// transport error is the Cause.
	RetriesExhausted
	// EntityKindMismatch means an entity was loaded into a type of another
	// kind.
	EntityKindMismatch
	// PropertyMappingError means a property could not be converted to or from
	// its Go field.
	PropertyMappingError
)

var errorKindNames = map[ErrorKind]string{
	Unknown:                "Unknown",
	RequiredEntityNotFound: "RequiredEntityNotFound",
	RequestFailure:         "RequestFailure",
	RetriesExhausted:       "RetriesExhausted",
	EntityKindMismatch:     "EntityKindMismatch",
	PropertyMappingError:   "PropertyMappingError",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	// ErrUnsupportedValue is returned when the service sends a value type this
	// package does not model (entities, geo points and timestamps). Such
	// values are never silently dropped.
	ErrUnsupportedValue = errors.New("unsupported datastore value type")

	// ErrInvalidKey is returned for keys with an empty path or kind.
	ErrInvalidKey = errors.New("invalid datastore key")

	// ErrIncompleteKey is returned when a complete key is required.
	ErrIncompleteKey = errors.New("incomplete datastore key")
)

// Error is a classified failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Cause == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a classified error. cause may be nil.
func NewError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// RequestFailed wraps a transport error returned by the named call.
//
// Transport errors with a transient gRPC code are tagged as transient.
func RequestFailed(call string, err error) error {
	return &Error{Kind: RequestFailure, Message: call, Cause: grpcutil.WrapIfTransient(err)}
}

// NotFound reports that a required entity is absent.
func NotFound(key *Key) error {
	return &Error{Kind: RequiredEntityNotFound, Message: fmt.Sprintf("entity %s not found", key)}
}

// KindMismatch reports that an entity of kind `got` was loaded as `want`.
func KindMismatch(want, got string) error {
	return &Error{Kind: EntityKindMismatch, Message: fmt.Sprintf("expected kind %q, got %q", want, got)}
}

// MappingError reports a property conversion failure.
func MappingError(cause error, format string, args ...any) error {
	return NewError(PropertyMappingError, cause, format, args...)
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or Unknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries a classified error of the given kind
// anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// TransportError returns the transport error carried by a RequestFailure or
// RetriesExhausted error, or nil.
func TransportError(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	switch e.Kind {
	case RequestFailure:
		return e.Cause
	case RetriesExhausted:
		return TransportError(e.Cause)
	}
	return nil
}
