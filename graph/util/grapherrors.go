/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package util contains utility types which are shared by the graph storage
components.

GraphError

Models a graph related error. Low-level errors should be wrapped in a GraphError
before they are returned to a client. The Type of a GraphError is one of the
error values declared in this package and can be checked with errors.Is. An
optional Cause holds the low-level error (e.g. a failed file write).
*/
package util

import (
	"errors"
	"fmt"
)

/*
GraphError is a graph related error
*/
type GraphError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
	Cause  error  // Underlying low-level error (may be nil)
}

/*
NewGraphError creates a new GraphError.
*/
func NewGraphError(t error, detail string, cause error) *GraphError {
	return &GraphError{t, detail, cause}
}

/*
Error returns a human-readable string representation of this error.
*/
func (ge *GraphError) Error() string {
	ret := fmt.Sprintf("GraphError: %v", ge.Type)

	if ge.Detail != "" {
		ret = fmt.Sprintf("%v (%v)", ret, ge.Detail)
	}

	if ge.Cause != nil {
		ret = fmt.Sprintf("%v: %v", ret, ge.Cause)
	}

	return ret
}

/*
Unwrap exposes the error type and the cause of this error.
*/
func (ge *GraphError) Unwrap() []error {
	if ge.Cause != nil {
		return []error{ge.Type, ge.Cause}
	}
	return []error{ge.Type}
}

/*
Graph storage related error types
*/
var (
	ErrOpening    = errors.New("Failed to open graph storage")
	ErrIO         = errors.New("IO error")
	ErrClosing    = errors.New("Failed to close graph storage")
	ErrRecovery   = errors.New("Recovery failed")
	ErrReadOnly   = errors.New("Failed write to readonly storage")
	ErrCheckpoint = errors.New("Checkpoint failed")
)

/*
Graph related error types
*/
var (
	ErrInvalidData           = errors.New("Invalid data")
	ErrNotFound              = errors.New("Entity not found")
	ErrConflict              = errors.New("Transaction conflict")
	ErrTransactionClosed     = errors.New("Transaction is not active")
	ErrTransactionTimeout    = errors.New("Transaction timed out")
	ErrRule                  = errors.New("Graph rule error")
	ErrIndexError            = errors.New("Index error")
	ErrIndexExists           = errors.New("Index already exists")
	ErrUnknownIndex          = errors.New("Unknown index")
	ErrUnsupportedIndexOp    = errors.New("Operation not supported by index")
	ErrIndexInconsistency    = errors.New("Index inconsistency")
	ErrEngineClosed          = errors.New("Engine is closed")
	ErrUnknownIsolationLevel = errors.New("Unknown isolation level")
)

/*
IsConflict returns true if the given error is a commit-time conflict. The
whole transaction may be retried from the beginning.
*/
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

/*
IsNotFound returns true if the given error reports a missing entity.
*/
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
