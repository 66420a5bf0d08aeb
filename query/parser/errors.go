/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package parser

import (
	"errors"
	"fmt"
)

/*
Error represents a query compilation error.
*/
type Error struct {
	Source string // Name of the source which was given to the parser
	Type   error  // Error category for equality checks
	Clause string // Clause which contains the error
	Detail string // Details of this error
	Line   int    // Line of the error
	Pos    int    // Position of the error
}

/*
Error returns a human-readable string representation of this error.
*/
func (pe *Error) Error() string {
	ret := fmt.Sprintf("%v in %s", pe.Type, pe.Source)

	if pe.Clause != "" {
		ret = fmt.Sprintf("%v (%v clause)", ret, pe.Clause)
	}

	if pe.Detail != "" {
		ret = fmt.Sprintf("%v: %v", ret, pe.Detail)
	}

	if pe.Line != 0 {
		return fmt.Sprintf("%s (Line:%d Pos:%d)", ret, pe.Line, pe.Pos)
	}

	return ret
}

/*
Unwrap returns the error category so errors.Is works with the sentinels.
*/
func (pe *Error) Unwrap() error {
	return pe.Type
}

/*
Query compilation error categories
*/
var (
	ErrSyntax      = errors.New("Syntax error")
	ErrSemantic    = errors.New("Semantic error")
	ErrUnsupported = errors.New("Unsupported feature")
)

/*
Category returns a short name of the category of a compilation error. Returns
an empty string if the given error is not a compilation error.
*/
func Category(err error) string {
	switch {
	case errors.Is(err, ErrSyntax):
		return "syntax"
	case errors.Is(err, ErrSemantic):
		return "semantic"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	}
	return ""
}
