/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package interpreter

import (
	"errors"
	"fmt"

	"github.com/krotik/eliasgraph/query/parser"
)

/*
RuntimeError is an error which occurred while evaluating an expression for a
single row.
*/
type RuntimeError struct {
	Source string          // Name of the source which was given to the parser
	Type   error           // Error type (to be used for equal checks)
	Detail string          // Details of this error
	Node   *parser.ASTNode // AST Node where the error occurred
	Line   int             // Line of the error
	Pos    int             // Position of the error
}

/*
Error returns a human-readable string representation of this error.
*/
func (re *RuntimeError) Error() string {
	ret := fmt.Sprintf("Query error in %s: %v (%v)", re.Source, re.Type, re.Detail)

	if re.Line != 0 {
		return fmt.Sprintf("%s (Line:%d Pos:%d)", ret, re.Line, re.Pos)
	}

	return ret
}

/*
Unwrap returns the error type.
*/
func (re *RuntimeError) Unwrap() error {
	return re.Type
}

/*
Runtime related error types
*/
var (
	ErrTypeMismatch     = errors.New("Type mismatch")
	ErrNotANumber       = errors.New("Value of operand is not a number")
	ErrNotAList         = errors.New("Value of operand is not a list")
	ErrNotAString       = errors.New("Value of operand is not a string")
	ErrDivisionByZero   = errors.New("Division by zero")
	ErrMissingParameter = errors.New("Missing parameter")
	ErrInvalidCount     = errors.New("Invalid row count")
	ErrInvalidConstruct = errors.New("Invalid construct")
)

/*
newRuntimeError creates a new RuntimeError object.
*/
func (rt *Runtime) newRuntimeError(t error, d string, node *parser.ASTNode) error {
	line, pos := node.Position()
	return &RuntimeError{rt.name, t, d, node, line, pos}
}
