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
	"fmt"
	"strings"
)

/*
ValueType is the statically known type of an expression.
*/
type ValueType string

/*
Known value types
*/
const (
	TypeAny    ValueType = "any"
	TypeNull   ValueType = "null"
	TypeBool   ValueType = "boolean"
	TypeNumber ValueType = "number"
	TypeString ValueType = "string"
	TypeList   ValueType = "list"
	TypeMap    ValueType = "map"
	TypeNode   ValueType = "node"
	TypeRel    ValueType = "relationship"
)

/*
FunctionInfo describes a function which can be used in queries.
*/
type FunctionInfo struct {
	MinArgs   int         // Minimum number of arguments
	MaxArgs   int         // Maximum number of arguments (-1 for unlimited)
	Aggregate bool        // Flag if this is an aggregate function
	Args      []ValueType // Accepted argument type of each argument (TypeAny if missing)
	Result    ValueType   // Result type
}

/*
Functions lists all known functions. Function names are case insensitive.
*/
var Functions = map[string]FunctionInfo{
	"id":       {1, 1, false, []ValueType{TypeAny}, TypeNumber},
	"labels":   {1, 1, false, []ValueType{TypeNode}, TypeList},
	"type":     {1, 1, false, []ValueType{TypeRel}, TypeString},
	"size":     {1, 1, false, []ValueType{TypeAny}, TypeNumber},
	"tolower":  {1, 1, false, []ValueType{TypeString}, TypeString},
	"toupper":  {1, 1, false, []ValueType{TypeString}, TypeString},
	"coalesce": {1, -1, false, nil, TypeAny},
	"abs":      {1, 1, false, []ValueType{TypeNumber}, TypeNumber},
	"tostring": {1, 1, false, nil, TypeString},
	"search":   {2, 2, false, []ValueType{TypeString, TypeString}, TypeBool},

	"count":   {1, 1, true, nil, TypeNumber},
	"sum":     {1, 1, true, []ValueType{TypeNumber}, TypeNumber},
	"avg":     {1, 1, true, []ValueType{TypeNumber}, TypeNumber},
	"min":     {1, 1, true, nil, TypeAny},
	"max":     {1, 1, true, nil, TypeAny},
	"collect": {1, 1, true, nil, TypeList},
}

/*
IsAggregate checks if a given AST node is an aggregate function call.
*/
func IsAggregate(n *ASTNode) bool {
	if n.Name == NodeCOUNTALL {
		return true
	}
	if n.Name == NodeFUNC {
		return Functions[strings.ToLower(n.Str())].Aggregate
	}
	return false
}

/*
ContainsAggregate checks if an expression contains an aggregate function call.
*/
func ContainsAggregate(n *ASTNode) bool {
	found := false

	n.Walk(func(c *ASTNode) bool {
		if IsAggregate(c) {
			found = true
		}
		return !found
	})

	return found
}

/*
Variables returns all variable names which are referenced in an expression.
*/
func Variables(n *ASTNode) []string {
	var ret []string
	seen := make(map[string]bool)

	n.Walk(func(c *ASTNode) bool {
		if c.Name == NodeVARIABLE && !seen[c.Str()] {
			seen[c.Str()] = true
			ret = append(ret, c.Str())
		}
		return true
	})

	return ret
}

/*
validator data structure
*/
type validator struct {
	name    string               // Name of the input
	clause  string               // Clause which is currently checked
	bound   map[string]ValueType // Bound pattern variables and their types
	columns map[string]bool      // Names of result columns
}

/*
ValidateAST checks an AST produced by Parse. It checks that every variable is
bound by a pattern, that all functions exist and are called with a valid
number of arguments and that there are no obvious type mismatches.
*/
func ValidateAST(name string, ast *ASTNode) error {
	v := &validator{name, "", make(map[string]ValueType), make(map[string]bool)}

	for _, c := range ast.Children {
		var err error

		switch c.Name {
		case NodeMATCH:
			err = v.validateMatch(c)
		case NodeRETURN:
			err = v.validateReturn(c)
		case NodeORDERBY:
			err = v.validateOrderBy(c, ast.Child(NodeRETURN))
		case NodeSKIP, NodeLIMIT:
			err = v.validateCount(c)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

/*
newError creates a new semantic error for a given AST node.
*/
func (v *validator) newError(n *ASTNode, detail string) error {
	line, pos := n.Position()
	return &Error{v.name, ErrSemantic, v.clause, detail, line, pos}
}

/*
validateMatch checks a MATCH clause and binds its variables.
*/
func (v *validator) validateMatch(match *ASTNode) error {
	v.clause = "MATCH"

	var maps []*ASTNode

	// Bind all variables of the patterns

	for _, pattern := range match.ChildrenByName(NodePATTERN) {
		for _, part := range pattern.Children {

			if m := part.Child(NodeMAP); m != nil {
				maps = append(maps, m)
			}

			vn := part.Child(NodeVARIABLE)
			if vn == nil {
				continue
			}

			kind := TypeNode
			if part.Name == NodeRELPAT {
				kind = TypeRel
			}

			if existing, ok := v.bound[vn.Str()]; ok {
				if existing != kind || kind == TypeRel {
					return v.newError(vn, fmt.Sprintf("Variable %v is already bound to a %v", vn.Str(), existing))
				}
			}

			v.bound[vn.Str()] = kind
		}
	}

	for _, m := range maps {
		if _, err := v.check(m, false); err != nil {
			return err
		}
	}

	if where := match.Child(NodeWHERE); where != nil {
		v.clause = "WHERE"

		t, err := v.check(where.Children[0], false)
		if err != nil {
			return err
		}

		if !compatible(t, TypeBool) {
			return v.newError(where.Children[0], fmt.Sprintf("WHERE requires a boolean expression not a %v", t))
		}
	}

	return nil
}

/*
validateReturn checks a RETURN clause.
*/
func (v *validator) validateReturn(ret *ASTNode) error {
	v.clause = "RETURN"

	for _, item := range ret.Children {

		switch item.Name {

		case NodeSTAR:
			if len(v.bound) == 0 {
				return v.newError(item, "RETURN * is not allowed if no variables are bound")
			}
			for name := range v.bound {
				if v.columns[name] {
					return v.newError(item, fmt.Sprintf("Multiple result columns with the name %v", name))
				}
				v.columns[name] = true
			}

		case NodeRETURNITEM:
			expr := item.Children[0]

			if _, err := v.check(expr, true); err != nil {
				return err
			}

			if ContainsAggregate(expr) {
				if err := v.checkGrouping(expr); err != nil {
					return err
				}
			}

			if v.columns[item.Str()] {
				return v.newError(item, fmt.Sprintf("Multiple result columns with the name %v", item.Str()))
			}

			v.columns[item.Str()] = true
		}
	}

	return nil
}

/*
checkGrouping checks that an expression which contains an aggregate does not
reference variables outside of aggregate calls.
*/
func (v *validator) checkGrouping(expr *ASTNode) error {
	var err error

	expr.Walk(func(c *ASTNode) bool {
		if err != nil || IsAggregate(c) {
			return false
		}
		if c.Name == NodeVARIABLE {
			err = v.newError(c, fmt.Sprintf("Variable %v must be used inside an aggregate function", c.Str()))
		}
		return true
	})

	return err
}

/*
validateOrderBy checks an ORDER BY clause. If the result is aggregated or
distinct then sort keys can only refer to result columns.
*/
func (v *validator) validateOrderBy(orderBy *ASTNode, ret *ASTNode) error {
	v.clause = "ORDER BY"

	projected := false
	aliases := make(map[string]bool)
	exprs := make(map[string]bool)

	if ret != nil {
		for _, item := range ret.Children {
			switch item.Name {
			case NodeDISTINCT:
				projected = true
			case NodeRETURNITEM:
				if ContainsAggregate(item.Children[0]) {
					projected = true
				}
				exprs[PrettyPrint(item.Children[0])] = true
				if item.Child(NodeALIAS) != nil {
					aliases[item.Str()] = true
				}
			case NodeSTAR:
				for name := range v.bound {
					exprs[name] = true
				}
			}
		}
	}

	for _, item := range orderBy.Children {
		expr := item.Children[0]

		if exprs[PrettyPrint(expr)] {
			continue
		}

		var err error

		expr.Walk(func(c *ASTNode) bool {
			if err != nil {
				return false
			}

			if IsAggregate(c) {
				err = v.newError(c, "Aggregate functions in ORDER BY must be part of the result")
				return false
			}

			if c.Name == NodeVARIABLE && !aliases[c.Str()] {
				if projected && !exprs[c.Str()] {
					err = v.newError(c, fmt.Sprintf("Variable %v is not part of the result", c.Str()))
				} else if _, ok := v.bound[c.Str()]; !ok {
					err = v.newError(c, fmt.Sprintf("Variable %v is not bound", c.Str()))
				}
			}

			return true
		})

		if err != nil {
			return err
		}

		if !projected {

			// Type check with aliases as unknown values

			saved := v.bound
			v.bound = make(map[string]ValueType)
			for k, t := range saved {
				v.bound[k] = t
			}
			for a := range aliases {
				v.bound[a] = TypeAny
			}

			_, err = v.check(expr, false)

			v.bound = saved

			if err != nil {
				return err
			}
		}
	}

	return nil
}

/*
validateCount checks the expression of a SKIP or LIMIT clause.
*/
func (v *validator) validateCount(n *ASTNode) error {
	v.clause = strings.ToUpper(n.Name)

	expr := n.Children[0]

	if expr.Name == NodePARAM {
		return nil
	}

	if i, ok := expr.Value.(int64); expr.Name != NodeVALUE || !ok || i < 0 {
		return v.newError(expr, fmt.Sprintf("%v requires a non-negative integer", v.clause))
	}

	return nil
}

/*
compatible checks if a statically known type is compatible with an expected
type.
*/
func compatible(t ValueType, expected ValueType) bool {
	return t == expected || t == TypeAny || t == TypeNull || expected == TypeAny
}

/*
check recursively checks an expression and returns its static type.
*/
func (v *validator) check(n *ASTNode, allowAggregates bool) (ValueType, error) {
	var types []ValueType

	// Aggregate operands cannot contain aggregates

	childAggregates := allowAggregates && !IsAggregate(n)

	for _, c := range n.Children {
		if c.Name == NodeDISTINCT {
			continue
		}

		t, err := v.check(c, childAggregates)
		if err != nil {
			return TypeAny, err
		}

		types = append(types, t)
	}

	mismatch := func(op string) error {
		var names []string
		for _, t := range types {
			names = append(names, string(t))
		}
		return v.newError(n, fmt.Sprintf("Type mismatch: %v cannot be applied to %v",
			op, strings.Join(names, " and ")))
	}

	switch n.Name {

	case NodeVALUE:
		if _, ok := n.Value.(string); ok {
			return TypeString, nil
		}
		return TypeNumber, nil

	case NodeTRUE, NodeFALSE:
		return TypeBool, nil

	case NodeNULL:
		return TypeNull, nil

	case NodePARAM:
		return TypeAny, nil

	case NodeLIST:
		return TypeList, nil

	case NodeMAP, NodeMAPENTRY:
		return TypeMap, nil

	case NodeVARIABLE:
		t, ok := v.bound[n.Str()]
		if !ok {
			return TypeAny, v.newError(n, fmt.Sprintf("Variable %v is not bound", n.Str()))
		}
		return t, nil

	case NodePROPERTY:
		switch types[0] {
		case TypeNode, TypeRel, TypeMap, TypeAny, TypeNull:
			return TypeAny, nil
		}
		return TypeAny, v.newError(n, fmt.Sprintf("Type mismatch: %v has no property %v", types[0], n.Str()))

	case NodeOR, NodeXOR, NodeAND, NodeNOT:
		for _, t := range types {
			if !compatible(t, TypeBool) {
				return TypeAny, mismatch(strings.ToUpper(n.Name))
			}
		}
		return TypeBool, nil

	case NodeEQ, NodeNEQ, NodeISNULL, NodeISNOTNULL, NodeHASLABELS:
		return TypeBool, nil

	case NodeLT, NodeGT, NodeLEQ, NodeGEQ:
		if types[0] != TypeAny && types[1] != TypeAny && types[0] != TypeNull && types[1] != TypeNull &&
			types[0] != types[1] {
			return TypeAny, mismatch(n.Name)
		}
		return TypeBool, nil

	case NodeSTARTSWITH, NodeENDSWITH, NodeCONTAINS:
		if !compatible(types[0], TypeString) || !compatible(types[1], TypeString) {
			return TypeAny, mismatch(strings.ToUpper(n.Name))
		}
		return TypeBool, nil

	case NodeIN:
		if !compatible(types[1], TypeList) {
			return TypeAny, mismatch("IN")
		}
		return TypeBool, nil

	case NodePLUS:
		switch {
		case types[0] == TypeList || types[1] == TypeList:
			return TypeList, nil
		case types[0] == TypeAny || types[1] == TypeAny || types[0] == TypeNull || types[1] == TypeNull:
			return TypeAny, nil
		case types[0] == types[1] && (types[0] == TypeNumber || types[0] == TypeString):
			return types[0], nil
		}
		return TypeAny, mismatch("+")

	case NodeMINUS, NodeTIMES, NodeDIV, NodeMOD, NodeNEG:
		for _, t := range types {
			if !compatible(t, TypeNumber) {
				return TypeAny, mismatch(n.Name)
			}
		}
		return TypeNumber, nil

	case NodeCOUNTALL:
		if !allowAggregates {
			return TypeAny, v.newError(n, "Aggregate functions are not allowed here")
		}
		return TypeNumber, nil

	case NodeFUNC:
		return v.checkFunction(n, types, allowAggregates)
	}

	return TypeAny, nil
}

/*
checkFunction checks a function call.
*/
func (v *validator) checkFunction(n *ASTNode, types []ValueType, allowAggregates bool) (ValueType, error) {
	name := strings.ToLower(n.Str())

	info, ok := Functions[name]
	if !ok {
		return TypeAny, v.newError(n, fmt.Sprintf("Unknown function %v", n.Str()))
	}

	if info.Aggregate && !allowAggregates {
		return TypeAny, v.newError(n, fmt.Sprintf("Aggregate function %v is not allowed here", n.Str()))
	}

	if n.Child(NodeDISTINCT) != nil && !info.Aggregate {
		return TypeAny, v.newError(n, "DISTINCT can only be used with aggregate functions")
	}

	if len(types) < info.MinArgs || (info.MaxArgs >= 0 && len(types) > info.MaxArgs) {
		return TypeAny, v.newError(n, fmt.Sprintf("Wrong number of arguments for %v: %v", n.Str(), len(types)))
	}

	for i, t := range types {
		if i < len(info.Args) && !compatible(t, info.Args[i]) {
			return TypeAny, v.newError(n, fmt.Sprintf("Type mismatch: %v expects a %v as argument %v not a %v",
				n.Str(), info.Args[i], i+1, t))
		}
	}

	if name == "search" {
		if prop := n.Children[0]; prop.Name != NodePROPERTY || prop.Children[0].Name != NodeVARIABLE {
			return TypeAny, v.newError(n, "search expects a property of a variable as first argument")
		}
	}

	return info.Result, nil
}
