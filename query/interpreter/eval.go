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
	"fmt"
	"math"
	"strings"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/query/parser"
)

/*
eval evaluates an expression for a given row. Expressions follow three-valued
logic: most operations on null produce null.
*/
func (rt *Runtime) eval(node *parser.ASTNode, row *Row) (interface{}, error) {

	switch node.Name {

	case parser.NodeVALUE:
		return node.Value, nil

	case parser.NodeTRUE:
		return true, nil

	case parser.NodeFALSE:
		return false, nil

	case parser.NodeNULL:
		return nil, nil

	case parser.NodeVARIABLE:
		return row.Vars[node.Str()], nil

	case parser.NodePARAM:
		val, ok := rt.params[node.Str()]
		if !ok {
			return nil, rt.newRuntimeError(ErrMissingParameter, "$"+node.Str(), node)
		}
		return val, nil

	case parser.NodeLIST:
		ret := make([]interface{}, len(node.Children))
		for i, c := range node.Children {
			val, err := rt.eval(c, row)
			if err != nil {
				return nil, err
			}
			ret[i] = val
		}
		return ret, nil

	case parser.NodeMAP:
		ret := make(map[string]interface{}, len(node.Children))
		for _, c := range node.Children {
			val, err := rt.eval(c.Children[0], row)
			if err != nil {
				return nil, err
			}
			ret[c.Str()] = val
		}
		return ret, nil

	case parser.NodePROPERTY:
		return rt.evalProperty(node, row)

	case parser.NodeAND, parser.NodeOR, parser.NodeXOR:
		return rt.evalLogical(node, row)

	case parser.NodeNOT:
		val, err := rt.evalBool(node.Children[0], row)
		if err != nil || val == nil {
			return nil, err
		}
		return !val.(bool), nil

	case parser.NodeEQ, parser.NodeNEQ, parser.NodeLT, parser.NodeGT, parser.NodeLEQ, parser.NodeGEQ:
		return rt.evalComparison(node, row)

	case parser.NodeIN:
		return rt.evalIn(node, row)

	case parser.NodeSTARTSWITH, parser.NodeENDSWITH, parser.NodeCONTAINS:
		return rt.evalStringOp(node, row)

	case parser.NodeISNULL, parser.NodeISNOTNULL:
		val, err := rt.eval(node.Children[0], row)
		if err != nil {
			return nil, err
		}
		return (val == nil) == (node.Name == parser.NodeISNULL), nil

	case parser.NodeHASLABELS:
		val, err := rt.eval(node.Children[0], row)
		if err != nil || val == nil {
			return nil, err
		}
		n, ok := val.(*data.Node)
		if !ok {
			return nil, rt.newRuntimeError(ErrTypeMismatch,
				fmt.Sprintf("labels of a %v", data.TypeName(val)), node)
		}
		for _, l := range node.Value.([]string) {
			if !n.HasLabel(l) {
				return false, nil
			}
		}
		return true, nil

	case parser.NodePLUS, parser.NodeMINUS, parser.NodeTIMES, parser.NodeDIV, parser.NodeMOD:
		return rt.evalArithmetic(node, row)

	case parser.NodeNEG:
		val, err := rt.eval(node.Children[0], row)
		if err != nil || val == nil {
			return nil, err
		}
		switch v := val.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, rt.newRuntimeError(ErrNotANumber, fmt.Sprintf("-%v", val), node)

	case parser.NodeFUNC, parser.NodeCOUNTALL:
		if parser.IsAggregate(node) {
			if res, ok := row.aggs[node]; ok {
				return res, nil
			}
			return nil, rt.newRuntimeError(ErrInvalidConstruct,
				fmt.Sprintf("aggregate %v outside of an aggregation", node.Str()), node)
		}
		return rt.evalFunction(node, row)
	}

	return nil, rt.newRuntimeError(ErrInvalidConstruct, node.Name, node)
}

/*
evalBool evaluates an expression which must produce a boolean or null.
*/
func (rt *Runtime) evalBool(node *parser.ASTNode, row *Row) (interface{}, error) {
	val, err := rt.eval(node, row)
	if err != nil || val == nil {
		return nil, err
	}

	if _, ok := val.(bool); !ok {
		return nil, rt.newRuntimeError(ErrTypeMismatch,
			fmt.Sprintf("%v is a %v not a boolean", parser.PrettyPrint(node), data.TypeName(val)), node)
	}

	return val, nil
}

/*
evalLogical evaluates AND, OR and XOR. AND and OR do not evaluate their right
operand if the left operand decides the result.
*/
func (rt *Runtime) evalLogical(node *parser.ASTNode, row *Row) (interface{}, error) {

	left, err := rt.evalBool(node.Children[0], row)
	if err != nil {
		return nil, err
	}

	switch {
	case node.Name == parser.NodeAND && left == false:
		return false, nil
	case node.Name == parser.NodeOR && left == true:
		return true, nil
	}

	right, err := rt.evalBool(node.Children[1], row)
	if err != nil {
		return nil, err
	}

	switch node.Name {

	case parser.NodeAND:
		if right == false {
			return false, nil
		}

	case parser.NodeOR:
		if right == true {
			return true, nil
		}

	default:
		if left != nil && right != nil {
			return left.(bool) != right.(bool), nil
		}
		return nil, nil
	}

	if left == nil || right == nil {
		return nil, nil
	}

	return left, nil
}

/*
evalProperty evaluates a property access.
*/
func (rt *Runtime) evalProperty(node *parser.ASTNode, row *Row) (interface{}, error) {
	val, err := rt.eval(node.Children[0], row)
	if err != nil || val == nil {
		return nil, err
	}

	switch v := val.(type) {
	case *data.Node:
		return v.Prop(node.Str()), nil
	case *data.Edge:
		return v.Prop(node.Str()), nil
	case map[string]interface{}:
		return v[node.Str()], nil
	}

	return nil, rt.newRuntimeError(ErrTypeMismatch,
		fmt.Sprintf("cannot read property %v of a %v", node.Str(), data.TypeName(val)), node)
}

/*
evalOperands evaluates the two operands of a binary operator.
*/
func (rt *Runtime) evalOperands(node *parser.ASTNode, row *Row) (interface{}, interface{}, error) {
	left, err := rt.eval(node.Children[0], row)
	if err != nil {
		return nil, nil, err
	}

	right, err := rt.eval(node.Children[1], row)

	return left, right, err
}

/*
evalComparison evaluates comparison operators. Ordering values of different
types is an error.
*/
func (rt *Runtime) evalComparison(node *parser.ASTNode, row *Row) (interface{}, error) {
	left, right, err := rt.evalOperands(node, row)
	if err != nil || left == nil || right == nil {
		return nil, err
	}

	switch node.Name {
	case parser.NodeEQ:
		return data.EqualValues(left, right), nil
	case parser.NodeNEQ:
		return !data.EqualValues(left, right), nil
	}

	res, err := data.CompareValues(left, right)
	if err != nil {
		return nil, rt.newRuntimeError(ErrTypeMismatch,
			fmt.Sprintf("cannot compare %v and %v", data.TypeName(left), data.TypeName(right)), node)
	}

	switch node.Name {
	case parser.NodeLT:
		return res < 0, nil
	case parser.NodeGT:
		return res > 0, nil
	case parser.NodeLEQ:
		return res <= 0, nil
	}

	return res >= 0, nil
}

/*
evalIn evaluates a list membership test.
*/
func (rt *Runtime) evalIn(node *parser.ASTNode, row *Row) (interface{}, error) {
	left, right, err := rt.evalOperands(node, row)
	if err != nil || right == nil {
		return nil, err
	}

	list, ok := right.([]interface{})
	if !ok {
		return nil, rt.newRuntimeError(ErrNotAList, fmt.Sprint(right), node.Children[1])
	}

	if left == nil {
		return nil, nil
	}

	hasNull := false

	for _, e := range list {
		if e == nil {
			hasNull = true
		} else if data.EqualValues(left, e) {
			return true, nil
		}
	}

	if hasNull {
		return nil, nil
	}

	return false, nil
}

/*
evalStringOp evaluates STARTS WITH, ENDS WITH and CONTAINS.
*/
func (rt *Runtime) evalStringOp(node *parser.ASTNode, row *Row) (interface{}, error) {
	left, right, err := rt.evalOperands(node, row)
	if err != nil || left == nil || right == nil {
		return nil, err
	}

	ls, ok1 := left.(string)
	rs, ok2 := right.(string)

	if !ok1 || !ok2 {
		return nil, rt.newRuntimeError(ErrNotAString,
			fmt.Sprintf("%v cannot be applied to %v and %v", strings.ToUpper(node.Name),
				data.TypeName(left), data.TypeName(right)), node)
	}

	switch node.Name {
	case parser.NodeSTARTSWITH:
		return strings.HasPrefix(ls, rs), nil
	case parser.NodeENDSWITH:
		return strings.HasSuffix(ls, rs), nil
	}

	return strings.Contains(ls, rs), nil
}

/*
evalArithmetic evaluates arithmetic operators. Integer operations produce
integers; an operation with a float produces a float. The plus operator also
concatenates strings and lists.
*/
func (rt *Runtime) evalArithmetic(node *parser.ASTNode, row *Row) (interface{}, error) {
	left, right, err := rt.evalOperands(node, row)
	if err != nil || left == nil || right == nil {
		return nil, err
	}

	if node.Name == parser.NodePLUS {

		switch l := left.(type) {

		case string:
			if r, ok := right.(string); ok {
				return l + r, nil
			}

		case []interface{}:
			ret := append([]interface{}{}, l...)
			if r, ok := right.([]interface{}); ok {
				return append(ret, r...), nil
			}
			return append(ret, right), nil
		}

		if r, ok := right.([]interface{}); ok {
			return append([]interface{}{left}, r...), nil
		}
	}

	li, lInt := left.(int64)
	ri, rInt := right.(int64)

	if lInt && rInt {
		switch node.Name {
		case parser.NodePLUS:
			return li + ri, nil
		case parser.NodeMINUS:
			return li - ri, nil
		case parser.NodeTIMES:
			return li * ri, nil
		}

		if ri == 0 {
			return nil, rt.newRuntimeError(ErrDivisionByZero, parser.PrettyPrint(node), node)
		}

		if node.Name == parser.NodeDIV {
			return li / ri, nil
		}
		return li % ri, nil
	}

	lf, ok1 := data.ToFloat(left)
	rf, ok2 := data.ToFloat(right)

	if !ok1 || !ok2 {
		return nil, rt.newRuntimeError(ErrTypeMismatch,
			fmt.Sprintf("%v cannot be applied to %v and %v", node.Name,
				data.TypeName(left), data.TypeName(right)), node)
	}

	switch node.Name {
	case parser.NodePLUS:
		return lf + rf, nil
	case parser.NodeMINUS:
		return lf - rf, nil
	case parser.NodeTIMES:
		return lf * rf, nil
	case parser.NodeDIV:
		return lf / rf, nil
	}

	return math.Mod(lf, rf), nil
}
