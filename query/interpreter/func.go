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
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/query/parser"
)

// Scalar functions
// ================

/*
scalarFunc is the implementation of a scalar function. Functions receive
their evaluated arguments.
*/
type scalarFunc func(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error)

/*
scalarFuncs maps lower case function names to their implementation.
*/
var scalarFuncs map[string]scalarFunc

func init() {
	scalarFuncs = map[string]scalarFunc{
		"id":       funcID,
		"labels":   funcLabels,
		"type":     funcType,
		"size":     funcSize,
		"tolower":  funcCase(strings.ToLower),
		"toupper":  funcCase(strings.ToUpper),
		"coalesce": funcCoalesce,
		"abs":      funcAbs,
		"tostring": funcToString,
		"search":   funcSearch,
	}
}

/*
evalFunction evaluates a scalar function call. Functions which receive null
as their first argument return null (coalesce is the exception).
*/
func (rt *Runtime) evalFunction(node *parser.ASTNode, row *Row) (interface{}, error) {
	name := strings.ToLower(node.Str())

	fn, ok := scalarFuncs[name]
	if !ok {
		return nil, rt.newRuntimeError(ErrInvalidConstruct, fmt.Sprintf("unknown function %v", node.Str()), node)
	}

	args := make([]interface{}, len(node.Children))

	for i, c := range node.Children {
		val, err := rt.eval(c, row)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}

	if name != "coalesce" && (len(args) == 0 || args[0] == nil) {
		return nil, nil
	}

	return fn(rt, node, args)
}

/*
argError returns an error for a function argument of the wrong type.
*/
func (rt *Runtime) argError(node *parser.ASTNode, expected string, val interface{}) error {
	return rt.newRuntimeError(ErrTypeMismatch,
		fmt.Sprintf("%v expects a %v not a %v", node.Str(), expected, data.TypeName(val)), node)
}

/*
funcID returns the identifier of a node or relationship.
*/
func funcID(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case *data.Node:
		return int64(v.ID), nil
	case *data.Edge:
		return int64(v.ID), nil
	}
	return nil, rt.argError(node, "node or relationship", args[0])
}

/*
funcLabels returns the labels of a node.
*/
func funcLabels(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	n, ok := args[0].(*data.Node)
	if !ok {
		return nil, rt.argError(node, "node", args[0])
	}

	ret := make([]interface{}, len(n.Labels))
	for i, l := range n.Labels {
		ret[i] = l
	}

	return ret, nil
}

/*
funcType returns the type of a relationship.
*/
func funcType(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	e, ok := args[0].(*data.Edge)
	if !ok {
		return nil, rt.argError(node, "relationship", args[0])
	}
	return e.Type, nil
}

/*
funcSize returns the length of a list, a map or a string.
*/
func funcSize(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case []interface{}:
		return int64(len(v)), nil
	case map[string]interface{}:
		return int64(len(v)), nil
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	}
	return nil, rt.argError(node, "list or string", args[0])
}

/*
funcCase creates a function which changes the case of a string.
*/
func funcCase(conv func(string) string) scalarFunc {
	return func(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
		s, ok := args[0].(string)
		if !ok {
			return nil, rt.argError(node, "string", args[0])
		}
		return conv(s), nil
	}
}

/*
funcCoalesce returns the first argument which is not null.
*/
func funcCoalesce(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	for _, a := range args {
		if a != nil {
			return a, nil
		}
	}
	return nil, nil
}

/*
funcAbs returns the absolute value of a number.
*/
func funcAbs(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case int64:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case float64:
		return math.Abs(v), nil
	}
	return nil, rt.argError(node, "number", args[0])
}

/*
funcToString converts a scalar value into a string.
*/
func funcToString(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	switch v := args[0].(type) {
	case string:
		return v, nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return nil, rt.argError(node, "scalar value", args[0])
}

/*
funcSearch checks if a text property contains at least one word of a search
text. Lists of strings are searched as one text.
*/
func funcSearch(rt *Runtime, node *parser.ASTNode, args []interface{}) (interface{}, error) {
	var value string

	switch v := args[0].(type) {
	case string:
		value = v
	case []interface{}:
		var words []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				words = append(words, s)
			}
		}
		value = strings.Join(words, " ")
	default:
		return nil, rt.argError(node, "string", args[0])
	}

	if args[1] == nil {
		return nil, nil
	}

	text, ok := args[1].(string)
	if !ok {
		return nil, rt.argError(node, "string", args[1])
	}

	return index.MatchesText(value, text), nil
}

// Aggregate functions
// ===================

/*
aggregateArg returns the argument of an aggregate call or nil for count(*).
*/
func aggregateArg(call *parser.ASTNode) *parser.ASTNode {
	for _, c := range call.Children {
		if c.Name != parser.NodeDISTINCT {
			return c
		}
	}
	return nil
}

/*
accumulator computes the value of a single aggregate call for one group.
*/
type accumulator struct {
	fn       string          // Lower case function name (count(*) is "*")
	distinct bool            // Flag if only distinct values are aggregated
	seen     map[string]bool // Aggregated values (distinct only)
	count    int64           // Number of aggregated values
	sumInt   int64           // Integer sum
	sumFloat float64         // Float sum
	isFloat  bool            // Flag if the sum contains a float
	best     interface{}     // Current minimum or maximum
	list     []interface{}   // Collected values
}

/*
newAccumulator creates a new accumulator for an aggregate call.
*/
func newAccumulator(call *parser.ASTNode) *accumulator {
	acc := &accumulator{fn: "*", seen: make(map[string]bool)}

	if call.Name == parser.NodeFUNC {
		acc.fn = strings.ToLower(call.Str())
		acc.distinct = len(call.Children) > 0 && call.Children[0].Name == parser.NodeDISTINCT
	}

	return acc
}

/*
check checks if a value can be aggregated.
*/
func (acc *accumulator) check(val interface{}) error {
	if val == nil {
		return nil
	}

	switch acc.fn {

	case "sum", "avg":
		if !data.IsNumber(val) {
			return fmt.Errorf("%v expects a number not a %v", acc.fn, data.TypeName(val))
		}

	case "min", "max":
		if acc.best != nil {
			if _, err := data.CompareValues(acc.best, val); err != nil {
				return fmt.Errorf("%v cannot compare %v and %v", acc.fn,
					data.TypeName(acc.best), data.TypeName(val))
			}
		}
	}

	return nil
}

/*
add adds a value. Null values are ignored except by count(*).
*/
func (acc *accumulator) add(val interface{}) {

	if acc.fn == "*" {
		acc.count++
		return
	}

	if val == nil {
		return
	}

	if acc.distinct {
		key := valuesKey([]interface{}{val})
		if acc.seen[key] {
			return
		}
		acc.seen[key] = true
	}

	acc.count++

	switch acc.fn {

	case "sum", "avg":
		switch v := val.(type) {
		case int64:
			acc.sumInt += v
		case float64:
			acc.sumFloat += v
			acc.isFloat = true
		}

	case "min":
		if acc.best == nil {
			acc.best = val
		} else if res, _ := data.CompareValues(val, acc.best); res < 0 {
			acc.best = val
		}

	case "max":
		if acc.best == nil {
			acc.best = val
		} else if res, _ := data.CompareValues(val, acc.best); res > 0 {
			acc.best = val
		}

	case "collect":
		acc.list = append(acc.list, val)
	}
}

/*
result returns the aggregated value.
*/
func (acc *accumulator) result() interface{} {

	switch acc.fn {

	case "sum":
		if acc.isFloat {
			return acc.sumFloat + float64(acc.sumInt)
		}
		return acc.sumInt

	case "avg":
		if acc.count == 0 {
			return nil
		}
		return (acc.sumFloat + float64(acc.sumInt)) / float64(acc.count)

	case "min", "max":
		return acc.best

	case "collect":
		if acc.list == nil {
			return []interface{}{}
		}
		return acc.list
	}

	return acc.count
}

// Value keys
// ==========

/*
valuesKey returns a string which is equal for two lists of values if the
values are equal. Integral floats have the same key as the equal integer.
*/
func valuesKey(vals []interface{}) string {
	var buf bytes.Buffer

	for _, v := range vals {
		writeValueKey(&buf, v)
	}

	return buf.String()
}

/*
writeValueKey writes the key of a single value.
*/
func writeValueKey(buf *bytes.Buffer, v interface{}) {

	switch val := v.(type) {

	case nil:
		buf.WriteString("n;")

	case bool:
		fmt.Fprintf(buf, "b%v;", val)

	case int64:
		fmt.Fprintf(buf, "i%d;", val)

	case float64:
		if val == math.Trunc(val) && math.Abs(val) < math.MaxInt64 {
			fmt.Fprintf(buf, "i%d;", int64(val))
		} else {
			fmt.Fprintf(buf, "f%v;", val)
		}

	case string:
		buf.WriteString(strconv.Quote(val))
		buf.WriteString(";")

	case *data.Node:
		fmt.Fprintf(buf, "N%d;", val.ID)

	case *data.Edge:
		fmt.Fprintf(buf, "E%d;", val.ID)

	case []interface{}:
		buf.WriteString("[")
		for _, e := range val {
			writeValueKey(buf, e)
		}
		buf.WriteString("]")

	case map[string]interface{}:
		buf.WriteString("{")
		for _, k := range data.SortedKeys(val) {
			buf.WriteString(strconv.Quote(k))
			buf.WriteString("=")
			writeValueKey(buf, val[k])
		}
		buf.WriteString("}")

	default:
		fmt.Fprintf(buf, "?%v;", val)
	}
}
