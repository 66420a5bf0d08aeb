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
Package plan contains the intermediate representation of queries and the
planner which lowers a validated AST into it.

A plan is a chain of operators. Every operator pulls rows from its input
operator. Leaf operators (scans) which have an input run once for every input
row (nested loop). The planner is rule based and does not reorder patterns:

- A node pattern is scanned with ScanByIndex if an index covers its label and
a property which is compared in the WHERE clause or in an inline property map.
Otherwise it is scanned with ScanByLabel.

- A pattern which starts with an unbound node without labels and continues
with a directed relationship of given types is scanned with ScanByRelType if
a relationship type index exists and no index can be used for the start node.

- Relationship patterns become Expand operators in declaration order.

- Predicates are split into conjuncts and each conjunct is placed in a Filter
directly after the operator which binds its last variable. Index predicates
are kept as filters so an index scan can always degrade to a label scan.
*/
package plan

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/query/parser"
)

/*
Operator is an operator of a plan.
*/
type Operator interface {

	/*
		Source returns the input operator or nil.
	*/
	Source() Operator

	/*
		String returns a one line description of the operator.
	*/
	String() string
}

/*
Argument produces a single empty row. It is the source of queries without
MATCH clauses.
*/
type Argument struct {
}

/*
Source returns the input operator or nil.
*/
func (o *Argument) Source() Operator {
	return nil
}

/*
String returns a one line description of the operator.
*/
func (o *Argument) String() string {
	return "Argument"
}

/*
ScanByLabel binds a variable to all nodes with a given label.
*/
type ScanByLabel struct {
	Input Operator // Input operator (nested loop) or nil
	Var   string   // Bound variable
	Label string   // Label of the nodes (empty for all nodes)
}

/*
Source returns the input operator or nil.
*/
func (o *ScanByLabel) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *ScanByLabel) String() string {
	return fmt.Sprintf("ScanByLabel(%v)", nodeString(o.Var, o.Label))
}

/*
Bound is a bound of an index range scan.
*/
type Bound struct {
	Expr      *parser.ASTNode // Bound value
	Inclusive bool            // Flag if the bound is inclusive
}

/*
ScanByIndex binds a variable to all nodes which are returned by an index. The
scan degrades to a label scan if the index cannot be used by the read view.
*/
type ScanByIndex struct {
	Input    Operator          // Input operator (nested loop) or nil
	Var      string            // Bound variable
	Label    string            // Label of the nodes for a fallback label scan
	Spec     *index.Spec       // Used index
	Key      []*parser.ASTNode // Equality key (ordered: one value, composite: one value per property)
	Lower    *Bound            // Lower bound of a range scan
	Upper    *Bound            // Upper bound of a range scan
	Property string            // Searched property of a full-text scan
	Text     *parser.ASTNode   // Search text of a full-text scan
}

/*
Source returns the input operator or nil.
*/
func (o *ScanByIndex) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *ScanByIndex) String() string {
	var detail string

	switch {

	case o.Text != nil:
		detail = fmt.Sprintf("search %v for %v", o.Property, parser.PrettyPrint(o.Text))

	case len(o.Key) > 0:
		var keys []string
		for _, k := range o.Key {
			keys = append(keys, parser.PrettyPrint(k))
		}
		detail = fmt.Sprintf("lookup %v", strings.Join(keys, ", "))

	default:
		lower, upper := "(-inf", "+inf)"
		if o.Lower != nil {
			lower = "(" + parser.PrettyPrint(o.Lower.Expr)
			if o.Lower.Inclusive {
				lower = "[" + parser.PrettyPrint(o.Lower.Expr)
			}
		}
		if o.Upper != nil {
			upper = parser.PrettyPrint(o.Upper.Expr) + ")"
			if o.Upper.Inclusive {
				upper = parser.PrettyPrint(o.Upper.Expr) + "]"
			}
		}
		detail = fmt.Sprintf("range %v, %v", lower, upper)
	}

	return fmt.Sprintf("ScanByIndex(%v %v %v)", nodeString(o.Var, o.Label), o.Spec.Name, detail)
}

/*
ScanByRelType binds a relationship and both its end nodes to all edges of the
given types which are returned by a relationship type index. The scan
degrades to a scan of all nodes followed by an expansion if the index cannot
be used by the read view.
*/
type ScanByRelType struct {
	Input     Operator       // Input operator (nested loop) or nil
	From      string         // Bound start node
	Rel       string         // Bound relationship
	To        string         // Bound end node
	Types     []string       // Relationship types
	Direction data.Direction // Direction from the start node (in or out)
	Spec      *index.Spec    // Used index
	Distinct  []string       // Bound relationships which must be different from Rel
}

/*
Source returns the input operator or nil.
*/
func (o *ScanByRelType) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *ScanByRelType) String() string {
	return fmt.Sprintf("ScanByRelType(%v %v)", patternString(o.From, o.Rel, o.To, o.Types, o.Direction), o.Spec.Name)
}

/*
Expand follows the relationships of a bound node.
*/
type Expand struct {
	Input     Operator       // Input operator
	From      string         // Bound start node
	Rel       string         // Bound relationship
	To        string         // Bound end node
	Types     []string       // Relationship types (empty for all)
	Direction data.Direction // Direction from the start node
	Into      bool           // Flag if the end node is already bound
	Distinct  []string       // Bound relationships which must be different from Rel
}

/*
Source returns the input operator or nil.
*/
func (o *Expand) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *Expand) String() string {
	into := ""
	if o.Into {
		into = " into"
	}

	return fmt.Sprintf("Expand%v(%v)", into, patternString(o.From, o.Rel, o.To, o.Types, o.Direction))
}

/*
patternString returns a string representation of a single hop pattern.
*/
func patternString(from, rel, to string, types []string, dir data.Direction) string {
	r := varString(rel)
	if len(types) > 0 {
		r += ":" + strings.Join(types, "|")
	}

	left, right := "-", "-"
	switch dir {
	case data.DirectionOut:
		right = "->"
	case data.DirectionIn:
		left = "<-"
	}

	return fmt.Sprintf("(%v)%v[%v]%v(%v)", varString(from), left, r, right, varString(to))
}

/*
Filter removes all rows for which a predicate is not true.
*/
type Filter struct {
	Input     Operator        // Input operator
	Predicate *parser.ASTNode // Predicate
}

/*
Source returns the input operator or nil.
*/
func (o *Filter) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *Filter) String() string {
	return fmt.Sprintf("Filter(%v)", parser.PrettyPrint(o.Predicate))
}

/*
Column is a result column.
*/
type Column struct {
	Name string          // Name of the column
	Expr *parser.ASTNode // Expression which produces the column value
}

/*
columnsString returns a string representation of a list of columns.
*/
func columnsString(cols []Column) string {
	var ret []string
	for _, c := range cols {
		expr := parser.PrettyPrint(c.Expr)
		if expr == c.Name {
			ret = append(ret, c.Name)
		} else {
			ret = append(ret, fmt.Sprintf("%v AS %v", expr, c.Name))
		}
	}
	return strings.Join(ret, ", ")
}

/*
Project computes the result columns.
*/
type Project struct {
	Input    Operator // Input operator
	Columns  []Column // Result columns
	Distinct bool     // Flag if duplicate rows should be removed
}

/*
Source returns the input operator or nil.
*/
func (o *Project) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *Project) String() string {
	if o.Distinct {
		return fmt.Sprintf("Project(DISTINCT %v)", columnsString(o.Columns))
	}
	return fmt.Sprintf("Project(%v)", columnsString(o.Columns))
}

/*
Aggregate groups its input by key columns and computes aggregate columns. It
materializes its whole input before it produces the first row.
*/
type Aggregate struct {
	Input   Operator // Input operator
	Columns []Column // Result columns
	Keys    []int    // Indices of the grouping key columns
}

/*
Source returns the input operator or nil.
*/
func (o *Aggregate) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *Aggregate) String() string {
	var keys, aggs []Column

	isKey := make(map[int]bool)
	for _, k := range o.Keys {
		isKey[k] = true
	}

	for i, c := range o.Columns {
		if isKey[i] {
			keys = append(keys, c)
		} else {
			aggs = append(aggs, c)
		}
	}

	return fmt.Sprintf("Aggregate(keys: %v; aggregates: %v)", columnsString(keys), columnsString(aggs))
}

/*
SortKey is a key of an OrderBy operator.
*/
type SortKey struct {
	Expr       *parser.ASTNode // Sort key expression
	Descending bool            // Flag for descending order
}

/*
OrderBy sorts its input. It materializes its whole input before it produces
the first row.
*/
type OrderBy struct {
	Input Operator  // Input operator
	Keys  []SortKey // Sort keys
}

/*
Source returns the input operator or nil.
*/
func (o *OrderBy) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *OrderBy) String() string {
	var keys []string
	for _, k := range o.Keys {
		if k.Descending {
			keys = append(keys, parser.PrettyPrint(k.Expr)+" DESC")
		} else {
			keys = append(keys, parser.PrettyPrint(k.Expr))
		}
	}
	return fmt.Sprintf("OrderBy(%v)", strings.Join(keys, ", "))
}

/*
Skip drops a number of rows.
*/
type Skip struct {
	Input Operator        // Input operator
	Count *parser.ASTNode // Number of rows to skip
}

/*
Source returns the input operator or nil.
*/
func (o *Skip) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *Skip) String() string {
	return fmt.Sprintf("Skip(%v)", parser.PrettyPrint(o.Count))
}

/*
Limit stops after a number of rows.
*/
type Limit struct {
	Input Operator        // Input operator
	Count *parser.ASTNode // Maximum number of rows
}

/*
Source returns the input operator or nil.
*/
func (o *Limit) Source() Operator {
	return o.Input
}

/*
String returns a one line description of the operator.
*/
func (o *Limit) String() string {
	return fmt.Sprintf("Limit(%v)", parser.PrettyPrint(o.Count))
}

/*
Plan is a compiled query.
*/
type Plan struct {
	Root    Operator // Last operator of the plan
	Columns []string // Names of the result columns
	Params  []string // Names of referenced parameters
}

/*
String returns the plan as an indented operator tree.
*/
func (p *Plan) String() string {
	var buf bytes.Buffer

	indent := 0
	for op := p.Root; op != nil; op = op.Source() {
		buf.WriteString(strings.Repeat("  ", indent))
		buf.WriteString(op.String())
		buf.WriteString("\n")
		indent++
	}

	return buf.String()
}

/*
anonPrefix is the prefix of generated variable names. Generated names cannot
clash with user names as they contain spaces.
*/
const anonPrefix = "  anon"

/*
IsAnonymous checks if a variable name was generated for an unnamed pattern.
*/
func IsAnonymous(name string) bool {
	return strings.HasPrefix(name, anonPrefix)
}

/*
varString returns a variable name for plan descriptions.
*/
func varString(name string) string {
	if IsAnonymous(name) {
		return ""
	}
	return name
}

/*
nodeString returns a node pattern for plan descriptions.
*/
func nodeString(name string, label string) string {
	if label != "" {
		return varString(name) + ":" + label
	}
	return varString(name)
}
