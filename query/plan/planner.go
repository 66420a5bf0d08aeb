/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/query/parser"
)

/*
planner data structure
*/
type planner struct {
	specs   []*index.Spec   // Available indexes sorted by name
	bound   map[string]bool // Bound variables
	anon    int             // Counter for generated variable names
	op      Operator        // Current last operator
	columns []Column        // Result columns
}

/*
New lowers a validated AST into a plan. The given index specs are used to
choose index scans.
*/
func New(ast *parser.ASTNode, specs []*index.Spec) (*Plan, error) {

	if ast == nil || ast.Name != parser.NodeQUERY {
		return nil, fmt.Errorf("Cannot plan AST node %v", ast)
	}

	sorted := make([]*index.Spec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	p := &planner{specs: sorted, bound: make(map[string]bool)}

	for _, clause := range ast.Children {

		switch clause.Name {

		case parser.NodeMATCH:
			p.planMatch(clause)

		case parser.NodeRETURN:
			p.planReturn(clause)

		case parser.NodeORDERBY:
			p.planOrderBy(clause)

		case parser.NodeSKIP:
			p.op = &Skip{p.op, clause.Children[0]}

		case parser.NodeLIMIT:
			p.op = &Limit{p.op, clause.Children[0]}
		}
	}

	ret := &Plan{Root: p.op}

	for _, c := range p.columns {
		ret.Columns = append(ret.Columns, c.Name)
	}

	seen := make(map[string]bool)
	ast.Walk(func(n *parser.ASTNode) bool {
		if n.Name == parser.NodePARAM && !seen[n.Str()] {
			seen[n.Str()] = true
			ret.Params = append(ret.Params, n.Str())
		}
		return true
	})

	sort.Strings(ret.Params)

	return ret, nil
}

// Patterns
// ========

/*
planMatch plans a MATCH clause.
*/
func (p *planner) planMatch(match *parser.ASTNode) {
	var pending []*parser.ASTNode
	var rels []string

	if where := match.Child(parser.NodeWHERE); where != nil {
		pending = splitAnd(where.Children[0], nil)
	}

	for _, pattern := range match.ChildrenByName(parser.NodePATTERN) {
		parts := pattern.Children

		var prev string

		start := 1

		if p.scanRelType(parts, rels, &pending) {
			rels = append(rels, p.op.(*ScanByRelType).Rel)
			prev = p.op.(*ScanByRelType).To
			start = 3

			p.applyFilters(&pending)

		} else {
			prev = p.bindNode(parts[0], &pending)
		}

		for i := start; i+1 < len(parts); i += 2 {
			relPart, nodePart := parts[i], parts[i+1]

			relVar := p.varName(relPart)
			toVar := p.varName(nodePart)

			var types []string
			if rt := relPart.Child(parser.NodeRELTYPES); rt != nil {
				for _, t := range rt.Children {
					types = append(types, t.Str())
				}
			}

			p.op = &Expand{
				Input:     p.op,
				From:      prev,
				Rel:       relVar,
				To:        toVar,
				Types:     types,
				Direction: direction(relPart.Str()),
				Into:      p.bound[toVar],
				Distinct:  append([]string(nil), rels...),
			}

			rels = append(rels, relVar)
			p.bound[relVar] = true
			p.bound[toVar] = true

			pending = append(pending, propertyConjuncts(relVar, relPart)...)
			pending = append(pending, propertyConjuncts(toVar, nodePart)...)

			if labels := labelsOf(nodePart); len(labels) > 0 {
				pending = append(pending, hasLabels(toVar, labels))
			}

			p.applyFilters(&pending)

			prev = toVar
		}
	}

	p.applyFilters(&pending)
}

/*
bindNode plans the first node of a pattern. The node is scanned if it is not
bound yet.
*/
func (p *planner) bindNode(part *parser.ASTNode, pending *[]*parser.ASTNode) string {
	v := p.varName(part)
	labels := labelsOf(part)

	*pending = append(*pending, propertyConjuncts(v, part)...)

	if p.bound[v] {

		if len(labels) > 0 {
			*pending = append(*pending, hasLabels(v, labels))
		}

	} else {
		var label string

		if len(labels) > 0 {
			label = labels[0]

			if len(labels) > 1 {
				*pending = append(*pending, hasLabels(v, labels[1:]))
			}
		}

		p.op = p.scan(v, label, *pending)
		p.bound[v] = true
	}

	p.applyFilters(pending)

	return v
}

/*
scanRelType plans the first hop of a pattern as a relationship type index
scan. The scan is only used if the start node is unbound and has no labels,
the relationship is directed and has types, the end node is unbound and no
index can be used for the start node. Returns false if the scan cannot be
used.
*/
func (p *planner) scanRelType(parts []*parser.ASTNode, rels []string, pending *[]*parser.ASTNode) bool {

	if len(parts) < 3 {
		return false
	}

	fromPart, relPart, toPart := parts[0], parts[1], parts[2]

	dir := direction(relPart.Str())
	rt := relPart.Child(parser.NodeRELTYPES)

	if dir == data.DirectionBoth || rt == nil || len(labelsOf(fromPart)) > 0 {
		return false
	}

	fromVar, toVar := nameOf(fromPart), nameOf(toPart)

	if p.bound[fromVar] || p.bound[nameOf(relPart)] || p.bound[toVar] || (fromVar != "" && fromVar == toVar) {
		return false
	}

	var spec *index.Spec
	for _, s := range p.specs {
		if s.Kind == index.KindRelType && s.Target == index.TargetEdges {
			spec = s
			break
		}
	}

	if spec == nil {
		return false
	}

	// Node indexes on the start node are more selective

	name := fromVar
	if name == "" {
		name = anonPrefix
	}

	conjuncts := append(append([]*parser.ASTNode(nil), *pending...), propertyConjuncts(name, fromPart)...)
	if _, ok := p.scan(name, "", conjuncts).(*ScanByLabel); !ok {
		return false
	}

	fromVar = p.varName(fromPart)
	relVar := p.varName(relPart)
	toVar = p.varName(toPart)

	var types []string
	for _, t := range rt.Children {
		types = append(types, t.Str())
	}

	p.op = &ScanByRelType{
		Input:     p.op,
		From:      fromVar,
		Rel:       relVar,
		To:        toVar,
		Types:     types,
		Direction: dir,
		Spec:      spec,
		Distinct:  append([]string(nil), rels...),
	}

	p.bound[fromVar] = true
	p.bound[relVar] = true
	p.bound[toVar] = true

	*pending = append(*pending, propertyConjuncts(fromVar, fromPart)...)
	*pending = append(*pending, propertyConjuncts(relVar, relPart)...)
	*pending = append(*pending, propertyConjuncts(toVar, toPart)...)

	if labels := labelsOf(toPart); len(labels) > 0 {
		*pending = append(*pending, hasLabels(toVar, labels))
	}

	return true
}

/*
nameOf returns the variable of a pattern part or an empty string for unnamed
parts.
*/
func nameOf(part *parser.ASTNode) string {
	if v := part.Child(parser.NodeVARIABLE); v != nil {
		return v.Str()
	}
	return ""
}

/*
applyFilters adds a filter for all pending conjuncts whose variables are
bound.
*/
func (p *planner) applyFilters(pending *[]*parser.ASTNode) {
	var ready, rest []*parser.ASTNode

	for _, c := range *pending {
		if p.isBound(c, "") {
			ready = append(ready, c)
		} else {
			rest = append(rest, c)
		}
	}

	if len(ready) > 0 {
		pred := ready[0]
		for _, c := range ready[1:] {
			pred = parser.NewASTNode(parser.NodeAND, nil, pred, c)
		}

		p.op = &Filter{p.op, pred}
	}

	*pending = rest
}

/*
isBound checks if all variables of an expression are bound. A given variable
can be excluded.
*/
func (p *planner) isBound(expr *parser.ASTNode, exclude string) bool {
	for _, v := range parser.Variables(expr) {
		if v == exclude || !p.bound[v] {
			return false
		}
	}
	return true
}

/*
varName returns the variable of a pattern part. A name is generated for
unnamed parts.
*/
func (p *planner) varName(part *parser.ASTNode) string {
	if v := part.Child(parser.NodeVARIABLE); v != nil {
		return v.Str()
	}

	p.anon++

	return fmt.Sprintf("%v%d", anonPrefix, p.anon)
}

// Scans
// =====

/*
indexConditions collects the conditions on the properties of a variable which
can be answered by an index.
*/
type indexConditions struct {
	eq     map[string]*parser.ASTNode // Equality conditions
	lower  map[string]*Bound          // Lower bounds
	upper  map[string]*Bound          // Upper bounds
	search map[string]*parser.ASTNode // Full-text conditions
}

/*
flippedOps maps comparison operators to the operator with swapped operands.
*/
var flippedOps = map[string]string{
	parser.NodeEQ:  parser.NodeEQ,
	parser.NodeLT:  parser.NodeGT,
	parser.NodeGT:  parser.NodeLT,
	parser.NodeLEQ: parser.NodeGEQ,
	parser.NodeGEQ: parser.NodeLEQ,
}

/*
conditions extracts index conditions for a variable from a list of conjuncts.
*/
func (p *planner) conditions(v string, conjuncts []*parser.ASTNode) *indexConditions {
	ic := &indexConditions{make(map[string]*parser.ASTNode), make(map[string]*Bound),
		make(map[string]*Bound), make(map[string]*parser.ASTNode)}

	for _, c := range conjuncts {

		if c.Name == parser.NodeFUNC && strings.EqualFold(c.Str(), "search") {
			if prop := propertyOf(c.Children[0], v); prop != "" && p.isBound(c.Children[1], v) {
				if _, ok := ic.search[prop]; !ok {
					ic.search[prop] = c.Children[1]
				}
			}
			continue
		}

		op, ok := flippedOps[c.Name]
		if !ok {
			continue
		}

		prop, other := propertyOf(c.Children[0], v), c.Children[1]
		if prop == "" {
			prop, other = propertyOf(c.Children[1], v), c.Children[0]
		} else {
			op = c.Name
		}

		if prop == "" || !p.isBound(other, v) {
			continue
		}

		switch op {

		case parser.NodeEQ:
			if _, ok := ic.eq[prop]; !ok {
				ic.eq[prop] = other
			}

		case parser.NodeGT, parser.NodeGEQ:
			if _, ok := ic.lower[prop]; !ok {
				ic.lower[prop] = &Bound{other, op == parser.NodeGEQ}
			}

		case parser.NodeLT, parser.NodeLEQ:
			if _, ok := ic.upper[prop]; !ok {
				ic.upper[prop] = &Bound{other, op == parser.NodeLEQ}
			}
		}
	}

	return ic
}

/*
scan chooses the scan operator for a node variable. Indexes are chosen in
the following order: composite index with equality conditions on all its
properties, ordered index with an equality condition, full-text index with a
search condition, ordered index with range conditions.
*/
func (p *planner) scan(v string, label string, conjuncts []*parser.ASTNode) Operator {
	ic := p.conditions(v, conjuncts)

	var candidates []*index.Spec
	for _, s := range p.specs {
		if s.Target == index.TargetNodes && s.Label == label {
			candidates = append(candidates, s)
		}
	}

	newScan := func(spec *index.Spec) *ScanByIndex {
		return &ScanByIndex{Input: p.op, Var: v, Label: label, Spec: spec}
	}

	for _, s := range candidates {
		if s.Kind == index.KindComposite {
			var key []*parser.ASTNode
			for _, prop := range s.Properties {
				if expr, ok := ic.eq[prop]; ok {
					key = append(key, expr)
				}
			}
			if len(key) == len(s.Properties) {
				scan := newScan(s)
				scan.Key = key
				return scan
			}
		}
	}

	for _, s := range candidates {
		if s.Kind == index.KindOrdered {
			if expr, ok := ic.eq[s.Properties[0]]; ok {
				scan := newScan(s)
				scan.Key = []*parser.ASTNode{expr}
				return scan
			}
		}
	}

	for _, s := range candidates {
		if s.Kind == index.KindFullText {
			for _, prop := range s.Properties {
				if expr, ok := ic.search[prop]; ok {
					scan := newScan(s)
					scan.Property = prop
					scan.Text = expr
					return scan
				}
			}
		}
	}

	for _, s := range candidates {
		if s.Kind == index.KindOrdered {
			lower, upper := ic.lower[s.Properties[0]], ic.upper[s.Properties[0]]
			if lower != nil || upper != nil {
				scan := newScan(s)
				scan.Lower = lower
				scan.Upper = upper
				return scan
			}
		}
	}

	return &ScanByLabel{p.op, v, label}
}

// Projection
// ==========

/*
planReturn plans the RETURN clause.
*/
func (p *planner) planReturn(ret *parser.ASTNode) {

	if p.op == nil {
		p.op = &Argument{}
	}

	distinct := false

	for _, item := range ret.Children {

		switch item.Name {

		case parser.NodeDISTINCT:
			distinct = true

		case parser.NodeSTAR:
			var names []string
			for v := range p.bound {
				if !IsAnonymous(v) {
					names = append(names, v)
				}
			}

			sort.Strings(names)

			for _, v := range names {
				p.columns = append(p.columns, Column{v, parser.NewASTNode(parser.NodeVARIABLE, v)})
			}

		case parser.NodeRETURNITEM:
			p.columns = append(p.columns, Column{item.Str(), item.Children[0]})
		}
	}

	var keys []int
	aggregating := false

	for i, c := range p.columns {
		if parser.ContainsAggregate(c.Expr) {
			aggregating = true
		} else {
			keys = append(keys, i)
		}
	}

	if aggregating {
		p.op = &Aggregate{p.op, p.columns, keys}
	} else {
		p.op = &Project{p.op, p.columns, distinct}
	}
}

/*
planOrderBy plans the ORDER BY clause. Sort keys which are result columns are
replaced by references to the column.
*/
func (p *planner) planOrderBy(orderBy *parser.ASTNode) {
	var keys []SortKey

	for _, item := range orderBy.Children {
		expr := item.Children[0]
		printed := parser.PrettyPrint(expr)

		for _, c := range p.columns {
			if c.Name == printed || parser.PrettyPrint(c.Expr) == printed {
				expr = parser.NewASTNode(parser.NodeVARIABLE, c.Name)
				break
			}
		}

		keys = append(keys, SortKey{expr, item.Value == "desc"})
	}

	p.op = &OrderBy{p.op, keys}
}

// Helper functions
// ================

/*
splitAnd splits a predicate into its conjuncts.
*/
func splitAnd(expr *parser.ASTNode, conjuncts []*parser.ASTNode) []*parser.ASTNode {
	if expr.Name == parser.NodeAND {
		conjuncts = splitAnd(expr.Children[0], conjuncts)
		return splitAnd(expr.Children[1], conjuncts)
	}
	return append(conjuncts, expr)
}

/*
propertyOf returns the property name if an expression is a property access on
a given variable.
*/
func propertyOf(expr *parser.ASTNode, v string) string {
	if expr.Name == parser.NodePROPERTY && expr.Children[0].Name == parser.NodeVARIABLE &&
		expr.Children[0].Str() == v {
		return expr.Str()
	}
	return ""
}

/*
propertyConjuncts returns equality conditions for the inline property map of
a pattern part.
*/
func propertyConjuncts(v string, part *parser.ASTNode) []*parser.ASTNode {
	var ret []*parser.ASTNode

	if m := part.Child(parser.NodeMAP); m != nil {
		for _, entry := range m.Children {
			prop := parser.NewASTNode(parser.NodePROPERTY, entry.Str(),
				parser.NewASTNode(parser.NodeVARIABLE, v))
			ret = append(ret, parser.NewASTNode(parser.NodeEQ, nil, prop, entry.Children[0]))
		}
	}

	return ret
}

/*
labelsOf returns the labels of a node pattern.
*/
func labelsOf(part *parser.ASTNode) []string {
	var ret []string

	if labels := part.Child(parser.NodeLABELS); labels != nil {
		for _, l := range labels.Children {
			ret = append(ret, l.Str())
		}
	}

	return ret
}

/*
hasLabels returns a label check for a node variable.
*/
func hasLabels(v string, labels []string) *parser.ASTNode {
	return parser.NewASTNode(parser.NodeHASLABELS, labels, parser.NewASTNode(parser.NodeVARIABLE, v))
}

/*
direction converts the direction of a relationship pattern.
*/
func direction(dir string) data.Direction {
	switch dir {
	case parser.DirectionOut:
		return data.DirectionOut
	case parser.DirectionIn:
		return data.DirectionIn
	}
	return data.DirectionBoth
}
