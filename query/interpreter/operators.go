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
	"sort"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/krotik/eliasgraph/query/parser"
	"github.com/krotik/eliasgraph/query/plan"
)

// Argument
// ========

/*
argumentIterator produces a single empty row.
*/
type argumentIterator struct {
	done bool
}

/*
Next returns the next row.
*/
func (it *argumentIterator) Next() (*Row, error) {
	if it.done {
		return nil, nil
	}

	it.done = true

	return &Row{Vars: make(map[string]interface{})}, nil
}

// Scans
// =====

/*
scanSource is a source of node identifiers.
*/
type scanSource interface {
	HasNext() bool
	Next() uint64
}

/*
idList is a scan source over a list of identifiers.
*/
type idList struct {
	ids []uint64
	pos int
}

/*
HasNext returns if there is a next identifier.
*/
func (l *idList) HasNext() bool {
	return l.pos < len(l.ids)
}

/*
Next returns the next identifier.
*/
func (l *idList) Next() uint64 {
	l.pos++
	return l.ids[l.pos-1]
}

/*
scanIterator binds a variable to all nodes of a scan source. If the scan has
an input the source is opened once for every input row.
*/
type scanIterator struct {
	rt    *Runtime                       // Runtime
	input Iterator                       // Input iterator or nil
	v     string                         // Bound variable
	open  func(*Row) (scanSource, error) // Function to open the source for an input row
	row   *Row                           // Current input row
	src   scanSource                     // Current source
	done  bool                           // Flag if the input is exhausted
}

/*
newScanIterator creates a new scan iterator.
*/
func newScanIterator(rt *Runtime, input Iterator, v string, open func(*Row) (scanSource, error)) *scanIterator {
	return &scanIterator{rt: rt, input: input, v: v, open: open}
}

/*
Next returns the next row.
*/
func (it *scanIterator) Next() (*Row, error) {

	for {

		if it.src == nil {

			if it.done {
				return nil, nil
			}

			if it.input == nil {
				it.row = &Row{Vars: make(map[string]interface{})}
				it.done = true

			} else {
				row, err := it.input.Next()
				if err != nil || row == nil {
					it.done = true
					return nil, err
				}
				it.row = row
			}

			src, err := it.open(it.row)
			if err != nil {
				if err = it.rt.skip(err); err != nil {
					return nil, err
				}
				continue
			}

			it.src = src
		}

		if !it.src.HasNext() {
			it.src = nil
			continue
		}

		id := it.src.Next()

		if err := it.rt.budget.Charge(budget.NodeVisits, 1); err != nil {
			return nil, err
		}

		node, err := it.rt.reader.FetchNode(id)
		if err != nil {
			if util.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		return it.row.bind(it.v, node), nil
	}
}

/*
labelSource opens a scan over all nodes with a given label.
*/
func (rt *Runtime) labelSource(label string) (scanSource, error) {
	return rt.reader.NodeIDs(label)
}

/*
indexSource opens an index scan for an input row. The scan falls back to a
label scan if the index cannot be used or if a key is not a scalar value.
*/
func (rt *Runtime) indexSource(o *plan.ScanByIndex, row *Row) (scanSource, error) {
	var ids []uint64
	var ok bool
	var err error

	h := index.Handle(o.Spec.Name)
	empty := &idList{}

	switch {

	case o.Text != nil:
		var text interface{}

		if text, err = rt.eval(o.Text, row); err != nil || text == nil {
			return empty, err
		}

		s, isString := text.(string)
		if !isString {
			return nil, rt.newRuntimeError(ErrNotAString,
				fmt.Sprintf("search text %v", data.TypeName(text)), o.Text)
		}

		var hits []index.Hit

		if hits, ok, err = rt.reader.IndexSearch(h, o.Property, s); ok && err == nil {
			for _, hit := range hits {
				ids = append(ids, hit.ID)
			}
		}

	case len(o.Key) > 0:
		key := make([]interface{}, len(o.Key))

		for i, k := range o.Key {
			if key[i], err = rt.eval(k, row); err != nil || key[i] == nil {
				return empty, err
			}
			if !data.IsScalar(key[i]) {
				return rt.labelSource(o.Label)
			}
		}

		if o.Spec.Kind == index.KindComposite {
			ids, ok, err = rt.reader.IndexLookup(h, key)
		} else {
			ids, ok, err = rt.reader.IndexLookup(h, key[0])
		}

	default:
		var lower, upper *index.Bound

		for _, b := range []struct {
			src *plan.Bound
			dst **index.Bound
		}{{o.Lower, &lower}, {o.Upper, &upper}} {

			if b.src == nil {
				continue
			}

			val, err := rt.eval(b.src.Expr, row)
			if err != nil || val == nil {
				return empty, err
			}
			if !data.IsScalar(val) {
				return rt.labelSource(o.Label)
			}

			*b.dst = &index.Bound{Value: val, Inclusive: b.src.Inclusive}
		}

		ids, ok, err = rt.reader.IndexRange(h, lower, upper)
	}

	if err != nil {
		if errors.Is(err, util.ErrUnknownIndex) {
			return rt.labelSource(o.Label)
		}
		return nil, err
	}

	if !ok {
		logger.Debug(fmt.Sprintf("Index %v not usable - scanning label %v", o.Spec.Name, o.Label))
		return rt.labelSource(o.Label)
	}

	return &idList{ids: ids}, nil
}

// Expand
// ======

/*
expandIterator follows the relationships of a bound node.
*/
type expandIterator struct {
	rt    *Runtime     // Runtime
	op    *plan.Expand // Operator
	input Iterator     // Input iterator
	row   *Row         // Current input row
	from  *data.Node   // Start node of the current input row
	edges []*data.Edge // Edges of the start node
	pos   int          // Position in the edge list
}

/*
Next returns the next row.
*/
func (it *expandIterator) Next() (*Row, error) {

	for {

		if it.row == nil {

			row, err := it.input.Next()
			if err != nil || row == nil {
				return nil, err
			}

			from, ok := row.Vars[it.op.From].(*data.Node)
			if !ok {
				continue
			}

			edges, err := it.rt.reader.Traverse(from.ID, it.op.Direction, it.op.Types...)
			if err != nil {
				if util.IsNotFound(err) {
					continue
				}
				return nil, err
			}

			it.row, it.from, it.edges, it.pos = row, from, edges, 0
		}

		if it.pos >= len(it.edges) {
			it.row = nil
			continue
		}

		e := it.edges[it.pos]
		it.pos++

		if err := it.rt.budget.Charge(budget.EdgeVisits, 1); err != nil {
			return nil, err
		}

		if it.isUsed(e) {
			continue
		}

		other := e.Other(it.from.ID)

		switch it.op.Direction {
		case data.DirectionOut:
			other = e.To
		case data.DirectionIn:
			other = e.From
		}

		if it.op.Into {
			if to, ok := it.row.Vars[it.op.To].(*data.Node); ok && to.ID == other {
				return it.row.bind(it.op.Rel, e), nil
			}
			continue
		}

		if err := it.rt.budget.Charge(budget.NodeVisits, 1); err != nil {
			return nil, err
		}

		node, err := it.rt.reader.FetchNode(other)
		if err != nil {
			if util.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		ret := it.row.bind(it.op.Rel, e)
		ret.Vars[it.op.To] = node

		return ret, nil
	}
}

/*
isUsed checks if an edge is already bound to another relationship variable of
the same MATCH clause.
*/
func (it *expandIterator) isUsed(e *data.Edge) bool {
	for _, v := range it.op.Distinct {
		if bound, ok := it.row.Vars[v].(*data.Edge); ok && bound.ID == e.ID {
			return true
		}
	}
	return false
}

// Relationship type scan
// ======================

/*
singleRow produces a single given row.
*/
type singleRow struct {
	row *Row
}

/*
Next returns the next row.
*/
func (it *singleRow) Next() (*Row, error) {
	row := it.row
	it.row = nil
	return row, nil
}

/*
relTypeIterator binds a relationship and its end nodes to all edges of the
given types. If the index cannot be used all nodes are scanned and expanded.
*/
type relTypeIterator struct {
	rt       *Runtime            // Runtime
	op       *plan.ScanByRelType // Operator
	input    Iterator            // Input iterator or nil
	row      *Row                // Current input row
	edges    *idList             // Edges of the current input row
	fallback Iterator            // Scan and expansion of the current input row
	done     bool                // Flag if the input is exhausted
}

/*
Next returns the next row.
*/
func (it *relTypeIterator) Next() (*Row, error) {

	for {

		if it.edges == nil && it.fallback == nil {

			if it.done {
				return nil, nil
			}

			if it.input == nil {
				it.row = &Row{Vars: make(map[string]interface{})}
				it.done = true

			} else {
				row, err := it.input.Next()
				if err != nil || row == nil {
					it.done = true
					return nil, err
				}
				it.row = row
			}

			ids, ok, err := it.edgeIDs()
			if err != nil {
				return nil, err
			}

			if ok {
				it.edges = &idList{ids: ids}
			} else {
				logger.Debug(fmt.Sprintf("Index %v not usable - scanning all nodes", it.op.Spec.Name))
				it.fallback = it.expandAll(it.row)
			}
		}

		if it.fallback != nil {
			row, err := it.fallback.Next()
			if err != nil || row != nil {
				return row, err
			}
			it.fallback = nil
			continue
		}

		if !it.edges.HasNext() {
			it.edges = nil
			continue
		}

		if err := it.rt.budget.Charge(budget.EdgeVisits, 1); err != nil {
			return nil, err
		}

		e, err := it.rt.reader.FetchEdge(it.edges.Next())
		if err != nil {
			if util.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		if it.isUsed(e) {
			continue
		}

		fromID, toID := e.From, e.To
		if it.op.Direction == data.DirectionIn {
			fromID, toID = e.To, e.From
		}

		ret := it.row.bind(it.op.Rel, e)
		found := true

		for _, n := range []struct {
			v  string
			id uint64
		}{{it.op.From, fromID}, {it.op.To, toID}} {

			if err := it.rt.budget.Charge(budget.NodeVisits, 1); err != nil {
				return nil, err
			}

			node, err := it.rt.reader.FetchNode(n.id)
			if err != nil {
				if util.IsNotFound(err) {
					found = false
					break
				}
				return nil, err
			}

			ret.Vars[n.v] = node
		}

		if found {
			return ret, nil
		}
	}
}

/*
edgeIDs looks up the identifiers of all edges of the given types in
identifier order. Returns false if the index cannot be used.
*/
func (it *relTypeIterator) edgeIDs() ([]uint64, bool, error) {
	var ret []uint64

	h := index.Handle(it.op.Spec.Name)
	seen := make(map[uint64]bool)

	for _, etype := range it.op.Types {
		ids, ok, err := it.rt.reader.IndexLookup(h, etype)

		if errors.Is(err, util.ErrUnknownIndex) {
			return nil, false, nil
		} else if err != nil || !ok {
			return nil, false, err
		}

		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				ret = append(ret, id)
			}
		}
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i] < ret[j]
	})

	return ret, true, nil
}

/*
expandAll creates a scan over all nodes followed by an expansion for an input
row.
*/
func (it *relTypeIterator) expandAll(row *Row) Iterator {
	scan := newScanIterator(it.rt, &singleRow{row}, it.op.From, func(*Row) (scanSource, error) {
		return it.rt.labelSource("")
	})

	return &expandIterator{rt: it.rt, input: scan, op: &plan.Expand{
		From:      it.op.From,
		Rel:       it.op.Rel,
		To:        it.op.To,
		Types:     it.op.Types,
		Direction: it.op.Direction,
		Distinct:  it.op.Distinct,
	}}
}

/*
isUsed checks if an edge is already bound to another relationship variable of
the same MATCH clause.
*/
func (it *relTypeIterator) isUsed(e *data.Edge) bool {
	for _, v := range it.op.Distinct {
		if bound, ok := it.row.Vars[v].(*data.Edge); ok && bound.ID == e.ID {
			return true
		}
	}
	return false
}

// Filter
// ======

/*
filterIterator removes all rows for which a predicate is not true.
*/
type filterIterator struct {
	rt        *Runtime        // Runtime
	predicate *parser.ASTNode // Predicate
	input     Iterator        // Input iterator
}

/*
Next returns the next row.
*/
func (it *filterIterator) Next() (*Row, error) {

	for {
		row, err := it.input.Next()
		if err != nil || row == nil {
			return nil, err
		}

		val, err := it.rt.eval(it.predicate, row)

		if err == nil {
			switch b := val.(type) {
			case bool:
				if b {
					return row, nil
				}
				continue
			case nil:
				continue
			}

			err = it.rt.newRuntimeError(ErrTypeMismatch,
				fmt.Sprintf("predicate is a %v not a boolean", data.TypeName(val)), it.predicate)
		}

		if err = it.rt.skip(err); err != nil {
			return nil, err
		}
	}
}

// Projection
// ==========

/*
projectIterator computes the result columns.
*/
type projectIterator struct {
	rt    *Runtime        // Runtime
	op    *plan.Project   // Operator
	input Iterator        // Input iterator
	seen  map[string]bool // Keys of all produced rows (DISTINCT)
}

/*
Next returns the next row.
*/
func (it *projectIterator) Next() (*Row, error) {

	for {
		row, err := it.input.Next()
		if err != nil || row == nil {
			return nil, err
		}

		values, err := it.rt.evalColumns(it.op.Columns, row)
		if err != nil {
			if err = it.rt.skip(err); err != nil {
				return nil, err
			}
			continue
		}

		var vars map[string]interface{}

		if it.op.Distinct {
			key := valuesKey(values)
			if it.seen[key] {
				continue
			}
			it.seen[key] = true

			vars = make(map[string]interface{}, len(values))

		} else {
			vars = make(map[string]interface{}, len(row.Vars)+len(values))
			for k, v := range row.Vars {
				vars[k] = v
			}
		}

		for i, c := range it.op.Columns {
			vars[c.Name] = values[i]
		}

		return &Row{Vars: vars, Values: values}, nil
	}
}

/*
evalColumns evaluates a list of columns for a row.
*/
func (rt *Runtime) evalColumns(cols []plan.Column, row *Row) ([]interface{}, error) {
	var err error

	values := make([]interface{}, len(cols))

	for i, c := range cols {
		if values[i], err = rt.eval(c.Expr, row); err != nil {
			return nil, err
		}
	}

	return values, nil
}

// Aggregation
// ===========

/*
aggregateGroup holds the state of one group of an aggregation.
*/
type aggregateGroup struct {
	keys []interface{}                    // Values of the key columns
	accs map[*parser.ASTNode]*accumulator // Accumulators of all aggregate calls
}

/*
aggregateIterator groups its input and computes aggregates.
*/
type aggregateIterator struct {
	rt     *Runtime          // Runtime
	op     *plan.Aggregate   // Operator
	input  Iterator          // Input iterator
	calls  []*parser.ASTNode // Aggregate calls of all columns
	groups []*aggregateGroup // Groups in order of their first appearance
	pos    int               // Next group to return
	done   bool              // Flag if the input was consumed
}

/*
Next returns the next row.
*/
func (it *aggregateIterator) Next() (*Row, error) {

	if !it.done {
		if err := it.consume(); err != nil {
			return nil, err
		}
		it.done = true
	}

	for it.pos < len(it.groups) {
		g := it.groups[it.pos]
		it.pos++

		row, err := it.result(g)
		if err != nil {
			if err = it.rt.skip(err); err != nil {
				return nil, err
			}
			continue
		}

		return row, nil
	}

	return nil, nil
}

/*
consume reads the whole input and updates the groups.
*/
func (it *aggregateIterator) consume() error {
	byKey := make(map[string]*aggregateGroup)

	isKey := make(map[int]bool)
	for _, k := range it.op.Keys {
		isKey[k] = true
	}

	for i, c := range it.op.Columns {
		if !isKey[i] {
			c.Expr.Walk(func(n *parser.ASTNode) bool {
				if parser.IsAggregate(n) {
					it.calls = append(it.calls, n)
					return false
				}
				return true
			})
		}
	}

	newGroup := func(keys []interface{}) *aggregateGroup {
		g := &aggregateGroup{keys, make(map[*parser.ASTNode]*accumulator)}
		for _, call := range it.calls {
			g.accs[call] = newAccumulator(call)
		}
		it.groups = append(it.groups, g)
		return g
	}

	for {
		row, err := it.input.Next()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}

		if err := it.update(row, byKey, newGroup); err != nil {
			if err = it.rt.skip(err); err != nil {
				return err
			}
		}
	}

	if len(it.groups) == 0 && len(it.op.Keys) == 0 {
		newGroup(nil)
	}

	return nil
}

/*
update adds a single input row to its group. The row is either added to all
accumulators or to none.
*/
func (it *aggregateIterator) update(row *Row, byKey map[string]*aggregateGroup,
	newGroup func([]interface{}) *aggregateGroup) error {

	keys := make([]interface{}, len(it.op.Keys))

	for i, k := range it.op.Keys {
		var err error
		if keys[i], err = it.rt.eval(it.op.Columns[k].Expr, row); err != nil {
			return err
		}
	}

	args := make([]interface{}, len(it.calls))

	for i, call := range it.calls {
		if arg := aggregateArg(call); arg != nil {
			var err error
			if args[i], err = it.rt.eval(arg, row); err != nil {
				return err
			}
		}
	}

	key := valuesKey(keys)

	// A group is only created once all arguments of the row are valid

	g, ok := byKey[key]

	for i, call := range it.calls {
		acc := newAccumulator(call)
		if ok {
			acc = g.accs[call]
		}
		if err := acc.check(args[i]); err != nil {
			return it.rt.newRuntimeError(ErrTypeMismatch, err.Error(), call)
		}
	}

	if !ok {
		g = newGroup(keys)
		byKey[key] = g
	}

	for i, call := range it.calls {
		g.accs[call].add(args[i])
	}

	return nil
}

/*
result computes the result row of a group.
*/
func (it *aggregateIterator) result(g *aggregateGroup) (*Row, error) {
	aggs := make(map[*parser.ASTNode]interface{}, len(g.accs))
	for call, acc := range g.accs {
		aggs[call] = acc.result()
	}

	values := make([]interface{}, len(it.op.Columns))
	vars := make(map[string]interface{}, len(values))

	isKey := make(map[int]int)
	for i, k := range it.op.Keys {
		isKey[k] = i
	}

	for i, c := range it.op.Columns {
		if k, ok := isKey[i]; ok {
			values[i] = g.keys[k]
		} else {
			var err error
			if values[i], err = it.rt.eval(c.Expr, &Row{Vars: vars, aggs: aggs}); err != nil {
				return nil, err
			}
		}
	}

	for i, c := range it.op.Columns {
		vars[c.Name] = values[i]
	}

	return &Row{Vars: vars, Values: values}, nil
}

// Ordering
// ========

/*
sortedRow is a row together with its sort keys.
*/
type sortedRow struct {
	row  *Row
	keys []interface{}
}

/*
orderByIterator sorts its input.
*/
type orderByIterator struct {
	rt    *Runtime      // Runtime
	op    *plan.OrderBy // Operator
	input Iterator      // Input iterator
	rows  []sortedRow   // Sorted rows
	pos   int           // Next row to return
	done  bool          // Flag if the input was consumed
}

/*
Next returns the next row.
*/
func (it *orderByIterator) Next() (*Row, error) {

	if !it.done {
		if err := it.consume(); err != nil {
			return nil, err
		}
		it.done = true
	}

	if it.pos < len(it.rows) {
		it.pos++
		return it.rows[it.pos-1].row, nil
	}

	return nil, nil
}

/*
consume reads and sorts the whole input.
*/
func (it *orderByIterator) consume() error {

	for {
		row, err := it.input.Next()
		if err != nil {
			return err
		}
		if row == nil {
			break
		}

		keys := make([]interface{}, len(it.op.Keys))

		for i, k := range it.op.Keys {
			if keys[i], err = it.rt.eval(k.Expr, row); err != nil {
				break
			}
		}

		if err != nil {
			if err = it.rt.skip(err); err != nil {
				return err
			}
			continue
		}

		it.rows = append(it.rows, sortedRow{row, keys})
	}

	sort.SliceStable(it.rows, func(i, j int) bool {
		for k, key := range it.op.Keys {
			res := data.OrderValues(it.rows[i].keys[k], it.rows[j].keys[k])
			if key.Descending {
				res = -res
			}
			if res != 0 {
				return res < 0
			}
		}
		return false
	})

	return nil
}

// Skip and Limit
// ==============

/*
skipIterator drops a number of rows.
*/
type skipIterator struct {
	rt      *Runtime        // Runtime
	count   *parser.ASTNode // Number of rows to skip
	input   Iterator        // Input iterator
	skipped bool            // Flag if the rows were dropped
}

/*
Next returns the next row.
*/
func (it *skipIterator) Next() (*Row, error) {

	if !it.skipped {
		n, err := it.rt.count(it.count)
		if err != nil {
			return nil, err
		}

		for ; n > 0; n-- {
			row, err := it.input.Next()
			if err != nil || row == nil {
				return nil, err
			}
		}

		it.skipped = true
	}

	return it.input.Next()
}

/*
limitIterator stops after a number of rows.
*/
type limitIterator struct {
	rt        *Runtime        // Runtime
	count     *parser.ASTNode // Maximum number of rows
	input     Iterator        // Input iterator
	remaining int64           // Remaining number of rows
	started   bool            // Flag if the count was evaluated
}

/*
Next returns the next row.
*/
func (it *limitIterator) Next() (*Row, error) {

	if !it.started {
		n, err := it.rt.count(it.count)
		if err != nil {
			return nil, err
		}

		it.remaining = n
		it.started = true
	}

	if it.remaining <= 0 {
		return nil, nil
	}

	it.remaining--

	return it.input.Next()
}
