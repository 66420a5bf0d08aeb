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
Package interpreter contains the pull based executor for query plans.

Every plan operator is turned into an iterator. Calling Next on the last
iterator pulls rows through the whole chain. Only the iterators of the
Aggregate and OrderBy operators consume their whole input before they return
their first row.

Every entity an iterator touches is charged to the budget manager of the
runtime. If the budget is exceeded the iterator returns the budget error and
the caller stops the execution. Errors during the evaluation of an expression
for a single row are not returned; the row is skipped and counted instead.
*/
package interpreter

import (
	"fmt"

	"github.com/krotik/common/logutil"
	"github.com/krotik/eliasgraph/graph"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/krotik/eliasgraph/query/parser"
	"github.com/krotik/eliasgraph/query/plan"
)

/*
logger is the logger of the interpreter
*/
var logger = logutil.GetLogger("eliasgraph.query")

/*
Row is a row which is passed between iterators.
*/
type Row struct {
	Vars   map[string]interface{}          // Bound variables and named result columns
	Values []interface{}                   // Result values (set by projection)
	aggs   map[*parser.ASTNode]interface{} // Results of aggregate calls
}

/*
bind returns a copy of this row with an additional variable.
*/
func (r *Row) bind(name string, val interface{}) *Row {
	vars := make(map[string]interface{}, len(r.Vars)+1)
	for k, v := range r.Vars {
		vars[k] = v
	}
	vars[name] = val

	return &Row{Vars: vars, Values: r.Values}
}

/*
Iterator produces rows. Next returns nil if there are no more rows.
*/
type Iterator interface {
	Next() (*Row, error)
}

/*
Runtime holds the state of a single execution of a plan.
*/
type Runtime struct {
	name    string                 // Name to identify the query
	reader  graph.Reader           // Read view of the graph
	params  map[string]interface{} // Query parameters
	budget  *budget.Manager        // Budget of this execution
	skipped int64                  // Number of skipped rows
	lastErr error                  // Error of the last skipped row
}

/*
NewRuntime creates a new runtime for one execution of a plan.
*/
func NewRuntime(name string, reader graph.Reader, params map[string]interface{},
	bm *budget.Manager) *Runtime {

	if params == nil {
		params = make(map[string]interface{})
	}

	return &Runtime{name: name, reader: reader, params: params, budget: bm}
}

/*
Skipped returns the number of rows which were skipped because of evaluation
errors.
*/
func (rt *Runtime) Skipped() int64 {
	return rt.skipped
}

/*
LastSkipError returns the error of the last skipped row.
*/
func (rt *Runtime) LastSkipError() error {
	return rt.lastErr
}

/*
Budget returns the budget manager of this runtime.
*/
func (rt *Runtime) Budget() *budget.Manager {
	return rt.budget
}

/*
skip handles an evaluation error. Runtime errors cause the current row to be
skipped; all other errors are returned.
*/
func (rt *Runtime) skip(err error) error {
	if _, ok := err.(*RuntimeError); !ok {
		return err
	}

	rt.skipped++
	rt.lastErr = err

	logger.Debug(fmt.Sprintf("Skipped row: %v", err))

	return nil
}

/*
Build creates the iterator chain for a plan.
*/
func (rt *Runtime) Build(p *plan.Plan) (Iterator, error) {
	return rt.build(p.Root)
}

/*
build creates the iterator for a single operator and its inputs.
*/
func (rt *Runtime) build(op plan.Operator) (Iterator, error) {
	var input Iterator

	if src := op.Source(); src != nil {
		var err error

		if input, err = rt.build(src); err != nil {
			return nil, err
		}
	}

	switch o := op.(type) {

	case *plan.Argument:
		return &argumentIterator{}, nil

	case *plan.ScanByLabel:
		return newScanIterator(rt, input, o.Var, func(*Row) (scanSource, error) {
			return rt.labelSource(o.Label)
		}), nil

	case *plan.ScanByIndex:
		return newScanIterator(rt, input, o.Var, func(row *Row) (scanSource, error) {
			return rt.indexSource(o, row)
		}), nil

	case *plan.ScanByRelType:
		return &relTypeIterator{rt: rt, op: o, input: input}, nil

	case *plan.Expand:
		return &expandIterator{rt: rt, op: o, input: input}, nil

	case *plan.Filter:
		return &filterIterator{rt, o.Predicate, input}, nil

	case *plan.Project:
		return &projectIterator{rt: rt, op: o, input: input, seen: make(map[string]bool)}, nil

	case *plan.Aggregate:
		return &aggregateIterator{rt: rt, op: o, input: input}, nil

	case *plan.OrderBy:
		return &orderByIterator{rt: rt, op: o, input: input}, nil

	case *plan.Skip:
		return &skipIterator{rt: rt, count: o.Count, input: input}, nil

	case *plan.Limit:
		return &limitIterator{rt: rt, count: o.Count, input: input}, nil
	}

	return nil, fmt.Errorf("Unknown operator: %v", op)
}

/*
count evaluates the row count of a Skip or Limit operator.
*/
func (rt *Runtime) count(node *parser.ASTNode) (int64, error) {
	val, err := rt.eval(node, &Row{})
	if err != nil {
		return 0, err
	}

	if n, ok := val.(int64); ok && n >= 0 {
		return n, nil
	}

	return 0, rt.newRuntimeError(ErrInvalidCount,
		fmt.Sprintf("%v must be a non-negative integer not %v", parser.PrettyPrint(node), val), node)
}
