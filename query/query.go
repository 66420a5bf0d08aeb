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
Package query contains the main API of the query language.

A query is compiled in three steps: the text is parsed into an AST, the AST is
validated and the valid AST is lowered into a plan of operators. Compiled
plans are kept in a cache. A plan depends on the available indexes so the
cache key contains a fingerprint of all index specs.

Example query:

	MATCH (a:Person)-[:KNOWS]->(b:Person) WHERE a.age > $age RETURN a.name, b.name

Running a query returns a cursor which pulls rows from the executor. A query
which exceeds its budget is not an error: the cursor stops and reports the
result as truncated.
*/
package query

import (
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/krotik/common/logutil"
	"github.com/krotik/eliasgraph/graph"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/metrics"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/krotik/eliasgraph/query/interpreter"
	"github.com/krotik/eliasgraph/query/parser"
	"github.com/krotik/eliasgraph/query/plan"
)

/*
logger is the logger of the query package
*/
var logger = logutil.GetLogger("eliasgraph.query")

/*
DefaultPlanCacheSize is the default number of compiled plans in a plan cache.
*/
const DefaultPlanCacheSize = 1000

/*
Compiled is a compiled query.
*/
type Compiled struct {
	Name        string          // Name of the query
	Text        string          // Query text
	AST         *parser.ASTNode // Validated AST
	Plan        *plan.Plan      // Plan of operators
	fingerprint uint64          // Fingerprint of the index specs used for planning
}

/*
Columns returns the names of the result columns.
*/
func (c *Compiled) Columns() []string {
	return c.Plan.Columns
}

/*
Compile compiles a query without using a plan cache.
*/
func Compile(name string, text string, specs []*index.Spec) (*Compiled, error) {

	ast, err := parser.Parse(name, text)
	if err == nil {
		err = parser.ValidateAST(name, ast)
	}

	if err != nil {
		metrics.QueryErrors.WithLabelValues(parser.Category(err)).Inc()
		return nil, err
	}

	p, err := plan.New(ast, specs)
	if err != nil {
		metrics.QueryErrors.WithLabelValues(parser.Category(err)).Inc()
		return nil, err
	}

	logger.Debug(fmt.Sprintf("Plan for %v:\n%v", name, p))

	return &Compiled{name, text, ast, p, Fingerprint(specs)}, nil
}

/*
Fingerprint returns a hash over a list of index specs. The order of the list
does not matter.
*/
func Fingerprint(specs []*index.Spec) uint64 {
	canonical := make([]string, len(specs))
	for i, s := range specs {
		canonical[i] = s.Name + "=" + s.Canonical()
	}

	sort.Strings(canonical)

	h := xxhash.New()
	for _, s := range canonical {
		h.WriteString(s)
		h.WriteString("\n")
	}

	return h.Sum64()
}

/*
Compiler compiles queries and caches the resulting plans.
*/
type Compiler struct {
	cache *ristretto.Cache[uint64, *Compiled] // Cache of compiled plans
}

/*
NewCompiler creates a new compiler with a plan cache for a given number of
plans.
*/
func NewCompiler(cacheSize int64) (*Compiler, error) {

	if cacheSize <= 0 {
		cacheSize = DefaultPlanCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint64, *Compiled]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})

	if err != nil {
		return nil, err
	}

	return &Compiler{cache}, nil
}

/*
Compile compiles a query. Plans are reused if the query text and the index
specs did not change.
*/
func (c *Compiler) Compile(name string, text string, specs []*index.Spec) (*Compiled, error) {
	fp := Fingerprint(specs)

	key := xxhash.Sum64String(text) ^ fp

	if cq, ok := c.cache.Get(key); ok && cq.Text == text && cq.fingerprint == fp {
		metrics.PlanCacheRequests.WithLabelValues("hit").Inc()
		return cq, nil
	}

	metrics.PlanCacheRequests.WithLabelValues("miss").Inc()

	cq, err := Compile(name, text, specs)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, cq, 1)

	return cq, nil
}

/*
Clear removes all cached plans.
*/
func (c *Compiler) Clear() {
	c.cache.Clear()
}

/*
Close releases the resources of the plan cache.
*/
func (c *Compiler) Close() {
	c.cache.Close()
}

/*
Explain returns the plan of a query as an indented string.
*/
func (c *Compiler) Explain(name string, text string, r graph.Reader) (string, error) {
	cq, err := c.Compile(name, text, r.IndexSpecs())
	if err != nil {
		return "", err
	}

	return cq.Plan.String(), nil
}

/*
Run compiles a query and starts its execution on a given read view of the
graph.
*/
func (c *Compiler) Run(name string, r graph.Reader, text string, params map[string]interface{},
	spec budget.Spec) (*Cursor, error) {

	cq, err := c.Compile(name, text, r.IndexSpecs())
	if err != nil {
		return nil, err
	}

	return cq.Run(r, params, spec)
}

/*
Run starts the execution of a compiled query on a given read view of the
graph. All parameters which are referenced by the query must be given.
*/
func (c *Compiled) Run(r graph.Reader, params map[string]interface{}, spec budget.Spec) (*Cursor, error) {

	nparams, err := c.normalizeParams(params)
	if err != nil {
		metrics.QueryErrors.WithLabelValues(parser.Category(err)).Inc()
		return nil, err
	}

	bm := budget.NewManager(spec)
	rt := interpreter.NewRuntime(c.Name, r, nparams, bm)

	it, err := rt.Build(c.Plan)
	if err != nil {
		return nil, err
	}

	return &Cursor{query: c, rt: rt, it: it, start: time.Now()}, nil
}

/*
normalizeParams checks that all referenced parameters are given and converts
their values into property values.
*/
func (c *Compiled) normalizeParams(params map[string]interface{}) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(params))

	for k, v := range params {
		nv, err := data.NormalizeValue(v)
		if err != nil {
			return nil, &parser.Error{Source: c.Name, Type: parser.ErrSemantic,
				Detail: fmt.Sprintf("Invalid value for parameter $%v: %v", k, err)}
		}
		ret[k] = nv
	}

	for _, p := range c.Plan.Params {
		if _, ok := ret[p]; !ok {
			return nil, &parser.Error{Source: c.Name, Type: parser.ErrSemantic,
				Detail: fmt.Sprintf("Missing parameter $%v", p)}
		}
	}

	return ret, nil
}
