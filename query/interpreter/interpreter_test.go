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
	"testing"

	"github.com/krotik/eliasgraph/graph"
	"github.com/krotik/eliasgraph/graph/graphstorage"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/krotik/eliasgraph/query/parser"
	"github.com/krotik/eliasgraph/query/plan"
	"github.com/krotik/eliasgraph/storage/wal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
newTestGraph creates a memory graph with a few people.
*/
func newTestGraph(t *testing.T) *graph.Manager {
	gm, err := graph.NewGraphManager(wal.NewMemoryLog(), wal.NewMemoryCheckpointStore(),
		graphstorage.NewMemoryBlockStore("test"), graph.DefaultOptions())
	require.NoError(t, err)

	trans, err := graph.NewGraphTrans(gm, graph.DefaultIsolation)
	require.NoError(t, err)

	people := []map[string]interface{}{
		{"name": "Alice", "age": 42, "city": "Berlin"},
		{"name": "Bob", "age": 35, "city": "Paris"},
		{"name": "Carol", "age": "unknown", "city": "Berlin"},
		{"name": "Dave", "city": "Paris", "tags": []interface{}{"graph", "storage"}},
	}

	var ids []uint64
	for _, p := range people {
		id, err := trans.CreateNode([]string{"Person"}, p)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	_, err = trans.CreateNode([]string{"City"}, map[string]interface{}{"name": "Berlin"})
	require.NoError(t, err)

	for _, e := range [][2]int{{0, 1}, {0, 2}, {1, 2}, {2, 3}} {
		_, err := trans.CreateEdge("KNOWS", ids[e[0]], ids[e[1]], map[string]interface{}{"weight": e[0] + e[1]})
		require.NoError(t, err)
	}

	require.NoError(t, trans.Commit())

	return gm
}

/*
testResult holds the result of a test query.
*/
type testResult struct {
	rows    [][]interface{}
	err     error
	skipped int64
	budget  *budget.Manager
}

/*
runQuery compiles and runs a query and collects all rows.
*/
func runQuery(t *testing.T, r graph.Reader, query string, params map[string]interface{},
	spec budget.Spec) *testResult {

	t.Helper()

	ast, err := parser.Parse("test", query)
	require.NoError(t, err)
	require.NoError(t, parser.ValidateAST("test", ast))

	p, err := plan.New(ast, r.IndexSpecs())
	require.NoError(t, err)

	bm := budget.NewManager(spec)
	rt := NewRuntime("test", r, params, bm)

	it, err := rt.Build(p)
	require.NoError(t, err)

	res := &testResult{budget: bm}

	for {
		row, err := it.Next()
		if err != nil {
			res.err = err
			break
		}
		if row == nil {
			break
		}
		res.rows = append(res.rows, row.Values)
	}

	res.skipped = rt.Skipped()

	return res
}

func TestMatchAndReturn(t *testing.T) {
	gm := newTestGraph(t)

	res := runQuery(t, gm, "MATCH (a:Person)-[:KNOWS]->(b:Person) WHERE a.name = 'Alice' RETURN a.name, b.name",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice Bob] [Alice Carol]]", fmt.Sprint(res.rows))

	// Undirected patterns match both directions

	res = runQuery(t, gm, "MATCH (a {name: $n})-[r]-(b) RETURN b.name, r.weight ORDER BY b.name",
		map[string]interface{}{"n": "Bob"}, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice 1] [Carol 3]]", fmt.Sprint(res.rows))

	// Relationships are not used twice in one pattern

	res = runQuery(t, gm, "MATCH (a:Person)-[r1]->(b)<-[r2]-(c) RETURN a.name, b.name, c.name ORDER BY a.name, c.name",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice Carol Bob] [Bob Carol Alice]]", fmt.Sprint(res.rows))

	// Already bound nodes are checked and not scanned again

	res = runQuery(t, gm, "MATCH (a:Person)-->(b), (a)-->(c)-->(b) RETURN a.name, c.name",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice Bob]]", fmt.Sprint(res.rows))

	// Expressions without MATCH

	res = runQuery(t, gm, "RETURN 1 + 2 AS a, 7 / 2 AS b, 7.0 / 2 AS c, 'x' + 'y' AS d, [1] + 2 AS e, -(3 % 2) AS f",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[3 3 3.5 xy [1 2] -1]]", fmt.Sprint(res.rows))
}

func TestPredicates(t *testing.T) {
	gm := newTestGraph(t)

	testPredicate := func(where string, expected string) {
		t.Helper()

		res := runQuery(t, gm, "MATCH (p:Person) WHERE "+where+" RETURN p.name", nil, budget.Unlimited)
		require.NoError(t, res.err)
		assert.Equal(t, expected, fmt.Sprint(res.rows), where)
	}

	testPredicate("p.city = 'Berlin' AND p.name STARTS WITH 'A'", "[[Alice]]")
	testPredicate("p.name IN ['Bob', 'Dave'] XOR p.city = 'Paris'", "[]")
	testPredicate("NOT p.name ENDS WITH 'e' OR p.name CONTAINS 'ar'", "[[Bob] [Carol]]")
	testPredicate("p.age IS NULL", "[[Dave]]")
	testPredicate("p.age IS NOT NULL AND p.age = 42", "[[Alice]]")
	testPredicate("p:Person:City", "[]")
	testPredicate("search(p.tags, 'Storage')", "[[Dave]]")
	testPredicate("size(p.name) = 4 AND toLower(p.name) = 'dave'", "[[Dave]]")
	testPredicate("coalesce(p.age, 0) = 0 AND abs(-1) = 1", "[[Dave]]")
	testPredicate("toString(id(p)) = toString(id(p)) AND 'Person' IN labels(p) AND p.name = toUpper('bob') ", "[]")
}

func TestSkippedRows(t *testing.T) {
	gm := newTestGraph(t)

	// Carol has a string age which cannot be compared with a number

	res := runQuery(t, gm, "MATCH (p:Person) WHERE p.age > 30 RETURN p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice] [Bob]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.skipped)

	// Arithmetic errors skip the row as well

	res = runQuery(t, gm, "MATCH (p:Person) RETURN p.name, p.age * 2", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice 84] [Bob 70] [Dave <nil>]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.skipped)

	res = runQuery(t, gm, "MATCH (p:Person) RETURN p.name, 1 / (p.age - 42)", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Bob 0] [Dave <nil>]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(2), res.skipped)

	// A skipped row does not start a group of its own

	res = runQuery(t, gm, "MATCH (p:Person) RETURN p.name, sum(p.age), count(*)", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice 42 1] [Bob 35 1] [Dave 0 1]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.skipped)

	res = runQuery(t, gm, "MATCH (p:Person) RETURN p.city, max(p.age)", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Berlin 42] [Paris 35]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.skipped)

	// A missing parameter skips every row

	res = runQuery(t, gm, "MATCH (p:Person) WHERE p.name = $name RETURN p", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Len(t, res.rows, 0)
	assert.Equal(t, int64(4), res.skipped)

	// Invalid row counts stop the query

	res = runQuery(t, gm, "MATCH (p:Person) RETURN p LIMIT $l", map[string]interface{}{"l": "x"}, budget.Unlimited)

	var rerr *RuntimeError
	require.True(t, errors.As(res.err, &rerr))
	assert.Equal(t, ErrInvalidCount, rerr.Type)
	assert.Contains(t, rerr.Error(), "Query error in test: Invalid row count ($l must be a non-negative integer not x)")
}

func TestAggregation(t *testing.T) {
	gm := newTestGraph(t)

	res := runQuery(t, gm, "MATCH (p:Person) RETURN p.city AS city, count(*) AS c, collect(p.name) AS names ORDER BY city",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Berlin 2 [Alice Carol]] [Paris 2 [Bob Dave]]]", fmt.Sprint(res.rows))

	res = runQuery(t, gm, "MATCH (a:Person)-[r:KNOWS]->(b) RETURN count(DISTINCT a) AS people, sum(r.weight) AS s, "+
		"avg(r.weight) AS avg, min(b.name) AS mi, max(b.name) AS ma, count(b.age) + 1 AS c",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[3 11 2.75 Bob Dave 4]]", fmt.Sprint(res.rows))

	// Aggregation of an empty input without keys produces one row

	res = runQuery(t, gm, "MATCH (p:Nobody) RETURN count(*), sum(p.age), avg(p.age), collect(p)", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[0 0 <nil> []]]", fmt.Sprint(res.rows))

	res = runQuery(t, gm, "MATCH (p:Nobody) RETURN p.name, count(*)", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Len(t, res.rows, 0)

	// Rows with values which cannot be aggregated are skipped

	res = runQuery(t, gm, "MATCH (p:Person) RETURN sum(p.age) AS s", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[77]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.skipped)
}

func TestDistinctOrderSkipLimit(t *testing.T) {
	gm := newTestGraph(t)

	res := runQuery(t, gm, "MATCH (p:Person) RETURN DISTINCT p.city AS city ORDER BY city DESC", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Paris] [Berlin]]", fmt.Sprint(res.rows))

	// Nulls sort last in ascending order

	res = runQuery(t, gm, "MATCH (p:Person) WHERE p.name <> 'Carol' RETURN p.name ORDER BY p.age SKIP 1 LIMIT 2",
		nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice] [Dave]]", fmt.Sprint(res.rows))

	res = runQuery(t, gm, "MATCH (p:Person) RETURN p.name LIMIT $l", map[string]interface{}{"l": int64(0)}, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Len(t, res.rows, 0)
	assert.Equal(t, int64(0), res.budget.Used(budget.NodeVisits))
}

func TestBudget(t *testing.T) {
	gm := newTestGraph(t)

	res := runQuery(t, gm, "MATCH (a:Person)-->(b) RETURN a.name, b.name", nil,
		budget.Spec{NodeVisits: 3})

	var exceeded *budget.ExceededError
	require.True(t, errors.As(res.err, &exceeded))
	assert.Equal(t, budget.NodeVisits, exceeded.Kind)

	// Scan Alice (1), expand to Bob (2) and Carol (3), scan Bob (4) fails

	assert.Equal(t, "[[Alice Bob] [Alice Carol]]", fmt.Sprint(res.rows))

	res = runQuery(t, gm, "MATCH (a:Person)-->(b) RETURN a.name, b.name", nil,
		budget.Spec{EdgeVisits: 1})

	require.True(t, errors.As(res.err, &exceeded))
	assert.Equal(t, budget.EdgeVisits, exceeded.Kind)
	assert.Equal(t, "[[Alice Bob]]", fmt.Sprint(res.rows))

	// Materializing operators do not produce rows after the budget was exceeded

	res = runQuery(t, gm, "MATCH (a:Person) RETURN count(*)", nil, budget.Spec{NodeVisits: 2})

	require.True(t, errors.As(res.err, &exceeded))
	assert.Len(t, res.rows, 0)
}

func TestIndexScan(t *testing.T) {
	gm := newTestGraph(t)

	_, err := gm.CreateIndex(index.Spec{Name: "age", Kind: index.KindOrdered, Label: "Person",
		Properties: []string{"age"}})
	require.NoError(t, err)

	_, err = gm.CreateIndex(index.Spec{Name: "tags", Kind: index.KindFullText, Label: "Person",
		Properties: []string{"tags"}})
	require.NoError(t, err)

	res := runQuery(t, gm, "MATCH (p:Person) WHERE p.age >= 35 AND p.age < 42 RETURN p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Bob]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.budget.Used(budget.NodeVisits))

	// A range never returns values of another type so nothing is skipped

	res = runQuery(t, gm, "MATCH (p:Person) WHERE p.age > 5 RETURN p.name ORDER BY p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice] [Bob]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(0), res.skipped)

	res = runQuery(t, gm, "MATCH (p:Person {age: $a}) RETURN p.name", map[string]interface{}{"a": int64(42)}, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.budget.Used(budget.NodeVisits))

	res = runQuery(t, gm, "MATCH (p:Person) WHERE search(p.tags, 'graph') RETURN p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Dave]]", fmt.Sprint(res.rows))

	// A null key matches nothing

	res = runQuery(t, gm, "MATCH (p:Person {age: null}) RETURN p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Len(t, res.rows, 0)

	// A transaction with pending writes cannot use the index and scans the label

	trans, err := graph.NewGraphTrans(gm, graph.RepeatableRead)
	require.NoError(t, err)
	defer trans.Rollback()

	_, err = trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Eve", "age": 36})
	require.NoError(t, err)

	res = runQuery(t, trans, "MATCH (p:Person) WHERE p.age >= 35 AND p.age < 42 RETURN p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Bob] [Eve]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(5), res.budget.Used(budget.NodeVisits))

	// The label scan evaluates the comparison on every node and skips the
	// node with a string value

	res = runQuery(t, trans, "MATCH (p:Person) WHERE p.age > 5 RETURN p.name ORDER BY p.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice] [Bob] [Eve]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(1), res.skipped)
}

func TestRelTypeScan(t *testing.T) {
	gm := newTestGraph(t)

	_, err := gm.CreateIndex(index.Spec{Name: "types", Kind: index.KindRelType})
	require.NoError(t, err)

	query := "MATCH (a)-[r:KNOWS]->(b) WHERE r.weight > 1 RETURN a.name, b.name ORDER BY a.name, b.name"

	ast, err := parser.Parse("test", query)
	require.NoError(t, err)

	p, err := plan.New(ast, gm.IndexSpecs())
	require.NoError(t, err)
	assert.Contains(t, p.String(), "ScanByRelType((a)-[r:KNOWS]->(b) types)")

	res := runQuery(t, gm, query, nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice Carol] [Bob Carol] [Carol Dave]]", fmt.Sprint(res.rows))
	assert.Equal(t, int64(4), res.budget.Used(budget.EdgeVisits))
	assert.Equal(t, int64(8), res.budget.Used(budget.NodeVisits))

	// Incoming relationships swap the end nodes

	res = runQuery(t, gm, "MATCH (a)<-[:KNOWS]-(b:Person {name: 'Alice'}) RETURN a.name ORDER BY a.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Bob] [Carol]]", fmt.Sprint(res.rows))

	// The rest of the pattern is expanded from the end node

	res = runQuery(t, gm, "MATCH (a)-[:KNOWS]->(b)-[:KNOWS]->(c) RETURN a.name, c.name ORDER BY a.name, c.name", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice Carol] [Alice Dave] [Bob Dave]]", fmt.Sprint(res.rows))

	// Unknown types do not visit any node

	res = runQuery(t, gm, "MATCH (a)-[:LIKES]->(b) RETURN a", nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Len(t, res.rows, 0)
	assert.Equal(t, int64(0), res.budget.Used(budget.NodeVisits))

	// A transaction with pending writes cannot use the index and expands all nodes

	trans, err := graph.NewGraphTrans(gm, graph.RepeatableRead)
	require.NoError(t, err)
	defer trans.Rollback()

	eve, err := trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Eve"})
	require.NoError(t, err)
	frank, err := trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Frank"})
	require.NoError(t, err)
	_, err = trans.CreateEdge("KNOWS", eve, frank, map[string]interface{}{"weight": 9})
	require.NoError(t, err)

	res = runQuery(t, trans, query, nil, budget.Unlimited)

	require.NoError(t, res.err)
	assert.Equal(t, "[[Alice Carol] [Bob Carol] [Carol Dave] [Eve Frank]]", fmt.Sprint(res.rows))
	assert.Greater(t, res.budget.Used(budget.NodeVisits), int64(8))
}
