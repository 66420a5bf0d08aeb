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
	"testing"

	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/query/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpecs = []*index.Spec{
	{Name: "person_age", Kind: index.KindOrdered, Target: index.TargetNodes, Label: "Person", Properties: []string{"age"}},
	{Name: "person_name", Kind: index.KindOrdered, Target: index.TargetNodes, Label: "Person", Properties: []string{"name"}},
	{Name: "person_full", Kind: index.KindComposite, Target: index.TargetNodes, Label: "Person", Properties: []string{"first", "last"}},
	{Name: "doc_text", Kind: index.KindFullText, Target: index.TargetNodes, Label: "Doc", Properties: []string{"text"}},
	{Name: "rel_types", Kind: index.KindRelType, Target: index.TargetEdges},
}

func compile(t *testing.T, query string) *Plan {
	t.Helper()

	ast, err := parser.Parse("test", query)
	require.NoError(t, err)
	require.NoError(t, parser.ValidateAST("test", ast))

	p, err := New(ast, testSpecs)
	require.NoError(t, err)

	return p
}

func TestLabelScan(t *testing.T) {
	p := compile(t, "MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name, b.name")

	assert.Equal(t, `Project(a.name, b.name)
  Filter(b:Person)
    Expand((a)-[:KNOWS]->(b))
      ScanByLabel(a:Person)
`, p.String())

	assert.Equal(t, []string{"a.name", "b.name"}, p.Columns)

	p = compile(t, "MATCH (a)<-[r]-(b), (b)-[s]-(a) RETURN count(*) AS c")

	assert.Equal(t, `Aggregate(keys: ; aggregates: count(*) AS c)
  Expand into((b)-[s]-(a))
    Expand((a)<-[r]-(b))
      ScanByLabel(a)
`, p.String())

	expand := p.Root.Source().(*Expand)
	assert.True(t, expand.Into)
	assert.Equal(t, []string{"r"}, expand.Distinct)
}

func TestIndexScan(t *testing.T) {

	// Range conditions on an ordered index

	p := compile(t, "MATCH (a:Person) WHERE a.age > 30 AND a.age < 40 RETURN a.name")

	assert.Equal(t, `Project(a.name)
  Filter(a.age > 30 AND a.age < 40)
    ScanByIndex(a:Person person_age range (30, 40))
`, p.String())

	// Flipped comparisons are normalized

	p = compile(t, "MATCH (a:Person) WHERE 30 <= a.age RETURN a")

	assert.Equal(t, `Project(a)
  Filter(30 <= a.age)
    ScanByIndex(a:Person person_age range [30, +inf))
`, p.String())

	// Equality is preferred over ranges

	p = compile(t, "MATCH (a:Person {name: $name}) WHERE a.age > 30 RETURN a")

	scan := p.Root.Source().Source().(*ScanByIndex)
	assert.Equal(t, "person_name", scan.Spec.Name)
	assert.Equal(t, "ScanByIndex(a:Person person_name lookup $name)", scan.String())
	assert.Equal(t, []string{"name"}, p.Params)

	// Composite indexes need all properties

	p = compile(t, "MATCH (a:Person) WHERE a.first = 'x' AND a.last = 'y' AND a.name = 'z' RETURN a")
	assert.Equal(t, "ScanByIndex(a:Person person_full lookup 'x', 'y')", p.Root.Source().Source().String())

	p = compile(t, "MATCH (a:Person) WHERE a.first = 'x' RETURN a")
	assert.Equal(t, "ScanByLabel(a:Person)", p.Root.Source().Source().String())

	// Full-text search

	p = compile(t, "MATCH (d:Doc) WHERE search(d.text, 'graph storage') RETURN d")
	assert.Equal(t, "ScanByIndex(d:Doc doc_text search text for 'graph storage')", p.Root.Source().Source().String())

	// Conditions which depend on the scanned node itself cannot use an index

	p = compile(t, "MATCH (a:Person) WHERE a.age = a.other RETURN a")
	assert.Equal(t, "ScanByLabel(a:Person)", p.Root.Source().Source().String())

	// Conditions on later variables are evaluated after the expansion

	p = compile(t, "MATCH (a:Person)-->(b:Person) WHERE b.age = a.age RETURN b")

	assert.Equal(t, `Project(b)
  Filter(b.age = a.age AND b:Person)
    Expand((a)-[]->(b))
      ScanByLabel(a:Person)
`, p.String())

	// Disjunctions are not used for index scans

	p = compile(t, "MATCH (a:Person) WHERE a.age = 1 OR a.age = 2 RETURN a")
	assert.Equal(t, "ScanByLabel(a:Person)", p.Root.Source().Source().String())
}

func TestRelTypeScan(t *testing.T) {
	p := compile(t, "MATCH (a)-[r:KNOWS|LIKES]->(b:Person) WHERE r.since > 2000 RETURN a, b")

	assert.Equal(t, `Project(a, b)
  Filter(r.since > 2000 AND b:Person)
    ScanByRelType((a)-[r:KNOWS|LIKES]->(b) rel_types)
`, p.String())

	scan := p.Root.Source().Source().(*ScanByRelType)
	assert.Equal(t, []string{"KNOWS", "LIKES"}, scan.Types)
	assert.Equal(t, "rel_types", scan.Spec.Name)

	// The rest of the pattern is expanded from the end node

	p = compile(t, "MATCH (a)<-[:KNOWS]-(b)-[:LIKES]->(c) RETURN c")

	assert.Equal(t, `Project(c)
  Expand((b)-[:LIKES]->(c))
    ScanByRelType((a)<-[:KNOWS]-(b) rel_types)
`, p.String())

	assert.Len(t, p.Root.Source().(*Expand).Distinct, 1)

	// Later patterns are scanned for every input row

	p = compile(t, "MATCH (x:Doc), (a)-[:KNOWS]->(b) RETURN a")

	assert.Equal(t, `Project(a)
  ScanByRelType((a)-[:KNOWS]->(b) rel_types)
    ScanByLabel(x:Doc)
`, p.String())

	// Labelled, bound or undirected start nodes and untyped relationships
	// are expanded

	for _, query := range []string{
		"MATCH (a:Person)-[:KNOWS]->(b) RETURN a",
		"MATCH (a)-[:KNOWS]-(b) RETURN a",
		"MATCH (a)-->(b) RETURN a",
		"MATCH (a)-[:KNOWS]->(a) RETURN a",
		"MATCH (a:Doc), (a)-[:KNOWS]->(b) RETURN a",
	} {
		p = compile(t, query)

		var ops []string
		for op := p.Root; op != nil; op = op.Source() {
			ops = append(ops, op.String())
		}

		assert.NotContains(t, fmt.Sprint(ops), "ScanByRelType", query)
	}

	// An index on the start node is preferred

	ast, err := parser.Parse("test", "MATCH (a {name: 'x'})-[:KNOWS]->(b) RETURN b")
	require.NoError(t, err)

	p, err = New(ast, append([]*index.Spec{{Name: "any_name", Kind: index.KindOrdered,
		Target: index.TargetNodes, Properties: []string{"name"}}}, testSpecs...))
	require.NoError(t, err)

	assert.Equal(t, `Project(b)
  Expand((a)-[:KNOWS]->(b))
    Filter(a.name = 'x')
      ScanByIndex(a any_name lookup 'x')
`, p.String())

	// Without a relationship type index the start node is scanned

	p, err = New(ast, testSpecs[:4])
	require.NoError(t, err)

	assert.Equal(t, `Project(b)
  Expand((a)-[:KNOWS]->(b))
    Filter(a.name = 'x')
      ScanByLabel(a)
`, p.String())
}

func TestProjection(t *testing.T) {
	p := compile(t, "MATCH (a:Person)-[r]->(b) RETURN DISTINCT * ORDER BY a.name DESC SKIP 1 LIMIT $l")

	assert.Equal(t, `Limit($l)
  Skip(1)
    OrderBy(a.name DESC)
      Project(DISTINCT a, b, r)
        Expand((a)-[r]->(b))
          ScanByLabel(a:Person)
`, p.String())

	assert.Equal(t, []string{"a", "b", "r"}, p.Columns)

	p = compile(t, "MATCH (a:Person) RETURN a.city AS city, count(*) AS c ORDER BY count(*) DESC, a.city")

	assert.Equal(t, `OrderBy(c DESC, city)
  Aggregate(keys: a.city AS city; aggregates: count(*) AS c)
    ScanByLabel(a:Person)
`, p.String())

	agg := p.Root.Source().(*Aggregate)
	assert.Equal(t, []int{0}, agg.Keys)

	p = compile(t, "RETURN 1 + 2 AS three")

	assert.Equal(t, `Project(1 + 2 AS three)
  Argument
`, p.String())

	_, err := New(nil, nil)
	assert.Error(t, err)
}
