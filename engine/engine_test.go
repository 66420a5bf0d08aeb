/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/krotik/eliasgraph/config"
	"github.com/krotik/eliasgraph/graph"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Engine {
	e, err := Open(DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestKnowsRelationship(t *testing.T) {
	e := openMemory(t)

	tx, err := e.BeginDefault()
	require.NoError(t, err)

	alice, err := e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"name": "Alice"})
	require.NoError(t, err)
	bob, err := e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"name": "Bob"})
	require.NoError(t, err)
	_, err = e.CreateEdge(tx, "KNOWS", alice, bob, nil)
	require.NoError(t, err)

	require.NoError(t, e.Commit(tx))
	assert.Equal(t, graph.TransCommitted, tx.State())

	cur, err := e.RunQuery("MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name, b.name", nil, budget.Strict)
	require.NoError(t, err)

	res, err := cur.All()
	require.NoError(t, err)

	assert.Equal(t, [][]interface{}{{"Alice", "Bob"}}, res.Rows)
	assert.False(t, res.Truncated)

	edges, err := e.Neighbours(nil, bob, data.DirectionIn, "KNOWS")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, alice, edges[0].From)

	n, err := e.GetNode(nil, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", n.Prop("name"))

	assert.Equal(t, 2, e.NodeCount())
	assert.Equal(t, 1, e.EdgeCount())
}

func TestSerializableConflict(t *testing.T) {
	e := openMemory(t)

	tx, err := e.BeginDefault()
	require.NoError(t, err)
	x, err := e.CreateNode(tx, []string{"Item"}, map[string]interface{}{"v": 1})
	require.NoError(t, err)
	y, err := e.CreateNode(tx, []string{"Item"}, map[string]interface{}{"v": 2})
	require.NoError(t, err)
	require.NoError(t, e.Commit(tx))

	t1, err := e.Begin(graph.Serializable)
	require.NoError(t, err)

	_, err = e.GetNode(t1, x)
	require.NoError(t, err)
	require.NoError(t, e.SetProperties(t1, y, map[string]interface{}{"seen": true}))

	t2, err := e.Begin(graph.ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, e.SetProperties(t2, x, map[string]interface{}{"v": 10}))
	require.NoError(t, e.Commit(t2))

	err = e.Commit(t1)
	assert.True(t, errors.Is(err, util.ErrConflict), err)
	assert.Equal(t, graph.TransAborted, t1.State())

	// The aborted transaction left no trace

	n, err := e.GetNode(nil, y)
	require.NoError(t, err)
	assert.Nil(t, n.Prop("seen"))

	// Deleting a missing node is a local error

	tx, err = e.BeginDefault()
	require.NoError(t, err)
	assert.True(t, util.IsNotFound(e.DeleteNode(tx, 999)))
	e.Rollback(tx)
}

func TestBudgetedIndexQuery(t *testing.T) {
	e := openMemory(t)

	h, err := e.CreateIndex(index.Spec{Name: "age", Kind: index.KindOrdered, Label: "Person",
		Properties: []string{"age"}})
	require.NoError(t, err)

	tx, err := e.BeginRolling(graph.ReadCommitted, 1000)
	require.NoError(t, err)

	for i := 0; i < 10000; i++ {
		_, err := e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"age": i % 100})
		require.NoError(t, err)
	}

	require.NoError(t, e.Commit(tx))
	require.NoError(t, e.Verify(h))

	cur, err := e.RunQuery("MATCH (p:Person) WHERE p.age > 30 AND p.age < 40 RETURN p",
		nil, budget.Spec{NodeVisits: 100})
	require.NoError(t, err)

	res, err := cur.All()
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, budget.NodeVisits, res.Exceeded.Kind)
	assert.Len(t, res.Rows, 100)
	assert.LessOrEqual(t, cur.Used(budget.NodeVisits), int64(101))

	plan, err := e.Explain("MATCH (p:Person) WHERE p.age > 30 AND p.age < 40 RETURN p")
	require.NoError(t, err)
	assert.Contains(t, plan, "ScanByIndex(p:Person age range (30, 40))")

	ids, err := e.Range(h, &index.Bound{Value: int64(98), Inclusive: true}, nil)
	require.NoError(t, err)
	assert.Len(t, ids, 200)

	ids, err = e.Lookup(h, int64(7))
	require.NoError(t, err)
	assert.Len(t, ids, 100)
}

func TestQueryInTransaction(t *testing.T) {
	e := openMemory(t)

	_, err := e.CreateIndex(index.Spec{Name: "bio", Kind: index.KindFullText, Label: "Person",
		Properties: []string{"bio"}})
	require.NoError(t, err)

	tx, err := e.BeginDefault()
	require.NoError(t, err)

	_, err = e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"name": "Eve", "bio": "graph hacker"})
	require.NoError(t, err)

	// Own writes are visible inside the transaction only

	cur, err := e.RunQueryIn(tx, "MATCH (p:Person) RETURN count(*) AS c", nil, budget.Unlimited)
	require.NoError(t, err)
	res, err := cur.All()
	require.NoError(t, err)
	assert.Equal(t, "[[1]]", fmt.Sprint(res.Rows))

	res, err = e.Query("MATCH (p:Person) RETURN count(*) AS c", nil)
	require.NoError(t, err)
	assert.Equal(t, "[[0]]", fmt.Sprint(res.Rows))

	require.NoError(t, e.Commit(tx))

	res, err = e.Query("MATCH (p:Person) WHERE search(p.bio, $q) RETURN p.name", map[string]interface{}{"q": "Hacker"})
	require.NoError(t, err)
	assert.Equal(t, "[[Eve]]", fmt.Sprint(res.Rows))

	specs := e.Indexes()
	require.Len(t, specs, 1)

	hits, err := e.Search(index.Handle(specs[0].Name), "bio", "hacker")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	ids, err := e.Phrase(index.Handle(specs[0].Name), "bio", "graph hacker")
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	require.NoError(t, e.Rebuild(index.Handle(specs[0].Name)))
	require.NoError(t, e.DropIndex(index.Handle(specs[0].Name)))
	assert.Len(t, e.Indexes(), 0)
}

func TestDiskEngine(t *testing.T) {
	dir := t.TempDir()

	config.LoadDefaultConfig()
	config.Config[config.LocationDatastore] = dir
	config.Config[config.CheckpointInterval] = 0
	config.Config[config.BudgetPresets] = map[string]interface{}{
		"tiny": map[string]interface{}{"rows": 1},
	}

	opts, err := OptionsFromConfig()
	require.NoError(t, err)
	assert.False(t, opts.MemoryOnly)
	assert.Equal(t, graph.RepeatableRead, opts.DefaultIsolation)

	e, err := Open(opts)
	require.NoError(t, err)

	_, err = e.CreateIndex(index.Spec{Name: "name", Kind: index.KindOrdered, Label: "Person",
		Properties: []string{"name"}})
	require.NoError(t, err)

	tx, err := e.BeginDefault()
	require.NoError(t, err)
	alice, err := e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"name": "Alice"})
	require.NoError(t, err)
	require.NoError(t, e.Commit(tx))

	_, err = e.Checkpoint()
	require.NoError(t, err)

	tx, err = e.BeginDefault()
	require.NoError(t, err)
	bob, err := e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"name": "Bob"})
	require.NoError(t, err)
	_, err = e.CreateEdge(tx, "KNOWS", alice, bob, nil)
	require.NoError(t, err)
	require.NoError(t, e.Commit(tx))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	// Recovery loads the checkpoint and replays the log

	e, err = Open(opts)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 2, e.NodeCount())
	assert.Equal(t, 1, e.EdgeCount())
	require.Len(t, e.Indexes(), 1)

	ids, err := e.Lookup(index.Handle("name"), "Bob")
	require.NoError(t, err)
	assert.Equal(t, []uint64{bob}, ids)

	tiny, err := budget.Preset("tiny")
	require.NoError(t, err)

	cur, err := e.RunQuery("MATCH (p:Person) RETURN p.name ORDER BY p.name", nil, tiny)
	require.NoError(t, err)
	res, err := cur.All()
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, "[[Alice]]", fmt.Sprint(res.Rows))
}

func TestTransactionReaper(t *testing.T) {
	opts := DefaultOptions()
	opts.TransactionTimeout = 20 * time.Millisecond
	opts.ReaperInterval = 5 * time.Millisecond

	e, err := Open(opts)
	require.NoError(t, err)
	defer e.Close()

	tx, err := e.BeginDefault()
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return tx.State() == graph.TransAborted
	}, time.Second, 5*time.Millisecond)

	_, err = e.CreateNode(tx, []string{"Person"}, nil)
	assert.True(t, errors.Is(err, util.ErrTransactionClosed), err)

	_, err = Open(Options{MemoryOnly: true, DefaultBudget: "unknown"})
	assert.Error(t, err)
}
