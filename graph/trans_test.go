/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/graphstorage"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
newTestGraphManager creates a graph manager which works on memory storage.
*/
func newTestGraphManager(t *testing.T, opts Options) (*Manager, *wal.MemoryLog,
	*wal.MemoryCheckpointStore, *graphstorage.MemoryBlockStore) {

	log := wal.NewMemoryLog()
	cps := wal.NewMemoryCheckpointStore()
	bs := graphstorage.NewMemoryBlockStore("test")

	gm, err := NewGraphManager(log, cps, bs, opts)
	if err != nil {
		t.Fatal(err)
	}

	return gm, log, cps, bs
}

/*
createPeople creates the nodes Alice and Bob and an edge Alice KNOWS Bob.
*/
func createPeople(t *testing.T, gm *Manager) (uint64, uint64, uint64) {
	trans, err := NewGraphTrans(gm, DefaultIsolation)
	if err != nil {
		t.Fatal(err)
	}

	alice, err := trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Alice", "age": 42})
	if err != nil {
		t.Fatal(err)
	}

	bob, err := trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Bob", "age": 35})
	if err != nil {
		t.Fatal(err)
	}

	knows, err := trans.CreateEdge("KNOWS", alice, bob, map[string]interface{}{"since": 2010})
	if err != nil {
		t.Fatal(err)
	}

	if err := trans.Commit(); err != nil {
		t.Fatal(err)
	}

	return alice, bob, knows
}

func TestTransactionBasics(t *testing.T) {
	gm, log, _, _ := newTestGraphManager(t, DefaultOptions())

	trans, err := NewGraphTrans(gm, DefaultIsolation)
	if err != nil {
		t.Error(err)
		return
	}

	if !trans.IsEmpty() || trans.State() != TransActive {
		t.Error("Unexpected result:", trans.IsEmpty(), trans.State())
		return
	}

	id1, _ := trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Alice"})
	id2, _ := trans.CreateNode([]string{"Person", "Admin"}, map[string]interface{}{"name": "Bob"})

	if id1 != 1 || id2 != 2 {
		t.Error("Unexpected identifiers:", id1, id2)
		return
	}

	eid, err := trans.CreateEdge("KNOWS", id1, id2, nil)
	if err != nil || eid != 3 {
		t.Error("Unexpected result:", eid, err)
		return
	}

	if res := trans.String(); res != "Transaction 1 (RepeatableRead Active) - Nodes: I:2 R:0 - Edges: I:1 R:0" {
		t.Error("Unexpected result:", res)
		return
	}

	// Nothing is visible outside of the transaction before commit

	if _, err := gm.FetchNode(id1); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// Reads inside the transaction see its own writes

	if n, err := trans.FetchNode(id2); err != nil || fmt.Sprint(n.Labels) != "[Admin Person]" {
		t.Error("Unexpected result:", n, err)
		return
	}

	if it, _ := trans.NodeIDs("Person"); it.Count() != 2 {
		t.Error("Unexpected result:", it.Count())
		return
	}

	if edges, _ := trans.Traverse(id2, data.DirectionIn); len(edges) != 1 || edges[0].ID != eid {
		t.Error("Unexpected result:", edges)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if trans.State() != TransCommitted {
		t.Error("Unexpected state:", trans.State())
		return
	}

	// Identifier reservation, begin, 3 mutations and commit

	if res := log.LastLSN(); res != 6 || gm.LastLSN() != 6 {
		t.Error("Unexpected result:", res, gm.LastLSN())
		return
	}

	if gm.NodeCount() != 2 || gm.EdgeCount() != 1 {
		t.Error("Unexpected counts:", gm.NodeCount(), gm.EdgeCount())
		return
	}

	if res := fmt.Sprint(gm.Labels()); res != "[Admin Person]" {
		t.Error("Unexpected result:", res)
		return
	}

	// A finished transaction cannot be used anymore

	if _, err := trans.CreateNode(nil, nil); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := trans.Commit(); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if gm.ActiveTransactions() != 0 {
		t.Error("Unexpected active transactions:", gm.ActiveTransactions())
		return
	}
}

func TestTransactionErrors(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	if _, err := NewGraphTrans(gm, IsolationLevel(42)); !errors.Is(err, util.ErrUnknownIsolationLevel) {
		t.Error("Unexpected result:", err)
		return
	}

	trans, _ := NewGraphTrans(gm, ReadCommitted)

	if _, err := trans.CreateNode([]string{"Per son"}, nil); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := trans.CreateNode(nil, map[string]interface{}{"x": struct{}{}}); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	id, _ := trans.CreateNode(nil, nil)

	if _, err := trans.CreateEdge("KNOWS", id, 4242, nil); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := trans.CreateEdge("", id, id, nil); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := trans.DeleteNode(4242); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := trans.DeleteEdge(4242); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := trans.SetProperties(4242, nil); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// Deleting a node which was created in the same transaction leaves nothing

	if err := trans.DeleteNode(id); err != nil {
		t.Error(err)
		return
	}

	if !trans.IsEmpty() {
		t.Error("Transaction should be empty:", trans)
		return
	}

	trans.Rollback()

	if trans.State() != TransAborted {
		t.Error("Unexpected state:", trans.State())
		return
	}

	if _, err := trans.FetchNode(id); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestSetProperties(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, _, knows := createPeople(t, gm)

	trans, _ := NewGraphTrans(gm, DefaultIsolation)

	if err := trans.SetProperties(alice, map[string]interface{}{"age": nil, "city": "Berlin"}); err != nil {
		t.Error(err)
		return
	}

	if err := trans.SetProperties(knows, map[string]interface{}{"since": 2011}); err != nil {
		t.Error(err)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	n, _ := gm.FetchNode(alice)

	if res := fmt.Sprint(n.Props); res != "map[city:Berlin name:Alice]" {
		t.Error("Unexpected result:", res)
		return
	}

	e, _ := gm.FetchEdge(knows)

	if res := fmt.Sprint(e.Props); res != "map[since:2011]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestRepeatableRead(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, _, _ := createPeople(t, gm)

	t1, _ := NewGraphTrans(gm, RepeatableRead)
	rc, _ := NewGraphTrans(gm, ReadCommitted)

	n, _ := t1.FetchNode(alice)
	if n.Prop("name") != "Alice" {
		t.Error("Unexpected result:", n)
		return
	}

	// T2 changes the node and creates a new person

	t2, _ := NewGraphTrans(gm, DefaultIsolation)
	t2.SetProperties(alice, map[string]interface{}{"name": "Alicia"})
	carol, _ := t2.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Carol"})

	if err := t2.Commit(); err != nil {
		t.Error(err)
		return
	}

	// T1 still sees its snapshot

	n, _ = t1.FetchNode(alice)
	if n.Prop("name") != "Alice" {
		t.Error("Unexpected result:", n)
		return
	}

	if _, err := t1.FetchNode(carol); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// ReadCommitted sees the new state

	n, _ = rc.FetchNode(alice)
	if n.Prop("name") != "Alicia" {
		t.Error("Unexpected result:", n)
		return
	}

	if _, err := rc.FetchNode(carol); err != nil {
		t.Error(err)
		return
	}

	// A read-only transaction commits without conflict

	if err := t1.Commit(); err != nil {
		t.Error(err)
		return
	}

	rc.Rollback()
}

func TestWriteConflict(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, bob, _ := createPeople(t, gm)

	t1, _ := NewGraphTrans(gm, RepeatableRead)
	t2, _ := NewGraphTrans(gm, RepeatableRead)

	t1.SetProperties(alice, map[string]interface{}{"age": 43})
	t2.SetProperties(alice, map[string]interface{}{"age": 44})

	// Writes to different entities do not conflict

	t2.SetProperties(bob, map[string]interface{}{"age": 36})

	if err := t2.Commit(); err != nil {
		t.Error(err)
		return
	}

	err := t1.Commit()
	if !util.IsConflict(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if err.Error() != "GraphError: Transaction conflict (Entity 1 was changed by another transaction)" {
		t.Error("Unexpected result:", err)
		return
	}

	if t1.State() != TransAborted {
		t.Error("Unexpected state:", t1.State())
		return
	}

	if n, _ := gm.FetchNode(alice); fmt.Sprint(n.Prop("age")) != "44" {
		t.Error("Unexpected result:", n)
		return
	}

	// Retry from begin succeeds

	t3, _ := NewGraphTrans(gm, RepeatableRead)
	t3.SetProperties(alice, map[string]interface{}{"age": 43})

	if err := t3.Commit(); err != nil {
		t.Error(err)
		return
	}
}

func TestSerializableConflict(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, bob, _ := createPeople(t, gm)

	// T1 reads X, T2 writes X and commits, T1 commits

	t1, _ := NewGraphTrans(gm, Serializable)

	if _, err := t1.FetchNode(alice); err != nil {
		t.Error(err)
		return
	}

	t1.SetProperties(bob, map[string]interface{}{"friend": "Alice"})

	t2, _ := NewGraphTrans(gm, DefaultIsolation)
	t2.SetProperties(alice, map[string]interface{}{"age": 50})

	if err := t2.Commit(); err != nil {
		t.Error(err)
		return
	}

	if err := t1.Commit(); !util.IsConflict(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// The same schedule under RepeatableRead commits (write skew is possible)

	t1, _ = NewGraphTrans(gm, RepeatableRead)
	t1.FetchNode(alice)
	t1.SetProperties(bob, map[string]interface{}{"friend": "Alice"})

	t2, _ = NewGraphTrans(gm, DefaultIsolation)
	t2.SetProperties(alice, map[string]interface{}{"age": 51})
	t2.Commit()

	if err := t1.Commit(); err != nil {
		t.Error(err)
		return
	}
}

func TestSerializablePhantoms(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, _, _ := createPeople(t, gm)

	// A label scan conflicts with a new node of the same label

	t1, _ := NewGraphTrans(gm, Serializable)
	t1.NodeIDs("Person")
	t1.CreateNode([]string{"Report"}, map[string]interface{}{"persons": 2})

	t2, _ := NewGraphTrans(gm, DefaultIsolation)
	t2.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Carol"})
	t2.Commit()

	if err := t1.Commit(); !util.IsConflict(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// A new node with a different label does not conflict

	t1, _ = NewGraphTrans(gm, Serializable)
	t1.NodeIDs("Person")
	t1.CreateNode([]string{"Report"}, nil)

	t2, _ = NewGraphTrans(gm, DefaultIsolation)
	t2.CreateNode([]string{"Robot"}, nil)
	t2.Commit()

	if err := t1.Commit(); err != nil {
		t.Error(err)
		return
	}

	// A traversal conflicts with a new relationship of the node

	t1, _ = NewGraphTrans(gm, Serializable)
	t1.Traverse(alice, data.DirectionOut)
	t1.CreateNode([]string{"Report"}, nil)

	t2, _ = NewGraphTrans(gm, DefaultIsolation)
	robot, _ := t2.CreateNode([]string{"Robot"}, nil)
	t2.CreateEdge("OWNS", alice, robot, nil)
	t2.Commit()

	if err := t1.Commit(); !util.IsConflict(err) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestStructuralConflict(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, bob, _ := createPeople(t, gm)

	// T1 connects to Bob while T2 deletes Bob

	t1, _ := NewGraphTrans(gm, ReadCommitted)
	if _, err := t1.CreateEdge("LIKES", alice, bob, nil); err != nil {
		t.Error(err)
		return
	}

	t2, _ := NewGraphTrans(gm, ReadCommitted)
	if err := t2.DeleteNode(bob); err != nil {
		t.Error(err)
		return
	}

	if err := t2.Commit(); err != nil {
		t.Error(err)
		return
	}

	if err := t1.Commit(); !util.IsConflict(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// T3 deletes Alice while T4 gives her a new edge

	carol := func() uint64 {
		tr, _ := NewGraphTrans(gm, ReadCommitted)
		id, _ := tr.CreateNode([]string{"Person"}, nil)
		tr.Commit()
		return id
	}()

	t3, _ := NewGraphTrans(gm, ReadCommitted)
	t3.DeleteNode(alice)

	t4, _ := NewGraphTrans(gm, ReadCommitted)
	t4.CreateEdge("KNOWS", carol, alice, nil)

	if err := t4.Commit(); err != nil {
		t.Error(err)
		return
	}

	if err := t3.Commit(); !util.IsConflict(err) {
		t.Error("Unexpected result:", err)
		return
	}

	if gm.EdgeCount() != 1 || gm.NodeCount() != 2 {
		t.Error("Unexpected counts:", gm.NodeCount(), gm.EdgeCount())
		return
	}
}

func TestReadUncommitted(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, _, _ := createPeople(t, gm)

	ru, _ := NewGraphTrans(gm, ReadUncommitted)

	// Uncommitted writes of other transactions stay in their buffers

	t2, _ := NewGraphTrans(gm, DefaultIsolation)
	t2.SetProperties(alice, map[string]interface{}{"name": "Alicia"})

	if n, _ := ru.FetchNode(alice); n.Prop("name") != "Alice" {
		t.Error("Unexpected result:", n)
		return
	}

	t2.Commit()

	if n, _ := ru.FetchNode(alice); n.Prop("name") != "Alicia" {
		t.Error("Unexpected result:", n)
		return
	}

	ru.Rollback()
}

func TestTransactionTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.TransactionTimeout = 50 * time.Millisecond

	gm, _, _, _ := newTestGraphManager(t, opts)

	t1, _ := NewGraphTrans(gm, DefaultIsolation)
	t2, _ := NewGraphTrans(gm, DefaultIsolation)

	t1.CreateNode(nil, nil)

	time.Sleep(100 * time.Millisecond)

	if _, err := t2.CreateNode(nil, nil); !errors.Is(err, util.ErrTransactionTimeout) {
		t.Error("Unexpected result:", err)
		return
	}

	if res := gm.ReapTransactions(time.Now()); res != 1 {
		t.Error("Unexpected result:", res)
		return
	}

	if err := t1.Commit(); !errors.Is(err, util.ErrTransactionClosed) {
		t.Error("Unexpected result:", err)
		return
	}

	if gm.ActiveTransactions() != 0 || gm.NodeCount() != 0 {
		t.Error("Unexpected result:", gm.ActiveTransactions(), gm.NodeCount())
		return
	}
}

func TestRollingTrans(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	// Create a new rolling transaction which rolls over after 3 operations

	trans, err := NewRollingTrans(gm, DefaultIsolation, 3)
	if err != nil {
		t.Error(err)
		return
	}

	if !trans.IsEmpty() {
		t.Error("Unexpected result")
		return
	}

	id1, _ := trans.CreateNode([]string{"Item"}, map[string]interface{}{"n": 1})
	id2, _ := trans.CreateNode([]string{"Item"}, map[string]interface{}{"n": 2})

	if res := trans.String(); res != "Rolling transaction 1 - Nodes: I:2 R:0 - Edges: I:0 R:0 - Threshold: 3" {
		t.Error("Unexpected result:", res)
		return
	}

	// The third operation commits the current sub transaction

	if _, err := trans.CreateEdge("NEXT", id1, id2, nil); err != nil {
		t.Error(err)
		return
	}

	if gm.NodeCount() != 2 || gm.EdgeCount() != 1 {
		t.Error("Unexpected counts:", gm.NodeCount(), gm.EdgeCount())
		return
	}

	// The next sub transaction sees the committed changes

	if n, err := trans.FetchNode(id1); err != nil || n.Prop("n") != int64(1) {
		t.Error("Unexpected result:", n, err)
		return
	}

	if err := trans.DeleteNode(id2); err != nil {
		t.Error(err)
		return
	}

	if res := trans.String(); res != "Rolling transaction 2 - Nodes: I:2 R:1 - Edges: I:1 R:1 - Threshold: 3" {
		t.Error("Unexpected result:", res)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if gm.NodeCount() != 1 || gm.EdgeCount() != 0 {
		t.Error("Unexpected counts:", gm.NodeCount(), gm.EdgeCount())
		return
	}
}

func TestConcurrentCommits(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	var wg sync.WaitGroup

	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			for j := 0; j < 20; j++ {
				trans, _ := NewGraphTrans(gm, DefaultIsolation)
				trans.CreateNode([]string{"Item"}, map[string]interface{}{"worker": i, "n": j})

				if err := trans.Commit(); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
		return
	}

	if gm.NodeCount() != 200 {
		t.Error("Unexpected count:", gm.NodeCount())
		return
	}
}
