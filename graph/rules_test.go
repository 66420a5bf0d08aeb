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
	"testing"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/util"
)

type TestRule struct {
	handleError bool
	handled     bool
	events      []string
}

func (r *TestRule) Name() string {
	return "testrule"
}

func (r *TestRule) Handles() []data.EventKind {
	return []data.EventKind{data.EventNodeCreated, data.EventNodeUpdated, data.EventNodeDeleted,
		data.EventEdgeCreated, data.EventEdgeUpdated, data.EventEdgeDeleted}
}

func (r *TestRule) Handle(gm *Manager, trans Trans, event data.EventKind, ed ...interface{}) error {
	if r.handleError {
		return errors.New("Test error")
	}

	r.events = append(r.events, fmt.Sprintf("%v:%v", event, ed[0].(data.Entity).EntityID()))

	if r.handled {
		return ErrEventHandled
	}

	return nil
}

/*
StampRule sets a property on every created node of a given label.
*/
type StampRule struct {
}

func (r *StampRule) Name() string {
	return "stamp"
}

func (r *StampRule) Handles() []data.EventKind {
	return []data.EventKind{data.EventNodeCreated}
}

func (r *StampRule) Handle(gm *Manager, trans Trans, event data.EventKind, ed ...interface{}) error {
	node := ed[0].(*data.Node)

	if node.HasLabel("Person") {
		return trans.SetProperties(node.ID, map[string]interface{}{"stamped": true})
	}

	return nil
}

func TestGraphRules(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	rule := &TestRule{}

	gm.SetGraphRule(rule)
	gm.SetGraphRule(&StampRule{})

	if res := fmt.Sprint(gm.GraphRules()); res != "[stamp system.deletenodeedges testrule]" {
		t.Error("Unexpected result:", res)
		return
	}

	alice, bob, knows := createPeople(t, gm)

	if res := fmt.Sprint(rule.events); res != "[NodeUpdated:1 NodeCreated:1 NodeUpdated:2 NodeCreated:2 EdgeCreated:3]" {
		t.Error("Unexpected result:", res)
		return
	}

	n, _ := gm.FetchNode(alice)
	if n.Prop("stamped") != true {
		t.Error("Unexpected result:", n)
		return
	}

	rule.events = nil
	rule.handled = true

	trans, _ := NewGraphTrans(gm, DefaultIsolation)

	if err := trans.DeleteNode(bob); err != nil {
		t.Error(err)
		return
	}

	// Rules run in name order so the system rule removes the edge first

	if res := fmt.Sprint(rule.events); res != "[EdgeDeleted:3 NodeDeleted:2]" {
		t.Error("Unexpected result:", res)
		return
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if _, err := gm.FetchEdge(knows); !util.IsNotFound(err) {
		t.Error("Unexpected result:", err)
		return
	}

	// Rule errors are returned to the caller

	rule.handleError = true

	trans, _ = NewGraphTrans(gm, DefaultIsolation)

	_, err := trans.CreateNode([]string{"Robot"}, nil)

	if !errors.Is(err, util.ErrRule) || err.Error() != "GraphError: Graph rule error (Test error)" {
		t.Error("Unexpected result:", err)
		return
	}

	trans.Rollback()
}

func TestDeleteNodeCascade(t *testing.T) {
	gm, _, _, _ := newTestGraphManager(t, DefaultOptions())

	alice, bob, knows := createPeople(t, gm)

	trans, _ := NewGraphTrans(gm, DefaultIsolation)

	carol, _ := trans.CreateNode([]string{"Person"}, map[string]interface{}{"name": "Carol"})
	likes, _ := trans.CreateEdge("LIKES", carol, alice, nil)
	loop, _ := trans.CreateEdge("SELF", alice, alice, nil)

	if err := trans.DeleteNode(alice); err != nil {
		t.Error(err)
		return
	}

	// Edges which were created in the same transaction are gone as well

	for _, id := range []uint64{knows, likes, loop} {
		if _, err := trans.FetchEdge(id); !util.IsNotFound(err) {
			t.Error("Edge should be deleted:", id, err)
			return
		}
	}

	if err := trans.Commit(); err != nil {
		t.Error(err)
		return
	}

	if gm.NodeCount() != 2 || gm.EdgeCount() != 0 {
		t.Error("Unexpected counts:", gm.NodeCount(), gm.EdgeCount())
		return
	}

	if edges, err := gm.Traverse(bob, data.DirectionBoth); err != nil || len(edges) != 0 {
		t.Error("Unexpected result:", edges, err)
		return
	}
}
