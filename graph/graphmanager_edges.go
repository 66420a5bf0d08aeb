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
	"github.com/krotik/eliasgraph/graph/data"
)

/*
EdgeCount returns the number of live edges.
*/
func (gm *Manager) EdgeCount() int {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return gm.gs.live[1]
}

/*
FetchEdge fetches a single edge from the latest committed state.
*/
func (gm *Manager) FetchEdge(id uint64) (*data.Edge, error) {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	if e := gm.gs.edge(id, latestSnapshot); e != nil {
		return e, nil
	}

	return nil, notFound("Edge", id)
}

/*
Traverse returns all edges of a node in a given direction from the latest
committed state. The result can be restricted to a list of relationship
types. Edges are returned in identifier order.
*/
func (gm *Manager) Traverse(id uint64, dir data.Direction, etypes ...string) ([]*data.Edge, error) {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	if gm.gs.node(id, latestSnapshot) == nil {
		return nil, notFound("Node", id)
	}

	var ret []*data.Edge

	it := gm.gs.edgeIDs(id, dir).Iterator()
	for it.HasNext() {
		if e := gm.gs.edge(it.Next(), latestSnapshot); e != nil && matchesEdge(e, id, dir, etypes) {
			ret = append(ret, e)
		}
	}

	return ret, nil
}

/*
TraverseMulti returns all edges of a node together with the nodes on the
other side of each edge.
*/
func (gm *Manager) TraverseMulti(id uint64, dir data.Direction, etypes ...string) ([]*data.Node, []*data.Edge, error) {

	edges, err := gm.Traverse(id, dir, etypes...)
	if err != nil {
		return nil, nil, err
	}

	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	nodes := make([]*data.Node, 0, len(edges))
	visible := make([]*data.Edge, 0, len(edges))

	for _, e := range edges {

		// A concurrent commit may have removed the other end in between

		if n := gm.gs.node(e.Other(id), latestSnapshot); n != nil {
			nodes = append(nodes, n)
			visible = append(visible, e)
		}
	}

	return nodes, visible, nil
}
