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
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
nodeVersion is a single version of a node.
*/
type nodeVersion struct {
	lsn     uint64     // LSN of the commit which wrote this version
	node    *data.Node // Node data (the last state for deleted nodes)
	deleted bool       // Flag if the node was deleted by this version
}

/*
edgeVersion is a single version of an edge.
*/
type edgeVersion struct {
	lsn     uint64     // LSN of the commit which wrote this version
	edge    *data.Edge // Edge data (the last state for deleted edges)
	deleted bool       // Flag if the edge was deleted by this version
}

/*
store is the multi-version graph store. None of the functions of the store
take the store mutex; the caller must hold it (read lock for reads and write
lock for changes).
*/
type store struct {
	nodes    map[uint64][]*nodeVersion    // Version chains of nodes (oldest first)
	edges    map[uint64][]*edgeVersion    // Version chains of edges (oldest first)
	allNodes *roaring64.Bitmap            // Identifiers of all node chains
	allEdges *roaring64.Bitmap            // Identifiers of all edge chains
	labels   map[string]*roaring64.Bitmap // Label to node chains
	out      map[uint64]*roaring64.Bitmap // Node to outgoing edge chains
	in       map[uint64]*roaring64.Bitmap // Node to incoming edge chains
	labelLSN map[string]uint64            // Last commit which added or removed a node with a label
	adjLSN   map[uint64]uint64            // Last commit which added or removed an edge of a node
	gcNodes  map[uint64]struct{}          // Node chains with collectable versions
	gcEdges  map[uint64]struct{}          // Edge chains with collectable versions
	live     [2]int                       // Number of live nodes and edges
	lastLSN  uint64                       // LSN of the last applied commit
	hooks    []func(*data.Change)         // Hooks which are called for every change
	mutex    *sync.RWMutex                // Mutex to protect the store
}

/*
newStore creates a new empty graph store.
*/
func newStore() *store {
	return &store{make(map[uint64][]*nodeVersion), make(map[uint64][]*edgeVersion),
		roaring64.New(), roaring64.New(), make(map[string]*roaring64.Bitmap),
		make(map[uint64]*roaring64.Bitmap), make(map[uint64]*roaring64.Bitmap),
		make(map[string]uint64), make(map[uint64]uint64),
		make(map[uint64]struct{}), make(map[uint64]struct{}), [2]int{}, 0, nil,
		&sync.RWMutex{}}
}

/*
addHook adds a hook which is called for every applied change.
*/
func (s *store) addHook(hook func(*data.Change)) {
	s.hooks = append(s.hooks, hook)
}

// Reads
// =====

/*
node returns the version of a node which is visible at a given snapshot.
*/
func (s *store) node(id uint64, snapshot uint64) *data.Node {
	chain := s.nodes[id]

	for i := len(chain) - 1; i >= 0; i-- {
		if v := chain[i]; v.lsn <= snapshot {
			if v.deleted {
				return nil
			}
			return v.node
		}
	}

	return nil
}

/*
edge returns the version of an edge which is visible at a given snapshot.
*/
func (s *store) edge(id uint64, snapshot uint64) *data.Edge {
	chain := s.edges[id]

	for i := len(chain) - 1; i >= 0; i-- {
		if v := chain[i]; v.lsn <= snapshot {
			if v.deleted {
				return nil
			}
			return v.edge
		}
	}

	return nil
}

/*
version returns the LSN of the latest version of a node or an edge. Returns 0
if the entity is unknown.
*/
func (s *store) version(id uint64) uint64 {
	if chain, ok := s.nodes[id]; ok {
		return chain[len(chain)-1].lsn
	}
	if chain, ok := s.edges[id]; ok {
		return chain[len(chain)-1].lsn
	}
	return 0
}

/*
versionAt returns the LSN of the version of a node or an edge which is
visible at a given snapshot. Returns 0 if no version is visible.
*/
func (s *store) versionAt(id uint64, snapshot uint64) uint64 {
	var lsns []uint64

	if chain, ok := s.nodes[id]; ok {
		for _, v := range chain {
			lsns = append(lsns, v.lsn)
		}
	} else if chain, ok := s.edges[id]; ok {
		for _, v := range chain {
			lsns = append(lsns, v.lsn)
		}
	}

	for i := len(lsns) - 1; i >= 0; i-- {
		if lsns[i] <= snapshot {
			return lsns[i]
		}
	}

	return 0
}

/*
isNode checks if an identifier belongs to a known node.
*/
func (s *store) isNode(id uint64) bool {
	_, ok := s.nodes[id]
	return ok
}

/*
nodeIDs returns the identifiers of all node chains with a given label. An
empty label returns all node chains. The result may contain nodes which are
not visible to a particular reader.
*/
func (s *store) nodeIDs(label string) *roaring64.Bitmap {
	if label == "" {
		return s.allNodes.Clone()
	}
	if bm, ok := s.labels[label]; ok {
		return bm.Clone()
	}
	return roaring64.New()
}

/*
edgeIDs returns the identifiers of all edge chains of a node in a given
direction.
*/
func (s *store) edgeIDs(node uint64, dir data.Direction) *roaring64.Bitmap {
	ret := roaring64.New()

	if dir != data.DirectionIn {
		if bm, ok := s.out[node]; ok {
			ret.Or(bm)
		}
	}

	if dir != data.DirectionOut {
		if bm, ok := s.in[node]; ok {
			ret.Or(bm)
		}
	}

	return ret
}

/*
liveEdgeIDs returns the identifiers of all edges of a node which exist in the
latest state.
*/
func (s *store) liveEdgeIDs(node uint64) []uint64 {
	var ret []uint64

	it := s.edgeIDs(node, data.DirectionBoth).Iterator()
	for it.HasNext() {
		if id := it.Next(); s.edge(id, latestSnapshot) != nil {
			ret = append(ret, id)
		}
	}

	return ret
}

/*
liveNodes returns all nodes of the latest state in identifier order.
*/
func (s *store) liveNodes() []*data.Node {
	ret := make([]*data.Node, 0, s.live[0])

	it := s.allNodes.Iterator()
	for it.HasNext() {
		if n := s.node(it.Next(), latestSnapshot); n != nil {
			ret = append(ret, n)
		}
	}

	return ret
}

/*
liveEdges returns all edges of the latest state in identifier order.
*/
func (s *store) liveEdges() []*data.Edge {
	ret := make([]*data.Edge, 0, s.live[1])

	it := s.allEdges.Iterator()
	for it.HasNext() {
		if e := s.edge(it.Next(), latestSnapshot); e != nil {
			ret = append(ret, e)
		}
	}

	return ret
}

/*
matchesEdge checks if an edge connects a node in a given direction and has
one of the given relationship types (any type if the list is empty).
*/
func matchesEdge(e *data.Edge, node uint64, dir data.Direction, etypes []string) bool {
	switch dir {
	case data.DirectionOut:
		if e.From != node {
			return false
		}
	case data.DirectionIn:
		if e.To != node {
			return false
		}
	default:
		if e.From != node && e.To != node {
			return false
		}
	}

	if len(etypes) == 0 {
		return true
	}

	for _, t := range etypes {
		if e.Type == t {
			return true
		}
	}

	return false
}

// Changes
// =======

/*
apply applies the mutations of a committed transaction. All mutations get
the LSN of the commit record as version. Hooks are called for every change.
*/
func (s *store) apply(lsn uint64, muts []*mutation) []*data.Change {
	changes := make([]*data.Change, 0, len(muts))

	for _, m := range muts {
		var c *data.Change

		switch m.Op {
		case wal.OpCreateNode, wal.OpSetNodeProps:
			c = s.putNode(lsn, m.Node)
		case wal.OpDeleteNode:
			c = s.deleteNode(lsn, m.ID)
		case wal.OpCreateEdge, wal.OpSetEdgeProps:
			c = s.putEdge(lsn, m.Edge)
		case wal.OpDeleteEdge:
			c = s.deleteEdge(lsn, m.ID)
		}

		if c != nil {
			changes = append(changes, c)

			for _, hook := range s.hooks {
				hook(c)
			}
		}
	}

	if lsn > s.lastLSN {
		s.lastLSN = lsn
	}

	return changes
}

/*
addNodeVersion adds a version to a node chain. A version with the same LSN
replaces the last version.
*/
func (s *store) addNodeVersion(id uint64, v *nodeVersion) {
	chain := s.nodes[id]

	if l := len(chain); l > 0 && chain[l-1].lsn == v.lsn {
		chain[l-1] = v
	} else {
		chain = append(chain, v)
	}

	s.nodes[id] = chain

	if len(chain) > 1 || v.deleted {
		s.gcNodes[id] = struct{}{}
	}
}

/*
addEdgeVersion adds a version to an edge chain. A version with the same LSN
replaces the last version.
*/
func (s *store) addEdgeVersion(id uint64, v *edgeVersion) {
	chain := s.edges[id]

	if l := len(chain); l > 0 && chain[l-1].lsn == v.lsn {
		chain[l-1] = v
	} else {
		chain = append(chain, v)
	}

	s.edges[id] = chain

	if len(chain) > 1 || v.deleted {
		s.gcEdges[id] = struct{}{}
	}
}

/*
touchLabels records that nodes with the given labels were added or removed.
*/
func (s *store) touchLabels(lsn uint64, labels []string) {
	s.labelLSN[""] = lsn
	for _, l := range labels {
		s.labelLSN[l] = lsn
	}
}

/*
putNode stores a new version of a node.
*/
func (s *store) putNode(lsn uint64, n *data.Node) *data.Change {
	old := s.node(n.ID, latestSnapshot)

	s.addNodeVersion(n.ID, &nodeVersion{lsn, n, false})
	s.allNodes.Add(n.ID)

	var added []string

	for _, l := range n.Labels {
		if old == nil || !old.HasLabel(l) {
			bm, ok := s.labels[l]
			if !ok {
				bm = roaring64.New()
				s.labels[l] = bm
			}
			bm.Add(n.ID)
			added = append(added, l)
		}
	}

	if old == nil {
		s.live[0]++
		s.touchLabels(lsn, added)
		return &data.Change{Kind: data.EventNodeCreated, LSN: lsn, New: n}
	}

	if len(added) > 0 {
		s.touchLabels(lsn, added)
	}

	return &data.Change{Kind: data.EventNodeUpdated, LSN: lsn, Old: old, New: n}
}

/*
deleteNode deletes a node.
*/
func (s *store) deleteNode(lsn uint64, id uint64) *data.Change {
	old := s.node(id, latestSnapshot)
	if old == nil {
		return nil
	}

	s.addNodeVersion(id, &nodeVersion{lsn, old, true})
	s.live[0]--
	s.touchLabels(lsn, old.Labels)

	return &data.Change{Kind: data.EventNodeDeleted, LSN: lsn, Old: old}
}

/*
putEdge stores a new version of an edge.
*/
func (s *store) putEdge(lsn uint64, e *data.Edge) *data.Change {
	old := s.edge(e.ID, latestSnapshot)

	s.addEdgeVersion(e.ID, &edgeVersion{lsn, e, false})

	if old != nil {
		return &data.Change{Kind: data.EventEdgeUpdated, LSN: lsn, Old: old, New: e}
	}

	s.allEdges.Add(e.ID)

	addAdjacency(s.out, e.From, e.ID)
	addAdjacency(s.in, e.To, e.ID)

	s.adjLSN[e.From] = lsn
	s.adjLSN[e.To] = lsn
	s.live[1]++

	return &data.Change{Kind: data.EventEdgeCreated, LSN: lsn, New: e}
}

/*
deleteEdge deletes an edge.
*/
func (s *store) deleteEdge(lsn uint64, id uint64) *data.Change {
	old := s.edge(id, latestSnapshot)
	if old == nil {
		return nil
	}

	s.addEdgeVersion(id, &edgeVersion{lsn, old, true})
	s.adjLSN[old.From] = lsn
	s.adjLSN[old.To] = lsn
	s.live[1]--

	return &data.Change{Kind: data.EventEdgeDeleted, LSN: lsn, Old: old}
}

// Garbage collection
// ==================

/*
gc removes all versions which cannot be seen by a reader with a snapshot of
at least oldest. Returns the number of removed versions.
*/
func (s *store) gc(oldest uint64) int {
	removed := 0

	for id := range s.gcNodes {
		chain := s.nodes[id]

		// Find the newest version which is visible to the oldest reader

		k := 0
		for i := len(chain) - 1; i >= 0; i-- {
			if chain[i].lsn <= oldest {
				k = i
				break
			}
		}

		if k > 0 {
			removed += k
			chain = append([]*nodeVersion(nil), chain[k:]...)
			s.nodes[id] = chain
		}

		if len(chain) == 1 && chain[0].deleted && chain[0].lsn <= oldest {
			removed++
			s.dropNode(id, chain[0].node)
			delete(s.gcNodes, id)

		} else if len(chain) == 1 && !chain[0].deleted {
			delete(s.gcNodes, id)
		}
	}

	for id := range s.gcEdges {
		chain := s.edges[id]

		k := 0
		for i := len(chain) - 1; i >= 0; i-- {
			if chain[i].lsn <= oldest {
				k = i
				break
			}
		}

		if k > 0 {
			removed += k
			chain = append([]*edgeVersion(nil), chain[k:]...)
			s.edges[id] = chain
		}

		if len(chain) == 1 && chain[0].deleted && chain[0].lsn <= oldest {
			removed++
			s.dropEdge(id, chain[0].edge)
			delete(s.gcEdges, id)

		} else if len(chain) == 1 && !chain[0].deleted {
			delete(s.gcEdges, id)
		}
	}

	return removed
}

/*
dropNode removes a deleted node chain completely.
*/
func (s *store) dropNode(id uint64, last *data.Node) {
	delete(s.nodes, id)
	delete(s.adjLSN, id)

	s.allNodes.Remove(id)

	for _, l := range last.Labels {
		if bm, ok := s.labels[l]; ok {
			bm.Remove(id)
			if bm.IsEmpty() {
				delete(s.labels, l)
			}
		}
	}
}

/*
dropEdge removes a deleted edge chain completely.
*/
func (s *store) dropEdge(id uint64, last *data.Edge) {
	delete(s.edges, id)

	s.allEdges.Remove(id)

	removeAdjacency(s.out, last.From, id)
	removeAdjacency(s.in, last.To, id)
}

/*
addAdjacency adds an edge to the adjacency list of a node.
*/
func addAdjacency(adj map[uint64]*roaring64.Bitmap, node uint64, edge uint64) {
	bm, ok := adj[node]
	if !ok {
		bm = roaring64.New()
		adj[node] = bm
	}
	bm.Add(edge)
}

/*
removeAdjacency removes an edge from the adjacency list of a node.
*/
func removeAdjacency(adj map[uint64]*roaring64.Bitmap, node uint64, edge uint64) {
	if bm, ok := adj[node]; ok {
		bm.Remove(edge)
		if bm.IsEmpty() {
			delete(adj, node)
		}
	}
}
