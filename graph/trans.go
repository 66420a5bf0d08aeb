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
	"fmt"
	"sync"
	"time"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/metrics"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
TransState is the state of a transaction.
*/
type TransState int

/*
Transaction states
*/
const (
	TransActive     TransState = iota // Transaction accepts reads and writes
	TransCommitting                   // Transaction is validated and written
	TransCommitted                    // Transaction was committed
	TransAborted                      // Transaction was aborted
)

/*
String returns a string representation of a transaction state.
*/
func (s TransState) String() string {
	switch s {
	case TransActive:
		return "Active"
	case TransCommitting:
		return "Committing"
	case TransCommitted:
		return "Committed"
	}
	return "Aborted"
}

/*
Trans is a transaction object which should be used to group node and edge
operations. A transaction is also a Reader which sees the graph according to
its isolation level plus its own uncommitted writes.
*/
type Trans interface {
	Reader

	/*
	   ID returns a unique transaction ID.
	*/
	ID() uint64

	/*
	   String returns a string representation of this transaction.
	*/
	String() string

	/*
	   Isolation returns the isolation level of this transaction.
	*/
	Isolation() IsolationLevel

	/*
	   State returns the current state of this transaction.
	*/
	State() TransState

	/*
	   Counts returns the transaction size in terms of objects. Returned values
	   are nodes to store, edges to store, nodes to remove and edges to remove.
	*/
	Counts() (int, int, int, int)

	/*
	   IsEmpty returns if this transaction is empty.
	*/
	IsEmpty() bool

	/*
	   Commit validates the transaction and writes it to the graph. The
	   transaction is aborted if the validation fails (ConflictError) or if the
	   log cannot be written (IO error). Failed transactions cannot be committed
	   again.
	*/
	Commit() error

	/*
	   Rollback discards all changes of this transaction.
	*/
	Rollback()

	/*
	   CreateNode creates a new node and returns its identifier.
	*/
	CreateNode(labels []string, props map[string]interface{}) (uint64, error)

	/*
	   CreateEdge creates a new edge between two existing nodes and returns its
	   identifier.
	*/
	CreateEdge(etype string, from uint64, to uint64, props map[string]interface{}) (uint64, error)

	/*
	   SetProperties updates properties of a node or an edge. Properties with a
	   nil value are removed.
	*/
	SetProperties(id uint64, props map[string]interface{}) error

	/*
	   DeleteNode deletes a node and all its edges.
	*/
	DeleteNode(id uint64) error

	/*
	   DeleteEdge deletes an edge.
	*/
	DeleteEdge(id uint64) error
}

/*
NewGraphTrans creates a new graph transaction with a given isolation level.
*/
func NewGraphTrans(gm *Manager, level IsolationLevel) (Trans, error) {
	t, err := gm.begin(level)
	if err != nil {
		return nil, err
	}
	return t, nil
}

/*
NewRollingTrans creates a new rolling transaction. Rolling transactions can be
used for VERY large datasets and will commit themselves after n operations.
Rolling transactions are thread-safe.
*/
func NewRollingTrans(gm *Manager, level IsolationLevel, n int) (Trans, error) {

	// Smallest commit threshold is 1

	if n < 1 {
		n = 1
	}

	t, err := gm.begin(level)
	if err != nil {
		return nil, err
	}

	return &rollingTrans{

		gm:    gm,
		level: level,

		currentTrans: t,
		transErrors:  errorutil.NewCompositeError(),

		opThreshold: n,
		opCount:     0,

		transLock: &sync.RWMutex{},
	}, nil
}

/*
baseTrans is the main data structure for a graph transaction
*/
type baseTrans struct {
	id       uint64         // Unique transaction ID
	gm       *Manager       // Graph manager which created this transaction
	level    IsolationLevel // Isolation level
	snapshot uint64         // Snapshot LSN taken at begin
	state    TransState     // Current state
	start    time.Time      // Begin time
	timeout  time.Duration  // Timeout of the transaction (0 for no timeout)

	order   []uint64              // Written entities in the order of first write
	nodes   map[uint64]*data.Node // New node states (nil for removed nodes)
	edges   map[uint64]*data.Edge // New edge states (nil for removed edges)
	created map[uint64]bool       // Entities which were created by this transaction

	writes map[uint64]uint64   // Versions of written entities when they were first read
	reads  map[uint64]uint64   // Versions of read entities (Serializable only)
	labels map[string]struct{} // Scanned labels (Serializable only)
	adj    map[uint64]struct{} // Traversed nodes (Serializable only)

	mutex *sync.Mutex // Mutex to protect the transaction
}

/*
newBaseTrans creates a new transaction object.
*/
func newBaseTrans(gm *Manager, id uint64, level IsolationLevel, snapshot uint64) *baseTrans {
	return &baseTrans{id, gm, level, snapshot, TransActive, time.Now(),
		gm.opts.TransactionTimeout, nil, make(map[uint64]*data.Node),
		make(map[uint64]*data.Edge), make(map[uint64]bool), make(map[uint64]uint64),
		make(map[uint64]uint64), make(map[string]struct{}), make(map[uint64]struct{}),
		&sync.Mutex{}}
}

/*
ID returns a unique transaction ID.
*/
func (gt *baseTrans) ID() uint64 {
	return gt.id
}

/*
Isolation returns the isolation level of this transaction.
*/
func (gt *baseTrans) Isolation() IsolationLevel {
	return gt.level
}

/*
State returns the current state of this transaction.
*/
func (gt *baseTrans) State() TransState {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	return gt.state
}

/*
IsEmpty returns if this transaction is empty.
*/
func (gt *baseTrans) IsEmpty() bool {
	sn, se, rn, re := gt.Counts()

	return sn == 0 && se == 0 && rn == 0 && re == 0
}

/*
Counts returns the transaction size in terms of objects. Returned values
are nodes to store, edges to store, nodes to remove and edges to remove.
*/
func (gt *baseTrans) Counts() (int, int, int, int) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	return gt.counts()
}

/*
counts counts the pending changes.
*/
func (gt *baseTrans) counts() (int, int, int, int) {
	var sn, se, rn, re int

	for id, n := range gt.nodes {
		if n != nil {
			sn++
		} else if !gt.created[id] {
			rn++
		}
	}

	for id, e := range gt.edges {
		if e != nil {
			se++
		} else if !gt.created[id] {
			re++
		}
	}

	return sn, se, rn, re
}

/*
String returns a string representation of this transaction.
*/
func (gt *baseTrans) String() string {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	sn, se, rn, re := gt.counts()

	return fmt.Sprintf("Transaction %v (%v %v) - Nodes: I:%v R:%v - Edges: I:%v R:%v",
		gt.id, gt.level, gt.state, sn, rn, se, re)
}

/*
readAt returns the snapshot which is used for reads of this transaction.
*/
func (gt *baseTrans) readAt() uint64 {
	if gt.level.usesSnapshot() {
		return gt.snapshot
	}
	return latestSnapshot
}

/*
checkActive checks if the transaction accepts operations. A transaction
which exceeded its timeout is aborted.
*/
func (gt *baseTrans) checkActive() error {

	if gt.state != TransActive {
		return &util.GraphError{Type: util.ErrTransactionClosed,
			Detail: fmt.Sprintf("Transaction %v is %v", gt.id, gt.state)}
	}

	if gt.timeout > 0 && time.Since(gt.start) > gt.timeout {
		gt.abort(AbortTimeout)

		return &util.GraphError{Type: util.ErrTransactionTimeout,
			Detail: fmt.Sprintf("Transaction %v was active for more than %v", gt.id, gt.timeout)}
	}

	return nil
}

/*
expired checks if the transaction exceeded its timeout. Expired transactions
are aborted.
*/
func (gt *baseTrans) expired(now time.Time) bool {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if gt.state == TransActive && gt.timeout > 0 && now.Sub(gt.start) > gt.timeout {
		gt.abort(AbortTimeout)
		return true
	}

	return false
}

/*
abort aborts this transaction. Must be called with the transaction lock held.
*/
func (gt *baseTrans) abort(reason string) {
	gt.state = TransAborted
	gt.clear()
	gt.gm.release(gt)

	metrics.TransactionAborts.WithLabelValues(reason).Inc()

	if reason != AbortRollback {
		logger.Warning(fmt.Sprintf("Transaction %v aborted (%v)", gt.id, reason))
	}
}

/*
clear discards all pending changes and read markers.
*/
func (gt *baseTrans) clear() {
	gt.order = nil
	gt.nodes = make(map[uint64]*data.Node)
	gt.edges = make(map[uint64]*data.Edge)
	gt.created = make(map[uint64]bool)
	gt.writes = make(map[uint64]uint64)
	gt.reads = make(map[uint64]uint64)
	gt.labels = make(map[string]struct{})
	gt.adj = make(map[uint64]struct{})
}

/*
Commit validates the transaction and writes it to the graph.
*/
func (gt *baseTrans) Commit() error {
	gt.mutex.Lock()

	if err := gt.checkActive(); err != nil {
		gt.mutex.Unlock()
		return err
	}

	gt.state = TransCommitting

	if err := gt.gm.commit(gt); err != nil {
		reason := AbortIO
		if util.IsConflict(err) {
			reason = AbortConflict
		}

		gt.abort(reason)
		gt.mutex.Unlock()

		return err
	}

	gt.state = TransCommitted
	gt.clear()
	gt.gm.release(gt)
	gt.mutex.Unlock()

	gt.gm.checkpointIfDue()

	return nil
}

/*
Rollback discards all changes of this transaction.
*/
func (gt *baseTrans) Rollback() {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if gt.state == TransActive {
		gt.abort(AbortRollback)
	}
}

/*
mutations returns the mutations of this transaction in the order of the
first write of each entity.
*/
func (gt *baseTrans) mutations() []*mutation {
	var ret []*mutation

	for _, id := range gt.order {

		if n, ok := gt.nodes[id]; ok {
			if n == nil {
				if !gt.created[id] {
					ret = append(ret, &mutation{Op: wal.OpDeleteNode, ID: id})
				}
			} else if gt.created[id] {
				ret = append(ret, &mutation{Op: wal.OpCreateNode, ID: id, Node: n})
			} else {
				ret = append(ret, &mutation{Op: wal.OpSetNodeProps, ID: id, Node: n})
			}

		} else if e, ok := gt.edges[id]; ok {
			if e == nil {
				if !gt.created[id] {
					ret = append(ret, &mutation{Op: wal.OpDeleteEdge, ID: id})
				}
			} else if gt.created[id] {
				ret = append(ret, &mutation{Op: wal.OpCreateEdge, ID: id, Edge: e})
			} else {
				ret = append(ret, &mutation{Op: wal.OpSetEdgeProps, ID: id, Edge: e})
			}
		}
	}

	return ret
}

// Reads
// =====

/*
lookupNode looks up a node as seen by this transaction. Returns the node and
the version of the node in the graph store.
*/
func (gt *baseTrans) lookupNode(id uint64) (*data.Node, uint64, error) {

	if n, ok := gt.nodes[id]; ok {
		if n == nil {
			return nil, 0, notFound("Node", id)
		}
		return n, gt.writes[id], nil
	}

	gs := gt.gm.gs
	readAt := gt.readAt()

	gs.mutex.RLock()
	n := gs.node(id, readAt)
	v := gs.versionAt(id, readAt)
	gs.mutex.RUnlock()

	if n == nil {
		return nil, 0, notFound("Node", id)
	}

	if gt.level == Serializable {
		if _, ok := gt.reads[id]; !ok {
			gt.reads[id] = v
		}
	}

	return n, v, nil
}

/*
lookupEdge looks up an edge as seen by this transaction. Returns the edge and
the version of the edge in the graph store.
*/
func (gt *baseTrans) lookupEdge(id uint64) (*data.Edge, uint64, error) {

	if e, ok := gt.edges[id]; ok {
		if e == nil {
			return nil, 0, notFound("Edge", id)
		}
		return e, gt.writes[id], nil
	}

	gs := gt.gm.gs
	readAt := gt.readAt()

	gs.mutex.RLock()
	e := gs.edge(id, readAt)
	v := gs.versionAt(id, readAt)
	gs.mutex.RUnlock()

	if e == nil {
		return nil, 0, notFound("Edge", id)
	}

	if gt.level == Serializable {
		if _, ok := gt.reads[id]; !ok {
			gt.reads[id] = v
		}
	}

	return e, v, nil
}

/*
FetchNode fetches a single node.
*/
func (gt *baseTrans) FetchNode(id uint64) (*data.Node, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, err
	}

	n, _, err := gt.lookupNode(id)

	return n, err
}

/*
FetchEdge fetches a single edge.
*/
func (gt *baseTrans) FetchEdge(id uint64) (*data.Edge, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, err
	}

	e, _, err := gt.lookupEdge(id)

	return e, err
}

/*
NodeIDs returns an iterator over the identifiers of all nodes with a given
label (all nodes if the label is empty). The iterator may contain identifiers
of nodes which are not visible to this transaction.
*/
func (gt *baseTrans) NodeIDs(label string) (*IDIterator, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, err
	}

	gs := gt.gm.gs

	gs.mutex.RLock()
	bm := gs.nodeIDs(label)
	gs.mutex.RUnlock()

	for id, n := range gt.nodes {
		if n != nil && gt.created[id] && n.Matches(label) {
			bm.Add(id)
		}
	}

	if gt.level == Serializable {
		gt.labels[label] = struct{}{}
	}

	return newIDIterator(bm), nil
}

/*
Traverse returns all edges of a node in a given direction. The result can be
restricted to a list of relationship types. Edges are returned in identifier
order.
*/
func (gt *baseTrans) Traverse(id uint64, dir data.Direction, etypes ...string) ([]*data.Edge, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, err
	}

	return gt.traverse(id, dir, etypes)
}

/*
traverse returns all edges of a node. Must be called with the transaction
lock held.
*/
func (gt *baseTrans) traverse(id uint64, dir data.Direction, etypes []string) ([]*data.Edge, error) {

	if _, _, err := gt.lookupNode(id); err != nil {
		return nil, err
	}

	gs := gt.gm.gs

	gs.mutex.RLock()
	bm := gs.edgeIDs(id, dir)
	gs.mutex.RUnlock()

	for eid, e := range gt.edges {
		if e != nil && gt.created[eid] && (e.From == id || e.To == id) {
			bm.Add(eid)
		}
	}

	if gt.level == Serializable {
		gt.adj[id] = struct{}{}
	}

	var ret []*data.Edge

	it := bm.Iterator()
	for it.HasNext() {
		if e, _, err := gt.lookupEdge(it.Next()); err == nil && matchesEdge(e, id, dir, etypes) {
			ret = append(ret, e)
		}
	}

	return ret, nil
}

// Writes
// ======

/*
write records a new state of an entity.
*/
func (gt *baseTrans) write(id uint64, base uint64, node *data.Node, edge *data.Edge, isNode bool) {

	if _, ok := gt.writes[id]; !ok {
		gt.writes[id] = base
		gt.order = append(gt.order, id)
	}

	if isNode {
		gt.nodes[id] = node
	} else {
		gt.edges[id] = edge
	}
}

/*
CreateNode creates a new node.
*/
func (gt *baseTrans) CreateNode(labels []string, props map[string]interface{}) (uint64, error) {
	gt.mutex.Lock()

	if err := gt.checkActive(); err != nil {
		gt.mutex.Unlock()
		return 0, err
	}

	if err := checkLabels(labels); err != nil {
		gt.mutex.Unlock()
		return 0, err
	}

	n, err := data.NewNode(gt.gm.newID(), labels, props)
	if err != nil {
		gt.mutex.Unlock()
		return 0, invalidData(err)
	}

	gt.created[n.ID] = true
	gt.write(n.ID, 0, n, nil, true)

	gt.mutex.Unlock()

	return n.ID, gt.gm.gr.graphEvent(gt, data.EventNodeCreated, n)
}

/*
CreateEdge creates a new edge between two existing nodes.
*/
func (gt *baseTrans) CreateEdge(etype string, from uint64, to uint64,
	props map[string]interface{}) (uint64, error) {

	gt.mutex.Lock()

	if err := gt.checkActive(); err != nil {
		gt.mutex.Unlock()
		return 0, err
	}

	if err := checkRelType(etype); err != nil {
		gt.mutex.Unlock()
		return 0, err
	}

	// Both endpoints must exist for this transaction

	for _, end := range []uint64{from, to} {
		if _, _, err := gt.lookupNode(end); err != nil {
			gt.mutex.Unlock()
			return 0, &util.GraphError{Type: util.ErrNotFound,
				Detail: fmt.Sprintf("Can't find edge endpoint: %v", end)}
		}
	}

	e, err := data.NewEdge(gt.gm.newID(), etype, from, to, props)
	if err != nil {
		gt.mutex.Unlock()
		return 0, invalidData(err)
	}

	gt.created[e.ID] = true
	gt.write(e.ID, 0, nil, e, false)

	gt.mutex.Unlock()

	return e.ID, gt.gm.gr.graphEvent(gt, data.EventEdgeCreated, e)
}

/*
SetProperties updates the properties of a node or an edge.
*/
func (gt *baseTrans) SetProperties(id uint64, props map[string]interface{}) error {
	gt.mutex.Lock()

	if err := gt.checkActive(); err != nil {
		gt.mutex.Unlock()
		return err
	}

	update, err := data.NormalizeUpdate(props)
	if err != nil {
		gt.mutex.Unlock()
		return invalidData(err)
	}

	var event data.EventKind
	var newEntity, oldEntity interface{}

	if old, v, err := gt.lookupNode(id); err == nil {
		n := old.WithProps(update)
		gt.write(id, v, n, nil, true)
		event, newEntity, oldEntity = data.EventNodeUpdated, n, old

	} else if old, v, err := gt.lookupEdge(id); err == nil {
		e := old.WithProps(update)
		gt.write(id, v, nil, e, false)
		event, newEntity, oldEntity = data.EventEdgeUpdated, e, old

	} else {
		gt.mutex.Unlock()
		return notFound("Entity", id)
	}

	gt.mutex.Unlock()

	return gt.gm.gr.graphEvent(gt, event, newEntity, oldEntity)
}

/*
DeleteNode deletes a node. The rules of the graph manager remove all edges of
the node before the node itself is removed.
*/
func (gt *baseTrans) DeleteNode(id uint64) error {
	gt.mutex.Lock()

	err := gt.checkActive()

	var n *data.Node
	if err == nil {
		n, _, err = gt.lookupNode(id)
	}

	gt.mutex.Unlock()

	if err != nil {
		return err
	}

	if err := gt.gm.gr.graphEvent(gt, data.EventNodeDeleted, n); err != nil {
		return err
	}

	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return err
	}

	_, v, err := gt.lookupNode(id)
	if err != nil {
		return err
	}

	gt.write(id, v, nil, nil, true)

	return nil
}

/*
DeleteEdge deletes an edge.
*/
func (gt *baseTrans) DeleteEdge(id uint64) error {
	gt.mutex.Lock()

	if err := gt.checkActive(); err != nil {
		gt.mutex.Unlock()
		return err
	}

	e, v, err := gt.lookupEdge(id)
	if err != nil {
		gt.mutex.Unlock()
		return err
	}

	gt.write(id, v, nil, nil, false)

	gt.mutex.Unlock()

	return gt.gm.gr.graphEvent(gt, data.EventEdgeDeleted, e)
}

/*
rollingTrans is a rolling transaction which will commit itself after
n operations.
*/
type rollingTrans struct {
	gm    *Manager       // Graph manager which created this transaction
	level IsolationLevel // Isolation level of all sub transactions

	currentTrans Trans                     // Current transaction which is build up
	transErrors  *errorutil.CompositeError // Collected transaction errors

	opThreshold int // Operation threshold
	opCount     int // Operation count

	countNodeIns int // Count for inserted nodes
	countNodeRem int // Count for removed nodes
	countEdgeIns int // Count for inserted edges
	countEdgeRem int // Count for removed edges

	transLock *sync.RWMutex // Lock for this transaction
}

/*
ID returns the ID of the current sub transaction.
*/
func (gt *rollingTrans) ID() uint64 {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.ID()
}

/*
Isolation returns the isolation level of this transaction.
*/
func (gt *rollingTrans) Isolation() IsolationLevel {
	return gt.level
}

/*
State returns the state of the current sub transaction.
*/
func (gt *rollingTrans) State() TransState {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.State()
}

/*
IsEmpty returns if this transaction is empty.
*/
func (gt *rollingTrans) IsEmpty() bool {
	sn, se, rn, re := gt.Counts()

	return sn == 0 && se == 0 && rn == 0 && re == 0
}

/*
Counts returns the transaction size in terms of objects. Returned values
are nodes to store, edges to store, nodes to remove and edges to remove.
*/
func (gt *rollingTrans) Counts() (int, int, int, int) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	// Count current trans

	ns, es, nr, er := gt.currentTrans.Counts()

	return ns + gt.countNodeIns, es + gt.countEdgeIns,
		nr + gt.countNodeRem, er + gt.countEdgeRem
}

/*
String returns a string representation of this transaction.
*/
func (gt *rollingTrans) String() string {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	ns, es, nr, er := gt.currentTrans.Counts()

	return fmt.Sprintf("Rolling transaction %v - Nodes: I:%v R:%v - "+
		"Edges: I:%v R:%v - Threshold: %v",
		gt.currentTrans.ID(), ns+gt.countNodeIns, nr+gt.countNodeRem, es+gt.countEdgeIns,
		er+gt.countEdgeRem, gt.opThreshold)
}

/*
Commit writes the remaining operations of this rolling transaction to
the graph database. Returns all errors of previous sub transactions.
*/
func (gt *rollingTrans) Commit() error {
	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	if err := gt.currentTrans.Commit(); err != nil {
		gt.transErrors.Add(err)
	}

	if gt.transErrors.HasErrors() {
		return gt.transErrors
	}

	return nil
}

/*
Rollback discards the operations of the current sub transaction. Sub
transactions which were already committed are not affected.
*/
func (gt *rollingTrans) Rollback() {
	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	gt.currentTrans.Rollback()
}

/*
checkNewSubTrans checks if a new sub-transaction should be started.
*/
func (gt *rollingTrans) checkNewSubTrans() {

	if gt.opCount++; gt.opCount >= gt.opThreshold {

		// Reset the op counter

		gt.opCount = 0

		// Commit the current transaction and add the counts to the overall counts

		ns, es, nr, er := gt.currentTrans.Counts()

		if err := gt.currentTrans.Commit(); err != nil {
			gt.transErrors.Add(err)
		} else {
			gt.countNodeIns += ns
			gt.countNodeRem += nr
			gt.countEdgeIns += es
			gt.countEdgeRem += er
		}

		// Start a new transaction which sees the committed changes

		t, err := gt.gm.begin(gt.level)
		if err != nil {
			gt.transErrors.Add(err)
			return
		}

		gt.currentTrans = t
	}
}

/*
CreateNode creates a new node.
*/
func (gt *rollingTrans) CreateNode(labels []string, props map[string]interface{}) (uint64, error) {
	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	id, err := gt.currentTrans.CreateNode(labels, props)

	if err == nil {
		gt.checkNewSubTrans()
	}

	return id, err
}

/*
CreateEdge creates a new edge.
*/
func (gt *rollingTrans) CreateEdge(etype string, from uint64, to uint64,
	props map[string]interface{}) (uint64, error) {

	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	id, err := gt.currentTrans.CreateEdge(etype, from, to, props)

	if err == nil {
		gt.checkNewSubTrans()
	}

	return id, err
}

/*
SetProperties updates the properties of a node or an edge.
*/
func (gt *rollingTrans) SetProperties(id uint64, props map[string]interface{}) error {
	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	err := gt.currentTrans.SetProperties(id, props)

	if err == nil {
		gt.checkNewSubTrans()
	}

	return err
}

/*
DeleteNode deletes a node.
*/
func (gt *rollingTrans) DeleteNode(id uint64) error {
	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	err := gt.currentTrans.DeleteNode(id)

	if err == nil {
		gt.checkNewSubTrans()
	}

	return err
}

/*
DeleteEdge deletes an edge.
*/
func (gt *rollingTrans) DeleteEdge(id uint64) error {
	gt.transLock.Lock()
	defer gt.transLock.Unlock()

	err := gt.currentTrans.DeleteEdge(id)

	if err == nil {
		gt.checkNewSubTrans()
	}

	return err
}

/*
FetchNode fetches a node through the current sub transaction.
*/
func (gt *rollingTrans) FetchNode(id uint64) (*data.Node, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.FetchNode(id)
}

/*
FetchEdge fetches an edge through the current sub transaction.
*/
func (gt *rollingTrans) FetchEdge(id uint64) (*data.Edge, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.FetchEdge(id)
}

/*
NodeIDs iterates node identifiers through the current sub transaction.
*/
func (gt *rollingTrans) NodeIDs(label string) (*IDIterator, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.NodeIDs(label)
}

/*
Traverse traverses edges through the current sub transaction.
*/
func (gt *rollingTrans) Traverse(id uint64, dir data.Direction, etypes ...string) ([]*data.Edge, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.Traverse(id, dir, etypes...)
}

/*
IndexSpecs returns all index specs.
*/
func (gt *rollingTrans) IndexSpecs() []*index.Spec {
	return gt.gm.im.Specs()
}

/*
IndexLookup does an index lookup through the current sub transaction.
*/
func (gt *rollingTrans) IndexLookup(h index.Handle, key interface{}) ([]uint64, bool, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.IndexLookup(h, key)
}

/*
IndexRange does an index range lookup through the current sub transaction.
*/
func (gt *rollingTrans) IndexRange(h index.Handle, lower, upper *index.Bound) ([]uint64, bool, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.IndexRange(h, lower, upper)
}

/*
IndexSearch does a full-text search through the current sub transaction.
*/
func (gt *rollingTrans) IndexSearch(h index.Handle, attr, text string) ([]index.Hit, bool, error) {
	gt.transLock.RLock()
	defer gt.transLock.RUnlock()

	return gt.currentTrans.IndexSearch(h, attr, text)
}
