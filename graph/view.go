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
	"github.com/krotik/eliasgraph/graph/index"
)

/*
Reader is a read-only view of the graph. The graph manager is a Reader on
the latest committed state, a transaction is a Reader on the state defined by
its isolation level.

The index functions return as second value whether the index could be used
for this view. Indexes always reflect the latest committed state; a view
which sees a different state (own pending writes or an older snapshot) must
fall back to a scan.
*/
type Reader interface {

	/*
	   FetchNode fetches a single node. Returns a NotFound error if the node
	   is not visible.
	*/
	FetchNode(id uint64) (*data.Node, error)

	/*
	   FetchEdge fetches a single edge. Returns a NotFound error if the edge
	   is not visible.
	*/
	FetchEdge(id uint64) (*data.Edge, error)

	/*
	   NodeIDs returns an iterator over node identifiers with a given label.
	   The iterator may contain identifiers which are not visible.
	*/
	NodeIDs(label string) (*IDIterator, error)

	/*
	   Traverse returns the visible edges of a node in identifier order.
	*/
	Traverse(id uint64, dir data.Direction, etypes ...string) ([]*data.Edge, error)

	/*
	   IndexSpecs returns the specs of all indexes.
	*/
	IndexSpecs() []*index.Spec

	/*
	   IndexLookup returns all entities with a given key.
	*/
	IndexLookup(h index.Handle, key interface{}) ([]uint64, bool, error)

	/*
	   IndexRange returns all entities with a key within the given bounds in
	   key order.
	*/
	IndexRange(h index.Handle, lower, upper *index.Bound) ([]uint64, bool, error)

	/*
	   IndexSearch runs a full-text search.
	*/
	IndexSearch(h index.Handle, attr, text string) ([]index.Hit, bool, error)
}

/*
indexRead runs an index access if the index reflects the state seen by a
view. The check and the access happen under the store read lock so no commit
can change the index in between.
*/
func indexRead(gm *Manager, usable func() bool, access func() error) (bool, error) {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	if !usable() {
		return false, nil
	}

	return true, access()
}

/*
indexUsable checks if the indexes reflect the state seen by this transaction.
Must be called with the transaction lock and the store read lock held.
*/
func (gt *baseTrans) indexUsable(h index.Handle) bool {

	if len(gt.order) > 0 {
		return false
	}

	if gt.level.usesSnapshot() && gt.snapshot != gt.gm.gs.lastLSN {
		return false
	}

	if gt.level == Serializable {

		// Index scans must leave read markers for phantom protection. Only
		// node indexes can be covered by label markers.

		spec, err := gt.gm.im.Spec(h)
		if err != nil || spec.Target != index.TargetNodes {
			return false
		}

		gt.labels[spec.Label] = struct{}{}
	}

	return true
}

/*
IndexSpecs returns the specs of all indexes.
*/
func (gt *baseTrans) IndexSpecs() []*index.Spec {
	return gt.gm.im.Specs()
}

/*
IndexLookup returns all entities with a given key.
*/
func (gt *baseTrans) IndexLookup(h index.Handle, key interface{}) ([]uint64, bool, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, false, err
	}

	var ret []uint64

	ok, err := indexRead(gt.gm, func() bool { return gt.indexUsable(h) }, func() error {
		var err error
		ret, err = gt.gm.im.Lookup(h, key)
		return err
	})

	return ret, ok, err
}

/*
IndexRange returns all entities with a key within the given bounds.
*/
func (gt *baseTrans) IndexRange(h index.Handle, lower, upper *index.Bound) ([]uint64, bool, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, false, err
	}

	var ret []uint64

	ok, err := indexRead(gt.gm, func() bool { return gt.indexUsable(h) }, func() error {
		it, err := gt.gm.im.Range(h, lower, upper)
		if err == nil {
			ret = drainIndexIterator(it)
		}
		return err
	})

	return ret, ok, err
}

/*
IndexSearch runs a full-text search.
*/
func (gt *baseTrans) IndexSearch(h index.Handle, attr, text string) ([]index.Hit, bool, error) {
	gt.mutex.Lock()
	defer gt.mutex.Unlock()

	if err := gt.checkActive(); err != nil {
		return nil, false, err
	}

	var ret []index.Hit

	ok, err := indexRead(gt.gm, func() bool { return gt.indexUsable(h) }, func() error {
		var err error
		ret, err = gt.gm.im.Search(h, attr, text)
		return err
	})

	return ret, ok, err
}

/*
drainIndexIterator collects all identifiers of an index iterator.
*/
func drainIndexIterator(it *index.IDIterator) []uint64 {
	ret := make([]uint64, 0, it.Len())

	for it.HasNext() {
		ret = append(ret, it.Next())
	}

	return ret
}
