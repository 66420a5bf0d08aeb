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

	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/storage/wal"
)

// Index definitions
// =================

/*
CreateIndex creates a new index and builds it from the latest committed
state. The index definition is written to the log before the call returns.
*/
func (gm *Manager) CreateIndex(spec index.Spec) (index.Handle, error) {
	gm.commitLock.Lock()
	defer gm.commitLock.Unlock()

	if err := gm.checkOpen(); err != nil {
		return "", err
	}

	gm.gs.mutex.RLock()
	h, err := gm.im.Create(spec, &liveSource{gm.gs})
	gm.gs.mutex.RUnlock()

	if err != nil {
		return "", err
	}

	s, _ := gm.im.Spec(h)

	if err := gm.writeIndexRecord(wal.OpCreateIndex, s); err != nil {
		gm.im.Drop(h)
		return "", err
	}

	return h, nil
}

/*
DropIndex removes an index. The removal is written to the log before the call
returns.
*/
func (gm *Manager) DropIndex(h index.Handle) error {
	gm.commitLock.Lock()
	defer gm.commitLock.Unlock()

	if err := gm.checkOpen(); err != nil {
		return err
	}

	s, err := gm.im.Spec(h)
	if err != nil {
		return err
	}

	if err := gm.writeIndexRecord(wal.OpDropIndex, s); err != nil {
		return err
	}

	return gm.im.Drop(h)
}

/*
writeIndexRecord writes an index definition change as its own transaction
to the log. Must be called with the commit lock held.
*/
func (gm *Manager) writeIndexRecord(op wal.OpType, spec *index.Spec) error {
	txnID, err := gm.newTxnID()
	if err != nil {
		logger.Error(fmt.Sprintf("Could not write %v for %v: %v", op, spec.Name, err))
		return err
	}

	lsn, err := gm.appendAndSync([]*wal.Record{
		indexRecord(txnID, op, *spec),
		{TxnID: txnID, Op: wal.OpCommit},
	})

	if err != nil {
		logger.Error(fmt.Sprintf("Could not write %v for %v: %v", op, spec.Name, err))
		return err
	}

	gm.durableLSN = lsn

	return nil
}

/*
IndexSpecs returns the specs of all indexes.
*/
func (gm *Manager) IndexSpecs() []*index.Spec {
	return gm.im.Specs()
}

/*
IndexSpec returns the spec of a single index.
*/
func (gm *Manager) IndexSpec(h index.Handle) (*index.Spec, error) {
	return gm.im.Spec(h)
}

/*
VerifyIndex compares an index with the latest committed state. Returns an
IndexInconsistencyError listing all differences.
*/
func (gm *Manager) VerifyIndex(h index.Handle) error {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return gm.im.Verify(h, &liveSource{gm.gs})
}

/*
RebuildIndex rescans the latest committed state and replaces an index. An
IndexInconsistencyError is returned if the old index content was different.
*/
func (gm *Manager) RebuildIndex(h index.Handle) error {
	gm.commitLock.Lock()
	defer gm.commitLock.Unlock()

	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return gm.im.Rebuild(h, &liveSource{gm.gs})
}

// Index reads on the latest committed state
// =========================================

/*
IndexLookup returns all entities with a given key.
*/
func (gm *Manager) IndexLookup(h index.Handle, key interface{}) ([]uint64, bool, error) {
	var ret []uint64

	ok, err := indexRead(gm, func() bool { return true }, func() error {
		var err error
		ret, err = gm.im.Lookup(h, key)
		return err
	})

	return ret, ok, err
}

/*
IndexRange returns all entities with a key within the given bounds in key
order.
*/
func (gm *Manager) IndexRange(h index.Handle, lower, upper *index.Bound) ([]uint64, bool, error) {
	var ret []uint64

	ok, err := indexRead(gm, func() bool { return true }, func() error {
		it, err := gm.im.Range(h, lower, upper)
		if err == nil {
			ret = drainIndexIterator(it)
		}
		return err
	})

	return ret, ok, err
}

/*
IndexSearch runs a full-text search and returns hits ordered by score.
*/
func (gm *Manager) IndexSearch(h index.Handle, attr, text string) ([]index.Hit, bool, error) {
	var ret []index.Hit

	ok, err := indexRead(gm, func() bool { return true }, func() error {
		var err error
		ret, err = gm.im.Search(h, attr, text)
		return err
	})

	return ret, ok, err
}

/*
IndexPhrase returns all entities where an attribute of a full-text index
contains a given phrase.
*/
func (gm *Manager) IndexPhrase(h index.Handle, attr, phrase string) ([]uint64, error) {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return gm.im.Phrase(h, attr, phrase)
}
