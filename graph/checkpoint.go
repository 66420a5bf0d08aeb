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
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/krotik/common/timeutil"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/metrics"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
Checkpoint writes a snapshot of the latest committed state to the block
store, stores a new checkpoint record and removes all log records which are
covered by the snapshot. Commits wait while the snapshot is taken.
*/
func (gm *Manager) Checkpoint() (*wal.Checkpoint, error) {
	gm.commitLock.Lock()
	defer gm.commitLock.Unlock()

	if err := gm.checkOpen(); err != nil {
		return nil, err
	}

	gm.gs.mutex.RLock()

	snap := &snapshot{VERSION, gm.durableLSN, gm.gs.liveNodes(), gm.gs.liveEdges(),
		indexSpecs(gm.im.Specs())}

	gm.gs.mutex.RUnlock()

	blob, err := encodeSnapshot(snap)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrCheckpoint, Detail: "Could not encode snapshot", Cause: err}
	}

	addr, err := gm.bs.Put(blob)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrCheckpoint, Detail: "Could not store snapshot", Cause: err}
	}

	cp := &wal.Checkpoint{
		LSN:       snap.LSN,
		Snapshot:  string(addr),
		NextID:    atomic.LoadUint64(&gm.lastID) + 1,
		NextTxnID: gm.txnHighWater() + 1,
		EngineID:  gm.opts.EngineID,
		Timestamp: timeutil.MakeTimestamp(),
	}

	if err := gm.cps.Store(cp); err != nil {
		return nil, &util.GraphError{Type: util.ErrCheckpoint, Detail: "Could not store checkpoint record", Cause: err}
	}

	// The checkpoint is durable; older log records are not needed anymore

	if err := gm.log.Truncate(cp.LSN); err != nil {
		logger.Warning(fmt.Sprintf("Could not truncate log up to LSN %v: %v", cp.LSN, err))
	}

	gm.commits = 0

	metrics.Checkpoints.Inc()
	metrics.SnapshotBytes.Set(float64(len(blob)))

	logger.Info(fmt.Sprintf("Checkpoint at LSN %v written (%v nodes, %v edges, snapshot %v with %v)",
		cp.LSN, len(snap.Nodes), len(snap.Edges), addr, humanize.Bytes(uint64(len(blob)))))

	return cp, nil
}

/*
checkpointIfDue writes a checkpoint if the configured number of commits has
been reached.
*/
func (gm *Manager) checkpointIfDue() {

	if gm.opts.CheckpointInterval <= 0 {
		return
	}

	gm.commitLock.Lock()
	due := gm.commits >= gm.opts.CheckpointInterval
	gm.commitLock.Unlock()

	if due {
		if _, err := gm.Checkpoint(); err != nil {
			logger.Error(fmt.Sprintf("Automatic checkpoint failed: %v", err))
		}
	}
}

/*
indexSpecs returns copies of all index specs as values.
*/
func indexSpecs(specs []*index.Spec) []index.Spec {
	ret := make([]index.Spec, len(specs))
	for i, s := range specs {
		ret[i] = *s
	}
	return ret
}
