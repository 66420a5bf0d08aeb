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
	"sort"
	"time"

	"github.com/krotik/eliasgraph/graph/graphstorage"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
recoveryState is the state of a recovery run.
*/
type recoveryState struct {
	pending   map[uint64][]*wal.Record // Records of transactions without commit record
	specs     map[string]index.Spec    // Index definitions by name
	maxID     uint64                   // Highest seen entity identifier
	maxTxnID  uint64                   // Highest seen transaction identifier
	replayed  int                      // Number of replayed transactions
	discarded int                      // Number of discarded transactions
}

/*
recover restores the last committed state. Must be called on a new manager
before any transaction is started.
*/
func (gm *Manager) recover() error {
	start := time.Now()

	rs := &recoveryState{make(map[uint64][]*wal.Record), make(map[string]index.Spec), 0, 0, 0, 0}

	recoveryError := func(detail string, err error) error {
		return &util.GraphError{Type: util.ErrRecovery, Detail: detail, Cause: err}
	}

	cp, err := gm.cps.Load()
	if err != nil {
		return recoveryError("Could not load checkpoint", err)
	}

	from := uint64(1)

	if cp != nil {

		// Load the snapshot of the checkpoint

		blob, err := gm.bs.Get(graphstorage.Address(cp.Snapshot))
		if err != nil {
			return recoveryError(fmt.Sprintf("Could not load snapshot %v", cp.Snapshot), err)
		}

		snap, err := decodeSnapshot(blob)
		if err != nil {
			return recoveryError(fmt.Sprintf("Could not decode snapshot %v", cp.Snapshot), err)
		}

		gm.gs.load(snap)

		for _, spec := range snap.Indexes {
			rs.specs[spec.Name] = spec
		}

		rs.maxID = cp.NextID - 1
		rs.maxTxnID = cp.NextTxnID - 1
		from = cp.LSN + 1

		if gm.opts.EngineID == "" {
			gm.opts.EngineID = cp.EngineID
		}

		if last := gm.log.LastLSN(); last < cp.LSN {
			return recoveryError(fmt.Sprintf("Log ends at LSN %v before checkpoint LSN %v", last, cp.LSN), nil)
		}
	}

	gm.durableLSN = gm.gs.lastLSN

	if err := gm.log.Replay(from, rs.replayRecord(gm)); err != nil {
		return recoveryError("Could not replay log", err)
	}

	rs.discarded = len(rs.pending)

	gm.lastID = rs.maxID
	gm.lastTxnID = rs.maxTxnID
	gm.reserved = rs.maxTxnID

	// Rebuild all indexes from the recovered graph

	specs := make([]index.Spec, 0, len(rs.specs))
	for _, spec := range rs.specs {
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Name < specs[j].Name
	})

	if err := gm.im.Restore(specs, &liveSource{gm.gs}); err != nil {
		return recoveryError("Could not rebuild indexes", err)
	}

	if cp != nil || rs.replayed > 0 {
		logger.Info(fmt.Sprintf("Recovered graph at LSN %v (checkpoint: %v, replayed: %v, discarded: %v, "+
			"nodes: %v, edges: %v) in %v", gm.gs.lastLSN, cpLSN(cp), rs.replayed, rs.discarded,
			gm.gs.live[0], gm.gs.live[1], time.Since(start)))
	}

	if rs.discarded > 0 {
		logger.Warning(fmt.Sprintf("Discarded %v transactions without commit record", rs.discarded))
	}

	return nil
}

/*
replayRecord returns a function which replays a single log record.
*/
func (rs *recoveryState) replayRecord(gm *Manager) func(*wal.Record) error {
	return func(rec *wal.Record) error {

		if rec.TxnID > rs.maxTxnID {
			rs.maxTxnID = rec.TxnID
		}

		switch rec.Op {

		case wal.OpBegin:
			rs.pending[rec.TxnID] = nil

		case wal.OpAbort:
			delete(rs.pending, rec.TxnID)

		case wal.OpReserveTxnIDs:

			// The reserved identifiers were counted above

		case wal.OpCommit:
			recs := rs.pending[rec.TxnID]
			delete(rs.pending, rec.TxnID)

			return rs.applyTxn(gm, rec.LSN, recs)

		default:
			rs.pending[rec.TxnID] = append(rs.pending[rec.TxnID], rec)
		}

		return nil
	}
}

/*
applyTxn applies all records of a committed transaction.
*/
func (rs *recoveryState) applyTxn(gm *Manager, lsn uint64, recs []*wal.Record) error {
	var muts []*mutation

	for _, rec := range recs {
		switch rec.Op {

		case wal.OpCreateIndex, wal.OpDropIndex:
			spec, err := decodeIndexSpec(rec)
			if err != nil {
				return fmt.Errorf("Could not decode index definition at LSN %v: %w", rec.LSN, err)
			}

			if rec.Op == wal.OpCreateIndex {
				rs.specs[spec.Name] = spec
			} else {
				delete(rs.specs, spec.Name)
			}

		default:
			m, err := decodeMutation(rec)
			if err != nil {
				return err
			}

			if m.ID > rs.maxID {
				rs.maxID = m.ID
			}

			muts = append(muts, m)
		}
	}

	if len(muts) > 0 {
		gm.gs.apply(lsn, muts)
		rs.replayed++
	}

	gm.durableLSN = lsn

	return nil
}

/*
cpLSN returns the LSN of a checkpoint or 0 if there is no checkpoint.
*/
func cpLSN(cp *wal.Checkpoint) uint64 {
	if cp == nil {
		return 0
	}
	return cp.LSN
}
