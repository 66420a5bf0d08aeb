/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wal

import (
	"sync"
)

/*
Log is the abstract interface of a write-ahead log.
*/
type Log interface {

	/*
		Append appends a record to the log. The log assigns the LSN and the
		PrevLSN of the record. The record is not durable before Sync returns.
	*/
	Append(rec *Record) (uint64, error)

	/*
		Sync makes all appended records durable.
	*/
	Sync() error

	/*
		Replay calls a function for every durable record with an LSN greater
		or equal to from in LSN order.
	*/
	Replay(from uint64, fn func(*Record) error) error

	/*
		Truncate removes records which have an LSN less or equal to upTo.
		Implementations may keep more records than requested.
	*/
	Truncate(upTo uint64) error

	/*
		LastLSN returns the last assigned LSN.
	*/
	LastLSN() uint64

	/*
		Close closes the log.
	*/
	Close() error
}

/*
lsnAssigner assigns LSNs and links records of the same transaction.
*/
type lsnAssigner struct {
	last     uint64            // Last assigned LSN
	lastOfTx map[uint64]uint64 // Last LSN of each open transaction
}

/*
assign assigns the next LSN to a record.
*/
func (a *lsnAssigner) assign(rec *Record) {
	a.last++

	rec.LSN = a.last
	rec.PrevLSN = a.lastOfTx[rec.TxnID]

	if rec.Op == OpCommit || rec.Op == OpAbort {
		delete(a.lastOfTx, rec.TxnID)
	} else {
		a.lastOfTx[rec.TxnID] = rec.LSN
	}
}

/*
MemoryLog is a log which keeps all records in memory. Records which were
appended but not synced are lost on Crash. This makes the memory log useful
for memory-only engines and for testing.
*/
type MemoryLog struct {
	lsnAssigner
	records []*Record   // Records of the log
	synced  int         // Number of durable records
	closed  bool        // Flag if the log is closed
	mutex   *sync.Mutex // Mutex to protect the records
	SyncErr error       // Error which should be returned on the next Sync (for testing)
}

/*
NewMemoryLog creates a new memory log.
*/
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{lsnAssigner{0, make(map[uint64]uint64)},
		nil, 0, false, &sync.Mutex{}, nil}
}

/*
Append appends a record to the log.
*/
func (ml *MemoryLog) Append(rec *Record) (uint64, error) {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if ml.closed {
		return 0, ErrClosed
	}

	ml.assign(rec)

	payload := make([]byte, len(rec.Payload))
	copy(payload, rec.Payload)

	ml.records = append(ml.records, &Record{rec.LSN, rec.TxnID, rec.PrevLSN, rec.Op, payload})

	return rec.LSN, nil
}

/*
Sync makes all appended records durable.
*/
func (ml *MemoryLog) Sync() error {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	if ml.closed {
		return ErrClosed
	}

	// A failed sync loses all records which were not yet durable

	if err := ml.SyncErr; err != nil {
		ml.SyncErr = nil
		ml.records = ml.records[:ml.synced]
		return err
	}

	ml.synced = len(ml.records)

	return nil
}

/*
Replay calls a function for every durable record starting with a given LSN.
*/
func (ml *MemoryLog) Replay(from uint64, fn func(*Record) error) error {
	ml.mutex.Lock()
	records := ml.records[:ml.synced]
	ml.mutex.Unlock()

	for _, r := range records {
		if r.LSN < from {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}

	return nil
}

/*
Truncate removes records up to a given LSN.
*/
func (ml *MemoryLog) Truncate(upTo uint64) error {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	i := 0
	for i < ml.synced && ml.records[i].LSN <= upTo {
		i++
	}

	ml.records = append([]*Record(nil), ml.records[i:]...)
	ml.synced -= i

	return nil
}

/*
LastLSN returns the last assigned LSN.
*/
func (ml *MemoryLog) LastLSN() uint64 {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	return ml.last
}

/*
Crash simulates a crash. All records which have not been synced are lost and
the log can be used for a new recovery run.
*/
func (ml *MemoryLog) Crash() {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	ml.records = ml.records[:ml.synced]
	ml.closed = false
	ml.lastOfTx = make(map[uint64]uint64)

	if ml.synced > 0 {
		ml.last = ml.records[ml.synced-1].LSN
	}
}

/*
Len returns the number of records in the log.
*/
func (ml *MemoryLog) Len() int {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	return len(ml.records)
}

/*
Close closes the log.
*/
func (ml *MemoryLog) Close() error {
	ml.mutex.Lock()
	defer ml.mutex.Unlock()

	ml.closed = true

	return nil
}
