/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package graph contains the graph store and the transaction manager.

Manager API

The main API is provided by a Manager object which can be created with the
NewGraphManager() constructor function. The constructor recovers the last
committed state from a checkpoint and the write-ahead log. The manager
provides read access to the latest committed state, index management and
checkpointing.

Graph store

Nodes and edges are kept in memory. Every entity has a chain of versions. A
version is identified by the LSN of the commit record of the transaction which
wrote it. A reader with a snapshot LSN sees the newest version which is not
newer than its snapshot. Versions which are not visible to any active snapshot
anymore are removed by a garbage collection run after every few commits.

Label memberships, all known identifiers and the adjacency lists of nodes are
kept in roaring bitmaps so scans always produce identifiers in ascending order.

Transactions

A transaction is used to build up multiple create, update and delete
operations. Nothing is written to the log or the graph store before calling
Commit(). Reads inside a transaction see the writes of the same transaction.

A trans object can be created with the NewGraphTrans() function. Supported
isolation levels are ReadUncommitted, ReadCommitted, RepeatableRead (default)
and Serializable.

Commit runs in a critical section which is shared by all transactions:

	1. Validate the write set (and the read set under Serializable)
	2. Append all mutation records and a commit record to the log
	3. Sync the log
	4. Apply the mutations to the graph store and update all indexes
	5. Publish the commit LSN

A transaction which fails validation is aborted with a ConflictError. A
transaction which fails to write the log is aborted with an IO error. In both
cases no part of the transaction becomes visible.

Rules

Graph rules provide automatic operations which help to keep the graph
consistent. Rules trigger on graph events inside a transaction. The rule
SystemRuleDeleteNodeEdges is automatically loaded when a new Manager is
created. It removes all edges of a node which is being deleted.

Recovery

On startup the manager loads the last checkpoint (if any), decodes the
referenced graph snapshot from the block store and replays all log records
after the checkpoint LSN. Only transactions with a durable commit record are
applied. Indexes are rebuilt from the recovered graph.
*/
package graph

import (
	"time"

	"github.com/krotik/common/logutil"
)

/*
VERSION of the graph snapshot format
*/
const VERSION = 1

var logger = logutil.GetLogger("eliasgraph.graph")

/*
DefaultTransactionTimeout is the default timeout of a transaction (0 means no timeout)
*/
const DefaultTransactionTimeout = time.Duration(0)

/*
DefaultGCInterval is the number of commits after which superseded versions are
collected.
*/
const DefaultGCInterval = 32

/*
DefaultRollingThreshold is the default number of operations after which a
rolling transaction commits itself.
*/
const DefaultRollingThreshold = 1000

/*
TxnIDBlockSize is the number of transaction identifiers which are reserved
with a single log record.
*/
const TxnIDBlockSize = 1000

/*
latestSnapshot is the snapshot marker of a reader which always sees the latest
committed state.
*/
const latestSnapshot = ^uint64(0)

// Commit outcomes for metrics
// ===========================

/*
Reasons why a transaction was aborted
*/
const (
	AbortRollback = "rollback"
	AbortConflict = "conflict"
	AbortIO       = "io"
	AbortTimeout  = "timeout"
)
