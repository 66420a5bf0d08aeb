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
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/krotik/common/sortutil"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/graphstorage"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/metrics"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
Options are the tuning parameters of a graph manager.
*/
type Options struct {
	TransactionTimeout time.Duration // Timeout of transactions (0 for no timeout)
	CheckpointInterval int           // Commits after which a checkpoint is written (0 disables)
	GCInterval         int           // Commits after which superseded versions are collected
	EngineID           string        // Identifier of the engine (generated if empty)
}

/*
DefaultOptions returns the default options of a graph manager.
*/
func DefaultOptions() Options {
	return Options{DefaultTransactionTimeout, 0, DefaultGCInterval, ""}
}

/*
Manager data structure
*/
type Manager struct {
	gs   *store                  // Multi-version graph store
	gr   *graphRulesManager      // Manager for graph rules
	im   *index.Manager          // Secondary indexes
	log  wal.Log                 // Write-ahead log
	cps  wal.CheckpointStore     // Store for the checkpoint record
	bs   graphstorage.BlockStore // Block store for graph snapshots
	opts Options                 // Options of this manager

	lastID     uint64                // Last assigned entity identifier (atomic)
	lastTxnID  uint64                // Last assigned transaction identifier (atomic)
	reserved   uint64                // Highest transaction identifier reserved in the log
	durableLSN uint64                // LSN of the last durable commit or DDL record
	commits    int                   // Commits since the last checkpoint
	gcCount    int                   // Commits since the last garbage collection
	active     map[uint64]*baseTrans // Active transactions
	closed     atomic.Bool           // Flag if the manager was closed

	commitLock *sync.Mutex // Lock for the commit critical section
	txnLock    *sync.Mutex // Lock for the transaction identifier reservation
	mutex      *sync.Mutex // Mutex to protect the active transactions
}

/*
NewGraphManager returns a new GraphManager instance. The manager recovers the
last committed state from the given checkpoint store, block store and log.
*/
func NewGraphManager(log wal.Log, cps wal.CheckpointStore, bs graphstorage.BlockStore,
	opts Options) (*Manager, error) {

	if opts.GCInterval < 1 {
		opts.GCInterval = DefaultGCInterval
	}

	gm := &Manager{newStore(), nil, index.NewManager(), log, cps, bs, opts,
		0, 0, 0, 0, 0, 0, make(map[uint64]*baseTrans), atomic.Bool{},
		&sync.Mutex{}, &sync.Mutex{}, &sync.Mutex{}}

	gm.gr = newGraphRulesManager(gm)

	if err := gm.recover(); err != nil {
		return nil, err
	}

	if gm.opts.EngineID == "" {
		gm.opts.EngineID = uuid.NewString()
	}

	// Indexes follow every change from now on

	gm.gs.addHook(gm.im.OnChange)

	gm.im.SetLookupCallback(func(kind index.Kind) {
		metrics.IndexLookups.WithLabelValues(string(kind)).Inc()
	})

	gm.SetGraphRule(&SystemRuleDeleteNodeEdges{})

	return gm, nil
}

/*
EngineID returns the identifier of the engine which is stored in checkpoints.
*/
func (gm *Manager) EngineID() string {
	return gm.opts.EngineID
}

/*
SetGraphRule sets a GraphRule.
*/
func (gm *Manager) SetGraphRule(rule Rule) {
	gm.gr.SetGraphRule(rule)
}

/*
GraphRules returns a list of all available graph rules.
*/
func (gm *Manager) GraphRules() []string {
	return gm.gr.GraphRules()
}

/*
LastLSN returns the LSN of the last committed transaction.
*/
func (gm *Manager) LastLSN() uint64 {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return gm.gs.lastLSN
}

/*
newID returns a new unique entity identifier.
*/
func (gm *Manager) newID() uint64 {
	return atomic.AddUint64(&gm.lastID, 1)
}

/*
newTxnID returns a new unique transaction identifier. Identifiers are reserved
in blocks with a log record so they are not handed out again after a restart.
*/
func (gm *Manager) newTxnID() (uint64, error) {
	gm.txnLock.Lock()
	defer gm.txnLock.Unlock()

	id := atomic.LoadUint64(&gm.lastTxnID) + 1

	if id > gm.reserved {
		mark := id + TxnIDBlockSize - 1

		if _, err := gm.appendAndSync([]*wal.Record{{TxnID: mark, Op: wal.OpReserveTxnIDs}}); err != nil {
			return 0, err
		}

		gm.reserved = mark
	}

	atomic.StoreUint64(&gm.lastTxnID, id)

	return id, nil
}

/*
txnHighWater returns the highest transaction identifier which may have been
handed out.
*/
func (gm *Manager) txnHighWater() uint64 {
	gm.txnLock.Lock()
	defer gm.txnLock.Unlock()

	return gm.reserved
}

/*
checkOpen returns an error if the manager was closed.
*/
func (gm *Manager) checkOpen() error {
	if gm.closed.Load() {
		return &util.GraphError{Type: util.ErrEngineClosed}
	}
	return nil
}

// Transaction management
// ======================

/*
begin starts a new transaction. The snapshot is taken while the transaction is
registered so the garbage collection cannot remove versions it needs.
*/
func (gm *Manager) begin(level IsolationLevel) (*baseTrans, error) {

	if err := checkIsolationLevel(level); err != nil {
		return nil, err
	}

	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	if err := gm.checkOpen(); err != nil {
		return nil, err
	}

	gm.gs.mutex.RLock()
	snapshot := gm.gs.lastLSN
	gm.gs.mutex.RUnlock()

	id, err := gm.newTxnID()
	if err != nil {
		return nil, err
	}

	t := newBaseTrans(gm, id, level, snapshot)
	gm.active[t.id] = t

	metrics.ActiveTransactions.Inc()

	return t, nil
}

/*
release removes a finished transaction from the active transactions.
*/
func (gm *Manager) release(t *baseTrans) {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	if _, ok := gm.active[t.id]; ok {
		delete(gm.active, t.id)
		metrics.ActiveTransactions.Dec()
	}
}

/*
ActiveTransactions returns the number of active transactions.
*/
func (gm *Manager) ActiveTransactions() int {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	return len(gm.active)
}

/*
oldestSnapshot returns the oldest snapshot which is still used by an active
transaction other than the given one. Transactions which always read the
latest state do not keep old versions alive.
*/
func (gm *Manager) oldestSnapshot(except *baseTrans) uint64 {
	gm.mutex.Lock()
	defer gm.mutex.Unlock()

	gm.gs.mutex.RLock()
	oldest := gm.gs.lastLSN
	gm.gs.mutex.RUnlock()

	for id, t := range gm.active {
		if id != except.id && t.level.usesSnapshot() && t.snapshot < oldest {
			oldest = t.snapshot
		}
	}

	return oldest
}

/*
ReapTransactions aborts all transactions which exceeded their timeout.
Returns the number of aborted transactions.
*/
func (gm *Manager) ReapTransactions(now time.Time) int {
	gm.mutex.Lock()

	candidates := make([]*baseTrans, 0, len(gm.active))
	for _, t := range gm.active {
		candidates = append(candidates, t)
	}

	gm.mutex.Unlock()

	reaped := 0

	for _, t := range candidates {
		if t.expired(now) {
			reaped++
		}
	}

	return reaped
}

/*
commit runs the commit protocol for a transaction. Must be called with the
transaction lock held and the transaction in state Committing.
*/
func (gm *Manager) commit(t *baseTrans) error {
	muts := t.mutations()

	gm.commitLock.Lock()
	defer gm.commitLock.Unlock()

	if err := gm.checkOpen(); err != nil {
		return err
	}

	gm.gs.mutex.RLock()
	err := gm.validate(t)
	gm.gs.mutex.RUnlock()

	if err != nil {
		return err
	}

	if len(muts) == 0 {
		return nil
	}

	lsn, err := gm.writeLog(t.id, muts)
	if err != nil {
		logger.Error(fmt.Sprintf("Could not write transaction %v: %v", t.id, err))
		return err
	}

	oldest := gm.oldestSnapshot(t)

	// Apply the changes and update all indexes in one critical section

	gm.gs.mutex.Lock()

	gm.gs.apply(lsn, muts)

	if gm.gcCount++; gm.gcCount >= gm.opts.GCInterval {
		gm.gcCount = 0

		if removed := gm.gs.gc(oldest); removed > 0 {
			metrics.CollectedVersions.Add(float64(removed))
		}
	}

	gm.gs.mutex.Unlock()

	gm.durableLSN = lsn
	gm.commits++

	metrics.Commits.Inc()

	logger.Debug(fmt.Sprintf("Committed transaction %v with %v mutations at LSN %v",
		t.id, len(muts), lsn))

	return nil
}

/*
validate checks if a transaction can be committed. Must be called with the
store read lock held.
*/
func (gm *Manager) validate(t *baseTrans) error {
	gs := gm.gs

	conflict := func(detail string, args ...interface{}) error {
		return &util.GraphError{Type: util.ErrConflict, Detail: fmt.Sprintf(detail, args...)}
	}

	// Every written entity must still have the version the transaction saw

	for _, id := range t.order {
		if gs.version(id) != t.writes[id] {
			return conflict("Entity %v was changed by another transaction", id)
		}
	}

	if t.level == Serializable {

		// Entities read by the transaction must not have changed

		for _, id := range sortedKeys(t.reads) {
			if gs.version(id) != t.reads[id] {
				return conflict("Entity %v was read and changed by another transaction", id)
			}
		}

		// Scanned labels and traversed nodes must not have gained or lost members

		for label := range t.labels {
			if gs.labelLSN[label] > t.snapshot {
				if label == "" {
					return conflict("Scanned nodes were changed by another transaction")
				}
				return conflict("Nodes with label %v were changed by another transaction", label)
			}
		}

		for id := range t.adj {
			if gs.adjLSN[id] > t.snapshot {
				return conflict("Relationships of node %v were changed by another transaction", id)
			}
		}
	}

	return gm.validateStructure(t)
}

/*
validateStructure checks that the graph stays consistent: new edges must
connect existing nodes and deleted nodes must not have remaining edges.
*/
func (gm *Manager) validateStructure(t *baseTrans) error {
	gs := gm.gs

	nodeExists := func(id uint64) bool {
		if n, ok := t.nodes[id]; ok {
			return n != nil
		}
		return gs.node(id, latestSnapshot) != nil
	}

	for _, id := range t.order {

		if e, ok := t.edges[id]; ok && e != nil && t.created[id] {
			if !nodeExists(e.From) || !nodeExists(e.To) {
				return &util.GraphError{Type: util.ErrConflict,
					Detail: fmt.Sprintf("Endpoint of edge %v was deleted by another transaction", id)}
			}
		}

		if n, ok := t.nodes[id]; ok && n == nil && !t.created[id] {
			for _, eid := range gs.liveEdgeIDs(id) {
				if e, ok := t.edges[eid]; !ok || e != nil {
					return &util.GraphError{Type: util.ErrConflict,
						Detail: fmt.Sprintf("Node %v got edge %v from another transaction", id, eid)}
				}
			}
		}
	}

	return nil
}

/*
writeLog writes all records of a transaction to the log and waits until they
are durable. Returns the LSN of the commit record.
*/
func (gm *Manager) writeLog(txnID uint64, muts []*mutation) (uint64, error) {
	recs := make([]*wal.Record, 0, len(muts)+2)

	recs = append(recs, &wal.Record{TxnID: txnID, Op: wal.OpBegin})

	for _, m := range muts {
		recs = append(recs, m.record(txnID))
	}

	recs = append(recs, &wal.Record{TxnID: txnID, Op: wal.OpCommit})

	return gm.appendAndSync(recs)
}

/*
appendAndSync appends records to the log and syncs the log. Returns the LSN
of the last record.
*/
func (gm *Manager) appendAndSync(recs []*wal.Record) (uint64, error) {
	var lsn uint64
	var size int

	for _, rec := range recs {
		var err error

		if lsn, err = gm.log.Append(rec); err != nil {
			return 0, &util.GraphError{Type: util.ErrIO, Detail: "Could not append to log", Cause: err}
		}

		size += rec.Size()
	}

	start := time.Now()

	if err := gm.log.Sync(); err != nil {
		return 0, &util.GraphError{Type: util.ErrIO, Detail: "Could not sync log", Cause: err}
	}

	metrics.WALSyncSeconds.Observe(time.Since(start).Seconds())
	metrics.WALBytes.Add(float64(size))

	return lsn, nil
}

/*
Close aborts all active transactions and closes the manager. The log and the
block store are not closed.
*/
func (gm *Manager) Close() error {
	gm.mutex.Lock()

	if gm.closed.Swap(true) {
		gm.mutex.Unlock()
		return nil
	}

	candidates := make([]*baseTrans, 0, len(gm.active))
	for _, t := range gm.active {
		candidates = append(candidates, t)
	}

	gm.mutex.Unlock()

	for _, t := range candidates {
		t.Rollback()
	}

	// Wait for a running commit

	gm.commitLock.Lock()
	gm.commitLock.Unlock()

	return nil
}

/*
sortedKeys returns the keys of an identifier map in ascending order.
*/
func sortedKeys(m map[uint64]uint64) []uint64 {
	ret := make([]uint64, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sortutil.UInt64s(ret)
	return ret
}

/*
liveSource provides the latest state of the graph store as an entity source
for index builds. The caller must hold the store read lock.
*/
type liveSource struct {
	gs *store
}

/*
ForEachNode calls a function for every live node.
*/
func (ls *liveSource) ForEachNode(fn func(*data.Node) error) error {
	for _, n := range ls.gs.liveNodes() {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

/*
ForEachEdge calls a function for every live edge.
*/
func (ls *liveSource) ForEachEdge(fn func(*data.Edge) error) error {
	for _, e := range ls.gs.liveEdges() {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
