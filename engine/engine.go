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
Package engine contains the public API of the embedded graph engine.

An engine wires the write-ahead log, the block store, the graph manager with
its indexes and the query compiler. Writes happen inside transactions:

	e, err := engine.Open(engine.DefaultOptions())
	tx, err := e.Begin(graph.Serializable)
	id, err := e.CreateNode(tx, []string{"Person"}, map[string]interface{}{"name": "Alice"})
	err = e.Commit(tx)

Queries run either on the latest committed state or inside a transaction.
A background reaper aborts transactions which exceeded their timeout.
*/
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/lockutil"
	"github.com/krotik/common/logutil"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/config"
	"github.com/krotik/eliasgraph/graph"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/graphstorage"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/graph/util"
	"github.com/krotik/eliasgraph/query"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
logger is the logger of the engine
*/
var logger = logutil.GetLogger("eliasgraph.engine")

/*
DirnameWAL is the directory name of the write-ahead log segments
*/
var DirnameWAL = "wal"

/*
Options are the options of an engine.
*/
type Options struct {
	MemoryOnly         bool                 // Flag if nothing should be written to disk
	Location           string               // Data directory
	LockFile           string               // Name of the lock file inside the data directory
	WALSegmentSize     int64                // Size after which a new log segment is started
	CheckpointInterval int                  // Commits after which a checkpoint is written (0 disables)
	GCInterval         int                  // Commits after which old versions are collected
	TransactionTimeout time.Duration        // Timeout of transactions (0 for no timeout)
	ReaperInterval     time.Duration        // Interval of the transaction reaper
	DefaultIsolation   graph.IsolationLevel // Isolation level of Begin with no explicit level
	DefaultBudget      string               // Name of the budget preset used by Query
	PlanCacheSize      int64                // Number of cached query plans
	BlockCacheSize     uint64               // Number of cached blocks of the disk block store
	Budgets            []budget.Spec        // Additional budget presets
}

/*
DefaultOptions returns options for a memory only engine.
*/
func DefaultOptions() Options {
	return Options{
		MemoryOnly:       true,
		ReaperInterval:   10 * time.Second,
		DefaultIsolation: graph.DefaultIsolation,
		DefaultBudget:    budget.Moderate.Name,
		PlanCacheSize:    query.DefaultPlanCacheSize,
	}
}

/*
OptionsFromConfig creates engine options from the loaded configuration.
*/
func OptionsFromConfig() (Options, error) {

	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	level, err := graph.ParseIsolationLevel(config.Str(config.DefaultIsolation))
	if err != nil {
		return Options{}, err
	}

	budgets, err := config.Budgets()
	if err != nil {
		return Options{}, err
	}

	return Options{
		MemoryOnly:         config.Bool(config.MemoryOnlyStorage),
		Location:           config.Str(config.LocationDatastore),
		LockFile:           config.Str(config.LockFile),
		WALSegmentSize:     config.Int(config.WALSegmentSize),
		CheckpointInterval: int(config.Int(config.CheckpointInterval)),
		GCInterval:         int(config.Int(config.GCInterval)),
		TransactionTimeout: config.Duration(config.TransactionTimeout),
		ReaperInterval:     config.Duration(config.ReaperInterval),
		DefaultIsolation:   level,
		DefaultBudget:      config.Str(config.DefaultBudget),
		PlanCacheSize:      config.Int(config.PlanCacheSize),
		BlockCacheSize:     uint64(config.Int(config.BlockCacheSize)),
		Budgets:            budgets,
	}, nil
}

/*
Engine is an embedded graph engine.
*/
type Engine struct {
	opts     Options                 // Options of the engine
	gm       *graph.Manager          // Graph manager
	log      wal.Log                 // Write-ahead log
	bs       graphstorage.BlockStore // Block store for snapshots
	compiler *query.Compiler         // Query compiler with plan cache
	lock     *lockutil.LockFile      // Lock of the data directory
	stop     chan struct{}           // Channel to stop the reaper
	wg       *sync.WaitGroup         // Wait group of the reaper
	closed   bool                    // Flag if the engine was closed
	mutex    *sync.Mutex             // Mutex to protect the closed flag
}

/*
Open opens an engine. A disk based engine recovers the state of its data
directory.
*/
func Open(opts Options) (*Engine, error) {
	var err error

	for _, spec := range opts.Budgets {
		if err = budget.RegisterPreset(spec); err != nil {
			return nil, err
		}
	}

	if _, err = budget.Preset(opts.DefaultBudget); err != nil {
		return nil, err
	}

	e := &Engine{opts: opts, stop: make(chan struct{}), wg: &sync.WaitGroup{}, mutex: &sync.Mutex{}}

	var cps wal.CheckpointStore

	if opts.MemoryOnly {
		e.log = wal.NewMemoryLog()
		cps = wal.NewMemoryCheckpointStore()
		e.bs = graphstorage.NewMemoryBlockStore("memory")

	} else if cps, err = e.openDisk(); err != nil {
		e.release()
		return nil, err
	}

	e.gm, err = graph.NewGraphManager(e.log, cps, e.bs, graph.Options{
		TransactionTimeout: opts.TransactionTimeout,
		CheckpointInterval: opts.CheckpointInterval,
		GCInterval:         opts.GCInterval,
	})

	if err == nil {
		e.compiler, err = query.NewCompiler(opts.PlanCacheSize)
	}

	if err != nil {
		e.release()
		return nil, err
	}

	if opts.TransactionTimeout > 0 && opts.ReaperInterval > 0 {
		e.wg.Add(1)
		go e.reaper()
	}

	logger.Info(fmt.Sprintf("Opened graph engine %v (%v nodes, %v edges, %v indexes)",
		e.gm.EngineID(), e.gm.NodeCount(), e.gm.EdgeCount(), len(e.gm.IndexSpecs())))

	return e, nil
}

/*
openDisk opens the disk based storage of the engine.
*/
func (e *Engine) openDisk() (wal.CheckpointStore, error) {
	var err error

	dir := e.opts.Location

	if err = os.MkdirAll(dir, 0770); err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: dir, Cause: err}
	}

	if e.opts.LockFile != "" {
		lf := lockutil.NewLockFile(filepath.Join(dir, e.opts.LockFile), time.Duration(2)*time.Second)

		if err = lf.Start(); err != nil {
			return nil, &util.GraphError{Type: util.ErrOpening, Detail: "Could not lock data directory", Cause: err}
		}

		e.lock = lf
	}

	fl, err := wal.NewFileLog(filepath.Join(dir, DirnameWAL), e.opts.WALSegmentSize)
	if err != nil {
		return nil, &util.GraphError{Type: util.ErrOpening, Detail: "Could not open write-ahead log", Cause: err}
	}

	e.log = fl

	dbs, err := graphstorage.NewDiskBlockStore(dir, false, e.opts.BlockCacheSize)
	if err != nil {
		return nil, err
	}

	e.bs = dbs

	return wal.NewFileCheckpointStore(filepath.Join(dir, wal.CheckpointFileName)), nil
}

/*
reaper aborts expired transactions until the engine is closed.
*/
func (e *Engine) reaper() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case now := <-ticker.C:
			if n := e.gm.ReapTransactions(now); n > 0 {
				logger.Warning(fmt.Sprintf("Aborted %v expired transaction%v", n, stringutil.Plural(n)))
			}
		}
	}
}

/*
Close closes the engine. Active transactions are rolled back.
*/
func (e *Engine) Close() error {
	e.mutex.Lock()

	if e.closed {
		e.mutex.Unlock()
		return nil
	}

	e.closed = true
	e.mutex.Unlock()

	close(e.stop)
	e.wg.Wait()

	err := e.release()

	logger.Info("Closed graph engine")

	return err
}

/*
release releases all resources of the engine.
*/
func (e *Engine) release() error {
	ce := errorutil.NewCompositeError()

	if e.gm != nil {
		if err := e.gm.Close(); err != nil {
			ce.Add(err)
		}
	}

	if e.compiler != nil {
		e.compiler.Close()
	}

	if e.log != nil {
		if err := e.log.Close(); err != nil {
			ce.Add(err)
		}
	}

	if e.bs != nil {
		if err := e.bs.Close(); err != nil {
			ce.Add(err)
		}
	}

	if e.lock != nil {
		if err := e.lock.Finish(); err != nil {
			ce.Add(err)
		}
	}

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
Manager returns the graph manager of the engine.
*/
func (e *Engine) Manager() *graph.Manager {
	return e.gm
}

// Transactions
// ============

/*
Tx is a handle of a transaction.
*/
type Tx struct {
	trans graph.Trans
}

/*
ID returns the identifier of the transaction.
*/
func (tx *Tx) ID() uint64 {
	return tx.trans.ID()
}

/*
Isolation returns the isolation level of the transaction.
*/
func (tx *Tx) Isolation() graph.IsolationLevel {
	return tx.trans.Isolation()
}

/*
State returns the state of the transaction.
*/
func (tx *Tx) State() graph.TransState {
	return tx.trans.State()
}

/*
String returns a string representation of the transaction.
*/
func (tx *Tx) String() string {
	return tx.trans.String()
}

/*
Begin starts a new transaction with a given isolation level.
*/
func (e *Engine) Begin(level graph.IsolationLevel) (*Tx, error) {
	trans, err := graph.NewGraphTrans(e.gm, level)
	if err != nil {
		return nil, err
	}
	return &Tx{trans}, nil
}

/*
BeginDefault starts a new transaction with the default isolation level of
the engine.
*/
func (e *Engine) BeginDefault() (*Tx, error) {
	return e.Begin(e.opts.DefaultIsolation)
}

/*
BeginRolling starts a rolling transaction which commits itself every n
operations. Rolling transactions are meant for bulk loads.
*/
func (e *Engine) BeginRolling(level graph.IsolationLevel, n int) (*Tx, error) {
	trans, err := graph.NewRollingTrans(e.gm, level, n)
	if err != nil {
		return nil, err
	}
	return &Tx{trans}, nil
}

/*
Commit commits a transaction. Returns a conflict error if the transaction
was invalidated by a concurrent commit and an IO error if the log could not
be written. The transaction is aborted in both cases.
*/
func (e *Engine) Commit(tx *Tx) error {
	return tx.trans.Commit()
}

/*
Rollback discards all changes of a transaction.
*/
func (e *Engine) Rollback(tx *Tx) {
	tx.trans.Rollback()
}

/*
CreateNode creates a new node.
*/
func (e *Engine) CreateNode(tx *Tx, labels []string, props map[string]interface{}) (uint64, error) {
	return tx.trans.CreateNode(labels, props)
}

/*
CreateEdge creates a new relationship between two nodes.
*/
func (e *Engine) CreateEdge(tx *Tx, etype string, from uint64, to uint64,
	props map[string]interface{}) (uint64, error) {

	return tx.trans.CreateEdge(etype, from, to, props)
}

/*
SetProperties updates properties of a node or a relationship. A nil value
removes a property.
*/
func (e *Engine) SetProperties(tx *Tx, id uint64, props map[string]interface{}) error {
	return tx.trans.SetProperties(id, props)
}

/*
DeleteNode deletes a node with all its relationships.
*/
func (e *Engine) DeleteNode(tx *Tx, id uint64) error {
	return tx.trans.DeleteNode(id)
}

/*
DeleteEdge deletes a relationship.
*/
func (e *Engine) DeleteEdge(tx *Tx, id uint64) error {
	return tx.trans.DeleteEdge(id)
}

// Reads
// =====

/*
reader returns the read view of a transaction or the latest committed state
if no transaction is given.
*/
func (e *Engine) reader(tx *Tx) graph.Reader {
	if tx == nil {
		return e.gm
	}
	return tx.trans
}

/*
GetNode fetches a node. Without a transaction the latest committed version is
returned.
*/
func (e *Engine) GetNode(tx *Tx, id uint64) (*data.Node, error) {
	return e.reader(tx).FetchNode(id)
}

/*
GetEdge fetches a relationship.
*/
func (e *Engine) GetEdge(tx *Tx, id uint64) (*data.Edge, error) {
	return e.reader(tx).FetchEdge(id)
}

/*
Neighbours returns the relationships of a node in a given direction.
*/
func (e *Engine) Neighbours(tx *Tx, id uint64, dir data.Direction, etypes ...string) ([]*data.Edge, error) {
	return e.reader(tx).Traverse(id, dir, etypes...)
}

/*
NodeCount returns the number of committed nodes.
*/
func (e *Engine) NodeCount() int {
	return e.gm.NodeCount()
}

/*
EdgeCount returns the number of committed relationships.
*/
func (e *Engine) EdgeCount() int {
	return e.gm.EdgeCount()
}

// Queries
// =======

/*
RunQuery runs a query on the latest committed state.
*/
func (e *Engine) RunQuery(text string, params map[string]interface{}, spec budget.Spec) (*query.Cursor, error) {
	return e.compiler.Run("query", e.gm, text, params, spec)
}

/*
RunQueryIn runs a query inside a transaction. The query sees the state of
the transaction including its own changes.
*/
func (e *Engine) RunQueryIn(tx *Tx, text string, params map[string]interface{},
	spec budget.Spec) (*query.Cursor, error) {

	return e.compiler.Run(fmt.Sprintf("query in %v", tx.ID()), e.reader(tx), text, params, spec)
}

/*
Query runs a query on the latest committed state with the default budget
and returns the complete result.
*/
func (e *Engine) Query(text string, params map[string]interface{}) (*query.Result, error) {
	spec, err := budget.Preset(e.opts.DefaultBudget)
	if err != nil {
		return nil, err
	}

	cur, err := e.RunQuery(text, params, spec)
	if err != nil {
		return nil, err
	}

	return cur.All()
}

/*
Explain returns the plan of a query.
*/
func (e *Engine) Explain(text string) (string, error) {
	return e.compiler.Explain("explain", text, e.gm)
}

// Indexes
// =======

/*
CreateIndex creates a new index. Existing entities are indexed before this
call returns.
*/
func (e *Engine) CreateIndex(spec index.Spec) (index.Handle, error) {
	return e.gm.CreateIndex(spec)
}

/*
DropIndex removes an index.
*/
func (e *Engine) DropIndex(h index.Handle) error {
	return e.gm.DropIndex(h)
}

/*
Indexes returns the specs of all indexes.
*/
func (e *Engine) Indexes() []*index.Spec {
	return e.gm.IndexSpecs()
}

/*
Lookup returns all entities which have a given key in an index. Keys of
composite indexes are lists with one value per property.
*/
func (e *Engine) Lookup(h index.Handle, key interface{}) ([]uint64, error) {
	ids, _, err := e.gm.IndexLookup(h, key)
	return ids, err
}

/*
Range returns all entities with a key between two bounds of an ordered index
in key order. A nil bound is unbounded.
*/
func (e *Engine) Range(h index.Handle, lower, upper *index.Bound) ([]uint64, error) {
	ids, _, err := e.gm.IndexRange(h, lower, upper)
	return ids, err
}

/*
Search runs a full-text search on an attribute of a full-text index.
*/
func (e *Engine) Search(h index.Handle, attr, text string) ([]index.Hit, error) {
	hits, _, err := e.gm.IndexSearch(h, attr, text)
	return hits, err
}

/*
Phrase returns all entities where an attribute of a full-text index contains
a given phrase.
*/
func (e *Engine) Phrase(h index.Handle, attr, phrase string) ([]uint64, error) {
	return e.gm.IndexPhrase(h, attr, phrase)
}

/*
Verify compares an index with the graph.
*/
func (e *Engine) Verify(h index.Handle) error {
	return e.gm.VerifyIndex(h)
}

/*
Rebuild rebuilds an index from the graph. The returned error lists all
differences between the old and the new index.
*/
func (e *Engine) Rebuild(h index.Handle) error {
	return e.gm.RebuildIndex(h)
}

// Maintenance
// ===========

/*
Checkpoint writes a snapshot of the graph and truncates the log.
*/
func (e *Engine) Checkpoint() (*wal.Checkpoint, error) {
	return e.gm.Checkpoint()
}
