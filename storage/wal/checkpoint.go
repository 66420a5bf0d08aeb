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
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/renameio"
)

/*
CheckpointFileName is the file name of the checkpoint record
*/
const CheckpointFileName = "checkpoint.json"

/*
Checkpoint is the record of the last durably applied state. Recovery loads the
snapshot from the block store and replays all log records after LSN.
*/
type Checkpoint struct {
	LSN       uint64 `json:"lsn"`         // Last LSN contained in the snapshot
	Snapshot  string `json:"snapshot"`    // Block store address of the snapshot
	NextID    uint64 `json:"next_id"`     // Next free entity identifier
	NextTxnID uint64 `json:"next_txn_id"` // Next free transaction identifier
	EngineID  string `json:"engine_id"`   // Identifier of the engine instance
	Timestamp string `json:"timestamp"`   // Time when the checkpoint was taken
}

/*
String returns a string representation of this checkpoint.
*/
func (c *Checkpoint) String() string {
	return fmt.Sprintf("Checkpoint %v (snapshot:%v nextID:%v nextTxn:%v engine:%v)",
		c.LSN, c.Snapshot, c.NextID, c.NextTxnID, c.EngineID)
}

/*
CheckpointStore stores the checkpoint record.
*/
type CheckpointStore interface {

	/*
		Load loads the last checkpoint. Returns nil if there is no checkpoint.
	*/
	Load() (*Checkpoint, error)

	/*
		Store replaces the checkpoint atomically.
	*/
	Store(c *Checkpoint) error
}

/*
FileCheckpointStore stores the checkpoint record in a JSON file. The file is
replaced atomically so a crash during Store leaves the previous checkpoint.
*/
type FileCheckpointStore struct {
	path string
}

/*
NewFileCheckpointStore creates a new checkpoint store for a given file.
*/
func NewFileCheckpointStore(path string) *FileCheckpointStore {
	return &FileCheckpointStore{path}
}

/*
Load loads the last checkpoint.
*/
func (fs *FileCheckpointStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(fs.path)

	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	c := &Checkpoint{}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("Could not read checkpoint %v: %w", fs.path, err)
	}

	return c, nil
}

/*
Store replaces the checkpoint.
*/
func (fs *FileCheckpointStore) Store(c *Checkpoint) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return renameio.WriteFile(fs.path, data, 0660)
}

/*
MemoryCheckpointStore keeps the checkpoint record in memory.
*/
type MemoryCheckpointStore struct {
	checkpoint *Checkpoint
	mutex      sync.Mutex
}

/*
NewMemoryCheckpointStore creates a new memory checkpoint store.
*/
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{}
}

/*
Load returns a copy of the last checkpoint.
*/
func (ms *MemoryCheckpointStore) Load() (*Checkpoint, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if ms.checkpoint == nil {
		return nil, nil
	}

	c := *ms.checkpoint

	return &c, nil
}

/*
Store replaces the checkpoint.
*/
func (ms *MemoryCheckpointStore) Store(c *Checkpoint) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	cc := *c
	ms.checkpoint = &cc

	return nil
}
