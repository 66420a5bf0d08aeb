/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graphstorage

import (
	"fmt"
	"sync"

	"github.com/krotik/eliasgraph/graph/util"
)

/*
MemoryBlockStore data structure
*/
type MemoryBlockStore struct {
	name   string             // Name of the block store
	blocks map[Address][]byte // Stored blocks
	mutex  *sync.RWMutex      // Mutex to protect the blocks
	PutErr error              // Error which should be returned by Put (for testing)
}

/*
NewMemoryBlockStore creates a new MemoryBlockStore instance.
*/
func NewMemoryBlockStore(name string) *MemoryBlockStore {
	return &MemoryBlockStore{name, make(map[Address][]byte), &sync.RWMutex{}, nil}
}

/*
Name returns the name of the MemoryBlockStore instance.
*/
func (mbs *MemoryBlockStore) Name() string {
	return mbs.name
}

/*
Put stores a block.
*/
func (mbs *MemoryBlockStore) Put(data []byte) (Address, error) {
	mbs.mutex.Lock()
	defer mbs.mutex.Unlock()

	if mbs.PutErr != nil {
		return "", &util.GraphError{Type: util.ErrIO, Detail: "Cannot store block", Cause: mbs.PutErr}
	}

	addr := ContentAddress(data)

	if _, ok := mbs.blocks[addr]; !ok {
		block := make([]byte, len(data))
		copy(block, data)
		mbs.blocks[addr] = block
	}

	return addr, nil
}

/*
Get retrieves a block.
*/
func (mbs *MemoryBlockStore) Get(addr Address) ([]byte, error) {
	mbs.mutex.RLock()
	defer mbs.mutex.RUnlock()

	block, ok := mbs.blocks[addr]
	if !ok {
		return nil, &util.GraphError{Type: util.ErrNotFound, Detail: fmt.Sprint("Block ", addr)}
	}

	ret := make([]byte, len(block))
	copy(ret, block)

	return ret, nil
}

/*
Size returns the number of stored blocks.
*/
func (mbs *MemoryBlockStore) Size() int {
	mbs.mutex.RLock()
	defer mbs.mutex.RUnlock()

	return len(mbs.blocks)
}

/*
Close closes the storage.
*/
func (mbs *MemoryBlockStore) Close() error {
	return nil
}
