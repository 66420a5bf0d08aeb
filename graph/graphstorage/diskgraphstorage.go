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
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/krotik/common/datautil"
	"github.com/krotik/common/fileutil"
	"github.com/krotik/eliasgraph/graph/util"
)

/*
DirnameBlocks is the directory name for block files
*/
var DirnameBlocks = "blocks"

/*
DefaultBlockCacheSize is the default number of blocks kept in the read cache
*/
const DefaultBlockCacheSize = 64

/*
DiskBlockStore data structure. Blocks are stored as files in a directory
tree which is sharded by the first two characters of the address. Recently
read blocks are kept in a cache.
*/
type DiskBlockStore struct {
	name     string             // Name of the block store (root directory)
	readonly bool               // Flag for readonly mode
	cache    *datautil.MapCache // Cache for recently read blocks
}

/*
NewDiskBlockStore creates a new DiskBlockStore instance.
*/
func NewDiskBlockStore(name string, readonly bool, cacheSize uint64) (*DiskBlockStore, error) {

	if cacheSize == 0 {
		cacheSize = DefaultBlockCacheSize
	}

	dbs := &DiskBlockStore{name, readonly, datautil.NewMapCache(cacheSize, 0)}

	// Create the storage directory if it does not exist

	if res, _ := fileutil.PathExists(dbs.blockDir()); !res {
		if readonly {
			return nil, &util.GraphError{Type: util.ErrOpening,
				Detail: fmt.Sprint("Block storage does not exist: ", name)}
		}

		if err := os.MkdirAll(dbs.blockDir(), 0770); err != nil {
			return nil, &util.GraphError{Type: util.ErrOpening, Detail: name, Cause: err}
		}
	}

	return dbs, nil
}

/*
Name returns the name of the DiskBlockStore instance.
*/
func (dbs *DiskBlockStore) Name() string {
	return dbs.name
}

/*
blockDir returns the root directory of all block files.
*/
func (dbs *DiskBlockStore) blockDir() string {
	return filepath.Join(dbs.name, DirnameBlocks)
}

/*
blockFile returns the file name of a block.
*/
func (dbs *DiskBlockStore) blockFile(addr Address) (string, error) {
	if len(addr) < 3 || filepath.Base(string(addr)) != string(addr) {
		return "", &util.GraphError{Type: util.ErrInvalidData, Detail: fmt.Sprint("Invalid address ", addr)}
	}
	return filepath.Join(dbs.blockDir(), string(addr[:2]), string(addr)), nil
}

/*
Put stores a block. The block file is written atomically and synced before
Put returns.
*/
func (dbs *DiskBlockStore) Put(data []byte) (Address, error) {

	// Fail operation when readonly

	if dbs.readonly {
		return "", &util.GraphError{Type: util.ErrReadOnly, Detail: "Cannot store block"}
	}

	addr := ContentAddress(data)
	file, _ := dbs.blockFile(addr)

	if res, _ := fileutil.PathExists(file); res {
		return addr, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0770); err != nil {
		return "", &util.GraphError{Type: util.ErrIO, Detail: "Cannot store block", Cause: err}
	}

	if err := renameio.WriteFile(file, data, 0660); err != nil {
		return "", &util.GraphError{Type: util.ErrIO, Detail: "Cannot store block", Cause: err}
	}

	return addr, nil
}

/*
Get retrieves a block. The content of a block read from disk is verified
against its address.
*/
func (dbs *DiskBlockStore) Get(addr Address) ([]byte, error) {

	if block, ok := dbs.cache.Get(string(addr)); ok {
		return copyBlock(block.([]byte)), nil
	}

	file, err := dbs.blockFile(addr)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)

	if os.IsNotExist(err) {
		return nil, &util.GraphError{Type: util.ErrNotFound, Detail: fmt.Sprint("Block ", addr)}
	} else if err != nil {
		return nil, &util.GraphError{Type: util.ErrIO, Detail: fmt.Sprint("Cannot read block ", addr), Cause: err}
	}

	if ContentAddress(data) != addr {
		return nil, &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprint("Block content does not match address ", addr)}
	}

	dbs.cache.Put(string(addr), copyBlock(data))

	return data, nil
}

/*
Close closes the storage. Block files are written completely on Put so there
is nothing to flush.
*/
func (dbs *DiskBlockStore) Close() error {
	return nil
}

/*
copyBlock returns a copy of a block.
*/
func copyBlock(block []byte) []byte {
	ret := make([]byte, len(block))
	copy(ret, block)
	return ret
}
