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
Package graphstorage contains the block storage which persists serialized
graph data by content address.

There are two storage objects: DiskBlockStore which stores blocks as files
and MemoryBlockStore which provides memory-only storage. The graph never
assumes anything about an address beyond equality and stable lookup.
*/
package graphstorage

import (
	"crypto/sha256"
	"encoding/hex"
)

/*
Address is the content address of a block.
*/
type Address string

/*
BlockStore interface models a content-addressable block storage.
*/
type BlockStore interface {

	/*
		Name returns the name of the BlockStore instance.
	*/
	Name() string

	/*
		Put stores a block and returns its address. The block is durable when
		Put returns. Storing the same content twice returns the same address.
	*/
	Put(data []byte) (Address, error)

	/*
		Get retrieves a block by its address.
	*/
	Get(addr Address) ([]byte, error)

	/*
		Close closes the storage.
	*/
	Close() error
}

/*
ContentAddress calculates the address of a given block.
*/
func ContentAddress(data []byte) Address {
	sum := sha256.Sum256(data)
	return Address(hex.EncodeToString(sum[:]))
}
