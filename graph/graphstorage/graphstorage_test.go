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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/krotik/eliasgraph/graph/util"
)

func testBlockStore(t *testing.T, bs BlockStore) {

	addr, err := bs.Put([]byte("hello"))
	if err != nil {
		t.Error(err)
		return
	}

	if addr2, _ := bs.Put([]byte("hello")); addr2 != addr {
		t.Error("Same content should give the same address:", addr, addr2)
		return
	}

	if addr3, _ := bs.Put([]byte("hello!")); addr3 == addr {
		t.Error("Different content should give a different address")
		return
	}

	if res, err := bs.Get(addr); string(res) != "hello" || err != nil {
		t.Error("Unexpected result:", string(res), err)
		return
	}

	// Returned blocks are copies

	res, _ := bs.Get(addr)
	res[0] = 'x'

	if res, _ := bs.Get(addr); string(res) != "hello" {
		t.Error("Unexpected result:", string(res))
		return
	}

	if _, err := bs.Get(ContentAddress([]byte("unknown"))); !errors.Is(err, util.ErrNotFound) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestMemoryBlockStore(t *testing.T) {
	mbs := NewMemoryBlockStore("mem")

	testBlockStore(t, mbs)

	if mbs.Name() != "mem" || mbs.Size() != 2 {
		t.Error("Unexpected result:", mbs.Name(), mbs.Size())
		return
	}

	mbs.PutErr = errors.New("disk full")

	if _, err := mbs.Put([]byte("x")); !errors.Is(err, util.ErrIO) || err.Error() !=
		"GraphError: IO error (Cannot store block): disk full" {
		t.Error("Unexpected result:", err)
		return
	}

	mbs.Close()
}

func TestDiskBlockStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	if _, err := NewDiskBlockStore(dir, true, 0); !errors.Is(err, util.ErrOpening) {
		t.Error("Unexpected result:", err)
		return
	}

	dbs, err := NewDiskBlockStore(dir, false, 2)
	if err != nil {
		t.Error(err)
		return
	}

	testBlockStore(t, dbs)
	dbs.Close()

	// Reopen readonly and corrupt a block on disk

	dbs, err = NewDiskBlockStore(dir, true, 2)
	if err != nil {
		t.Error(err)
		return
	}

	addr := ContentAddress([]byte("hello!"))

	if _, err := dbs.Put([]byte("x")); !errors.Is(err, util.ErrReadOnly) {
		t.Error("Unexpected result:", err)
		return
	}

	file, _ := dbs.blockFile(addr)
	os.WriteFile(file, []byte("tampered"), 0660)

	if _, err := dbs.Get(addr); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := dbs.Get("../x"); !errors.Is(err, util.ErrInvalidData) {
		t.Error("Unexpected result:", err)
		return
	}

	if dbs.Name() != dir {
		t.Error("Unexpected name:", dbs.Name())
	}
}
