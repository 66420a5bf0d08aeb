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

	"github.com/klauspost/compress/zstd"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
snapshot is the serialized form of a complete graph state. Snapshots are
stored zstd compressed in the block store.
*/
type snapshot struct {
	Version int          // Version of the snapshot format
	LSN     uint64       // Last LSN contained in the snapshot
	Nodes   []*data.Node // All live nodes in identifier order
	Edges   []*data.Edge // All live edges in identifier order
	Indexes []index.Spec // Definitions of all indexes
}

/*
encodeSnapshot serializes and compresses a snapshot.
*/
func encodeSnapshot(snap *snapshot) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeAll(encodeGob(snap), nil), nil
}

/*
decodeSnapshot decompresses and deserializes a snapshot.
*/
func decodeSnapshot(blob []byte) (*snapshot, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("Could not decompress snapshot: %w", err)
	}

	var snap snapshot

	if err := decodeGob(raw, &snap); err != nil {
		return nil, fmt.Errorf("Could not decode snapshot: %w", err)
	}

	if snap.Version > VERSION {
		return nil, fmt.Errorf("Snapshot version %v is newer than supported version %v",
			snap.Version, VERSION)
	}

	return &snap, nil
}

/*
load fills an empty graph store from a snapshot. All entities get the LSN of
the snapshot as version.
*/
func (s *store) load(snap *snapshot) {
	muts := make([]*mutation, 0, len(snap.Nodes)+len(snap.Edges))

	for _, n := range snap.Nodes {
		muts = append(muts, &mutation{Op: wal.OpCreateNode, ID: n.ID, Node: n})
	}

	for _, e := range snap.Edges {
		muts = append(muts, &mutation{Op: wal.OpCreateEdge, ID: e.ID, Edge: e})
	}

	s.apply(snap.LSN, muts)
	s.lastLSN = snap.LSN
}
