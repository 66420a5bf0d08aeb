/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/krotik/eliasgraph/graph/data"
)

/*
relTypeIndex maps relationship types to edge identifiers.
*/
type relTypeIndex struct {
	spec     *Spec
	postings map[string]*roaring64.Bitmap
}

/*
newRelTypeIndex creates a new relationship type index.
*/
func newRelTypeIndex(spec *Spec) *relTypeIndex {
	return &relTypeIndex{spec, make(map[string]*roaring64.Bitmap)}
}

/*
Spec returns the spec of the index.
*/
func (ri *relTypeIndex) Spec() *Spec {
	return ri.spec
}

/*
Add adds an edge to the index.
*/
func (ri *relTypeIndex) Add(e data.Entity) {
	if edge, ok := e.(*data.Edge); ok {
		addToPosting(ri.postings, edge.Type, edge.ID)
	}
}

/*
Remove removes an edge from the index.
*/
func (ri *relTypeIndex) Remove(e data.Entity) {
	if edge, ok := e.(*data.Edge); ok {
		removeFromPosting(ri.postings, edge.Type, edge.ID)
	}
}

/*
Lookup returns all edges of a given type.
*/
func (ri *relTypeIndex) Lookup(etype string) []uint64 {
	if bm, ok := ri.postings[etype]; ok {
		return bm.ToArray()
	}
	return nil
}

/*
Dump returns all index entries.
*/
func (ri *relTypeIndex) Dump() map[string]*roaring64.Bitmap {
	return clonePostings(ri.postings)
}

/*
Keys returns the number of distinct relationship types.
*/
func (ri *relTypeIndex) Keys() int {
	return len(ri.postings)
}
