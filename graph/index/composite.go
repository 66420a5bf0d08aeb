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
compositeIndex maps a tuple of property values to entity identifiers. An
entity is only indexed if all properties of the tuple hold a scalar value.
*/
type compositeIndex struct {
	spec     *Spec
	postings map[string]*roaring64.Bitmap
}

/*
newCompositeIndex creates a new composite index.
*/
func newCompositeIndex(spec *Spec) *compositeIndex {
	return &compositeIndex{spec, make(map[string]*roaring64.Bitmap)}
}

/*
Spec returns the spec of the index.
*/
func (ci *compositeIndex) Spec() *Spec {
	return ci.spec
}

/*
key returns the encoded tuple of an entity.
*/
func (ci *compositeIndex) key(e data.Entity) (string, bool) {
	vals := make([]interface{}, len(ci.spec.Properties))

	for i, p := range ci.spec.Properties {
		v := e.Prop(p)
		if !data.IsScalar(v) {
			return "", false
		}
		vals[i] = v
	}

	return encodeTuple(vals), true
}

/*
Add adds an entity to the index.
*/
func (ci *compositeIndex) Add(e data.Entity) {
	if k, ok := ci.key(e); ok {
		addToPosting(ci.postings, k, e.EntityID())
	}
}

/*
Remove removes an entity from the index.
*/
func (ci *compositeIndex) Remove(e data.Entity) {
	if k, ok := ci.key(e); ok {
		removeFromPosting(ci.postings, k, e.EntityID())
	}
}

/*
Lookup returns all entities with a given tuple of values.
*/
func (ci *compositeIndex) Lookup(tuple []interface{}) []uint64 {
	if len(tuple) != len(ci.spec.Properties) {
		return nil
	}

	for _, v := range tuple {
		if !data.IsScalar(v) {
			return nil
		}
	}

	if bm, ok := ci.postings[encodeTuple(tuple)]; ok {
		return bm.ToArray()
	}

	return nil
}

/*
Dump returns all index entries.
*/
func (ci *compositeIndex) Dump() map[string]*roaring64.Bitmap {
	return clonePostings(ci.postings)
}

/*
Keys returns the number of distinct keys.
*/
func (ci *compositeIndex) Keys() int {
	return len(ci.postings)
}
