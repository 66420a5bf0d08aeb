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
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/btree"
	"github.com/krotik/eliasgraph/graph/data"
)

/*
orderedDegree is the degree of the B-tree of an ordered index
*/
const orderedDegree = 32

/*
Bound is a bound of a range lookup.
*/
type Bound struct {
	Value     interface{} // Bound value (must be a scalar)
	Inclusive bool        // Flag if the bound itself is part of the range
}

/*
orderedItem is an entry of the B-tree.
*/
type orderedItem struct {
	key interface{}       // Scalar key
	ids *roaring64.Bitmap // Entities with this key
}

/*
orderedLess defines the order of keys. Keys are ordered by class first
(booleans, numbers, strings) and then by value.
*/
func orderedLess(a, b *orderedItem) bool {
	ca, cb := keyClass(a.key), keyClass(b.key)
	if ca != cb {
		return ca < cb
	}
	res, _ := data.CompareValues(a.key, b.key)
	return res < 0
}

/*
orderedIndex maps values of a single property to entity identifiers using a
B-tree. Only scalar values are indexed.
*/
type orderedIndex struct {
	spec *Spec
	tree *btree.BTreeG[*orderedItem]
}

/*
newOrderedIndex creates a new ordered index.
*/
func newOrderedIndex(spec *Spec) *orderedIndex {
	return &orderedIndex{spec, btree.NewG(orderedDegree, orderedLess)}
}

/*
Spec returns the spec of the index.
*/
func (oi *orderedIndex) Spec() *Spec {
	return oi.spec
}

/*
key returns the index key of an entity or nil if the entity is not indexed.
*/
func (oi *orderedIndex) key(e data.Entity) interface{} {
	v := e.Prop(oi.spec.Properties[0])

	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil
	}

	if data.IsScalar(v) {
		return v
	}

	return nil
}

/*
Add adds an entity to the index.
*/
func (oi *orderedIndex) Add(e data.Entity) {
	if k := oi.key(e); k != nil {
		item, ok := oi.tree.Get(&orderedItem{key: k})
		if !ok {
			item = &orderedItem{k, roaring64.New()}
			oi.tree.ReplaceOrInsert(item)
		}
		item.ids.Add(e.EntityID())
	}
}

/*
Remove removes an entity from the index.
*/
func (oi *orderedIndex) Remove(e data.Entity) {
	if k := oi.key(e); k != nil {
		if item, ok := oi.tree.Get(&orderedItem{key: k}); ok {
			item.ids.Remove(e.EntityID())
			if item.ids.IsEmpty() {
				oi.tree.Delete(item)
			}
		}
	}
}

/*
Lookup returns all entities with a given key.
*/
func (oi *orderedIndex) Lookup(key interface{}) []uint64 {
	if !data.IsScalar(key) {
		return nil
	}
	if item, ok := oi.tree.Get(&orderedItem{key: key}); ok {
		return item.ids.ToArray()
	}
	return nil
}

/*
Range returns all entities with a key inside the given bounds in key order.
Entities with the same key are returned in identifier order. A nil bound is
unbounded but the range never leaves the key class of the other bound.
*/
func (oi *orderedIndex) Range(lower, upper *Bound) []uint64 {
	var ret []uint64

	class := -1

	for _, b := range []*Bound{lower, upper} {
		if b != nil {
			c := keyClass(b.Value)
			if c < 0 || (class >= 0 && c != class) {
				return nil
			}
			class = c
		}
	}

	visit := func(item *orderedItem) bool {

		if class >= 0 && keyClass(item.key) != class {
			return keyClass(item.key) < class
		}

		if lower != nil && !lower.Inclusive {
			if res, _ := data.CompareValues(item.key, lower.Value); res == 0 {
				return true
			}
		}

		if upper != nil {
			res, _ := data.CompareValues(item.key, upper.Value)
			if res > 0 || (res == 0 && !upper.Inclusive) {
				return false
			}
		}

		ret = append(ret, item.ids.ToArray()...)

		return true
	}

	if lower != nil {
		oi.tree.AscendGreaterOrEqual(&orderedItem{key: lower.Value}, visit)
	} else {
		oi.tree.Ascend(visit)
	}

	return ret
}

/*
Dump returns all index entries.
*/
func (oi *orderedIndex) Dump() map[string]*roaring64.Bitmap {
	ret := make(map[string]*roaring64.Bitmap, oi.tree.Len())

	oi.tree.Ascend(func(item *orderedItem) bool {
		ret[encodeKey(item.key)] = item.ids.Clone()
		return true
	})

	return ret
}

/*
Keys returns the number of distinct keys.
*/
func (oi *orderedIndex) Keys() int {
	return oi.tree.Len()
}
