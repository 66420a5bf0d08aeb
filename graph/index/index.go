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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/krotik/eliasgraph/graph/data"
)

/*
Index is the internal interface of all index structures. An index is not
thread-safe; the Manager serializes access.
*/
type Index interface {

	/*
		Spec returns the spec of the index.
	*/
	Spec() *Spec

	/*
		Add adds an entity to the index.
	*/
	Add(e data.Entity)

	/*
		Remove removes an entity from the index. The given entity must be the
		version which was added.
	*/
	Remove(e data.Entity)

	/*
		Dump returns all index entries as a map from encoded key to identifiers.
	*/
	Dump() map[string]*roaring64.Bitmap

	/*
		Keys returns the number of distinct keys in the index.
	*/
	Keys() int
}

/*
newIndex creates an empty index structure for a given spec.
*/
func newIndex(spec *Spec) Index {
	switch spec.Kind {
	case KindOrdered:
		return newOrderedIndex(spec)
	case KindComposite:
		return newCompositeIndex(spec)
	case KindFullText:
		return newFullTextIndex(spec)
	}
	return newRelTypeIndex(spec)
}

/*
keyClass returns the class of a scalar key. Keys of different classes are
never equal; numbers form one class regardless of integer or float.
*/
func keyClass(v interface{}) int {
	switch v.(type) {
	case bool:
		return 0
	case int64, float64:
		return 1
	case string:
		return 2
	}
	return -1
}

/*
encodeKey encodes a scalar value into a string. Equal values (e.g. 3 and 3.0)
produce the same encoding.
*/
func encodeKey(v interface{}) string {
	switch val := v.(type) {
	case bool:
		return "b:" + strconv.FormatBool(val)
	case int64:
		return "n:" + strconv.FormatInt(val, 10)
	case float64:
		if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
			return "n:" + strconv.FormatInt(int64(val), 10)
		}
		return "n:" + strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return "s:" + val
	}
	return fmt.Sprintf("?:%v", v)
}

/*
encodeTuple encodes a list of scalar values into a string.
*/
func encodeTuple(vals []interface{}) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Quote(encodeKey(v))
	}
	return strings.Join(parts, ",")
}

/*
addToPosting adds an identifier to a posting map.
*/
func addToPosting(postings map[string]*roaring64.Bitmap, key string, id uint64) {
	bm, ok := postings[key]
	if !ok {
		bm = roaring64.New()
		postings[key] = bm
	}
	bm.Add(id)
}

/*
removeFromPosting removes an identifier from a posting map.
*/
func removeFromPosting(postings map[string]*roaring64.Bitmap, key string, id uint64) {
	if bm, ok := postings[key]; ok {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(postings, key)
		}
	}
}

/*
clonePostings returns a deep copy of a posting map.
*/
func clonePostings(postings map[string]*roaring64.Bitmap) map[string]*roaring64.Bitmap {
	ret := make(map[string]*roaring64.Bitmap, len(postings))
	for k, bm := range postings {
		ret[k] = bm.Clone()
	}
	return ret
}
