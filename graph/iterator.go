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
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

/*
IDIterator can be used to iterate entity identifiers in ascending order. The
iterator works on a copy of the identifier set so it is not affected by
concurrent commits.
*/
type IDIterator struct {
	it    roaring64.IntPeekable64 // Internal bitmap iterator
	count uint64                  // Number of identifiers
}

/*
newIDIterator creates a new iterator over a set of identifiers.
*/
func newIDIterator(bm *roaring64.Bitmap) *IDIterator {
	return &IDIterator{bm.Iterator(), bm.GetCardinality()}
}

/*
NewIDIteratorFromList creates a new iterator over a list of identifiers.
*/
func NewIDIteratorFromList(ids []uint64) *IDIterator {
	return newIDIterator(roaring64.BitmapOf(ids...))
}

/*
Next returns the next identifier. Returns 0 if there is no next identifier.
*/
func (it *IDIterator) Next() uint64 {
	if !it.it.HasNext() {
		return 0
	}
	return it.it.Next()
}

/*
HasNext returns if there is a next identifier.
*/
func (it *IDIterator) HasNext() bool {
	return it.it.HasNext()
}

/*
Count returns the number of identifiers of the iterator. The count may include
identifiers of entities which are not visible to the reader which created the
iterator.
*/
func (it *IDIterator) Count() uint64 {
	return it.count
}
