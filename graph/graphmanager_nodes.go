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
	"sort"

	"github.com/krotik/eliasgraph/graph/data"
)

/*
NodeCount returns the number of live nodes.
*/
func (gm *Manager) NodeCount() int {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return gm.gs.live[0]
}

/*
Labels returns all node labels which are in use in ascending order.
*/
func (gm *Manager) Labels() []string {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	ret := make([]string, 0, len(gm.gs.labels))

	for l := range gm.gs.labels {
		ret = append(ret, l)
	}

	sort.Strings(ret)

	return ret
}

/*
FetchNode fetches a single node from the latest committed state.
*/
func (gm *Manager) FetchNode(id uint64) (*data.Node, error) {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	if n := gm.gs.node(id, latestSnapshot); n != nil {
		return n, nil
	}

	return nil, notFound("Node", id)
}

/*
NodeIDs returns an iterator over the identifiers of all nodes with a given
label. An empty label iterates over all nodes.
*/
func (gm *Manager) NodeIDs(label string) (*IDIterator, error) {
	gm.gs.mutex.RLock()
	defer gm.gs.mutex.RUnlock()

	return newIDIterator(gm.gs.nodeIDs(label)), nil
}
