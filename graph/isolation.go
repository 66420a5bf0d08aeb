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
	"strings"

	"github.com/krotik/eliasgraph/graph/util"
)

/*
IsolationLevel is the isolation level of a transaction.
*/
type IsolationLevel int

/*
Supported isolation levels
*/
const (
	ReadUncommitted IsolationLevel = iota // Reads see the live graph store
	ReadCommitted                         // Reads see the latest committed version
	RepeatableRead                        // Reads are served from the snapshot taken at begin
	Serializable                          // RepeatableRead plus read set validation on commit
)

/*
DefaultIsolation is the isolation level which is used if nothing else is
requested.
*/
const DefaultIsolation = RepeatableRead

var isolationNames = map[IsolationLevel]string{
	ReadUncommitted: "ReadUncommitted",
	ReadCommitted:   "ReadCommitted",
	RepeatableRead:  "RepeatableRead",
	Serializable:    "Serializable",
}

/*
String returns the name of an isolation level.
*/
func (l IsolationLevel) String() string {
	if name, ok := isolationNames[l]; ok {
		return name
	}
	return "Unknown"
}

/*
usesSnapshot returns if reads of this level are served from the begin snapshot.
*/
func (l IsolationLevel) usesSnapshot() bool {
	return l >= RepeatableRead
}

/*
ParseIsolationLevel parses the name of an isolation level. The name is not
case-sensitive and may use underscores or spaces (e.g. read_committed).
*/
func ParseIsolationLevel(name string) (IsolationLevel, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(name))

	if norm == "" {
		return DefaultIsolation, nil
	}

	for l, n := range isolationNames {
		if strings.ToLower(n) == norm {
			return l, nil
		}
	}

	return DefaultIsolation, &util.GraphError{Type: util.ErrUnknownIsolationLevel, Detail: name}
}

/*
checkIsolationLevel checks if a given isolation level is known.
*/
func checkIsolationLevel(l IsolationLevel) error {
	if _, ok := isolationNames[l]; !ok {
		return &util.GraphError{Type: util.ErrUnknownIsolationLevel, Detail: l.String()}
	}
	return nil
}
