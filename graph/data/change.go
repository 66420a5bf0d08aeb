/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import "fmt"

/*
Entity is the common interface of nodes and edges.
*/
type Entity interface {

	/*
		EntityID returns the internal identifier of the entity.
	*/
	EntityID() uint64

	/*
		Matches checks if the entity carries a label (nodes) or a
		relationship type (edges).
	*/
	Matches(name string) bool

	/*
		Prop returns a property of the entity.
	*/
	Prop(name string) interface{}

	/*
		IndexMap returns the string properties of the entity.
	*/
	IndexMap() map[string]string
}

/*
EventKind describes the kind of a committed change.
*/
type EventKind int

// Graph events
//=============

/*
EventNodeCreated is fired when a node gets created.

Parameters: created node
*/
const EventNodeCreated EventKind = 0x01

/*
EventNodeUpdated is fired when the properties of a node were updated.

Parameters: updated node, old node
*/
const EventNodeUpdated EventKind = 0x02

/*
EventNodeDeleted is fired when a node gets deleted.

Parameters: deleted node
*/
const EventNodeDeleted EventKind = 0x03

/*
EventEdgeCreated is fired when an edge gets created.

Parameters: created edge
*/
const EventEdgeCreated EventKind = 0x04

/*
EventEdgeUpdated is fired when the properties of an edge were updated.

Parameters: updated edge, old edge
*/
const EventEdgeUpdated EventKind = 0x05

/*
EventEdgeDeleted is fired when an edge gets deleted.

Parameters: deleted edge
*/
const EventEdgeDeleted EventKind = 0x06

/*
String returns a string representation of an event kind.
*/
func (k EventKind) String() string {
	switch k {
	case EventNodeCreated:
		return "NodeCreated"
	case EventNodeUpdated:
		return "NodeUpdated"
	case EventNodeDeleted:
		return "NodeDeleted"
	case EventEdgeCreated:
		return "EdgeCreated"
	case EventEdgeUpdated:
		return "EdgeUpdated"
	case EventEdgeDeleted:
		return "EdgeDeleted"
	}
	return fmt.Sprintf("Event(%d)", int(k))
}

/*
Change is a single committed mutation. Old holds the previous version of the
entity (nil for creations), New the new version (nil for deletions).
*/
type Change struct {
	Kind EventKind
	LSN  uint64 // Commit LSN of the transaction which made the change
	Old  Entity
	New  Entity
}

/*
IsNodeChange returns true if this change affects a node.
*/
func (c *Change) IsNodeChange() bool {
	return c.Kind <= EventNodeDeleted
}

/*
String returns a string representation of this change.
*/
func (c *Change) String() string {
	var id uint64

	if c.New != nil {
		id = c.New.EntityID()
	} else if c.Old != nil {
		id = c.Old.EntityID()
	}

	return fmt.Sprintf("%v %v @%v", c.Kind, id, c.LSN)
}
