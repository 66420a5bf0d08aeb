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

import (
	"fmt"
	"sort"
)

/*
Direction of an edge traversal
*/
type Direction int

/*
Traversal directions
*/
const (
	DirectionOut  Direction = iota // Follow edges from source to target
	DirectionIn                    // Follow edges from target to source
	DirectionBoth                  // Follow edges in either direction
)

/*
String returns a string representation of a direction.
*/
func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	}
	return "both"
}

/*
Edge data structure. An edge is a directed relationship from a source node
to a target node.
*/
type Edge struct {
	ID    uint64                 // Internal identifier
	Type  string                 // Relationship type
	From  uint64                 // Source node
	To    uint64                 // Target node
	Props map[string]interface{} // Properties of the edge
}

/*
NewEdge creates a new Edge instance with normalized properties.
*/
func NewEdge(id uint64, etype string, from uint64, to uint64,
	props map[string]interface{}) (*Edge, error) {

	if etype == "" {
		return nil, fmt.Errorf("%w: edge must have a relationship type", ErrUnsupportedValue)
	}

	nprops, err := NormalizeProps(props)
	if err != nil {
		return nil, err
	}

	return &Edge{id, etype, from, to, nprops}, nil
}

/*
EntityID returns the identifier of this edge.
*/
func (e *Edge) EntityID() uint64 {
	return e.ID
}

/*
Matches checks if this edge has a given relationship type. An empty type
matches every edge.
*/
func (e *Edge) Matches(etype string) bool {
	return etype == "" || e.Type == etype
}

/*
Prop returns a property of this edge.
*/
func (e *Edge) Prop(name string) interface{} {
	return e.Props[name]
}

/*
Other returns the endpoint of this edge which is not the given node. For
self loops the given node is returned.
*/
func (e *Edge) Other(node uint64) uint64 {
	if e.From == node {
		return e.To
	}
	return e.From
}

/*
Clone returns a deep copy of this edge.
*/
func (e *Edge) Clone() *Edge {
	return &Edge{e.ID, e.Type, e.From, e.To, CopyProps(e.Props)}
}

/*
WithProps returns a copy of this edge with updated properties. Properties
which are set to nil in the update are removed.
*/
func (e *Edge) WithProps(update map[string]interface{}) *Edge {
	ret := e.Clone()
	mergeProps(ret.Props, update)
	return ret
}

/*
IndexMap returns the string properties of this edge which can be used to
provide a full-text search.
*/
func (e *Edge) IndexMap() map[string]string {
	return createIndexMap(e.Props)
}

/*
String returns a string representation of this edge.
*/
func (e *Edge) String() string {
	return dataToString("Edge", [][2]string{
		{"id", fmt.Sprint(e.ID)},
		{"type", e.Type},
		{"from", fmt.Sprint(e.From)},
		{"to", fmt.Sprint(e.To)},
	}, e.Props)
}

/*
EdgeSort sorts a list of edges by identifier.
*/
func EdgeSort(list []*Edge) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
}
