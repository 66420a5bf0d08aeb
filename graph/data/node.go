/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package data contains the data model of the graph.

Nodes are items stored in the graph. Each node has an internal identifier
which is assigned by the graph and never changes, a set of labels and a map of
properties. Edges connect two nodes and have exactly one relationship type.

Property values are always one of: nil, bool, int64, float64, string,
[]interface{} or map[string]interface{}. Setting a nil value to a property is
equivalent to removing the property.

Objects of this package are treated as immutable once they were handed to the
graph. Modifications always happen on copies (see Clone and WithProps).
*/
package data

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"
	"strconv"
)

func init() {

	// Register types which can appear inside property maps

	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

/*
Node data structure.
*/
type Node struct {
	ID     uint64                 // Internal identifier
	Labels []string               // Sorted set of labels
	Props  map[string]interface{} // Properties of the node
}

/*
NewNode creates a new Node instance. Labels are sorted and made unique,
properties are normalized.
*/
func NewNode(id uint64, labels []string, props map[string]interface{}) (*Node, error) {
	nprops, err := NormalizeProps(props)
	if err != nil {
		return nil, err
	}

	return &Node{id, NormalizeLabels(labels), nprops}, nil
}

/*
NormalizeLabels sorts a list of labels and removes duplicates and empty
strings.
*/
func NormalizeLabels(labels []string) []string {
	ret := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))

	for _, l := range labels {
		if l != "" && !seen[l] {
			seen[l] = true
			ret = append(ret, l)
		}
	}

	sort.Strings(ret)

	return ret
}

/*
EntityID returns the identifier of this node.
*/
func (n *Node) EntityID() uint64 {
	return n.ID
}

/*
HasLabel checks if this node has a given label.
*/
func (n *Node) HasLabel(label string) bool {
	i := sort.SearchStrings(n.Labels, label)
	return i < len(n.Labels) && n.Labels[i] == label
}

/*
Matches checks if this node carries a given label. An empty label
matches every node.
*/
func (n *Node) Matches(label string) bool {
	return label == "" || n.HasLabel(label)
}

/*
Prop returns a property of this node.
*/
func (n *Node) Prop(name string) interface{} {
	return n.Props[name]
}

/*
Clone returns a deep copy of this node.
*/
func (n *Node) Clone() *Node {
	labels := make([]string, len(n.Labels))
	copy(labels, n.Labels)
	return &Node{n.ID, labels, CopyProps(n.Props)}
}

/*
WithProps returns a copy of this node with updated properties. Properties
which are set to nil in the update are removed.
*/
func (n *Node) WithProps(update map[string]interface{}) *Node {
	ret := n.Clone()
	mergeProps(ret.Props, update)
	return ret
}

/*
IndexMap returns the string properties of this node which can be used to
provide a full-text search.
*/
func (n *Node) IndexMap() map[string]string {
	return createIndexMap(n.Props)
}

/*
String returns a string representation of this node.
*/
func (n *Node) String() string {
	return dataToString("Node", [][2]string{
		{"id", fmt.Sprint(n.ID)},
		{"labels", fmt.Sprint(n.Labels)},
	}, n.Props)
}

/*
NodeCompare compares the labels and properties of two nodes. The identifier
is ignored.
*/
func NodeCompare(node1 *Node, node2 *Node) bool {
	if len(node1.Labels) != len(node2.Labels) {
		return false
	}

	for i, l := range node1.Labels {
		if node2.Labels[i] != l {
			return false
		}
	}

	return EqualValues(node1.Props, node2.Props)
}

/*
NodeSort sorts a list of nodes by identifier.
*/
func NodeSort(list []*Node) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
}

/*
mergeProps merges an update into a property map. Nil values remove the
property.
*/
func mergeProps(props map[string]interface{}, update map[string]interface{}) {
	for k, v := range update {
		if v == nil {
			delete(props, k)
		} else {
			props[k] = CopyValue(v)
		}
	}
}

/*
createIndexMap creates a representation of a property map as a string map
which only contains string values and string list members.
*/
func createIndexMap(props map[string]interface{}) map[string]string {
	ret := make(map[string]string)

	for k, v := range props {
		switch val := v.(type) {
		case string:
			ret[k] = val

		case []interface{}:
			var buf bytes.Buffer

			for _, e := range val {
				if s, ok := e.(string); ok {
					if buf.Len() > 0 {
						buf.WriteString(" ")
					}
					buf.WriteString(s)
				}
			}

			if buf.Len() > 0 {
				ret[k] = buf.String()
			}
		}
	}

	return ret
}

/*
dataToString returns a string representation of a data item.
*/
func dataToString(dataType string, header [][2]string, props map[string]interface{}) string {
	var buf bytes.Buffer

	attrlist := SortedKeys(props)
	maxlen := 0

	for _, h := range header {
		if alen := len(h[0]); alen > maxlen {
			maxlen = alen
		}
	}
	for _, attr := range attrlist {
		if alen := len(attr); alen > maxlen {
			maxlen = alen
		}
	}

	buf.WriteString(dataType + ":\n")

	for _, h := range header {
		buf.WriteString(fmt.Sprintf("    %"+
			strconv.Itoa(maxlen)+"v : %v\n", h[0], h[1]))
	}

	for _, attr := range attrlist {
		buf.WriteString(fmt.Sprintf("    %"+
			strconv.Itoa(maxlen)+"v : %v\n", attr, props[attr]))
	}

	return buf.String()
}
