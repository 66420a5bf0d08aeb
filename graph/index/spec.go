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
	"strings"

	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/util"
)

/*
Kind is the kind of an index.
*/
type Kind string

/*
Known index kinds
*/
const (
	KindOrdered   Kind = "ordered"   // Single property, equality and range lookups
	KindComposite Kind = "composite" // Tuple of properties, equality lookups
	KindFullText  Kind = "fulltext"  // Tokenized text of properties, word and phrase lookups
	KindRelType   Kind = "reltype"   // Relationship type of edges
)

/*
Target is the kind of entity an index covers.
*/
type Target string

/*
Index targets
*/
const (
	TargetNodes Target = "node"
	TargetEdges Target = "edge"
)

/*
Handle identifies an index. It is the name of the index.
*/
type Handle string

/*
Spec describes an index.
*/
type Spec struct {
	Name       string   // Name of the index (generated if empty)
	Kind       Kind     // Kind of the index
	Target     Target   // Indexed entities
	Label      string   // Label (nodes) or relationship type (edges) of indexed entities; empty for all
	Properties []string // Indexed properties
}

/*
Validate checks the spec and fills in defaults.
*/
func (s *Spec) Validate() error {

	if s.Target == "" {
		s.Target = TargetNodes
		if s.Kind == KindRelType {
			s.Target = TargetEdges
		}
	}

	if s.Target != TargetNodes && s.Target != TargetEdges {
		return s.invalid(fmt.Sprintf("unknown target %v", s.Target))
	}

	switch s.Kind {

	case KindOrdered:
		if len(s.Properties) != 1 {
			return s.invalid("ordered index needs exactly one property")
		}

	case KindComposite:
		if len(s.Properties) < 2 {
			return s.invalid("composite index needs at least two properties")
		}

	case KindFullText:
		if len(s.Properties) < 1 {
			return s.invalid("full-text index needs at least one property")
		}

	case KindRelType:
		if s.Target != TargetEdges || s.Label != "" || len(s.Properties) != 0 {
			return s.invalid("relationship type index covers all edges and has no properties")
		}

	default:
		return s.invalid(fmt.Sprintf("unknown index kind %v", s.Kind))
	}

	seen := make(map[string]bool)

	for _, p := range s.Properties {
		if p == "" || seen[p] {
			return s.invalid(fmt.Sprintf("invalid or duplicate property %#v", p))
		}
		seen[p] = true
	}

	if s.Name == "" {
		s.Name = s.generateName()
	} else if !stringutil.IsAlphaNumeric(s.Name) {
		return s.invalid("index name must be alphanumeric")
	}

	return nil
}

/*
invalid returns an error for an invalid spec.
*/
func (s *Spec) invalid(detail string) error {
	return &util.GraphError{Type: util.ErrIndexError, Detail: fmt.Sprintf("Invalid index spec %v: %v", s, detail)}
}

/*
generateName generates a name for this spec.
*/
func (s *Spec) generateName() string {
	parts := []string{"idx", string(s.Kind), string(s.Target)}

	if s.Label != "" {
		parts = append(parts, s.Label)
	}

	parts = append(parts, s.Properties...)

	name := strings.Join(parts, "_")

	if !stringutil.IsAlphaNumeric(name) {
		name = "idx_" + stringutil.MD5HexString(name)[:16]
	}

	return name
}

/*
Canonical returns a canonical representation of the indexed data. Two specs
with the same canonical representation describe the same index.
*/
func (s *Spec) Canonical() string {
	return fmt.Sprintf("%v:%v:%v:%v", s.Kind, s.Target, s.Label, strings.Join(s.Properties, ","))
}

/*
Applies checks if this index covers a given entity.
*/
func (s *Spec) Applies(e data.Entity) bool {
	switch e.(type) {
	case *data.Node:
		if s.Target != TargetNodes {
			return false
		}
	case *data.Edge:
		if s.Target != TargetEdges {
			return false
		}
	}
	return e.Matches(s.Label)
}

/*
String returns a string representation of this spec.
*/
func (s *Spec) String() string {
	label := s.Label
	if label == "" {
		label = "*"
	}
	return fmt.Sprintf("%v %v index %v on %v(%v)", s.Kind, s.Target, s.Name,
		label, strings.Join(s.Properties, ", "))
}
