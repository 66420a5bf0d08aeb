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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/util"
)

/*
testSource is a slice backed entity source.
*/
type testSource struct {
	nodes []*data.Node
	edges []*data.Edge
}

func (ts *testSource) ForEachNode(fn func(*data.Node) error) error {
	for _, n := range ts.nodes {
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func (ts *testSource) ForEachEdge(fn func(*data.Edge) error) error {
	for _, e := range ts.edges {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func node(id uint64, label string, props map[string]interface{}) *data.Node {
	n, err := data.NewNode(id, []string{label}, props)
	if err != nil {
		panic(err)
	}
	return n
}

func edge(id uint64, etype string, from, to uint64) *data.Edge {
	e, err := data.NewEdge(id, etype, from, to, nil)
	if err != nil {
		panic(err)
	}
	return e
}

func testPeople() *testSource {
	return &testSource{
		nodes: []*data.Node{
			node(1, "Person", map[string]interface{}{"name": "Alice", "age": 30, "city": "Berlin"}),
			node(2, "Person", map[string]interface{}{"name": "Bob", "age": 25.5, "city": "Paris"}),
			node(3, "Person", map[string]interface{}{"name": "Carol", "age": 30.0, "city": "Berlin"}),
			node(4, "Robot", map[string]interface{}{"name": "Dave", "age": 3}),
			node(5, "Person", map[string]interface{}{"name": "Eve", "age": "unknown"}),
		},
		edges: []*data.Edge{
			edge(10, "KNOWS", 1, 2),
			edge(11, "KNOWS", 2, 3),
			edge(12, "OWNS", 1, 4),
		},
	}
}

func TestSpecValidation(t *testing.T) {

	s := &Spec{Kind: KindOrdered, Label: "Person", Properties: []string{"age"}}

	if err := s.Validate(); err != nil {
		t.Error(err)
		return
	}

	if s.Name != "idx_ordered_node_Person_age" || s.Target != TargetNodes {
		t.Error("Unexpected result:", s.Name, s.Target)
		return
	}

	if res := s.String(); res != "ordered node index idx_ordered_node_Person_age on Person(age)" {
		t.Error("Unexpected result:", res)
		return
	}

	s = &Spec{Kind: KindRelType}

	if err := s.Validate(); err != nil || s.Target != TargetEdges {
		t.Error("Unexpected result:", err, s.Target)
		return
	}

	s = &Spec{Kind: KindOrdered, Label: "Per son", Properties: []string{"a-b"}}

	if err := s.Validate(); err != nil || !strings.HasPrefix(s.Name, "idx_") || len(s.Name) != 20 {
		t.Error("Unexpected result:", err, s.Name)
		return
	}

	for _, invalid := range []*Spec{
		{Kind: KindOrdered, Properties: []string{"a", "b"}},
		{Kind: KindComposite, Properties: []string{"a"}},
		{Kind: KindFullText},
		{Kind: KindRelType, Properties: []string{"a"}},
		{Kind: KindComposite, Properties: []string{"a", "a"}},
		{Kind: "foo", Properties: []string{"a"}},
		{Kind: KindOrdered, Target: "bar", Properties: []string{"a"}},
		{Name: "my index", Kind: KindOrdered, Properties: []string{"a"}},
	} {
		if err := invalid.Validate(); !errors.Is(err, util.ErrIndexError) {
			t.Error("Spec should be invalid:", invalid, err)
			return
		}
	}
}

func TestOrderedIndex(t *testing.T) {
	m := NewManager()
	src := testPeople()

	h, err := m.Create(Spec{Kind: KindOrdered, Label: "Person", Properties: []string{"age"}}, src)
	if err != nil {
		t.Error(err)
		return
	}

	// Integer and float keys with the same value are equal

	if res, _ := m.Lookup(h, int64(30)); fmt.Sprint(res) != "[1 3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Lookup(h, 30.0); fmt.Sprint(res) != "[1 3]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Robots are not indexed

	if res, _ := m.Lookup(h, int64(3)); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	it, err := m.Range(h, &Bound{int64(20), true}, &Bound{int64(30), false})
	if err != nil {
		t.Error(err)
		return
	}

	var ids []uint64
	for it.HasNext() {
		ids = append(ids, it.Next())
	}

	if fmt.Sprint(ids) != "[2]" {
		t.Error("Unexpected result:", ids)
		return
	}

	// Ranges stay inside the class of the bound

	it, _ = m.Range(h, &Bound{int64(0), false}, nil)
	if it.Len() != 3 {
		t.Error("Unexpected result:", it.Len())
		return
	}

	it, _ = m.Range(h, nil, &Bound{int64(30), true})
	if it.Len() != 3 {
		t.Error("Unexpected result:", it.Len())
		return
	}

	it, _ = m.Range(h, &Bound{"a", true}, nil)
	if res := it.Next(); res != 5 || it.HasNext() {
		t.Error("Unexpected result:", res)
		return
	}

	it, _ = m.Range(h, &Bound{int64(0), true}, &Bound{"z", true})
	if it.Len() != 0 {
		t.Error("Mixed class bounds should return nothing")
		return
	}

	// Update hook

	old := src.nodes[0]
	upd := old.WithProps(map[string]interface{}{"age": 31})

	m.OnChange(&data.Change{Kind: data.EventNodeUpdated, LSN: 2, Old: old, New: upd})

	if res, _ := m.Lookup(h, int64(30)); fmt.Sprint(res) != "[3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Lookup(h, int64(31)); fmt.Sprint(res) != "[1]" {
		t.Error("Unexpected result:", res)
		return
	}

	m.OnChange(&data.Change{Kind: data.EventNodeDeleted, LSN: 3, Old: src.nodes[2]})

	if res, _ := m.Lookup(h, int64(30)); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if _, err := m.Search(h, "name", "x"); !errors.Is(err, util.ErrUnsupportedIndexOp) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestCompositeIndex(t *testing.T) {
	m := NewManager()

	h, err := m.Create(Spec{Kind: KindComposite, Label: "Person",
		Properties: []string{"city", "age"}}, testPeople())
	if err != nil {
		t.Error(err)
		return
	}

	if res, _ := m.Lookup(h, []interface{}{"Berlin", int64(30)}); fmt.Sprint(res) != "[1 3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Lookup(h, []interface{}{"Paris", 25.5}); fmt.Sprint(res) != "[2]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Node 5 has no city and is not indexed

	if res, _ := m.Lookup(h, []interface{}{nil, "unknown"}); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if _, err := m.Lookup(h, "Berlin"); !errors.Is(err, util.ErrIndexError) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := m.Range(h, nil, nil); !errors.Is(err, util.ErrUnsupportedIndexOp) {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestRelTypeIndex(t *testing.T) {
	m := NewManager()
	src := testPeople()

	h, err := m.Create(Spec{Kind: KindRelType}, src)
	if err != nil {
		t.Error(err)
		return
	}

	if res, _ := m.Lookup(h, "KNOWS"); fmt.Sprint(res) != "[10 11]" {
		t.Error("Unexpected result:", res)
		return
	}

	m.OnChange(&data.Change{Kind: data.EventEdgeDeleted, LSN: 5, Old: src.edges[0]})
	m.OnChange(&data.Change{Kind: data.EventNodeCreated, LSN: 6,
		New: node(20, "KNOWS", nil)})

	if res, _ := m.Lookup(h, "KNOWS"); fmt.Sprint(res) != "[11]" {
		t.Error("Unexpected result:", res)
		return
	}

	if _, err := m.Create(Spec{Name: "other", Kind: KindRelType}, src); !errors.Is(err, util.ErrIndexExists) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := m.Drop(h); err != nil {
		t.Error(err)
		return
	}

	if _, err := m.Lookup(h, "KNOWS"); !errors.Is(err, util.ErrUnknownIndex) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := m.Drop(h); !errors.Is(err, util.ErrUnknownIndex) {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := m.Create(Spec{Name: "other", Kind: KindRelType}, src); err != nil {
		t.Error(err)
		return
	}
}

func TestFullTextIndex(t *testing.T) {
	m := NewManager()

	src := &testSource{
		nodes: []*data.Node{
			node(1, "Doc", map[string]interface{}{"text": "The quick brown fox jumps over the lazy dog"}),
			node(2, "Doc", map[string]interface{}{"text": "A brown dog. A brown cat. A brown fox!"}),
			node(3, "Doc", map[string]interface{}{"text": "Nothing to see", "tags": []interface{}{"fox", "hen"}}),
		},
	}

	h, err := m.Create(Spec{Kind: KindFullText, Label: "Doc", Properties: []string{"text", "tags"}}, src)
	if err != nil {
		t.Error(err)
		return
	}

	if res, _ := m.Lookup(h, "FOX"); fmt.Sprint(res) != "[1 2 3]" {
		t.Error("Unexpected result:", res)
		return
	}

	hits, err := m.Search(h, "text", "brown fox")
	if err != nil {
		t.Error(err)
		return
	}

	if res := fmt.Sprint(hits); res != "[{2 4} {1 2}]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Phrase(h, "text", "brown fox"); fmt.Sprint(res) != "[1 2]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Phrase(h, "text", "brown cat a"); fmt.Sprint(res) != "[2]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Phrase(h, "text", "lazy fox"); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Phrase(h, "text", "fox dog"); len(res) != 0 {
		t.Error("Unexpected result:", res)
		return
	}

	if res, _ := m.Phrase(h, "tags", "fox hen"); fmt.Sprint(res) != "[3]" {
		t.Error("Unexpected result:", res)
		return
	}

	if !MatchesText("The quick brown fox", "FOX hen") || MatchesText("The quick brown fox", "hen, cat") {
		t.Error("Unexpected text match")
		return
	}

	if res := extractWords("Hello, hello world!").String(); res != `WordSet:
    hello [1 2]
    world [3]
` {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestRebuildAndVerify(t *testing.T) {
	m := NewManager()
	src := testPeople()

	h, err := m.Create(Spec{Kind: KindOrdered, Label: "Person", Properties: []string{"name"}}, src)
	if err != nil {
		t.Error(err)
		return
	}

	if err := m.Verify(h, src); err != nil {
		t.Error(err)
		return
	}

	// Change the graph without calling the update hook

	src.nodes[0] = src.nodes[0].WithProps(map[string]interface{}{"name": "Alicia"})

	err = m.Verify(h, src)
	if !errors.Is(err, util.ErrIndexInconsistency) {
		t.Error("Unexpected result:", err)
		return
	}

	if !strings.Contains(err.Error(), `entities missing in index [1] for key "s:Alicia"`) ||
		!strings.Contains(err.Error(), `stale entities in index [1] for key "s:Alice"`) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := m.Rebuild(h, src); !errors.Is(err, util.ErrIndexInconsistency) {
		t.Error("Unexpected result:", err)
		return
	}

	if err := m.Verify(h, src); err != nil {
		t.Error(err)
		return
	}

	if res, _ := m.Lookup(h, "Alicia"); fmt.Sprint(res) != "[1]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := m.Specs(); len(res) != 1 || res[0].Name != string(h) {
		t.Error("Unexpected result:", res)
		return
	}

	lookups := 0
	m.SetLookupCallback(func(k Kind) { lookups++ })
	m.Lookup(h, "Bob")

	if lookups != 1 {
		t.Error("Unexpected result:", lookups)
		return
	}
}
