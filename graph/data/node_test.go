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
	"errors"
	"fmt"
	"testing"
)

func TestNode(t *testing.T) {
	n, err := NewNode(1, []string{"Person", "Admin", "Person", ""}, map[string]interface{}{
		"name": "Alice",
		"age":  42,
		"gone": nil,
	})

	if err != nil {
		t.Error(err)
		return
	}

	if res := fmt.Sprint(n.Labels); res != "[Admin Person]" {
		t.Error("Unexpected labels:", res)
		return
	}

	if !n.HasLabel("Person") || n.HasLabel("Robot") || !n.Matches("") {
		t.Error("Unexpected label check result")
		return
	}

	if res := n.Prop("age"); res != int64(42) {
		t.Errorf("Unexpected property: %#v", res)
		return
	}

	if _, ok := n.Props["gone"]; ok {
		t.Error("Nil property should not be stored")
		return
	}

	if res := n.String(); res != `Node:
        id : 1
    labels : [Admin Person]
       age : 42
      name : Alice
` {
		t.Error("Unexpected result:", res)
		return
	}

	n2 := n.WithProps(map[string]interface{}{"name": nil, "city": "Berlin"})

	if res := fmt.Sprint(n2.Props); res != "map[age:42 city:Berlin]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(n.Props); res != "map[age:42 name:Alice]" {
		t.Error("Original node should not be changed:", res)
		return
	}

	if NodeCompare(n, n2) || !NodeCompare(n, n.Clone()) {
		t.Error("Unexpected compare result")
		return
	}

	if _, err := NewNode(2, nil, map[string]interface{}{"x": struct{}{}}); !errors.Is(err, ErrUnsupportedValue) {
		t.Error("Unexpected result:", err)
		return
	}

	list := []*Node{{ID: 5}, {ID: 1}, {ID: 3}}
	NodeSort(list)

	if res := fmt.Sprint(list[0].ID, list[1].ID, list[2].ID); res != "1 3 5" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestEdge(t *testing.T) {
	if _, err := NewEdge(1, "", 1, 2, nil); !errors.Is(err, ErrUnsupportedValue) {
		t.Error("Unexpected result:", err)
		return
	}

	e, err := NewEdge(3, "KNOWS", 1, 2, map[string]interface{}{
		"since": float32(2.5),
		"tags":  []string{"a", "b"},
	})

	if err != nil {
		t.Error(err)
		return
	}

	if e.Other(1) != 2 || e.Other(2) != 1 {
		t.Error("Unexpected other endpoint")
		return
	}

	if !e.Matches("KNOWS") || e.Matches("LIKES") || !e.Matches("") {
		t.Error("Unexpected type check result")
		return
	}

	if res := fmt.Sprint(e.IndexMap()); res != "map[tags:a b]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := e.String(); res != `Edge:
       id : 3
     type : KNOWS
     from : 1
       to : 2
    since : 2.5
     tags : [a b]
` {
		t.Error("Unexpected result:", res)
		return
	}

	e2 := e.WithProps(map[string]interface{}{"since": nil})
	if len(e2.Props) != 1 || len(e.Props) != 2 {
		t.Error("Unexpected result:", e2.Props, e.Props)
		return
	}

	c := &Change{Kind: EventEdgeDeleted, LSN: 9, Old: e}
	if res := c.String(); res != "EdgeDeleted 3 @9" || c.IsNodeChange() {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestValues(t *testing.T) {

	if res, err := CompareValues(int64(3), 3.5); res != -1 || err != nil {
		t.Error("Unexpected result:", res, err)
		return
	}

	if res, err := CompareValues("b", "a"); res != 1 || err != nil {
		t.Error("Unexpected result:", res, err)
		return
	}

	if res, err := CompareValues(false, true); res != -1 || err != nil {
		t.Error("Unexpected result:", res, err)
		return
	}

	if res, err := CompareValues([]interface{}{int64(1), "a"},
		[]interface{}{int64(1), "a", true}); res != -1 || err != nil {
		t.Error("Unexpected result:", res, err)
		return
	}

	if _, err := CompareValues("1", int64(1)); !errors.Is(err, ErrIncomparable) {
		t.Error("Unexpected result:", err)
		return
	}

	if !EqualValues(int64(2), 2.0) || EqualValues("2", int64(2)) || !EqualValues(nil, nil) {
		t.Error("Unexpected equality result")
		return
	}

	if !EqualValues(map[string]interface{}{"a": []interface{}{int64(1)}},
		map[string]interface{}{"a": []interface{}{1.0}}) {
		t.Error("Unexpected equality result")
		return
	}

	vals := []interface{}{nil, int64(3), "b", true, 1.5, []interface{}{}, "a"}
	for i := 0; i < len(vals); i++ {
		for j := i + 1; j < len(vals); j++ {
			if OrderValues(vals[j], vals[i]) < 0 {
				vals[i], vals[j] = vals[j], vals[i]
			}
		}
	}

	if res := fmt.Sprint(vals); res != "[[] a b true 1.5 3 <nil>]" {
		t.Error("Unexpected order:", res)
		return
	}

	if v, err := NormalizeValue(map[string]int{"a": 1}); err != nil ||
		fmt.Sprintf("%#v", v) != `map[string]interface {}{"a":1}` {
		t.Errorf("Unexpected result: %#v %v", v, err)
		return
	}

	if _, err := NormalizeValue(uint64(1 << 63)); !errors.Is(err, ErrUnsupportedValue) {
		t.Error("Unexpected result:", err)
		return
	}

	if TypeName(int64(1)) != TypeInteger || TypeName(&Node{}) != TypeNode || TypeName(nil) != TypeNull {
		t.Error("Unexpected type names")
		return
	}

	orig := []interface{}{map[string]interface{}{"a": "b"}}
	cp := CopyValue(orig).([]interface{})
	cp[0].(map[string]interface{})["a"] = "c"

	if res := fmt.Sprint(orig); res != "[map[a:b]]" {
		t.Error("Copy should be deep:", res)
		return
	}
}
