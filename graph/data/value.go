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
	"math"
	"reflect"
	"sort"
	"strings"
)

/*
Value related errors
*/
var (
	ErrUnsupportedValue = errors.New("Unsupported property value")
	ErrIncomparable     = errors.New("Values are not comparable")
)

/*
Type names of property values
*/
const (
	TypeNull    = "null"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeString  = "string"
	TypeList    = "list"
	TypeMap     = "map"
	TypeNode    = "node"
	TypeEdge    = "relationship"
)

/*
NormalizeValue converts a given value into one of the property value types:
nil, bool, int64, float64, string, []interface{} or map[string]interface{}.
Integer and float types of other widths are widened. Nested lists and maps
are normalized recursively.
*/
func NormalizeValue(v interface{}) (interface{}, error) {

	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer overflow %v", ErrUnsupportedValue, val)
		}
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer overflow %v", ErrUnsupportedValue, val)
		}
		return int64(val), nil
	case float32:
		return float64(val), nil
	case []interface{}:
		ret := make([]interface{}, len(val))
		for i, e := range val {
			ne, err := NormalizeValue(e)
			if err != nil {
				return nil, err
			}
			ret[i] = ne
		}
		return ret, nil
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(val))
		for k, e := range val {
			ne, err := NormalizeValue(e)
			if err != nil {
				return nil, err
			}
			ret[k] = ne
		}
		return ret, nil
	}

	// Fall back to reflection for typed slices and maps

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		ret := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ne, err := NormalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			ret[i] = ne
		}
		return ret, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		ret := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ne, err := NormalizeValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			ret[iter.Key().String()] = ne
		}
		return ret, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

/*
NormalizeProps normalizes a property map. Properties with a nil value are
dropped since a nil value is equivalent to an absent property.
*/
func NormalizeProps(props map[string]interface{}) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(props))

	for k, v := range props {
		if k == "" {
			return nil, fmt.Errorf("%w: empty property name", ErrUnsupportedValue)
		}

		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %v: %w", k, err)
		}

		if nv != nil {
			ret[k] = nv
		}
	}

	return ret, nil
}

/*
NormalizeUpdate normalizes a property update. Unlike NormalizeProps nil values
are kept since they remove a property.
*/
func NormalizeUpdate(update map[string]interface{}) (map[string]interface{}, error) {
	ret := make(map[string]interface{}, len(update))

	for k, v := range update {
		if v == nil {
			if k == "" {
				return nil, fmt.Errorf("%w: empty property name", ErrUnsupportedValue)
			}
			ret[k] = nil
			continue
		}

		nv, err := NormalizeProps(map[string]interface{}{k: v})
		if err != nil {
			return nil, err
		}

		ret[k] = nv[k]
	}

	return ret, nil
}

/*
CopyValue returns a deep copy of a normalized value.
*/
func CopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		ret := make([]interface{}, len(val))
		for i, e := range val {
			ret[i] = CopyValue(e)
		}
		return ret
	case map[string]interface{}:
		return CopyProps(val)
	case *Node:
		return val.Clone()
	case *Edge:
		return val.Clone()
	}
	return v
}

/*
CopyProps returns a deep copy of a property map.
*/
func CopyProps(props map[string]interface{}) map[string]interface{} {
	ret := make(map[string]interface{}, len(props))
	for k, v := range props {
		ret[k] = CopyValue(v)
	}
	return ret
}

/*
TypeName returns the type name of a given value.
*/
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case int64, int:
		return TypeInteger
	case float64:
		return TypeFloat
	case string:
		return TypeString
	case []interface{}:
		return TypeList
	case map[string]interface{}:
		return TypeMap
	case *Node:
		return TypeNode
	case *Edge:
		return TypeEdge
	}
	return fmt.Sprintf("%T", v)
}

/*
IsNumber returns true if the given value is an integer or a float.
*/
func IsNumber(v interface{}) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

/*
ToFloat converts a number to a float64.
*/
func ToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

/*
IsScalar returns true if the value can be used as an index key.
*/
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case bool, int64, float64, string:
		return true
	}
	return false
}

/*
CompareValues compares two non-null values of compatible type. Returns a
negative number if a < b, 0 if a == b and a positive number if a > b. Integers
and floats are compared numerically. Comparing values of different types
returns ErrIncomparable.
*/
func CompareValues(a, b interface{}) (int, error) {

	switch av := a.(type) {

	case int64:
		switch bv := b.(type) {
		case int64:
			return compareInt(av, bv), nil
		case float64:
			return compareFloat(float64(av), bv), nil
		}

	case float64:
		switch bv := b.(type) {
		case int64:
			return compareFloat(av, float64(bv)), nil
		case float64:
			return compareFloat(av, bv), nil
		}

	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}

	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0, nil
			} else if !av {
				return -1, nil
			}
			return 1, nil
		}

	case []interface{}:
		if bv, ok := b.([]interface{}); ok {
			for i := 0; i < len(av) && i < len(bv); i++ {
				res, err := CompareValues(av[i], bv[i])
				if err != nil || res != 0 {
					return res, err
				}
			}
			return compareInt(int64(len(av)), int64(len(bv))), nil
		}
	}

	return 0, fmt.Errorf("%w: %v and %v", ErrIncomparable, TypeName(a), TypeName(b))
}

/*
EqualValues checks if two values are equal. Numbers are compared numerically,
lists and maps are compared deeply. Values of different types are not equal.
*/
func EqualValues(a, b interface{}) bool {

	switch av := a.(type) {
	case nil:
		return b == nil

	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !EqualValues(av[i], bv[i]) {
				return false
			}
		}
		return true

	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !EqualValues(v, ov) {
				return false
			}
		}
		return true

	case *Node:
		bv, ok := b.(*Node)
		return ok && av.ID == bv.ID

	case *Edge:
		bv, ok := b.(*Edge)
		return ok && av.ID == bv.ID
	}

	res, err := CompareValues(a, b)

	return err == nil && res == 0
}

/*
orderRank defines the global sort order of value types (ascending).
*/
func orderRank(v interface{}) int {
	switch v.(type) {
	case map[string]interface{}:
		return 0
	case *Node:
		return 1
	case *Edge:
		return 2
	case []interface{}:
		return 3
	case string:
		return 4
	case bool:
		return 5
	case int64, float64:
		return 6
	case nil:
		return 8
	}
	return 7
}

/*
OrderValues defines a total order over all values which is used for sorting
results. Values of different types are ordered by type; null sorts last.
*/
func OrderValues(a, b interface{}) int {
	ra, rb := orderRank(a), orderRank(b)

	if ra != rb {
		return compareInt(int64(ra), int64(rb))
	}

	switch av := a.(type) {
	case *Node:
		return compareInt(int64(av.ID), int64(b.(*Node).ID))
	case *Edge:
		return compareInt(int64(av.ID), int64(b.(*Edge).ID))
	case map[string]interface{}:
		return strings.Compare(fmt.Sprint(av), fmt.Sprint(b))
	case []interface{}:
		bv := b.([]interface{})
		for i := 0; i < len(av) && i < len(bv); i++ {
			if res := OrderValues(av[i], bv[i]); res != 0 {
				return res
			}
		}
		return compareInt(int64(len(av)), int64(len(bv)))
	case nil:
		return 0
	}

	if res, err := CompareValues(a, b); err == nil {
		return res
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

/*
SortedKeys returns the keys of a property map in sorted order.
*/
func SortedKeys(props map[string]interface{}) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func compareInt(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
