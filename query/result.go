/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package query

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/query/budget"
)

/*
Result is the complete result of a query.
*/
type Result struct {
	Query     string                // Query which produced this result
	Columns   []string              // Names of the result columns
	Rows      [][]interface{}       // Result rows
	Truncated bool                  // Flag if the budget was exceeded
	Exceeded  *budget.ExceededError // Exceeded budget limit
	Skipped   int64                 // Number of skipped rows
}

/*
RowCount returns the number of rows of the result.
*/
func (r *Result) RowCount() int {
	return len(r.Rows)
}

/*
Row returns a row of the result.
*/
func (r *Result) Row(line int) []interface{} {
	return r.Rows[line]
}

/*
Column returns all values of a named column.
*/
func (r *Result) Column(name string) ([]interface{}, error) {
	for i, c := range r.Columns {
		if c == name {
			ret := make([]interface{}, len(r.Rows))
			for j, row := range r.Rows {
				ret[j] = row[i]
			}
			return ret, nil
		}
	}

	return nil, fmt.Errorf("Unknown column: %v", name)
}

/*
table returns the header and all rows as a list of strings.
*/
func (r *Result) table() []string {
	tab := make([]string, 0, len(r.Columns)*(len(r.Rows)+1))

	tab = append(tab, r.Columns...)

	for _, row := range r.Rows {
		for _, col := range row {
			if col != nil {
				tab = append(tab, fmt.Sprint(col))
			} else {
				tab = append(tab, "<null>")
			}
		}
	}

	return tab
}

/*
String returns a string representation of this result.
*/
func (r *Result) String() string {
	var buf bytes.Buffer

	if len(r.Columns) > 0 {
		buf.WriteString(stringutil.PrintStringTable(r.table(), len(r.Columns)))
	}

	if r.Truncated {
		fmt.Fprintf(&buf, "Truncated: %v\n", r.Exceeded)
	}

	if r.Skipped > 0 {
		fmt.Fprintf(&buf, "Skipped: %v row%v\n", r.Skipped, stringutil.Plural(int(r.Skipped)))
	}

	return buf.String()
}

/*
CSV returns this result as comma-separated strings.
*/
func (r *Result) CSV() string {
	if len(r.Columns) == 0 {
		return ""
	}
	return stringutil.PrintCSVTable(r.table(), len(r.Columns))
}

/*
jsonResult is the JSON representation of a result.
*/
type jsonResult struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Truncated bool            `json:"truncated"`
	Exceeded  string          `json:"exceeded,omitempty"`
	Skipped   int64           `json:"skipped"`
}

/*
MarshalJSON renders this result as JSON. Nodes and relationships are
rendered as objects.
*/
func (r *Result) MarshalJSON() ([]byte, error) {
	jr := jsonResult{Columns: r.Columns, Rows: make([][]interface{}, len(r.Rows)),
		Truncated: r.Truncated, Skipped: r.Skipped}

	if r.Exceeded != nil {
		jr.Exceeded = string(r.Exceeded.Kind)
	}

	for i, row := range r.Rows {
		jrow := make([]interface{}, len(row))
		for j, v := range row {
			jrow[j] = jsonValue(v)
		}
		jr.Rows[i] = jrow
	}

	return json.Marshal(jr)
}

/*
jsonValue converts a result value into a value which can be rendered as JSON.
*/
func jsonValue(v interface{}) interface{} {

	switch val := v.(type) {

	case *data.Node:
		return map[string]interface{}{
			"id":         val.ID,
			"labels":     val.Labels,
			"properties": jsonValue(val.Props),
		}

	case *data.Edge:
		return map[string]interface{}{
			"id":         val.ID,
			"type":       val.Type,
			"from":       val.From,
			"to":         val.To,
			"properties": jsonValue(val.Props),
		}

	case []interface{}:
		ret := make([]interface{}, len(val))
		for i, e := range val {
			ret[i] = jsonValue(e)
		}
		return ret

	case map[string]interface{}:
		ret := make(map[string]interface{}, len(val))
		for k, e := range val {
			ret[k] = jsonValue(e)
		}
		return ret
	}

	return v
}
