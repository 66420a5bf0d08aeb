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
	"errors"
	"fmt"
	"time"

	"github.com/krotik/eliasgraph/metrics"
	"github.com/krotik/eliasgraph/query/budget"
	"github.com/krotik/eliasgraph/query/interpreter"
)

/*
Cursor iterates over the result rows of a running query. Rows are produced
on demand. A cursor is not safe for concurrent use.

	cur, err := compiler.Run("q", reader, text, nil, budget.Strict)
	...
	for cur.Next() {
		row := cur.Row()
	}
	if err := cur.Err(); err != nil {
		...
	}
*/
type Cursor struct {
	query    *Compiled             // Running query
	rt       *interpreter.Runtime  // Runtime of the execution
	it       interpreter.Iterator  // Last iterator of the plan
	row      []interface{}         // Current row
	err      error                 // Error which stopped the execution
	exceeded *budget.ExceededError // Exceeded budget limit
	rows     int64                 // Number of produced rows
	start    time.Time             // Start time of the execution
	done     bool                  // Flag if the execution has finished
}

/*
Columns returns the names of the result columns.
*/
func (c *Cursor) Columns() []string {
	return c.query.Columns()
}

/*
Next advances the cursor to the next row. Returns false if there are no more
rows, if the budget was exceeded or if an error occurred.
*/
func (c *Cursor) Next() bool {

	if c.done {
		return false
	}

	row, err := c.it.Next()

	if err == nil && row != nil {
		err = c.rt.Budget().Charge(budget.RowsProduced, 1)
	}

	if err != nil {
		var exceeded *budget.ExceededError

		if errors.As(err, &exceeded) {
			c.exceeded = exceeded
		} else {
			c.err = err
		}

		c.finish()

		return false
	}

	if row == nil {
		c.finish()
		return false
	}

	c.row = row.Values
	c.rows++

	return true
}

/*
Row returns the current row.
*/
func (c *Cursor) Row() []interface{} {
	return c.row
}

/*
Err returns the error which stopped the execution. Exceeding the budget is
not an error.
*/
func (c *Cursor) Err() error {
	return c.err
}

/*
Truncated returns true if the execution was stopped because the budget was
exceeded. The rows produced so far are a prefix of the complete result.
*/
func (c *Cursor) Truncated() bool {
	return c.exceeded != nil
}

/*
Exceeded returns the exceeded budget limit or nil.
*/
func (c *Cursor) Exceeded() *budget.ExceededError {
	return c.exceeded
}

/*
Skipped returns the number of rows which were skipped because of evaluation
errors.
*/
func (c *Cursor) Skipped() int64 {
	return c.rt.Skipped()
}

/*
Used returns the used amount of a budget kind.
*/
func (c *Cursor) Used(kind budget.Kind) int64 {
	return c.rt.Budget().Used(kind)
}

/*
Close stops the execution. Closing a cursor which has finished has no effect.
*/
func (c *Cursor) Close() {
	c.finish()
}

/*
All reads all remaining rows into a result. The cursor is closed afterwards.
*/
func (c *Cursor) All() (*Result, error) {
	res := &Result{Query: c.query.Text, Columns: c.Columns(), Rows: [][]interface{}{}}

	for c.Next() {
		res.Rows = append(res.Rows, c.Row())
	}

	if c.err != nil {
		return nil, c.err
	}

	res.Truncated = c.Truncated()
	res.Exceeded = c.exceeded
	res.Skipped = c.Skipped()

	return res, nil
}

/*
finish marks the execution as finished and records its metrics.
*/
func (c *Cursor) finish() {

	if c.done {
		return
	}

	c.done = true
	c.row = nil

	outcome := "ok"

	if c.err != nil {
		outcome = "error"
	} else if c.exceeded != nil {
		outcome = "truncated"
		metrics.QueryTruncations.WithLabelValues(string(c.exceeded.Kind)).Inc()
		logger.Debug(fmt.Sprintf("Query %v truncated after %v rows: %v", c.query.Name, c.rows, c.exceeded))
	}

	metrics.Queries.WithLabelValues(outcome).Inc()
	metrics.QueryRows.Add(float64(c.rows))
	metrics.QuerySkippedRows.Add(float64(c.rt.Skipped()))
	metrics.QuerySeconds.Observe(time.Since(c.start).Seconds())
}
