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
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/krotik/common/errorutil"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/graph/util"
)

// Helper functions for the graph package
// ======================================

/*
checkLabels checks if all given node labels are valid.
*/
func checkLabels(labels []string) error {
	for _, l := range labels {
		if l != "" && !stringutil.IsAlphaNumeric(l) {
			return &util.GraphError{
				Type:   util.ErrInvalidData,
				Detail: fmt.Sprintf("Node label %v is not alphanumeric - can only contain [a-zA-Z0-9_]", l),
			}
		}
	}

	return nil
}

/*
checkRelType checks if a given relationship type is valid.
*/
func checkRelType(etype string) error {
	if etype == "" {
		return &util.GraphError{Type: util.ErrInvalidData, Detail: "Edge is missing a relationship type"}
	}

	if !stringutil.IsAlphaNumeric(etype) {
		return &util.GraphError{
			Type:   util.ErrInvalidData,
			Detail: fmt.Sprintf("Relationship type %v is not alphanumeric - can only contain [a-zA-Z0-9_]", etype),
		}
	}

	return nil
}

/*
invalidData wraps an error of the data layer into a GraphError.
*/
func invalidData(err error) error {
	return &util.GraphError{Type: util.ErrInvalidData, Detail: err.Error(), Cause: err}
}

/*
notFound returns a NotFoundError for a given entity.
*/
func notFound(what string, id uint64) error {
	return &util.GraphError{Type: util.ErrNotFound, Detail: fmt.Sprintf("%v %v", what, id)}
}

/*
encodeGob encodes a value with gob. Encoding values of the graph data model
cannot fail.
*/
func encodeGob(v interface{}) []byte {
	var buf bytes.Buffer

	errorutil.AssertOk(gob.NewEncoder(&buf).Encode(v))

	return buf.Bytes()
}

/*
decodeGob decodes a gob encoded value.
*/
func decodeGob(b []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
