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
	"fmt"

	"github.com/krotik/eliasgraph/graph/data"
	"github.com/krotik/eliasgraph/graph/index"
	"github.com/krotik/eliasgraph/storage/wal"
)

/*
mutation is a single change of a transaction. Create and update mutations
carry the complete new state of the entity so replaying a mutation does not
depend on the previous state.
*/
type mutation struct {
	Op   wal.OpType // Operation (not part of the encoded payload)
	ID   uint64     // Identifier of the changed entity
	Node *data.Node // New node state
	Edge *data.Edge // New edge state
}

/*
mutationPayload is the encoded part of a mutation.
*/
type mutationPayload struct {
	ID   uint64
	Node *data.Node
	Edge *data.Edge
}

/*
String returns a string representation of this mutation.
*/
func (m *mutation) String() string {
	return fmt.Sprintf("%v %v", m.Op, m.ID)
}

/*
record creates a log record for this mutation.
*/
func (m *mutation) record(txnID uint64) *wal.Record {
	return &wal.Record{TxnID: txnID, Op: m.Op,
		Payload: encodeGob(&mutationPayload{m.ID, m.Node, m.Edge})}
}

/*
decodeMutation decodes a mutation from a log record.
*/
func decodeMutation(rec *wal.Record) (*mutation, error) {
	var p mutationPayload

	if err := decodeGob(rec.Payload, &p); err != nil {
		return nil, fmt.Errorf("Could not decode %v: %w", rec, err)
	}

	m := &mutation{rec.Op, p.ID, p.Node, p.Edge}

	switch rec.Op {
	case wal.OpCreateNode, wal.OpSetNodeProps:
		if m.Node == nil {
			return nil, fmt.Errorf("Record without node data: %v", rec)
		}
	case wal.OpCreateEdge, wal.OpSetEdgeProps:
		if m.Edge == nil {
			return nil, fmt.Errorf("Record without edge data: %v", rec)
		}
	}

	return m, nil
}

/*
indexRecord creates a log record for an index definition change.
*/
func indexRecord(txnID uint64, op wal.OpType, spec index.Spec) *wal.Record {
	return &wal.Record{TxnID: txnID, Op: op, Payload: encodeGob(&spec)}
}

/*
decodeIndexSpec decodes an index spec from a log record.
*/
func decodeIndexSpec(rec *wal.Record) (index.Spec, error) {
	var spec index.Spec

	err := decodeGob(rec.Payload, &spec)

	return spec, err
}
