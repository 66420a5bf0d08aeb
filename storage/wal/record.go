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
Package wal contains the write-ahead log of the graph engine.

Log records

Every mutation is described by a log record:

	LSN (8) | TXN (8) | PREV (8) | OP (1) | LEN (4) | PAYLOAD (LEN) | SUM (8)

LSNs are assigned by the log when a record is appended and are strictly
increasing. PREV points to the previous record of the same transaction (0 for
the first record). SUM is an xxhash checksum over all preceding bytes of the
record; a record with a bad checksum marks the end of the usable log (torn
write during a crash).

A transaction is committed once its OpCommit record has been synced. During
recovery all records of transactions without a commit record are discarded.

Log segments

The file based log writes records into segment files inside a directory. A
segment file starts with a 2 byte magic header and is named after the first
LSN it contains. Segments which are fully covered by a checkpoint can be
removed with Truncate.
*/
package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

/*
Common WAL related errors
*/
var (
	ErrBadMagic    = errors.New("Bad magic for transaction log")
	ErrBadChecksum = errors.New("Bad checksum for log record")
	ErrClosed      = errors.New("Transaction log is closed")
)

/*
OpType is the operation of a log record.
*/
type OpType uint8

/*
Known log record operations
*/
const (
	OpBegin OpType = iota + 1
	OpCreateNode
	OpCreateEdge
	OpDeleteNode
	OpDeleteEdge
	OpSetNodeProps
	OpSetEdgeProps
	OpCommit
	OpAbort
	OpCreateIndex
	OpDropIndex
	OpReserveTxnIDs // Transaction identifiers up to TxnID are in use
)

var opNames = map[OpType]string{
	OpBegin:        "Begin",
	OpCreateNode:   "CreateNode",
	OpCreateEdge:   "CreateEdge",
	OpDeleteNode:   "DeleteNode",
	OpDeleteEdge:   "DeleteEdge",
	OpSetNodeProps: "SetNodeProps",
	OpSetEdgeProps: "SetEdgeProps",
	OpCommit:       "Commit",
	OpAbort:        "Abort",
	OpCreateIndex:  "CreateIndex",
	OpDropIndex:    "DropIndex",

	OpReserveTxnIDs: "ReserveTxnIDs",
}

/*
String returns a string representation of an operation.
*/
func (o OpType) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

/*
recordHeaderSize is the size of the fixed header of a record
*/
const recordHeaderSize = 8 + 8 + 8 + 1 + 4

/*
recordChecksumSize is the size of the trailing checksum
*/
const recordChecksumSize = 8

/*
MaxPayloadSize is the maximum size of a record payload
*/
const MaxPayloadSize = 64 * 1024 * 1024

/*
Record is a single entry of the write-ahead log.
*/
type Record struct {
	LSN     uint64 // Log sequence number (assigned on append)
	TxnID   uint64 // Transaction which wrote this record
	PrevLSN uint64 // Previous record of the same transaction
	Op      OpType // Operation
	Payload []byte // Operation specific payload
}

/*
Size returns the encoded size of this record.
*/
func (r *Record) Size() int {
	return recordHeaderSize + len(r.Payload) + recordChecksumSize
}

/*
String returns a string representation of this record.
*/
func (r *Record) String() string {
	return fmt.Sprintf("Record %v (txn:%v prev:%v op:%v len:%v)",
		r.LSN, r.TxnID, r.PrevLSN, r.Op, len(r.Payload))
}

/*
MarshalBinary returns a binary representation of a Record.
*/
func (r *Record) MarshalBinary() (data []byte, err error) {
	buf := new(bytes.Buffer)

	// Using a normal memory buffer this should always succeed

	err = r.WriteRecord(buf)

	return buf.Bytes(), err
}

/*
WriteRecord writes a record to an io.Writer. The record is written with a
single Write call so a failing writer never leaves half a record behind in
the writer's buffer.
*/
func (r *Record) WriteRecord(iow io.Writer) error {
	buf := make([]byte, r.Size())

	binary.LittleEndian.PutUint64(buf[0:8], r.LSN)
	binary.LittleEndian.PutUint64(buf[8:16], r.TxnID)
	binary.LittleEndian.PutUint64(buf[16:24], r.PrevLSN)
	buf[24] = byte(r.Op)
	binary.LittleEndian.PutUint32(buf[25:29], uint32(len(r.Payload)))
	copy(buf[recordHeaderSize:], r.Payload)

	end := recordHeaderSize + len(r.Payload)
	binary.LittleEndian.PutUint64(buf[end:], xxhash.Sum64(buf[:end]))

	_, err := iow.Write(buf)

	return err
}

/*
UnmarshalBinary decodes a record from a binary blob.
*/
func (r *Record) UnmarshalBinary(data []byte) error {
	return r.ReadRecord(bytes.NewReader(data))
}

/*
ReadRecord decodes a record by reading from an io.Reader. Returns io.EOF if
the reader is at the end, io.ErrUnexpectedEOF if the record is incomplete and
ErrBadChecksum if the record is corrupted.
*/
func (r *Record) ReadRecord(ior io.Reader) error {
	header := make([]byte, recordHeaderSize)

	if _, err := io.ReadFull(ior, header); err != nil {
		return err
	}

	plen := binary.LittleEndian.Uint32(header[25:29])

	if plen > MaxPayloadSize {
		return ErrBadChecksum
	}

	rest := make([]byte, int(plen)+recordChecksumSize)

	if _, err := io.ReadFull(ior, rest); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}

	hash := xxhash.New()
	hash.Write(header)
	hash.Write(rest[:plen])

	if hash.Sum64() != binary.LittleEndian.Uint64(rest[plen:]) {
		return ErrBadChecksum
	}

	r.LSN = binary.LittleEndian.Uint64(header[0:8])
	r.TxnID = binary.LittleEndian.Uint64(header[8:16])
	r.PrevLSN = binary.LittleEndian.Uint64(header[16:24])
	r.Op = OpType(header[24])
	r.Payload = rest[:plen:plen]

	return nil
}

/*
ReadRecord decodes a record by reading from an io.Reader.
*/
func ReadRecord(ior io.Reader) (*Record, error) {
	r := &Record{}
	if err := r.ReadRecord(ior); err != nil {
		return nil, err
	}
	return r, nil
}
