/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/krotik/common/logutil"
	"github.com/krotik/common/sortutil"
)

/*
LogFileSuffix is the file suffix for log segment files
*/
const LogFileSuffix = "tlg"

/*
DefaultSegmentSize is the default size of a log segment before a new one
is started
*/
const DefaultSegmentSize = 16 * 1024 * 1024

/*
TransactionLogHeader is the magic number to identify transaction log files
*/
var TransactionLogHeader = []byte{0x66, 0x42}

/*
LogFile is the abstract interface for an transaction log file.
*/
type LogFile interface {
	io.Writer
	io.Closer
	Sync() error
}

var logger = logutil.GetLogger("eliasgraph.wal")

/*
FileLog is a write-ahead log which is stored in segment files. Appended
records are buffered in memory and written with a single write on Sync.
After a failed write or sync the log refuses all further writes since the
state of the segment file is unknown. Reopening the log recovers the last
consistent state.
*/
type FileLog struct {
	lsnAssigner
	dir          string        // Directory of the segment files
	segmentSize  int64         // Size after which a new segment is started
	segments     []uint64      // First LSNs of all segments
	current      LogFile       // Current segment file
	currentSize  int64         // Size of the current segment file
	pending      *bytes.Buffer // Appended but not yet written records
	pendingFirst uint64        // First LSN in the pending buffer
	durable      uint64        // Last durable LSN
	failed       error         // Sticky error after a failed write
	mutex        *sync.Mutex   // Mutex to protect the log
}

/*
NewFileLog opens or creates a file based log in a given directory. Torn
records at the end of the last segment (e.g. after a crash during a write)
are cut off.
*/
func NewFileLog(dir string, segmentSize int64) (*FileLog, error) {

	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}

	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}

	fl := &FileLog{lsnAssigner{0, make(map[uint64]uint64)}, dir, segmentSize,
		nil, nil, 0, &bytes.Buffer{}, 0, 0, nil, &sync.Mutex{}}

	if err := fl.scanSegments(); err != nil {
		return nil, err
	}

	if err := fl.openCurrent(); err != nil {
		return nil, err
	}

	return fl, nil
}

/*
String returns a string representation of this log.
*/
func (fl *FileLog) String() string {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	return fmt.Sprintf("FileLog: %v (segments:%v lastLSN:%v durable:%v)",
		fl.dir, len(fl.segments), fl.last, fl.durable)
}

/*
segmentName returns the file name of a segment.
*/
func (fl *FileLog) segmentName(first uint64) string {
	return filepath.Join(fl.dir, fmt.Sprintf("wal_%016x.%s", first, LogFileSuffix))
}

/*
scanSegments reads all existing segments and determines the last LSN.
*/
func (fl *FileLog) scanSegments() error {

	files, err := filepath.Glob(filepath.Join(fl.dir, "wal_*."+LogFileSuffix))
	if err != nil {
		return err
	}

	for _, file := range files {
		hexPart := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(file), "wal_"),
			"."+LogFileSuffix)

		if first, err := strconv.ParseUint(hexPart, 16, 64); err == nil {
			fl.segments = append(fl.segments, first)
		}
	}

	sortutil.UInt64s(fl.segments)

	for i, first := range fl.segments {
		isLast := i == len(fl.segments)-1

		lastLSN, goodSize, err := fl.scanSegment(first)

		if err != nil {
			if !isLast {
				return fmt.Errorf("Corrupted log segment %v: %w", fl.segmentName(first), err)
			}

			// Cut off a torn tail of the last segment

			logger.Warning(fmt.Sprintf("Truncating log segment %v to %v: %v",
				fl.segmentName(first), humanize.Bytes(uint64(goodSize)), err))

			if goodSize < int64(len(TransactionLogHeader)) {
				goodSize = 0
			}

			if err := os.Truncate(fl.segmentName(first), goodSize); err != nil {
				return err
			}
		}

		if lastLSN > fl.last {
			fl.last = lastLSN
		} else if first > fl.last+1 {
			fl.last = first - 1
		}
	}

	fl.durable = fl.last

	return nil
}

/*
scanSegment reads all records of a segment. Returns the last LSN, the size of
the consistent part of the segment and the error which stopped the scan.
*/
func (fl *FileLog) scanSegment(first uint64) (uint64, int64, error) {
	var lastLSN uint64

	file, err := os.Open(fl.segmentName(first))
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	r := bufio.NewReader(file)

	magic := make([]byte, len(TransactionLogHeader))
	if i, _ := io.ReadFull(r, magic); i != len(magic) || !bytes.Equal(magic, TransactionLogHeader) {
		return 0, 0, ErrBadMagic
	}

	size := int64(len(magic))

	for {
		rec, err := ReadRecord(r)

		if err == io.EOF {
			break
		} else if err != nil {
			return lastLSN, size, err
		}

		lastLSN = rec.LSN
		size += int64(rec.Size())
	}

	return lastLSN, size, nil
}

/*
openCurrent opens the last segment for writing or creates a new segment.
*/
func (fl *FileLog) openCurrent() error {

	if len(fl.segments) == 0 {
		return fl.newSegment(fl.last + 1)
	}

	first := fl.segments[len(fl.segments)-1]

	file, err := os.OpenFile(fl.segmentName(first), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0660)
	if err != nil {
		return err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	fl.current = file
	fl.currentSize = stat.Size()

	if fl.currentSize == 0 {

		// Segment was truncated to nothing - write a fresh header

		if _, err := file.Write(TransactionLogHeader); err != nil {
			file.Close()
			return err
		}
		fl.currentSize = int64(len(TransactionLogHeader))
	}

	return nil
}

/*
newSegment starts a new segment.
*/
func (fl *FileLog) newSegment(first uint64) error {

	file, err := os.OpenFile(fl.segmentName(first), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0660)
	if err != nil {
		return err
	}

	if _, err := file.Write(TransactionLogHeader); err != nil {
		file.Close()
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}

	fl.current = file
	fl.currentSize = int64(len(TransactionLogHeader))
	fl.segments = append(fl.segments, first)

	return nil
}

/*
Append appends a record to the log.
*/
func (fl *FileLog) Append(rec *Record) (uint64, error) {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	if err := fl.checkWritable(); err != nil {
		return 0, err
	}

	fl.assign(rec)

	if fl.pending.Len() == 0 {
		fl.pendingFirst = rec.LSN
	}

	// Writing into a memory buffer should always succeed

	rec.WriteRecord(fl.pending)

	return rec.LSN, nil
}

/*
Sync writes all pending records and syncs the segment file.
*/
func (fl *FileLog) Sync() error {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	if err := fl.checkWritable(); err != nil {
		return err
	}

	if fl.pending.Len() == 0 {
		return nil
	}

	if fl.currentSize >= fl.segmentSize {
		if err := fl.rotate(fl.pendingFirst); err != nil {
			return fl.fail(err)
		}
	}

	n, err := fl.current.Write(fl.pending.Bytes())

	if err == nil {
		err = fl.current.Sync()
	}

	if err != nil {
		if terr := fl.discardTail(); terr != nil {
			logger.Error("Could not discard failed write of transaction log: ", terr)
		}
		return fl.fail(err)
	}

	fl.currentSize += int64(n)
	fl.durable = fl.last
	fl.pending.Reset()

	return nil
}

/*
discardTail cuts the current segment back to its last durable size. Records
of a failed write must not be replayed since their transactions were aborted.
*/
func (fl *FileLog) discardTail() error {
	name := fl.segmentName(fl.segments[len(fl.segments)-1])

	if err := os.Truncate(name, fl.currentSize); err != nil {
		return err
	}

	file, err := os.OpenFile(name, os.O_RDWR, 0660)
	if err != nil {
		return err
	}

	err = file.Sync()

	if cerr := file.Close(); err == nil {
		err = cerr
	}

	return err
}

/*
rotate closes the current segment and starts a new one.
*/
func (fl *FileLog) rotate(first uint64) error {

	if err := fl.current.Sync(); err != nil {
		return err
	}

	if err := fl.current.Close(); err != nil {
		return err
	}

	return fl.newSegment(first)
}

/*
checkWritable checks if the log can be written to.
*/
func (fl *FileLog) checkWritable() error {
	if fl.current == nil {
		return ErrClosed
	}
	return fl.failed
}

/*
fail marks the log as failed.
*/
func (fl *FileLog) fail(err error) error {
	logger.Error("Write to transaction log failed: ", err)

	fl.failed = fmt.Errorf("Transaction log failed: %w", err)
	fl.pending.Reset()

	return fl.failed
}

/*
Replay calls a function for every durable record starting with a given LSN.
*/
func (fl *FileLog) Replay(from uint64, fn func(*Record) error) error {
	fl.mutex.Lock()
	segments := append([]uint64(nil), fl.segments...)
	durable := fl.durable
	fl.mutex.Unlock()

	for i, first := range segments {

		// Skip segments which end before the requested LSN

		if i < len(segments)-1 && segments[i+1] <= from {
			continue
		}

		if err := fl.replaySegment(first, from, durable, fn); err != nil {
			return err
		}
	}

	return nil
}

/*
replaySegment replays the records of a single segment.
*/
func (fl *FileLog) replaySegment(first uint64, from uint64, durable uint64,
	fn func(*Record) error) error {

	file, err := os.Open(fl.segmentName(first))
	if err != nil {
		return err
	}
	defer file.Close()

	r := bufio.NewReader(file)

	if _, err := r.Discard(len(TransactionLogHeader)); err != nil {
		return nil
	}

	for {
		rec, err := ReadRecord(r)

		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrBadChecksum) {
			return nil
		} else if err != nil {
			return err
		}

		if rec.LSN > durable {
			return nil
		}

		if rec.LSN < from {
			continue
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

/*
Truncate removes all segments which only contain records up to a given LSN.
*/
func (fl *FileLog) Truncate(upTo uint64) error {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	if err := fl.checkWritable(); err != nil {
		return err
	}

	// Start a new segment if the current segment is fully covered

	if fl.pending.Len() == 0 && fl.last <= upTo &&
		fl.currentSize > int64(len(TransactionLogHeader)) {

		if err := fl.rotate(fl.last + 1); err != nil {
			return fl.fail(err)
		}
	}

	var keep []uint64
	removed := 0

	for i, first := range fl.segments {
		if i < len(fl.segments)-1 && fl.segments[i+1]-1 <= upTo {
			if err := os.Remove(fl.segmentName(first)); err != nil && !os.IsNotExist(err) {
				return err
			}
			removed++
			continue
		}
		keep = append(keep, first)
	}

	fl.segments = keep

	if removed > 0 {
		logger.Debug(fmt.Sprintf("Removed %v log segments up to LSN %v", removed, upTo))
	}

	return nil
}

/*
LastLSN returns the last assigned LSN.
*/
func (fl *FileLog) LastLSN() uint64 {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	return fl.last
}

/*
Segments returns the number of segment files.
*/
func (fl *FileLog) Segments() int {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	return len(fl.segments)
}

/*
Close syncs and closes the log.
*/
func (fl *FileLog) Close() error {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	if fl.current == nil {
		return nil
	}

	var err error

	if fl.failed == nil {
		err = fl.current.Sync()
	}

	// If something went wrong with closing the handle
	// we don't care as we release the reference

	fl.current.Close()
	fl.current = nil

	return err
}
