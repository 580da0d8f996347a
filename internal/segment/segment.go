// Package segment implements the on-disk append-only log fragment
// described in the storage engine spec: one file triplet (log,
// offset-index, time-index) covering a contiguous offset range,
// buffered in memory until an explicit persist.
package segment

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"flowlog/internal/apperr"
	"flowlog/internal/message"
)

// pending is one not-yet-persisted appended message, along with the
// index entries it will contribute once flushed.
type pending struct {
	msg        *message.Message
	offsetEntr OffsetIndexEntry
	timeEntr   TimeIndexEntry
}

// Segment is one partition's on-disk log fragment.
type Segment struct {
	mu sync.RWMutex

	StartOffset      uint64
	CurrentOffset    int64 // start_offset-1 when empty, per spec
	EndOffset        uint64
	IsClosed         bool
	MaxSizeBytes     int64
	CurrentSizeBytes int64 // logical size including not-yet-persisted messages

	logPath, indexPath, timeIndexPath string

	log        *segmentLog
	offsetIdx  *offsetIndex
	timeIdx    *timeIndex
	pendingMsg []pending
}

func logPaths(dir string, startOffset uint64) (logPath, idxPath, tidxPath string) {
	name := fmt.Sprintf("%020d", startOffset)
	return filepath.Join(dir, name+".log"),
		filepath.Join(dir, name+".index"),
		filepath.Join(dir, name+".timeindex")
}

// Create makes a new, empty segment starting at startOffset, with all
// three backing files created (empty, no headers) and not closed.
func Create(dir string, startOffset uint64, cfg Config) (*Segment, error) {
	logPath, idxPath, tidxPath := logPaths(dir, startOffset)

	l, err := newSegmentLog(logPath, cfg.MaxSizeBytes)
	if err != nil {
		return nil, err
	}
	oidx, err := newOffsetIndex(idxPath, cfg.IndexMaxBytes)
	if err != nil {
		l.close()
		return nil, err
	}
	tidx, err := newTimeIndex(tidxPath, cfg.timeIndexMaxBytes())
	if err != nil {
		oidx.close()
		l.close()
		return nil, err
	}

	s := &Segment{
		StartOffset:   startOffset,
		CurrentOffset: int64(startOffset) - 1,
		MaxSizeBytes:  cfg.MaxSizeBytes,
		logPath:       logPath,
		indexPath:     idxPath,
		timeIndexPath: tidxPath,
		log:           l,
		offsetIdx:     oidx,
		timeIdx:       tidx,
	}
	return s, nil
}

// Open reopens an existing segment and runs crash recovery on it (spec §7).
func Open(dir string, startOffset uint64, cfg Config) (*Segment, error) {
	s, err := Create(dir, startOffset, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.recover(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// IsFull reports whether the segment has reached its byte budget.
func (s *Segment) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentSizeBytes >= s.MaxSizeBytes
}

// AppendMessage buffers msg in memory: it is visible to GetMessages
// immediately, but not durable until PersistMessages succeeds.
func (s *Segment) AppendMessage(msg *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.IsClosed {
		return apperr.New(apperr.KindSegmentClosed, "segment is closed")
	}

	relOffset := uint32(msg.Offset - s.StartOffset)
	p := pending{
		msg:        msg,
		offsetEntr: OffsetIndexEntry{RelativeOffset: relOffset, Position: uint32(s.CurrentSizeBytes)},
		timeEntr:   TimeIndexEntry{RelativeOffset: relOffset, Timestamp: msg.Timestamp},
	}
	s.pendingMsg = append(s.pendingMsg, p)
	s.CurrentSizeBytes += int64(msg.EncodedSize())
	s.CurrentOffset = int64(msg.Offset)
	return nil
}

// PersistMessages atomically flushes the in-memory buffer: log bytes
// first, then offset-index entries, then time-index entries, syncing
// all three. On success it clears the buffer; if the segment is now
// full it is marked closed with EndOffset set.
func (s *Segment) PersistMessages() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pendingMsg) == 0 {
		return nil
	}

	for _, p := range s.pendingMsg {
		buf := make([]byte, p.msg.EncodedSize())
		p.msg.Encode(buf)
		if _, err := s.log.write(buf); err != nil {
			return apperr.Wrap(apperr.KindIO, err)
		}
	}
	for _, p := range s.pendingMsg {
		if err := s.offsetIdx.append(p.offsetEntr); err != nil {
			return apperr.Wrap(apperr.KindIO, err)
		}
	}
	for _, p := range s.pendingMsg {
		if err := s.timeIdx.append(p.timeEntr); err != nil {
			return apperr.Wrap(apperr.KindIO, err)
		}
	}

	if err := s.log.sync(); err != nil {
		return apperr.Wrap(apperr.KindIO, err)
	}
	if err := s.offsetIdx.sync(); err != nil {
		return apperr.Wrap(apperr.KindIO, err)
	}
	if err := s.timeIdx.sync(); err != nil {
		return apperr.Wrap(apperr.KindIO, err)
	}

	s.pendingMsg = nil

	if s.CurrentSizeBytes >= s.MaxSizeBytes {
		s.IsClosed = true
		s.EndOffset = uint64(s.CurrentOffset)
	}
	return nil
}

// GetMessages returns up to count messages whose absolute offsets lie
// in [startOffset, startOffset+count-1] ∩ [s.StartOffset, s.CurrentOffset],
// looked up via the offset index and then scanned forward, including
// any still-buffered messages without touching disk.
func (s *Segment) GetMessages(startOffset uint64, count uint32) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count == 0 || s.CurrentOffset < int64(s.StartOffset) {
		return nil, nil
	}
	if int64(startOffset) > s.CurrentOffset {
		return nil, nil
	}

	endOffset := startOffset + uint64(count) - 1
	if endOffset > uint64(s.CurrentOffset) {
		endOffset = uint64(s.CurrentOffset)
	}

	var out []*message.Message

	// Persisted portion via the offset index + log scan.
	persistedEntries := s.offsetIdx.entries
	if persistedEntries > 0 {
		relStart := uint32(0)
		if startOffset > s.StartOffset {
			relStart = uint32(startOffset - s.StartOffset)
		}
		if pos, ok := s.offsetIdx.lookup(relStart); ok {
			// Upper bound on records between pos and endOffset: every
			// remaining persisted entry, since the index is dense.
			scanBound := uint32(persistedEntries) + 1
			scanned, err := s.log.decodeFrom(int64(pos), scanBound)
			if err != nil && len(scanned) == 0 {
				return nil, apperr.Wrap(apperr.KindCorrupt, err)
			}
			for _, m := range scanned {
				if m.Offset > endOffset {
					break
				}
				if m.Offset >= startOffset {
					out = append(out, m)
				}
			}
		}
	}

	// Buffered (not yet persisted) portion, read straight from memory.
	for _, p := range s.pendingMsg {
		if p.msg.Offset >= startOffset && p.msg.Offset <= endOffset {
			out = append(out, p.msg)
		}
	}

	if uint32(len(out)) > count {
		out = out[:count]
	}
	return out, nil
}

// MarkClosed transitions a non-full segment to closed without a size
// trigger: used when recovery finds it is not the partition's last
// segment, or when the partition is shutting down gracefully.
func (s *Segment) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.IsClosed {
		s.IsClosed = true
		s.EndOffset = uint64(s.CurrentOffset)
	}
}

// Close syncs and unmaps the segment's files, trimming each backing
// file down to its logical size.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	logSize := s.log.size
	idxSize := s.offsetIdx.entries * offsetEntryWidth
	tidxSize := s.timeIdx.entries * timeEntryWidth

	record(s.log.close())
	record(s.offsetIdx.close())
	record(s.timeIdx.close())

	if err := s.log.f.truncateToLogicalSize(logSize); err != nil {
		record(err)
	}
	if err := s.offsetIdx.f.truncateToLogicalSize(idxSize); err != nil {
		record(err)
	}
	if err := s.timeIdx.f.truncateToLogicalSize(tidxSize); err != nil {
		record(err)
	}

	if firstErr != nil {
		return apperr.Wrap(apperr.KindIO, firstErr)
	}
	return nil
}

// Delete closes and removes the segment's three backing files.
func (s *Segment) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(s.log.remove())
	record(s.offsetIdx.remove())
	record(s.timeIdx.remove())
	if firstErr != nil {
		return apperr.Wrap(apperr.KindIO, firstErr)
	}
	return nil
}

// FirstTimestamp and LastTimestamp expose the boundary timestamps of the
// persisted time index plus any still-buffered messages, for the
// partition's by-timestamp segment scan.
func (s *Segment) FirstTimestamp() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.timeIdx.first(); ok {
		return e.Timestamp, true
	}
	if len(s.pendingMsg) > 0 {
		return s.pendingMsg[0].timeEntr.Timestamp, true
	}
	return 0, false
}

func (s *Segment) LastTimestamp() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := len(s.pendingMsg); n > 0 {
		return s.pendingMsg[n-1].timeEntr.Timestamp, true
	}
	e, ok := s.timeIdx.last()
	return e.Timestamp, ok
}

// recover rebuilds the segment's state from the log file alone: the
// on-disk index files are preallocated to their configured capacity and
// only truncated to their real size on a clean Close, so after a crash
// their raw size does not reliably convey how many entries are valid.
// Scanning the log and regenerating both indexes from what decodes is
// the only source of truth; it naturally truncates a torn tail record
// and stops at the first gap in the expected offset sequence (which is
// what pre-allocated, not-yet-written log space decodes as).
func (s *Segment) recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := int64(0)
	expectedOffset := s.StartOffset

	for pos+int64(message.HeaderSize) <= s.log.capacity {
		header := s.log.readRange(pos, message.HeaderSize)
		payloadLen := binary.LittleEndian.Uint32(header[32:36])
		total := int64(message.HeaderSize) + int64(payloadLen)
		if pos+total > s.log.capacity {
			break
		}

		raw := s.log.readRange(pos, total)
		m, n, err := message.Decode(raw)
		if err != nil {
			break
		}
		if m.Offset == 0 && m.Timestamp == 0 && m.ID == (message.ID{}) && len(m.Payload) == 0 {
			// An all-zero header is pre-allocated space, even in a
			// segment whose start offset is 0.
			break
		}
		if m.Offset != expectedOffset {
			// Either zero-padding from pre-allocation or a corrupt
			// record; either way nothing past here is durable.
			break
		}

		relOffset := uint32(m.Offset - s.StartOffset)
		_ = s.offsetIdx.append(OffsetIndexEntry{RelativeOffset: relOffset, Position: uint32(pos)})
		_ = s.timeIdx.append(TimeIndexEntry{RelativeOffset: relOffset, Timestamp: m.Timestamp})

		pos += int64(n)
		expectedOffset++
	}

	s.log.setSize(pos)
	if expectedOffset > s.StartOffset {
		s.CurrentOffset = int64(expectedOffset) - 1
	} else {
		s.CurrentOffset = int64(s.StartOffset) - 1
	}
	s.CurrentSizeBytes = pos
	return nil
}

// StartOffsetForTimestamp returns the absolute offset of the first
// message in this segment (persisted or buffered) with timestamp >= ts,
// or s.StartOffset if none of the timestamps reach ts.
func (s *Segment) StartOffsetForTimestamp(ts uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.timeIdx.firstAtOrAfter(ts); ok {
		return s.StartOffset + uint64(e.RelativeOffset)
	}
	for _, p := range s.pendingMsg {
		if p.timeEntr.Timestamp >= ts {
			return s.StartOffset + uint64(p.timeEntr.RelativeOffset)
		}
	}
	return s.StartOffset
}
