package segment

import (
	"encoding/binary"

	"flowlog/internal/apperr"
)

const offsetEntryWidth = 4 + 4   // relative_offset:u32 | position:u32
const timeEntryWidth = 4 + 8     // relative_offset:u32 | timestamp:u64

// OffsetIndexEntry is one dense per-message entry: the byte position in
// the log file of the message whose offset is segment.start_offset+RelativeOffset.
type OffsetIndexEntry struct {
	RelativeOffset uint32
	Position       uint32
}

// TimeIndexEntry mirrors OffsetIndexEntry but for the append-time timestamp,
// written in append order so Timestamp is non-decreasing within a segment.
type TimeIndexEntry struct {
	RelativeOffset uint32
	Timestamp      uint64
}

// offsetIndex is a dense, mmap-backed array of OffsetIndexEntry, one per
// appended message, supporting binary search on relative offset.
type offsetIndex struct {
	f       *mmapFile
	entries int64 // count of entries currently written
}

func newOffsetIndex(path string, maxBytes int64) (*offsetIndex, error) {
	f, err := openMmapFile(path, maxBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err)
	}
	return &offsetIndex{f: f}, nil
}

func (idx *offsetIndex) append(e OffsetIndexEntry) error {
	pos := idx.entries * offsetEntryWidth
	if pos+offsetEntryWidth > idx.f.cap {
		return apperr.New(apperr.KindIO, "offset index full")
	}
	var buf [offsetEntryWidth]byte
	binary.LittleEndian.PutUint32(buf[0:4], e.RelativeOffset)
	binary.LittleEndian.PutUint32(buf[4:8], e.Position)
	idx.f.writeAt(pos, buf[:])
	idx.entries++
	return nil
}

func (idx *offsetIndex) entryAt(i int64) OffsetIndexEntry {
	b := idx.f.readAt(i*offsetEntryWidth, offsetEntryWidth)
	return OffsetIndexEntry{
		RelativeOffset: binary.LittleEndian.Uint32(b[0:4]),
		Position:       binary.LittleEndian.Uint32(b[4:8]),
	}
}

// lookup returns the position of the greatest entry whose relative offset
// is <= relOffset, or (0, false) if relOffset precedes every entry.
func (idx *offsetIndex) lookup(relOffset uint32) (uint32, bool) {
	if idx.entries == 0 {
		return 0, false
	}

	lo, hi := int64(0), idx.entries-1
	best := int64(-1)
	for lo <= hi {
		mid := (lo + hi) / 2
		e := idx.entryAt(mid)
		if e.RelativeOffset <= relOffset {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < 0 {
		return 0, false
	}
	return idx.entryAt(best).Position, true
}

func (idx *offsetIndex) truncate(entries int64) {
	if entries < idx.entries {
		idx.entries = entries
	}
}

func (idx *offsetIndex) sync() error  { return idx.f.sync() }
func (idx *offsetIndex) close() error { return idx.f.close() }
func (idx *offsetIndex) remove() error {
	return idx.f.remove()
}

// timeIndex mirrors offsetIndex but stores append-time timestamps and
// supports a "first entry >= ts" search instead of "<=".
type timeIndex struct {
	f       *mmapFile
	entries int64
}

func newTimeIndex(path string, maxBytes int64) (*timeIndex, error) {
	f, err := openMmapFile(path, maxBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err)
	}
	return &timeIndex{f: f}, nil
}

func (idx *timeIndex) append(e TimeIndexEntry) error {
	pos := idx.entries * timeEntryWidth
	if pos+timeEntryWidth > idx.f.cap {
		return apperr.New(apperr.KindIO, "time index full")
	}
	var buf [timeEntryWidth]byte
	binary.LittleEndian.PutUint32(buf[0:4], e.RelativeOffset)
	binary.LittleEndian.PutUint64(buf[4:12], e.Timestamp)
	idx.f.writeAt(pos, buf[:])
	idx.entries++
	return nil
}

func (idx *timeIndex) entryAt(i int64) TimeIndexEntry {
	b := idx.f.readAt(i*timeEntryWidth, timeEntryWidth)
	return TimeIndexEntry{
		RelativeOffset: binary.LittleEndian.Uint32(b[0:4]),
		Timestamp:      binary.LittleEndian.Uint64(b[4:12]),
	}
}

func (idx *timeIndex) first() (TimeIndexEntry, bool) {
	if idx.entries == 0 {
		return TimeIndexEntry{}, false
	}
	return idx.entryAt(0), true
}

func (idx *timeIndex) last() (TimeIndexEntry, bool) {
	if idx.entries == 0 {
		return TimeIndexEntry{}, false
	}
	return idx.entryAt(idx.entries - 1), true
}

// firstAtOrAfter returns the first entry with Timestamp >= ts, found by
// binary search over the (non-decreasing) timestamp column.
func (idx *timeIndex) firstAtOrAfter(ts uint64) (TimeIndexEntry, bool) {
	if idx.entries == 0 {
		return TimeIndexEntry{}, false
	}

	lo, hi := int64(0), idx.entries-1
	best := int64(-1)
	for lo <= hi {
		mid := (lo + hi) / 2
		if idx.entryAt(mid).Timestamp >= ts {
			best = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	if best < 0 {
		return TimeIndexEntry{}, false
	}
	return idx.entryAt(best), true
}

func (idx *timeIndex) truncate(entries int64) {
	if entries < idx.entries {
		idx.entries = entries
	}
}

func (idx *timeIndex) sync() error  { return idx.f.sync() }
func (idx *timeIndex) close() error { return idx.f.close() }
func (idx *timeIndex) remove() error {
	return idx.f.remove()
}
