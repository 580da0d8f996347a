package segment

import (
	"flowlog/internal/apperr"
	"flowlog/internal/message"
)

// segmentLog is the append-only record file backing a segment: a
// mmap'd, fixed-capacity region with a logical write cursor.
type segmentLog struct {
	f        *mmapFile
	size     int64 // logical bytes written (durable)
	capacity int64
}

func newSegmentLog(path string, maxBytes int64) (*segmentLog, error) {
	f, err := openMmapFile(path, maxBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err)
	}
	return &segmentLog{f: f, capacity: maxBytes}, nil
}

// write appends b at the current logical end and advances it. Callers
// are responsible for capacity checks ahead of time (segment.IsFull).
func (l *segmentLog) write(b []byte) (pos int64, err error) {
	if l.size+int64(len(b)) > l.capacity {
		return 0, apperr.New(apperr.KindIO, "segment log full")
	}
	pos = l.size
	l.f.writeAt(pos, b)
	l.size += int64(len(b))
	return pos, nil
}

func (l *segmentLog) readRange(pos, n int64) []byte {
	return l.f.readAt(pos, int(n))
}

// decodeFrom scans complete messages starting at pos until the logical
// end or maxCount is reached; it does not filter by offset.
func (l *segmentLog) decodeFrom(pos int64, maxCount uint32) ([]*message.Message, error) {
	var out []*message.Message
	for pos < l.size && uint32(len(out)) < maxCount {
		remaining := l.readRange(pos, l.size-pos)
		m, n, err := message.Decode(remaining)
		if err != nil {
			return out, err
		}
		out = append(out, m)
		pos += int64(n)
	}
	return out, nil
}

func (l *segmentLog) sync() error  { return l.f.sync() }
func (l *segmentLog) close() error { return l.f.close() }
func (l *segmentLog) remove() error {
	return l.f.remove()
}

// setSize is used only during recovery to restore the logical cursor
// after validating (and possibly truncating) the log's tail.
func (l *segmentLog) setSize(n int64) { l.size = n }
