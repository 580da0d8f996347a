// Package partition implements the ordered collection of segments for
// one partition id: offset assignment, the hot ring cache, consumer
// offsets, and the segment-roll state machine.
package partition

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"flowlog/internal/apperr"
	"flowlog/internal/message"
	"flowlog/internal/segment"

	"go.uber.org/zap"
)

// ConsumerOffset is a per-(partition, consumer) checkpoint.
type ConsumerOffset struct {
	Offset    uint64
	Timestamp uint64
}

// segmentRef is the partition's lightweight view of one segment: every
// segment but the active one may or may not currently be mmap'd (see
// segmentLRU); the active segment is always the real pointer.
type segmentRef struct {
	startOffset uint64
	endOffset   uint64
	closed      bool
}

// Partition owns one partition's segments, offset bookkeeping, hot
// cache, and consumer offsets. A Partition is single-writer/multi-reader:
// AppendMessages holds mu exclusively, so appends are serialised and a
// reader sees the state either before or after an append; any number of
// reads may run concurrently with each other.
type Partition struct {
	mu sync.RWMutex

	ID     string
	dir    string
	config Config
	logger *zap.Logger

	segmentRefs []segmentRef
	active      *segment.Segment
	segCache    *segmentLRU

	currentOffset         uint64
	shouldIncrementOffset bool
	lastTimestamp         uint64

	cache                *ringCache
	consumerOffsets      map[uint32]ConsumerOffset
	unsavedMessagesCount uint32

	now func() uint64
}

// Open creates (if absent) or recovers (if present) a partition rooted
// at dir. On recovery every existing segment is opened once to run
// crash recovery; all but the active one are then closed back down to
// metadata-only entries and reloaded lazily through segCache on demand.
func Open(id string, dir string, cfg Config, logger *zap.Logger) (*Partition, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err)
	}

	starts, err := scanSegmentStarts(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, err)
	}

	p := &Partition{
		ID:              id,
		dir:             dir,
		config:          cfg,
		logger:          logger,
		cache:           newRingCache(cfg.CacheSizeMessages),
		consumerOffsets: make(map[uint32]ConsumerOffset),
		segCache:        newSegmentLRU(16),
		now:             func() uint64 { return uint64(time.Now().UnixMilli()) },
	}

	if len(starts) == 0 {
		seg, err := segment.Create(dir, 0, cfg.Segment)
		if err != nil {
			return nil, err
		}
		p.active = seg
		p.segmentRefs = []segmentRef{{startOffset: 0}}
		return p, nil
	}

	for i, start := range starts {
		seg, err := segment.Open(dir, start, cfg.Segment)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIO, err)
		}

		isLast := i == len(starts)-1
		ref := segmentRef{startOffset: start}
		if isLast {
			p.active = seg
		} else {
			seg.MarkClosed()
			ref.closed = true
			ref.endOffset = seg.EndOffset
			if err := seg.Close(); err != nil {
				return nil, err
			}
		}
		p.segmentRefs = append(p.segmentRefs, ref)
	}

	p.restoreOffsetFromSegments()
	logger.Info("partition recovered",
		zap.String("partition_id", id),
		zap.Int("segments", len(p.segmentRefs)),
		zap.Uint64("current_offset", p.currentOffset),
	)
	return p, nil
}

func (p *Partition) restoreOffsetFromSegments() {
	active := p.active
	if active.CurrentOffset >= int64(active.StartOffset) {
		p.currentOffset = uint64(active.CurrentOffset)
		p.shouldIncrementOffset = true
		return
	}
	if len(p.segmentRefs) > 1 {
		prev := p.segmentRefs[len(p.segmentRefs)-2]
		p.currentOffset = prev.endOffset
		p.shouldIncrementOffset = true
		return
	}
	p.currentOffset = 0
	p.shouldIncrementOffset = false
}

func scanSegmentStarts(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var starts []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".log")
		start, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	return starts, nil
}

// AppendMessages assigns dense, monotonic offsets and append-time
// timestamps to messages (in order), buffers them in the ring cache and
// the active segment, rolling to a new segment first if the active one
// is closed, then persists once the configured threshold is crossed.
func (p *Partition) AppendMessages(messages []*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return apperr.New(apperr.KindSegmentNotFound, "no active segment")
	}

	if p.active.IsClosed {
		if err := p.rollLocked(); err != nil {
			return err
		}
	}

	for _, m := range messages {
		if p.shouldIncrementOffset {
			p.currentOffset++
		} else {
			p.shouldIncrementOffset = true
		}
		m.Offset = p.currentOffset
		m.Timestamp = p.clampedNow()

		if err := p.active.AppendMessage(m); err != nil {
			return err
		}
		p.cache.push(m)
	}

	p.unsavedMessagesCount += uint32(len(messages))
	if p.unsavedMessagesCount >= p.config.MessagesRequiredToSave || p.active.IsFull() {
		if err := p.active.PersistMessages(); err != nil {
			return err
		}
		p.unsavedMessagesCount = 0

		if p.active.IsClosed {
			p.logger.Info("segment closed on persist",
				zap.String("partition_id", p.ID),
				zap.Uint64("start_offset", p.active.StartOffset),
				zap.Uint64("end_offset", p.active.EndOffset),
			)
			p.segmentRefs[len(p.segmentRefs)-1] = segmentRef{
				startOffset: p.active.StartOffset,
				endOffset:   p.active.EndOffset,
				closed:      true,
			}
		}
	}

	return nil
}

// clampedNow returns a non-decreasing millisecond timestamp: the clock
// source must never go backwards relative to the last assigned
// timestamp, or the time index's append-order monotonicity invariant
// breaks.
func (p *Partition) clampedNow() uint64 {
	now := p.now()
	if now < p.lastTimestamp {
		now = p.lastTimestamp
	}
	p.lastTimestamp = now
	return now
}

// rollLocked closes the active segment (if not already) and opens a
// fresh one starting right after it. Callers must hold p.mu.
func (p *Partition) rollLocked() error {
	prevEnd := p.active.EndOffset
	if !p.active.IsClosed {
		p.active.MarkClosed()
		prevEnd = p.active.EndOffset
	}

	nextStart := prevEnd + 1
	newSeg, err := segment.Create(p.dir, nextStart, p.config.Segment)
	if err != nil {
		return err
	}

	p.logger.Info("segment rolled",
		zap.String("partition_id", p.ID),
		zap.Uint64("new_start_offset", nextStart),
	)

	p.segmentRefs[len(p.segmentRefs)-1] = segmentRef{
		startOffset: p.active.StartOffset,
		endOffset:   p.active.EndOffset,
		closed:      true,
	}
	p.active = newSeg
	p.segmentRefs = append(p.segmentRefs, segmentRef{startOffset: nextStart})
	return nil
}

// GetMessagesByOffset implements the cache-probe / segment-filter read
// path described in spec §4.2.
func (p *Partition) GetMessagesByOffset(startOffset uint64, count uint32) ([]*message.Message, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.segmentRefs) == 0 || count == 0 || !p.shouldIncrementOffset {
		return nil, nil
	}

	endOffset := p.endOffsetFor(startOffset, count)
	if endOffset < startOffset {
		return nil, nil
	}

	if hit, ok := p.cache.tryGet(startOffset, endOffset); ok {
		return hit, nil
	}

	refs := p.filterSegmentRefs(startOffset, endOffset)
	switch len(refs) {
	case 0:
		return nil, nil
	case 1:
		seg, err := p.loadRef(refs[0])
		if err != nil {
			return nil, err
		}
		return seg.GetMessages(startOffset, count)
	default:
		var out []*message.Message
		for _, ref := range refs {
			seg, err := p.loadRef(ref)
			if err != nil {
				return nil, err
			}
			msgs, err := seg.GetMessages(startOffset, count)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)
		}
		return out, nil
	}
}

func (p *Partition) endOffsetFor(start uint64, count uint32) uint64 {
	end := start + uint64(count) - 1
	if end > p.currentOffset {
		end = p.currentOffset
	}
	return end
}

// filterSegmentRefs implements the simplified overlap predicate from
// spec design notes: seg.start <= end && seg.current(or end) >= start.
func (p *Partition) filterSegmentRefs(start, end uint64) []segmentRef {
	var out []segmentRef
	for _, ref := range p.segmentRefs {
		segEnd := ref.endOffset
		if !ref.closed {
			// Only the active segment is ever unclosed; its current
			// offset is the authoritative upper bound.
			segEnd = uint64(p.active.CurrentOffset)
		}
		if ref.startOffset <= end && segEnd >= start {
			out = append(out, ref)
		}
	}
	return out
}

func (p *Partition) loadRef(ref segmentRef) (*segment.Segment, error) {
	if !ref.closed && p.active != nil && ref.startOffset == p.active.StartOffset {
		return p.active, nil
	}
	return p.segCache.getOrLoad(ref.startOffset, func() (*segment.Segment, error) {
		return segment.Open(p.dir, ref.startOffset, p.config.Segment)
	})
}

// GetMessagesByTimestamp scans segments in offset order (which is
// roughly time order, per the monotonicity assumption) for the first
// one whose time-index range contains ts, then delegates to an offset
// read starting at the matching entry.
func (p *Partition) GetMessagesByTimestamp(ts uint64, count uint32) ([]*message.Message, error) {
	p.mu.RLock()
	refs := append([]segmentRef(nil), p.segmentRefs...)
	p.mu.RUnlock()

	if len(refs) == 0 {
		return nil, nil
	}

	for _, ref := range refs {
		seg, err := p.loadRefPublic(ref)
		if err != nil {
			return nil, err
		}
		first, ok := seg.FirstTimestamp()
		if !ok {
			continue
		}
		last, _ := seg.LastTimestamp()
		if ts < first || ts > last {
			continue
		}
		start := seg.StartOffsetForTimestamp(ts)
		return p.GetMessagesByOffset(start, count)
	}

	return nil, nil
}

func (p *Partition) loadRefPublic(ref segmentRef) (*segment.Segment, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadRef(ref)
}

// GetFirstMessages returns up to count messages starting at offset 0.
func (p *Partition) GetFirstMessages(count uint32) ([]*message.Message, error) {
	return p.GetMessagesByOffset(0, count)
}

// GetLastMessages returns up to count messages ending at the current offset.
func (p *Partition) GetLastMessages(count uint32) ([]*message.Message, error) {
	p.mu.RLock()
	current := p.currentOffset
	hasData := p.shouldIncrementOffset
	p.mu.RUnlock()
	if !hasData {
		return nil, nil
	}

	c := uint64(count)
	if c > current+1 {
		c = current + 1
	}
	start := current + 1 - c
	return p.GetMessagesByOffset(start, uint32(c))
}

// GetNextMessages returns the next batch for consumer_id: the first
// messages if it has no stored offset, empty if it is caught up, else
// the messages starting at (inclusive of) its stored offset.
func (p *Partition) GetNextMessages(consumerID uint32, count uint32) ([]*message.Message, error) {
	p.mu.RLock()
	co, ok := p.consumerOffsets[consumerID]
	current := p.currentOffset
	p.mu.RUnlock()

	if !ok {
		return p.GetFirstMessages(count)
	}
	if co.Offset == current {
		return nil, nil
	}
	return p.GetMessagesByOffset(co.Offset, count)
}

// StoreConsumerOffset records consumer_id's checkpoint; it must not
// exceed the partition's current offset.
func (p *Partition) StoreConsumerOffset(consumerID uint32, offset uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if offset > p.currentOffset {
		return apperr.New(apperr.KindInvalidOffset, fmt.Sprintf("offset %d exceeds current offset %d", offset, p.currentOffset))
	}
	p.consumerOffsets[consumerID] = ConsumerOffset{Offset: offset, Timestamp: p.now()}
	return nil
}

// GetConsumerOffset returns consumer_id's stored checkpoint, if any.
func (p *Partition) GetConsumerOffset(consumerID uint32) (ConsumerOffset, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	co, ok := p.consumerOffsets[consumerID]
	return co, ok
}

// CurrentOffset exposes the partition's max-ever-appended offset.
func (p *Partition) CurrentOffset() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentOffset
}

// Close persists any buffered messages, marks the active segment
// closed (Active -> ClosedUnpersisted -> ClosedPersisted, per the
// roll state machine), and releases all open segment files.
func (p *Partition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.active != nil {
		p.active.MarkClosed()
		record(p.active.PersistMessages())
		record(p.active.Close())
	}
	record(p.segCache.closeAll())

	if firstErr != nil {
		return apperr.Wrap(apperr.KindIO, firstErr)
	}
	return nil
}

// Delete closes and removes every segment's backing files, then the
// partition's now-empty directory. Unlike Close, it leaves nothing
// behind on disk.
func (p *Partition) Delete() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	cached := make(map[uint64]*segment.Segment)
	for _, seg := range p.segCache.drain() {
		cached[seg.StartOffset] = seg
	}

	for _, ref := range p.segmentRefs {
		seg := cached[ref.startOffset]
		if seg == nil && p.active != nil && ref.startOffset == p.active.StartOffset {
			seg = p.active
		}
		if seg == nil {
			var err error
			seg, err = segment.Open(p.dir, ref.startOffset, p.config.Segment)
			if err != nil {
				record(err)
				continue
			}
		}
		record(seg.Delete())
	}

	record(os.RemoveAll(p.dir))

	if firstErr != nil {
		return apperr.Wrap(apperr.KindIO, firstErr)
	}
	return nil
}
