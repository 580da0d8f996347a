package partition

import (
	"container/list"
	"sync"

	"flowlog/internal/segment"
)

// segmentLRU bounds how many closed segments are simultaneously mmap'd
// for a partition with a long history, evicting (and closing) the least
// recently used one when a read needs a segment beyond capacity. The
// active segment is never stored here; the partition pins it directly.
type segmentLRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[uint64]*list.Element
}

type lruItem struct {
	startOffset uint64
	seg         *segment.Segment
}

func newSegmentLRU(capacity int) *segmentLRU {
	if capacity <= 0 {
		capacity = 16
	}
	return &segmentLRU{capacity: capacity, order: list.New(), items: make(map[uint64]*list.Element)}
}

func (c *segmentLRU) getOrLoad(startOffset uint64, loader func() (*segment.Segment, error)) (*segment.Segment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[startOffset]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*lruItem).seg, nil
	}

	seg, err := loader()
	if err != nil {
		return nil, err
	}

	if c.order.Len() >= c.capacity {
		c.evictLocked()
	}

	elem := c.order.PushFront(&lruItem{startOffset: startOffset, seg: seg})
	c.items[startOffset] = elem
	return seg, nil
}

func (c *segmentLRU) evictLocked() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	item := elem.Value.(*lruItem)
	delete(c.items, item.startOffset)
	_ = item.seg.Close()
}

func (c *segmentLRU) closeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for e := c.order.Front(); e != nil; e = e.Next() {
		item := e.Value.(*lruItem)
		if err := item.seg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.order.Init()
	c.items = make(map[uint64]*list.Element)
	return firstErr
}

// drain empties the cache without closing anything, handing every
// currently-loaded segment back to the caller. Used by Partition.Delete,
// which needs to call Segment.Delete (not Close) on each one.
func (c *segmentLRU) drain() []*segment.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*segment.Segment, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*lruItem).seg)
	}
	c.order.Init()
	c.items = make(map[uint64]*list.Element)
	return out
}
