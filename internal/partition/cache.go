package partition

import "flowlog/internal/message"

// ringCache holds a bounded, contiguous suffix of recently appended
// messages. A cache probe either serves the whole request or falls
// through to disk entirely — partial cache merging is deliberately not
// supported (see spec design notes: it duplicates work for no benefit).
type ringCache struct {
	capacity int
	buf      []*message.Message // logical order, oldest first
}

func newRingCache(capacity int) *ringCache {
	return &ringCache{capacity: capacity}
}

func (c *ringCache) push(m *message.Message) {
	if c.capacity <= 0 {
		return
	}
	c.buf = append(c.buf, m)
	if len(c.buf) > c.capacity {
		c.buf = c.buf[len(c.buf)-c.capacity:]
	}
}

func (c *ringCache) empty() bool { return len(c.buf) == 0 }

func (c *ringCache) frontOffset() uint64 {
	return c.buf[0].Offset
}

// tryGet returns a complete hit for [start, end] if the cache's oldest
// entry is old enough to cover it; otherwise it reports a miss so the
// caller falls through to segment storage.
func (c *ringCache) tryGet(start, end uint64) ([]*message.Message, bool) {
	if c.empty() || start < c.frontOffset() {
		return nil, false
	}

	out := make([]*message.Message, 0, end-start+1)
	for _, m := range c.buf {
		if m.Offset >= start && m.Offset <= end {
			out = append(out, m)
		}
	}
	return out, true
}
