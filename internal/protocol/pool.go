package protocol

import "sync"

// MaxPooledBufferSize bounds what PutBuffer will accept back into the
// pool; an oversized buffer is let go to the GC instead of bloating the
// pool's steady-state footprint.
const MaxPooledBufferSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 2048)
		return &b
	},
}

// GetBuffer returns a pooled buffer with at least capacity bytes of
// backing storage, length zero.
func GetBuffer(capacity int) *[]byte {
	ptr := bufferPool.Get().(*[]byte)
	if cap(*ptr) < capacity {
		b := make([]byte, 0, capacity)
		return &b
	}
	*ptr = (*ptr)[:0]
	return ptr
}

// PutBuffer returns ptr to the pool, discarding it instead if it has
// grown past MaxPooledBufferSize.
func PutBuffer(ptr *[]byte) {
	if cap(*ptr) > MaxPooledBufferSize {
		return
	}
	bufferPool.Put(ptr)
}
