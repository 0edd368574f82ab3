// Package buffer provides the byte buffers passed across channel reads, plus
// a pool that recycles large buffers between messages.
package buffer

// Buffer is a contiguous byte region with an explicit logical size. A buffer
// either owns its storage or borrows foreign storage; only owning buffers may
// be resized or recycled through a Pool.
type Buffer struct {
	data  []byte
	size  int
	owner bool
}

// New allocates an owning buffer of the given size.
func New(size int) *Buffer {
	return &Buffer{data: make([]byte, size), size: size, owner: true}
}

// Borrow wraps p in a non-owning buffer. The caller retains ownership of p;
// the buffer refuses to resize.
func Borrow(p []byte) *Buffer {
	return &Buffer{data: p, size: len(p), owner: false}
}

// Bytes returns the logical contents of the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.size] }

// Len returns the logical size in bytes.
func (b *Buffer) Len() int { return b.size }

// Cap returns the allocated size in bytes.
func (b *Buffer) Cap() int { return len(b.data) }

// Owned reports whether the buffer owns its storage.
func (b *Buffer) Owned() bool { return b.owner }

// Resize changes the logical size of the buffer. Shrinking and growing within
// the allocated region only update the size; growing beyond it allocates a
// new block of exactly the requested size, copying the prior contents when
// keep is set. Resize reports false for non-owning buffers.
func (b *Buffer) Resize(size int, keep bool) bool {
	if !b.owner {
		return false
	}
	switch {
	case size == b.size:
	case size <= len(b.data):
		b.size = size
	default:
		data := make([]byte, size)
		if keep {
			copy(data, b.data[:b.size])
		}
		b.data = data
		b.size = size
	}
	return true
}
