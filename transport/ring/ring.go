// Package ring provides a bounded, blocking, auto-resizing byte ring that
// implements the transport contract. It is the in-process transport used by
// tests and same-process pipelines: one side writes raw bytes, the other
// reads them, and the buffer grows instead of deadlocking when a message is
// larger than the remaining capacity.
package ring

import (
	"io"
	"sync"

	"github.com/sadewadee/saluran/ipc"
)

// Endpoint is a single-producer/single-consumer byte ring. One byte of
// capacity is always kept free so a full ring and an empty ring cannot be
// confused.
type Endpoint struct {
	mu   sync.Mutex
	cond *sync.Cond

	data []byte
	r, w int

	// Outstanding request sizes; used to detect the mutual-starvation case
	// where neither side can make progress without a resize.
	lastRead  int
	lastWrite int

	closed  bool
	drained bool
}

// New returns a ring with the given capacity in bytes.
func New(capacity int) *Endpoint {
	e := &Endpoint{data: make([]byte, capacity)}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// readable returns the number of bytes available to read.
func (e *Endpoint) readable() int {
	if e.w >= e.r {
		return e.w - e.r
	}
	return len(e.data) - (e.r - e.w)
}

// ReadRaw blocks until len(p) bytes are available, then copies them out.
// After the ring is aborted it returns a clean EOF on the first call and an
// error on subsequent calls.
func (e *Endpoint) ReadRaw(p []byte) (int, error) {
	e.mu.Lock()
	e.lastRead = len(p)
	for {
		read := e.readable()
		write := len(e.data) - read
		if e.lastRead > read && e.lastWrite > write {
			// Neither request fits; wake the writer so it can resize.
			e.cond.Broadcast()
		}
		if read >= e.lastRead || e.closed {
			break
		}
		e.cond.Wait()
	}
	if e.closed {
		first := !e.drained
		e.drained = true
		e.mu.Unlock()
		if first {
			return 0, io.EOF
		}
		return 0, ipc.ErrClosed
	}

	e.readLocked(p)
	e.lastRead = 0
	e.mu.Unlock()
	e.cond.Broadcast()
	return len(p), nil
}

// WriteRaw blocks until len(p) bytes fit, resizing the ring when both a
// pending read and this write would otherwise starve, then copies p in.
func (e *Endpoint) WriteRaw(p []byte) error {
	e.mu.Lock()
	e.lastWrite = len(p)
	for {
		read := e.readable()
		write := len(e.data) - read
		if e.lastRead > read && e.lastWrite > write {
			e.resizeLocked(max(e.lastRead+e.lastWrite, 2*len(e.data)))
			write = len(e.data) - e.w
		}
		// Strictly greater: w may never catch up to r from behind, or a
		// full ring would be indistinguishable from an empty one.
		if write > e.lastWrite || e.closed {
			break
		}
		e.cond.Wait()
	}
	if e.closed {
		e.mu.Unlock()
		return ipc.ErrClosed
	}

	e.writeLocked(p)
	e.lastWrite = 0
	e.mu.Unlock()
	e.cond.Broadcast()
	return nil
}

// Abort closes the ring and wakes both sides. The first call returns true.
func (e *Endpoint) Abort(reason ipc.Reason) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	return true
}

// Clear drops all buffered bytes.
func (e *Endpoint) Clear() {
	e.mu.Lock()
	e.r = 0
	e.w = 0
	e.mu.Unlock()
}

// Capacity returns the current ring capacity in bytes.
func (e *Endpoint) Capacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.data)
}

func (e *Endpoint) readLocked(p []byte) {
	n := len(p)
	if wrap := e.r + n - len(e.data); wrap > 0 {
		copy(p, e.data[e.r:])
		copy(p[n-wrap:], e.data[:wrap])
		e.r = wrap
	} else {
		copy(p, e.data[e.r:e.r+n])
		e.r += n
	}
}

func (e *Endpoint) writeLocked(p []byte) {
	n := len(p)
	if wrap := e.w + n - len(e.data); wrap > 0 {
		copy(e.data[e.w:], p[:n-wrap])
		copy(e.data, p[n-wrap:])
		e.w = wrap
	} else {
		copy(e.data[e.w:], p)
		e.w += n
	}
}

// resizeLocked grows the ring to newCapacity, compacting buffered bytes to
// the front of the new block.
func (e *Endpoint) resizeLocked(newCapacity int) {
	n := e.readable()
	data := make([]byte, newCapacity)
	e.readLocked(data[:n])
	e.data = data
	e.r = 0
	e.w = n
}
