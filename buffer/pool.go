package buffer

import "sync"

// Pool recycles owning buffers above the platform pooling threshold.
// Requests at or below the threshold bypass the pool entirely so short-lived
// small traffic does not contend on it.
type Pool struct {
	pool sync.Pool
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get returns an owning buffer of exactly the requested size. Large buffers
// are drawn from the pool when one is available; a recycled buffer that
// cannot be resized is discarded back to the pool.
func (p *Pool) Get(size int) *Buffer {
	if size <= pooledThreshold {
		return New(size)
	}
	b, _ := p.pool.Get().(*Buffer)
	if b == nil {
		return New(size)
	}
	if !b.Resize(size, false) {
		p.pool.Put(b)
		return New(size)
	}
	return b
}

// Put returns a buffer to the pool for later reuse. Non-owning buffers are
// dropped; the pool must never hand out storage it does not control.
func (p *Pool) Put(b *Buffer) {
	if b == nil || !b.owner || len(b.data) <= pooledThreshold {
		return
	}
	p.pool.Put(b)
}
