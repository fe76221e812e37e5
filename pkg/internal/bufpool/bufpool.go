// Package bufpool provides a pool of reusable byte buffers.
package bufpool

import (
	"bytes"
	"sync"
)

// Pool is a pool of bytes.Buffer.
type Pool struct{ pool sync.Pool }

// Get returns a reset buffer from the pool.
func (p *Pool) Get() *bytes.Buffer {
	b, ok := p.pool.Get().(*bytes.Buffer)
	if !ok {
		return new(bytes.Buffer)
	}
	b.Reset()
	return b
}

// Put returns a buffer to the pool.
func (p *Pool) Put(b *bytes.Buffer) {
	if b == nil {
		return
	}
	p.pool.Put(b)
}
