package codec

import (
	"bytes"
	"sync"

	"github.com/bifrostmc/bifrost/pkg/internal/bufpool"
)

var encodePool, compressPool poolMap

// poolMap pools buffers per packet type, since packets of the
// same type tend to serialize to similar sizes.
type poolMap struct {
	// sync.Map is optimized for entries that are written
	// once but read many times, which fits packet types.
	pools sync.Map // map[any]*bufpool.Pool
}

// bufpoolPool hands out candidate pools for LoadOrStore, which needs
// the new value before knowing whether one already exists.
var bufpoolPool = sync.Pool{New: func() any {
	return &bufpool.Pool{}
}}

func (p *poolMap) getBuf(key any) (*bytes.Buffer, func()) {
	candidate := bufpoolPool.Get()
	actual, loaded := p.pools.LoadOrStore(key, candidate)
	if loaded {
		bufpoolPool.Put(candidate)
	}
	pool := actual.(*bufpool.Pool)
	buf := pool.Get()
	return buf, func() { pool.Put(buf) }
}
