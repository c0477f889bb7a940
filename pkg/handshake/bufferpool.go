package handshake

import "sync"

// Buffer size classes. A handshake envelope lands in the medium class for
// ML-KEM-768 + ML-DSA-65 (about 7.6 KB) and in the large class for
// ML-KEM-1024 + ML-DSA-87 (about 10.5 KB); no supported scheme pair
// exceeds the large class.
const (
	smallBufferSize  = 512
	mediumBufferSize = 8 * 1024
	largeBufferSize  = 64 * 1024
)

// BufferPool recycles byte slices used to encode/decode handshake
// envelopes, sized in classes instead of one pool per exact size so the
// allocator sees a bounded number of distinct slice capacities.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

// NewBufferPool constructs an empty BufferPool.
func NewBufferPool() *BufferPool {
	p := &BufferPool{}
	p.small.New = func() any { return make([]byte, 0, smallBufferSize) }
	p.medium.New = func() any { return make([]byte, 0, mediumBufferSize) }
	p.large.New = func() any { return make([]byte, 0, largeBufferSize) }
	return p
}

// Get returns a buffer with at least size capacity, zero length.
func (p *BufferPool) Get(size int) []byte {
	switch {
	case size <= smallBufferSize:
		return p.small.Get().([]byte)[:0]
	case size <= mediumBufferSize:
		return p.medium.Get().([]byte)[:0]
	case size <= largeBufferSize:
		return p.large.Get().([]byte)[:0]
	default:
		return make([]byte, 0, size)
	}
}

// Put returns buf to the pool matching its capacity. Buffers outside every
// size class are dropped for the garbage collector instead of pooled.
func (p *BufferPool) Put(buf []byte) {
	c := cap(buf)
	switch {
	case c == smallBufferSize:
		p.small.Put(buf[:0]) //nolint:staticcheck // reset length, keep capacity
	case c == mediumBufferSize:
		p.medium.Put(buf[:0])
	case c == largeBufferSize:
		p.large.Put(buf[:0])
	}
}

var globalBufferPool = NewBufferPool()

// GetGlobal borrows from the package-level buffer pool.
func GetGlobal(size int) []byte { return globalBufferPool.Get(size) }

// PutGlobal returns a buffer to the package-level buffer pool.
func PutGlobal(buf []byte) { globalBufferPool.Put(buf) }
