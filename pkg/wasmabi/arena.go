package wasmabi

import "sync"

// Arena emulates the flat, pointer-addressed linear memory a WASM guest
// exposes to its host: Alloc/Free hand out opaque uint32 addresses backed
// by real Go byte slices. On a wasip1 build the wasmexport shims address
// actual linear memory directly instead of going through an Arena — this
// type exists so the ABI's semantics can be built and tested under any
// GOOS, and so an in-process embedder can drive the same entry points
// without a real WASM runtime in between.
type Arena struct {
	mu      sync.Mutex
	buffers map[uint32][]byte
	next    uint32
}

// NewArena constructs an empty Arena. Address 0 is never handed out, so
// it can double as a null pointer.
func NewArena() *Arena {
	return &Arena{buffers: make(map[uint32][]byte), next: 1}
}

// Alloc reserves a size-byte buffer and returns its address, or 0 if size
// is zero.
func (a *Arena) Alloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	ptr := a.next
	a.next++
	a.buffers[ptr] = make([]byte, size)
	return ptr
}

// Free releases the buffer at ptr. len is accepted (matching pqc_free's
// signature) but not trusted — the Arena always knows a buffer's true size.
func (a *Arena) Free(ptr uint32, _ uint32) {
	if ptr == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.buffers, ptr)
}

// Write copies data into the buffer at ptr, failing if it doesn't fit.
func (a *Arena) Write(ptr uint32, data []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[ptr]
	if !ok || len(data) > len(buf) {
		return false
	}
	copy(buf, data)
	return true
}

// Read returns a copy of n bytes starting at ptr.
func (a *Arena) Read(ptr uint32, n uint32) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[ptr]
	if !ok || uint32(len(buf)) < n {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, true
}
