//go:build wasip1

package wasmabi

import (
	"sync"
	"unsafe"
)

// liveBuffers keeps Go-allocated buffers reachable for as long as the host
// holds a pointer into them — the runtime's garbage collector has no other
// reason to know the host still cares about memory reachable only through
// an address it received across the ABI boundary.
var liveBuffers = struct {
	mu  sync.Mutex
	buf map[uint32][]byte
}{buf: make(map[uint32][]byte)}

//go:wasmexport pqc_alloc
func pqcAllocExport(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	liveBuffers.mu.Lock()
	liveBuffers.buf[ptr] = buf
	liveBuffers.mu.Unlock()
	return ptr
}

//go:wasmexport pqc_free
func pqcFreeExport(ptr uint32, _ uint32) {
	if ptr == 0 {
		return
	}
	liveBuffers.mu.Lock()
	delete(liveBuffers.buf, ptr)
	liveBuffers.mu.Unlock()
}

//go:wasmexport pqc_handshake
func pqcHandshakeExport(reqPtr, reqLen, respPtr, respLen uint32) int32 {
	r := currentResponder()
	if r == nil || reqLen == 0 {
		return StatusInvalidInput
	}

	request := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(reqPtr))), reqLen)
	response, err := r.Handle(request)
	if err != nil {
		return StatusInternalError
	}
	defer handshakeBufferRelease(response)

	if uint32(len(response)) > respLen {
		return StatusResponseTooSmall
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(respPtr))), respLen)
	copy(dst, response)
	return int32(len(response))
}
