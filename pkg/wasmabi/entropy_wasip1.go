//go:build wasip1

package wasmabi

import (
	"unsafe"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/engine"
)

// autheoHostEntropy is the ABI's host-imported entropy source: some WASM
// runtimes loading this module don't expose WASI's random_get import, so
// the embedding host supplies randomness directly instead.
//
//go:wasmimport autheo autheo_host_entropy
func autheoHostEntropy(ptr uint32, length uint32) int32

// hostEntropyReader adapts autheoHostEntropy to io.Reader so the primitive
// engines can draw from it the same way they draw from crypto/rand.Reader
// on other platforms.
type hostEntropyReader struct{}

func (hostEntropyReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	ptr := uint32(uintptr(unsafe.Pointer(&p[0])))
	if status := autheoHostEntropy(ptr, uint32(len(p))); status != 0 {
		return 0, qerrors.ErrEntropyUnavailable
	}
	return len(p), nil
}

func init() {
	engine.Reader = hostEntropyReader{}
}
