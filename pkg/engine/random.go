package engine

import (
	"crypto/rand"
	"io"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

// Reader is the entropy source used by production engines. Tests substitute
// a deterministicReader instead of touching this.
var Reader io.Reader = rand.Reader

// SecureRandom fills b with cryptographically secure random bytes.
func SecureRandom(b []byte) error {
	if _, err := io.ReadFull(Reader, b); err != nil {
		return qerrors.ErrEntropyUnavailable
	}
	return nil
}

// Zeroize overwrites b with zeros in place. Callers use it to scrub secret
// key material before it is dropped.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple zeroizes every slice in bs, skipping nils.
func ZeroizeMultiple(bs ...[]byte) {
	for _, b := range bs {
		Zeroize(b)
	}
}

// deterministicReader replays a fixed byte string, used to build
// byte-for-byte reproducible keypairs and ciphertexts from a seed.
type deterministicReader struct {
	data   []byte
	offset int
}

func newDeterministicReader(seed []byte) *deterministicReader {
	return &deterministicReader{data: expandSeed(seed)}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	n := copy(p, r.data[r.offset:])
	r.offset += n
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// expandSeed stretches a short seed into a long deterministic byte stream
// via repeated blake2s hashing, so callers needing more bytes than the seed
// (e.g. a private key plus an encapsulation seed) get a reproducible stream
// instead of running out.
func expandSeed(seed []byte) []byte {
	const streamLen = 1 << 16
	out := make([]byte, 0, streamLen)
	block := append([]byte(nil), seed...)
	for len(out) < streamLen {
		block = blake2sSum(block)
		out = append(out, block...)
	}
	return out
}
