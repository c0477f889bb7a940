package handshake

import (
	"encoding/binary"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/engine"
)

// WireInit's own wire layout — unlike Envelope, nothing outside this
// package constrains its byte format, so it gets a simpler fixed header
// plus four length-prefixed blobs rather than the bit-exact envelope table.
const (
	wireInitMagic      = "PQCW"
	wireInitVersion    = 1
	wireInitHeaderSize = 4 + 1 + 1 + 1 + 1 + 32 + 32 + 32 + 32 + 2 + 2 + 2 + 2
)

// EncodeWireInit serializes w for transport across a process or host
// boundary (e.g. the WASM embedding ABI's request buffer).
func EncodeWireInit(w *WireInit) ([]byte, error) {
	blobs := [][]byte{w.Ciphertext, w.ApplicationData, w.SignerPublicKey, w.Signature}
	total := wireInitHeaderSize
	for _, b := range blobs {
		if len(b) > 0xFFFF {
			return nil, qerrors.ErrEnvelopeTooLarge
		}
		total += len(b)
	}

	buf := make([]byte, wireInitHeaderSize, total)
	copy(buf[0:], wireInitMagic)
	buf[4] = wireInitVersion
	buf[5] = byte(w.KEMScheme)
	buf[6] = byte(w.DSAScheme)
	buf[7] = 0 // reserved
	off := 8
	copy(buf[off:], w.KEMKeyID[:])
	off += 32
	copy(buf[off:], w.InitiatorNonce[:])
	off += 32
	copy(buf[off:], w.RouteHash[:])
	off += 32
	copy(buf[off:], w.SigningKeyID[:])
	off += 32
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(w.Ciphertext)))
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(w.ApplicationData)))
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(w.SignerPublicKey)))
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(w.Signature)))

	for _, b := range blobs {
		buf = append(buf, b...)
	}
	return buf, nil
}

// DecodeWireInit parses the layout produced by EncodeWireInit.
func DecodeWireInit(data []byte) (*WireInit, error) {
	if len(data) < wireInitHeaderSize || string(data[0:4]) != wireInitMagic || data[4] != wireInitVersion {
		return nil, qerrors.ErrMalformedWireInit
	}

	w := &WireInit{
		KEMScheme: engine.KEMScheme(data[5]),
		DSAScheme: engine.DSAScheme(data[6]),
	}
	off := 8
	copy(w.KEMKeyID[:], data[off:off+32])
	off += 32
	copy(w.InitiatorNonce[:], data[off:off+32])
	off += 32
	copy(w.RouteHash[:], data[off:off+32])
	off += 32
	copy(w.SigningKeyID[:], data[off:off+32])
	off += 32

	ctLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	appLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	pubLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	sigLen := int(binary.LittleEndian.Uint16(data[off:]))

	want := wireInitHeaderSize + ctLen + appLen + pubLen + sigLen
	if len(data) != want {
		return nil, qerrors.ErrMalformedWireInit
	}

	cursor := wireInitHeaderSize
	w.Ciphertext, cursor = sliceBlob(data, cursor, ctLen)
	w.ApplicationData, cursor = sliceBlob(data, cursor, appLen)
	w.SignerPublicKey, cursor = sliceBlob(data, cursor, pubLen)
	w.Signature, _ = sliceBlob(data, cursor, sigLen)

	return w, nil
}
