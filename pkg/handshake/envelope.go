// Package handshake implements the initiator/responder exchange that
// establishes a tunnel: KEM encapsulation, transcript signing, and the
// bit-exact binary envelope that carries the responder's completed
// handshake record across a process boundary.
//
// The wire Envelope represents the responder's record only — its KeyIds,
// timestamps, and public keys are the responder's. HandshakeInit (the
// initiator's opening message) is carried as a plain Go struct, WireInit,
// since the external-interfaces layout only describes a single serialized
// envelope artifact, not two concatenated wire messages.
package handshake

import (
	"encoding/binary"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/engine"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

// Envelope is the responder's completed handshake record, laid out
// bit-exact on the wire.
type Envelope struct {
	KEMScheme    engine.KEMScheme
	DSAScheme    engine.DSAScheme
	Threshold    keymanager.ThresholdPolicy
	KEMKeyID     keymanager.KeyId
	SigningKeyID keymanager.KeyId
	KEMCreatedAt int64 // unix nanoseconds
	KEMExpiresAt int64 // unix nanoseconds

	Ciphertext   []byte
	SharedSecret []byte // always empty when crossing a process boundary
	Signature    []byte
	KEMPublicKey []byte
	DSAPublicKey []byte
}

// ReleaseEnvelopeBuffer returns a buffer produced by Encode to the package's
// buffer pool. Callers that copy the encoded bytes elsewhere (e.g. across a
// WASM linear-memory boundary) before discarding them should call this
// instead of letting the buffer fall to the garbage collector.
func ReleaseEnvelopeBuffer(buf []byte) { PutGlobal(buf) }

// Encode serializes e into the bit-exact wire layout: a 100-byte header
// followed by the five variable-length blobs in header order. The returned
// slice is drawn from the package's buffer pool — see ReleaseEnvelopeBuffer.
func (e *Envelope) Encode() ([]byte, error) {
	blobs := [][]byte{e.Ciphertext, e.SharedSecret, e.Signature, e.KEMPublicKey, e.DSAPublicKey}
	total := constants.EnvelopeHeaderSize
	for _, b := range blobs {
		if len(b) > constants.MaxBlobLength {
			return nil, qerrors.ErrEnvelopeTooLarge
		}
		total += len(b)
	}

	buf := GetGlobal(total)[:constants.EnvelopeHeaderSize]
	// Pooled buffers carry whatever a prior encode left behind; the reserved
	// byte has no field writing it below, so clear it explicitly rather than
	// let stale bytes from a previous envelope leak onto the wire.
	buf[constants.OffsetReserved] = 0
	copy(buf[constants.OffsetMagic:], constants.EnvelopeMagic)
	buf[constants.OffsetVersion] = constants.EnvelopeVersion
	buf[constants.OffsetKEMScheme] = byte(e.KEMScheme)
	buf[constants.OffsetDSAScheme] = byte(e.DSAScheme)
	buf[constants.OffsetThresholdT] = e.Threshold.T
	buf[constants.OffsetThresholdN] = e.Threshold.N
	copy(buf[constants.OffsetKEMKeyID:], e.KEMKeyID[:])
	copy(buf[constants.OffsetSigningKeyID:], e.SigningKeyID[:])
	binary.LittleEndian.PutUint64(buf[constants.OffsetKEMCreatedAt:], uint64(e.KEMCreatedAt))
	binary.LittleEndian.PutUint64(buf[constants.OffsetKEMExpiresAt:], uint64(e.KEMExpiresAt))
	binary.LittleEndian.PutUint16(buf[constants.OffsetCiphertextLen:], uint16(len(e.Ciphertext)))
	binary.LittleEndian.PutUint16(buf[constants.OffsetSharedSecretLen:], uint16(len(e.SharedSecret)))
	binary.LittleEndian.PutUint16(buf[constants.OffsetSignatureLen:], uint16(len(e.Signature)))
	binary.LittleEndian.PutUint16(buf[constants.OffsetKEMPubKeyLen:], uint16(len(e.KEMPublicKey)))
	binary.LittleEndian.PutUint16(buf[constants.OffsetDSAPubKeyLen:], uint16(len(e.DSAPublicKey)))

	for _, b := range blobs {
		buf = append(buf, b...)
	}
	return buf, nil
}

// DecodeEnvelope parses the bit-exact wire layout produced by Encode.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) < constants.EnvelopeHeaderSize {
		return nil, qerrors.ErrMalformedEnvelope
	}
	if string(data[constants.OffsetMagic:constants.OffsetMagic+4]) != constants.EnvelopeMagic {
		return nil, qerrors.ErrMalformedEnvelope
	}
	if data[constants.OffsetVersion] != constants.EnvelopeVersion {
		return nil, qerrors.ErrMalformedEnvelope
	}

	e := &Envelope{
		KEMScheme: engine.KEMScheme(data[constants.OffsetKEMScheme]),
		DSAScheme: engine.DSAScheme(data[constants.OffsetDSAScheme]),
		Threshold: keymanager.ThresholdPolicy{
			T: data[constants.OffsetThresholdT],
			N: data[constants.OffsetThresholdN],
		},
	}
	copy(e.KEMKeyID[:], data[constants.OffsetKEMKeyID:constants.OffsetKEMKeyID+32])
	copy(e.SigningKeyID[:], data[constants.OffsetSigningKeyID:constants.OffsetSigningKeyID+32])
	e.KEMCreatedAt = int64(binary.LittleEndian.Uint64(data[constants.OffsetKEMCreatedAt:]))
	e.KEMExpiresAt = int64(binary.LittleEndian.Uint64(data[constants.OffsetKEMExpiresAt:]))

	ctLen := int(binary.LittleEndian.Uint16(data[constants.OffsetCiphertextLen:]))
	ssLen := int(binary.LittleEndian.Uint16(data[constants.OffsetSharedSecretLen:]))
	sigLen := int(binary.LittleEndian.Uint16(data[constants.OffsetSignatureLen:]))
	kemPubLen := int(binary.LittleEndian.Uint16(data[constants.OffsetKEMPubKeyLen:]))
	dsaPubLen := int(binary.LittleEndian.Uint16(data[constants.OffsetDSAPubKeyLen:]))

	want := constants.EnvelopeHeaderSize + ctLen + ssLen + sigLen + kemPubLen + dsaPubLen
	if len(data) != want {
		return nil, qerrors.ErrMalformedEnvelope
	}

	off := constants.EnvelopeHeaderSize
	e.Ciphertext, off = sliceBlob(data, off, ctLen)
	e.SharedSecret, off = sliceBlob(data, off, ssLen)
	e.Signature, off = sliceBlob(data, off, sigLen)
	e.KEMPublicKey, off = sliceBlob(data, off, kemPubLen)
	e.DSAPublicKey, _ = sliceBlob(data, off, dsaPubLen)

	return e, nil
}

func sliceBlob(data []byte, off, n int) ([]byte, int) {
	b := make([]byte, n)
	copy(b, data[off:off+n])
	return b, off + n
}
