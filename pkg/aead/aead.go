// Package aead wraps AES-256-GCM and ChaCha20-Poly1305 behind a single
// explicit-nonce interface. Unlike a general-purpose AEAD wrapper, this one
// never derives or tracks its own nonce — the tunnel runtime owns nonce
// derivation (base nonce XOR sequence) and always passes the nonce in.
package aead

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

// Suite is an AEAD cipher suite identifier.
type Suite = constants.CipherSuite

// AEAD seals and opens frames under a fixed key, with the nonce supplied by
// the caller on every call.
type AEAD struct {
	suite Suite
	aead  cipher.AEAD
}

// New constructs an AEAD for suite using key, which must be exactly 32
// bytes for both supported suites.
func New(suite Suite, key []byte) (*AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}
	var impl cipher.AEAD
	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("aead.New", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("aead.New", err)
		}
		impl = gcm
	case constants.CipherSuiteChaCha20Poly1305:
		c, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("aead.New", err)
		}
		impl = c
	default:
		return nil, qerrors.ErrUnsupportedSuite
	}
	return &AEAD{suite: suite, aead: impl}, nil
}

// Seal encrypts plaintext under nonce and associated data, appending the
// authentication tag. nonce must be exactly NonceSize() bytes.
func (a *AEAD) Seal(nonce, plaintext, associatedData []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	return a.aead.Seal(nil, nonce, plaintext, associatedData), nil
}

// Open authenticates and decrypts ciphertext (which includes the trailing
// tag) under nonce and associated data.
func (a *AEAD) Open(nonce, ciphertext, associatedData []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	if len(ciphertext) < a.aead.Overhead() {
		return nil, qerrors.ErrCiphertextTooShort
	}
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, qerrors.ErrAuthFailure
	}
	return plaintext, nil
}

// NonceSize returns the nonce length this suite expects (12 for both).
func (a *AEAD) NonceSize() int { return a.aead.NonceSize() }

// Overhead returns the authentication tag length appended on Seal.
func (a *AEAD) Overhead() int { return a.aead.Overhead() }

// Suite reports which cipher suite this AEAD was constructed with.
func (a *AEAD) Suite() Suite { return a.suite }

// XORNonce derives the per-frame nonce: the 12-byte base nonce XORed
// against the sequence number zero-extended to 96 bits, little-endian.
func XORNonce(base []byte, sequence uint64) []byte {
	out := make([]byte, len(base))
	copy(out, base)
	var seqBytes [12]byte
	for i := 0; i < 8; i++ {
		seqBytes[i] = byte(sequence >> (8 * i))
	}
	for i := range out {
		out[i] ^= seqBytes[i]
	}
	return out
}
