package errors

import (
	"errors"
	"testing"
)

func TestCryptoErrorUnwrap(t *testing.T) {
	inner := ErrInvalidCiphertext
	wrapped := NewCryptoError("engine.Decapsulate", inner)

	if !errors.Is(wrapped, inner) {
		t.Fatal("wrapped CryptoError should unwrap to the sentinel")
	}
	if wrapped.Error() == "" {
		t.Fatal("CryptoError.Error() should not be empty")
	}
}

func TestHandshakeErrorUnwrap(t *testing.T) {
	wrapped := NewHandshakeError("respond", ErrBadInitiatorSignature)
	if !Is(wrapped, ErrBadInitiatorSignature) {
		t.Fatal("wrapped HandshakeError should unwrap to the sentinel")
	}
}

func TestAnchorErrorUnwrap(t *testing.T) {
	wrapped := NewAnchorError("diff-123", ErrStaleLamport)
	if !Is(wrapped, ErrStaleLamport) {
		t.Fatal("wrapped AnchorError should unwrap to the sentinel")
	}
	var target *AnchorError
	if !As(wrapped, &target) {
		t.Fatal("As should find the AnchorError in the chain")
	}
	if target.DiffID != "diff-123" {
		t.Errorf("DiffID = %q, want diff-123", target.DiffID)
	}
}
