package constants

import "testing"

func TestCipherSuiteString(t *testing.T) {
	cases := []struct {
		cs   CipherSuite
		want string
	}{
		{CipherSuiteAES256GCM, "AES-256-GCM"},
		{CipherSuiteChaCha20Poly1305, "ChaCha20-Poly1305"},
		{CipherSuite(0xFFFF), "Unknown"},
	}
	for _, c := range cases {
		if got := c.cs.String(); got != c.want {
			t.Errorf("CipherSuite(%d).String() = %q, want %q", c.cs, got, c.want)
		}
	}
}

func TestCipherSuiteIsSupported(t *testing.T) {
	if !CipherSuiteAES256GCM.IsSupported() {
		t.Error("AES-256-GCM should be supported")
	}
	if !CipherSuiteChaCha20Poly1305.IsSupported() {
		t.Error("ChaCha20-Poly1305 should be supported")
	}
	if CipherSuite(0x9999).IsSupported() {
		t.Error("unknown suite should not be supported")
	}
}

func TestCipherSuiteFIPS(t *testing.T) {
	if !CipherSuiteAES256GCM.IsFIPSApproved() {
		t.Error("AES-256-GCM should be FIPS approved")
	}
	if CipherSuiteChaCha20Poly1305.IsFIPSApproved() {
		t.Error("ChaCha20-Poly1305 should not be FIPS approved")
	}
}

func TestEnvelopeHeaderSize(t *testing.T) {
	const want = 4 + 1 + 1 + 1 + 1 + 1 + 1 + 32 + 32 + 8 + 8 + (2 * 5)
	if EnvelopeHeaderSize != want {
		t.Errorf("EnvelopeHeaderSize = %d, want %d", EnvelopeHeaderSize, want)
	}
}

func TestMaxParentReferences(t *testing.T) {
	if MaxParentReferences != 10 {
		t.Errorf("MaxParentReferences = %d, want 10", MaxParentReferences)
	}
}
