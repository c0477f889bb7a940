// selftest.go runs a condensed known-answer / pairwise-consistency check
// against every supported scheme when called: generate a keypair,
// exercise the scheme's round trip, and confirm the output is self
// consistent. It does not check against externally published test vectors;
// it guards against a linked circl build that is broken or mismatched.
package engine

import "fmt"

// RunSelfTest exercises every supported KEM and DSA scheme once and
// returns the first failure encountered, or nil if every scheme is sound.
func RunSelfTest() error {
	for _, scheme := range []KEMScheme{MlKem512, MlKem768, MlKem1024} {
		if err := selfTestKEM(scheme); err != nil {
			return fmt.Errorf("selftest: kem %s: %w", scheme, err)
		}
	}
	for _, scheme := range []DSAScheme{MlDsa2, MlDsa3, MlDsa5, FalconL1, FalconL5} {
		if err := selfTestDSA(scheme); err != nil {
			return fmt.Errorf("selftest: dsa %s: %w", scheme, err)
		}
	}
	return nil
}

func selfTestKEM(scheme KEMScheme) error {
	k, err := NewKEM(scheme)
	if err != nil {
		return err
	}
	pub, sec, err := k.Keypair()
	if err != nil {
		return fmt.Errorf("keypair: %w", err)
	}
	ct, ss1, err := k.Encapsulate(pub)
	if err != nil {
		return fmt.Errorf("encapsulate: %w", err)
	}
	ss2, err := k.Decapsulate(sec, ct)
	if err != nil {
		return fmt.Errorf("decapsulate: %w", err)
	}
	if !bytesEqual(ss1, ss2) {
		return fmt.Errorf("shared secret mismatch")
	}
	return nil
}

func selfTestDSA(scheme DSAScheme) error {
	d, err := NewDSA(scheme)
	if err != nil {
		return err
	}
	pub, sec, err := d.Keypair()
	if err != nil {
		return fmt.Errorf("keypair: %w", err)
	}
	msg := []byte("pqcnet-selftest-message")
	sig, err := d.Sign(sec, msg)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	if !d.Verify(pub, msg, sig) {
		return fmt.Errorf("verify failed on genuine signature")
	}
	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 0xFF
	if d.Verify(pub, tampered, sig) {
		return fmt.Errorf("verify accepted a tampered message")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
