package engine

import "testing"

func TestSelfTestPasses(t *testing.T) {
	if err := RunSelfTest(); err != nil {
		t.Fatalf("RunSelfTest() = %v, want nil", err)
	}
}

func TestKEMRoundTrip(t *testing.T) {
	for _, scheme := range []KEMScheme{MlKem512, MlKem768, MlKem1024} {
		k, err := NewKEM(scheme)
		if err != nil {
			t.Fatalf("NewKEM(%s): %v", scheme, err)
		}
		pub, sec, err := k.Keypair()
		if err != nil {
			t.Fatalf("%s Keypair: %v", scheme, err)
		}
		ct, ss1, err := k.Encapsulate(pub)
		if err != nil {
			t.Fatalf("%s Encapsulate: %v", scheme, err)
		}
		ss2, err := k.Decapsulate(sec, ct)
		if err != nil {
			t.Fatalf("%s Decapsulate: %v", scheme, err)
		}
		if !bytesEqual(ss1, ss2) {
			t.Fatalf("%s shared secret mismatch", scheme)
		}
	}
}

func TestDeterministicKEMIsReproducible(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = 0x11
	}
	k1, err := NewDeterministicKEM(MlKem768, seed)
	if err != nil {
		t.Fatalf("NewDeterministicKEM: %v", err)
	}
	k2, err := NewDeterministicKEM(MlKem768, seed)
	if err != nil {
		t.Fatalf("NewDeterministicKEM: %v", err)
	}
	pub1, sec1, err := k1.Keypair()
	if err != nil {
		t.Fatalf("Keypair: %v", err)
	}
	pub2, sec2, err := k2.Keypair()
	if err != nil {
		t.Fatalf("Keypair: %v", err)
	}
	if !bytesEqual(pub1, pub2) || !bytesEqual(sec1, sec2) {
		t.Fatal("same seed should produce byte-identical keypairs")
	}
}

func TestDeterministicKEMDifferentSeedsDiverge(t *testing.T) {
	seedA := make([]byte, 32)
	seedB := make([]byte, 32)
	for i := range seedA {
		seedA[i] = 0x11
		seedB[i] = 0x22
	}
	ka, _ := NewDeterministicKEM(MlKem768, seedA)
	kb, _ := NewDeterministicKEM(MlKem768, seedB)
	pubA, _, err := ka.Keypair()
	if err != nil {
		t.Fatalf("Keypair: %v", err)
	}
	pubB, _, err := kb.Keypair()
	if err != nil {
		t.Fatalf("Keypair: %v", err)
	}
	if bytesEqual(pubA, pubB) {
		t.Fatal("different seeds should not collide")
	}
}

func TestDSARoundTrip(t *testing.T) {
	for _, scheme := range []DSAScheme{MlDsa2, MlDsa3, MlDsa5, FalconL1, FalconL5} {
		d, err := NewDSA(scheme)
		if err != nil {
			t.Fatalf("NewDSA(%s): %v", scheme, err)
		}
		pub, sec, err := d.Keypair()
		if err != nil {
			t.Fatalf("%s Keypair: %v", scheme, err)
		}
		msg := []byte("message-under-test")
		sig, err := d.Sign(sec, msg)
		if err != nil {
			t.Fatalf("%s Sign: %v", scheme, err)
		}
		if !d.Verify(pub, msg, sig) {
			t.Fatalf("%s Verify rejected genuine signature", scheme)
		}
	}
}

func TestFalconLevelsShareImplementation(t *testing.T) {
	nameL1, err := schemeName(FalconL1)
	if err != nil {
		t.Fatal(err)
	}
	nameL5, err := schemeName(FalconL5)
	if err != nil {
		t.Fatal(err)
	}
	if nameL1 != nameL5 {
		t.Fatalf("expected FalconL1 and FalconL5 to share an implementation, got %q vs %q", nameL1, nameL5)
	}
}

func TestSchemeStringAndSupport(t *testing.T) {
	if !MlKem768.IsSupported() {
		t.Error("MlKem768 should be supported")
	}
	if KEMScheme(0x7F).IsSupported() {
		t.Error("unknown KEM scheme should not be supported")
	}
	if MlKem512.String() != "MlKem512" {
		t.Errorf("String() = %q", MlKem512.String())
	}
	if !MlDsa3.IsSupported() {
		t.Error("MlDsa3 should be supported")
	}
	if DSAScheme(0x7F).IsSupported() {
		t.Error("unknown DSA scheme should not be supported")
	}
}
