package handshake

import (
	"bytes"
	"testing"

	"github.com/pqcnet/tunnelcore/pkg/engine"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

type fakeResolver struct {
	id     keymanager.KeyId
	secret []byte
	public []byte
	scheme engine.KEMScheme
}

func (r *fakeResolver) ResolveKEMSecret(id keymanager.KeyId) ([]byte, engine.KEMScheme, error) {
	if id != r.id {
		return nil, 0, errUnknown
	}
	return r.secret, r.scheme, nil
}

func (r *fakeResolver) ResolveKEMPublicKey(id keymanager.KeyId) ([]byte, error) {
	if id != r.id {
		return nil, errUnknown
	}
	return r.public, nil
}

var errUnknown = bytesError("unknown key")

type bytesError string

func (e bytesError) Error() string { return string(e) }

func seed(b byte) []byte {
	s := make([]byte, 32)
	for i := range s {
		s[i] = b
	}
	return s
}

func buildParty(t *testing.T, kemSeed, dsaSeed []byte) (engine.KEM, []byte, []byte, *keymanager.DSAKeyRecord, engine.DSA) {
	t.Helper()
	kem, err := engine.NewDeterministicKEM(engine.MlKem768, kemSeed)
	if err != nil {
		t.Fatalf("NewDeterministicKEM: %v", err)
	}
	pub, sec, err := kem.Keypair()
	if err != nil {
		t.Fatalf("kem.Keypair: %v", err)
	}
	dsa, err := engine.NewDeterministicDSA(engine.MlDsa3, dsaSeed)
	if err != nil {
		t.Fatalf("NewDeterministicDSA: %v", err)
	}
	dsaPub, dsaSec, err := dsa.Keypair()
	if err != nil {
		t.Fatalf("dsa.Keypair: %v", err)
	}
	rec := &keymanager.DSAKeyRecord{
		ID:        keymanager.ComputeKeyId(byte(engine.MlDsa3), dsaPub),
		Scheme:    engine.MlDsa3,
		PublicKey: dsaPub,
		SecretKey: dsaSec,
		Threshold: keymanager.ThresholdPolicy{T: 3, N: 5},
	}
	return kem, pub, sec, rec, dsa
}

func TestHandshakeHappyPath(t *testing.T) {
	// Responder's long-term KEM pair, seeded per the documented literal
	// seed scenarios (0x11...11 initiator side, 0x22...22 responder side).
	respKEM, respKEMPub, respKEMSec, respDSARecord, respDSA := buildParty(t, seed(0x22), seed(0x23))
	_ = respKEM

	respKEMKeyID := keymanager.ComputeKeyId(byte(engine.MlKem768), respKEMPub)
	resolver := &fakeResolver{id: respKEMKeyID, secret: respKEMSec, public: respKEMPub, scheme: engine.MlKem768}

	_, _, _, initDSARecord, initDSA := buildParty(t, seed(0x11), seed(0x12))

	var routeHash [32]byte
	copy(routeHash[:], []byte("route-hash-fixture-0000000000!!"))
	appData := []byte("application-data")

	init, sharedSecret, err := InitHandshake(respKEMPub, engine.MlKem768, respKEMKeyID, initDSARecord, initDSA, routeHash, appData)
	if err != nil {
		t.Fatalf("InitHandshake: %v", err)
	}

	env, respMaterial, err := RespondHandshake(init, resolver, respDSARecord, respDSA, 0)
	if err != nil {
		t.Fatalf("RespondHandshake: %v", err)
	}
	if len(env.SharedSecret) != 0 {
		t.Fatal("Envelope must never carry the shared secret across the boundary")
	}
	if !bytes.Equal(env.KEMPublicKey, respKEMPub) {
		t.Fatal("Envelope must carry the responder's KEM public key on the wire")
	}

	initMaterial, err := CompleteInitiator(init, sharedSecret, env, 0)
	if err != nil {
		t.Fatalf("CompleteInitiator: %v", err)
	}

	if !bytes.Equal(initMaterial.SendKey, respMaterial.RecvKey) {
		t.Fatal("initiator send key must mirror responder recv key")
	}
	if !bytes.Equal(initMaterial.RecvKey, respMaterial.SendKey) {
		t.Fatal("initiator recv key must mirror responder send key")
	}
	if !bytes.Equal(initMaterial.TupleKey, respMaterial.TupleKey) {
		t.Fatal("tuple keys must match on both sides")
	}
	if initMaterial.SessionID != respMaterial.SessionID {
		t.Fatal("session IDs must match on both sides")
	}
}

func TestRespondHandshakeRejectsBadInitiatorSignature(t *testing.T) {
	respKEM, respKEMPub, respKEMSec, respDSARecord, respDSA := buildParty(t, seed(0x22), seed(0x23))
	_ = respKEM
	respKEMKeyID := keymanager.ComputeKeyId(byte(engine.MlKem768), respKEMPub)
	resolver := &fakeResolver{id: respKEMKeyID, secret: respKEMSec, public: respKEMPub, scheme: engine.MlKem768}

	_, _, _, initDSARecord, initDSA := buildParty(t, seed(0x11), seed(0x12))

	var routeHash [32]byte
	copy(routeHash[:], []byte("route-hash-fixture-0000000000!!"))

	init, _, err := InitHandshake(respKEMPub, engine.MlKem768, respKEMKeyID, initDSARecord, initDSA, routeHash, nil)
	if err != nil {
		t.Fatalf("InitHandshake: %v", err)
	}
	init.Signature[0] ^= 0xFF

	if _, _, err := RespondHandshake(init, resolver, respDSARecord, respDSA, 0); err == nil {
		t.Fatal("expected BadInitiatorSignature for a tampered signature")
	}
}

func TestEnvelopeEncodeDecodeRoundTrip(t *testing.T) {
	env := &Envelope{
		KEMScheme:    engine.MlKem768,
		DSAScheme:    engine.MlDsa3,
		Threshold:    keymanager.ThresholdPolicy{T: 3, N: 5},
		Ciphertext:   []byte("ciphertext-bytes"),
		SharedSecret: nil,
		Signature:    []byte("signature-bytes"),
		KEMPublicKey: []byte("kem-pub"),
		DSAPublicKey: []byte("dsa-pub"),
	}
	env.KEMKeyID[0] = 0xAB
	env.SigningKeyID[0] = 0xCD
	env.KEMCreatedAt = 1000
	env.KEMExpiresAt = 4600

	encoded, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeEnvelope(encoded)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if !bytes.Equal(decoded.Ciphertext, env.Ciphertext) ||
		!bytes.Equal(decoded.Signature, env.Signature) ||
		!bytes.Equal(decoded.KEMPublicKey, env.KEMPublicKey) ||
		!bytes.Equal(decoded.DSAPublicKey, env.DSAPublicKey) {
		t.Fatal("decoded envelope blobs do not match the original")
	}
	if decoded.KEMCreatedAt != env.KEMCreatedAt || decoded.KEMExpiresAt != env.KEMExpiresAt {
		t.Fatal("decoded timestamps do not match")
	}
	if decoded.Threshold != env.Threshold {
		t.Fatal("decoded threshold policy does not match")
	}
}

func TestDecodeEnvelopeRejectsBadMagic(t *testing.T) {
	env := &Envelope{Threshold: keymanager.ThresholdPolicy{T: 1, N: 1}}
	encoded, err := env.Encode()
	if err != nil {
		t.Fatal(err)
	}
	encoded[0] ^= 0xFF
	if _, err := DecodeEnvelope(encoded); err == nil {
		t.Fatal("expected rejection of a corrupted magic")
	}
}

func TestEncodeRejectsOversizedBlob(t *testing.T) {
	env := &Envelope{Ciphertext: make([]byte, 1<<16+1)}
	if _, err := env.Encode(); err == nil {
		t.Fatal("expected ErrEnvelopeTooLarge")
	}
}

func TestWireInitEncodeDecodeRoundTrip(t *testing.T) {
	w := &WireInit{
		KEMScheme:       engine.MlKem768,
		Ciphertext:      []byte("ciphertext-bytes"),
		ApplicationData: []byte("app-data"),
		DSAScheme:       engine.MlDsa3,
		SignerPublicKey: []byte("signer-pub"),
		Signature:       []byte("signature-bytes"),
	}
	w.KEMKeyID[0] = 0xAB
	w.SigningKeyID[0] = 0xCD
	w.InitiatorNonce[0] = 0x01
	w.RouteHash[0] = 0x02

	encoded, err := EncodeWireInit(w)
	if err != nil {
		t.Fatalf("EncodeWireInit: %v", err)
	}
	decoded, err := DecodeWireInit(encoded)
	if err != nil {
		t.Fatalf("DecodeWireInit: %v", err)
	}
	if decoded.KEMScheme != w.KEMScheme || decoded.DSAScheme != w.DSAScheme {
		t.Fatal("decoded scheme tags do not match")
	}
	if decoded.KEMKeyID != w.KEMKeyID || decoded.SigningKeyID != w.SigningKeyID {
		t.Fatal("decoded key ids do not match")
	}
	if decoded.InitiatorNonce != w.InitiatorNonce || decoded.RouteHash != w.RouteHash {
		t.Fatal("decoded nonce/route hash do not match")
	}
	if !bytes.Equal(decoded.Ciphertext, w.Ciphertext) ||
		!bytes.Equal(decoded.ApplicationData, w.ApplicationData) ||
		!bytes.Equal(decoded.SignerPublicKey, w.SignerPublicKey) ||
		!bytes.Equal(decoded.Signature, w.Signature) {
		t.Fatal("decoded blobs do not match the original")
	}
}

func TestDecodeWireInitRejectsBadMagic(t *testing.T) {
	w := &WireInit{}
	encoded, err := EncodeWireInit(w)
	if err != nil {
		t.Fatal(err)
	}
	encoded[0] ^= 0xFF
	if _, err := DecodeWireInit(encoded); err == nil {
		t.Fatal("expected rejection of a corrupted magic")
	}
}
