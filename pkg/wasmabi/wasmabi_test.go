package wasmabi

import (
	"bytes"
	"testing"
	"time"

	"github.com/pqcnet/tunnelcore/pkg/engine"
	"github.com/pqcnet/tunnelcore/pkg/handshake"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

func buildManagers(t *testing.T) (initiator, responder *keymanager.Manager) {
	t.Helper()
	cfg := keymanager.Config{
		KEMScheme:       engine.MlKem768,
		DSAScheme:       engine.MlDsa3,
		Threshold:       keymanager.ThresholdPolicy{T: 2, N: 3},
		ActiveTTL:       time.Hour,
		RetirementGrace: 10 * time.Minute,
	}
	var err error
	initiator, err = keymanager.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager (initiator): %v", err)
	}
	responder, err = keymanager.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager (responder): %v", err)
	}
	return initiator, responder
}

func TestHostHandshakeRoundTripThroughArena(t *testing.T) {
	initiatorMgr, responderMgr := buildManagers(t)

	respKEM, _, err := responderMgr.ActiveKEM()
	if err != nil {
		t.Fatalf("ActiveKEM: %v", err)
	}
	initSignRecord, initSignEngine, err := initiatorMgr.ActiveSigning()
	if err != nil {
		t.Fatalf("ActiveSigning: %v", err)
	}

	var routeHash [32]byte
	copy(routeHash[:], []byte("route-hash-fixture-0000000000!!"))

	init, _, err := handshake.InitHandshake(respKEM.PublicKey, respKEM.Scheme, respKEM.ID, initSignRecord, initSignEngine, routeHash, []byte("app-data"))
	if err != nil {
		t.Fatalf("InitHandshake: %v", err)
	}
	request, err := handshake.EncodeWireInit(init)
	if err != nil {
		t.Fatalf("EncodeWireInit: %v", err)
	}

	responder, err := NewResponder(responderMgr, 0)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	host := NewHost(responder)

	reqPtr := host.Alloc(uint32(len(request)))
	if reqPtr == 0 {
		t.Fatal("Alloc returned null pointer for a non-empty request")
	}
	if !host.arena.Write(reqPtr, request) {
		t.Fatal("failed to write request into arena")
	}

	const respCap = 8192
	respPtr := host.Alloc(respCap)
	if respPtr == 0 {
		t.Fatal("Alloc returned null pointer for the response buffer")
	}

	written := host.Handshake(reqPtr, uint32(len(request)), respPtr, respCap)
	if written < 0 {
		t.Fatalf("Handshake returned status %d", written)
	}

	raw, ok := host.arena.Read(respPtr, uint32(written))
	if !ok {
		t.Fatal("failed to read response from arena")
	}
	env, err := handshake.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if len(env.SharedSecret) != 0 {
		t.Fatal("Envelope crossing the ABI boundary must never carry the shared secret")
	}
	if !bytes.Equal(env.KEMPublicKey, respKEM.PublicKey) {
		t.Fatal("Envelope must carry the responder's KEM public key")
	}

	host.Free(reqPtr, uint32(len(request)))
	host.Free(respPtr, respCap)
}

func TestHostHandshakeRejectsMalformedRequest(t *testing.T) {
	_, responderMgr := buildManagers(t)
	responder, err := NewResponder(responderMgr, 0)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	host := NewHost(responder)

	garbage := []byte("not a wire init")
	reqPtr := host.Alloc(uint32(len(garbage)))
	host.arena.Write(reqPtr, garbage)
	respPtr := host.Alloc(4096)

	if status := host.Handshake(reqPtr, uint32(len(garbage)), respPtr, 4096); status >= 0 {
		t.Fatalf("expected a negative status for a malformed request, got %d", status)
	}
}

func TestHostHandshakeReportsResponseTooSmall(t *testing.T) {
	initiatorMgr, responderMgr := buildManagers(t)
	respKEM, _, err := responderMgr.ActiveKEM()
	if err != nil {
		t.Fatalf("ActiveKEM: %v", err)
	}
	initSignRecord, initSignEngine, err := initiatorMgr.ActiveSigning()
	if err != nil {
		t.Fatalf("ActiveSigning: %v", err)
	}
	var routeHash [32]byte
	init, _, err := handshake.InitHandshake(respKEM.PublicKey, respKEM.Scheme, respKEM.ID, initSignRecord, initSignEngine, routeHash, nil)
	if err != nil {
		t.Fatalf("InitHandshake: %v", err)
	}
	request, err := handshake.EncodeWireInit(init)
	if err != nil {
		t.Fatalf("EncodeWireInit: %v", err)
	}

	responder, err := NewResponder(responderMgr, 0)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	host := NewHost(responder)

	reqPtr := host.Alloc(uint32(len(request)))
	host.arena.Write(reqPtr, request)
	respPtr := host.Alloc(1)

	if status := host.Handshake(reqPtr, uint32(len(request)), respPtr, 1); status != StatusResponseTooSmall {
		t.Fatalf("Handshake status = %d, want StatusResponseTooSmall", status)
	}
}

func TestArenaAllocFreeRoundTrip(t *testing.T) {
	a := NewArena()
	if ptr := a.Alloc(0); ptr != 0 {
		t.Fatalf("Alloc(0) = %d, want 0", ptr)
	}
	ptr := a.Alloc(16)
	if ptr == 0 {
		t.Fatal("Alloc(16) returned null")
	}
	if !a.Write(ptr, []byte("0123456789abcdef")) {
		t.Fatal("Write failed within bounds")
	}
	if a.Write(ptr, make([]byte, 17)) {
		t.Fatal("Write should fail when data exceeds the buffer")
	}
	got, ok := a.Read(ptr, 16)
	if !ok || string(got) != "0123456789abcdef" {
		t.Fatalf("Read = %q, %v", got, ok)
	}
	a.Free(ptr, 16)
	if _, ok := a.Read(ptr, 16); ok {
		t.Fatal("Read should fail after Free")
	}
}
