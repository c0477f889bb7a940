package tunnel

import (
	"bytes"
	"testing"

	"github.com/pqcnet/tunnelcore/internal/constants"
	"github.com/pqcnet/tunnelcore/pkg/handshake"
)

func material32(b byte) *handshake.SessionMaterial {
	mk := func(n int, fill byte) []byte {
		s := make([]byte, n)
		for i := range s {
			s[i] = fill
		}
		return s
	}
	return &handshake.SessionMaterial{
		SendKey:   mk(32, b),
		SendNonce: mk(12, b+1),
		RecvKey:   mk(32, b+2),
		RecvNonce: mk(12, b+3),
		TupleKey:  mk(32, b+4),
	}
}

func pairedTunnels(t *testing.T, plan RoutePlan) (*Tunnel, *Tunnel) {
	t.Helper()
	// Initiator's send/recv must mirror the responder's recv/send so the
	// two tunnels actually talk to each other.
	initMat := material32(0x10)
	respMat := &handshake.SessionMaterial{
		SendKey:   initMat.RecvKey,
		SendNonce: initMat.RecvNonce,
		RecvKey:   initMat.SendKey,
		RecvNonce: initMat.SendNonce,
		TupleKey:  initMat.TupleKey,
	}
	var tunnelID [32]byte
	copy(tunnelID[:], []byte("fixture-tunnel-id-000000000000!!"))
	initMat.SessionID = tunnelID
	respMat.SessionID = tunnelID

	masterSecret := []byte("shared-secret-fixture")

	initT, err := New(Config{
		TunnelID:     tunnelID,
		Plan:         plan,
		Material:     initMat,
		MasterSecret: masterSecret,
		AsResponder:  false,
		Suite:        constants.CipherSuiteAES256GCM,
	})
	if err != nil {
		t.Fatalf("New(initiator): %v", err)
	}
	respT, err := New(Config{
		TunnelID:     tunnelID,
		Plan:         plan,
		Material:     respMat,
		MasterSecret: masterSecret,
		AsResponder:  true,
		Suite:        constants.CipherSuiteAES256GCM,
	})
	if err != nil {
		t.Fatalf("New(responder): %v", err)
	}
	return initT, respT
}

func fixturePlan() RoutePlan {
	return RoutePlan{Topic: "control-plane", Epoch: 0, Hops: []string{"hop-a", "hop-b"}, Class: QoSControl}
}

func TestSealOpenRoundTrip(t *testing.T) {
	initT, respT := pairedTunnels(t, fixturePlan())

	frame, err := initT.Seal([]byte("hello tunnel"), []byte("topic"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	plaintext, err := respT.Open(frame)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello tunnel")) {
		t.Fatalf("got %q, want %q", plaintext, "hello tunnel")
	}
}

func TestOpenRejectsReplay(t *testing.T) {
	initT, respT := pairedTunnels(t, fixturePlan())

	frame, err := initT.Seal([]byte("frame-one"), []byte("topic"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := respT.Open(frame); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := respT.Open(frame); err == nil {
		t.Fatal("expected Replay rejection on second delivery of the same frame")
	}
}

func TestOpenRejectsOutOfWindowSequence(t *testing.T) {
	initT, respT := pairedTunnels(t, fixturePlan())

	var last *SealedFrame
	for i := 0; i < constants.DefaultReplayWindow+5; i++ {
		f, err := initT.Seal([]byte("x"), []byte("topic"))
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			last = f
		}
		if _, err := respT.Open(f); err != nil {
			t.Fatalf("Open at i=%d: %v", i, err)
		}
	}
	if _, err := respT.Open(last); err == nil {
		t.Fatal("expected rejection of a sequence that has fallen out of the replay window")
	}
}

func TestOpenDetectsTamperAndClosesTunnel(t *testing.T) {
	initT, respT := pairedTunnels(t, fixturePlan())

	frame, err := initT.Seal([]byte("payload"), []byte("topic"))
	if err != nil {
		t.Fatal(err)
	}
	tampered := *frame
	tampered.Ciphertext = append([]byte(nil), frame.Ciphertext...)
	tampered.Ciphertext[0] ^= 0xFF

	if _, err := respT.Open(&tampered); err == nil {
		t.Fatal("expected AuthFailure on tampered ciphertext")
	}
	if respT.State() != StateClosed {
		t.Fatal("tunnel must close after an authentication failure")
	}
	if _, err := respT.Open(frame); err == nil {
		t.Fatal("closed tunnel must reject further frames")
	}
}

func TestOpenRejectsWrongRouteWithoutRekey(t *testing.T) {
	initT, respT := pairedTunnels(t, fixturePlan())

	frame, err := initT.Seal([]byte("payload"), []byte("topic"))
	if err != nil {
		t.Fatal(err)
	}

	otherPlan := RoutePlan{Topic: "different-topic", Epoch: 0, Hops: []string{"hop-z"}, Class: QoSGossip}
	if _, err := respT.Apply(RouteDecision{Action: ActionReroute, NewRoutePlan: &otherPlan, Rationale: "test rebind"}); err != nil {
		t.Fatalf("Apply reroute: %v", err)
	}

	if _, err := respT.Open(frame); err == nil {
		t.Fatal("expected WrongRoute after the responder rebinds without a matching rekey on the initiator side")
	}
}

func TestApplyRekeyResetsCountersAndChangesNonces(t *testing.T) {
	initT, respT := pairedTunnels(t, fixturePlan())

	frame, err := initT.Seal([]byte("pre-rekey"), []byte("topic"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := respT.Open(frame); err != nil {
		t.Fatal(err)
	}
	oldSendNonce := append([]byte(nil), initT.sendNonceBase...)

	if _, err := initT.Apply(RouteDecision{Action: ActionRekey}); err != nil {
		t.Fatalf("Apply rekey (initiator): %v", err)
	}
	if _, err := respT.Apply(RouteDecision{Action: ActionRekey}); err != nil {
		t.Fatalf("Apply rekey (responder): %v", err)
	}

	if initT.sendSeq != 0 {
		t.Fatal("rekey should reset the send sequence to zero")
	}
	if bytes.Equal(initT.sendNonceBase, oldSendNonce) {
		t.Fatal("rekey should re-derive the send nonce base")
	}

	next, err := initT.Seal([]byte("post-rekey"), []byte("topic"))
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := respT.Open(next)
	if err != nil {
		t.Fatalf("Open after rekey: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("post-rekey")) {
		t.Fatal("rekeyed tunnel should still round-trip correctly")
	}
}

func TestApplyRerouteEmitsTupleCommitment(t *testing.T) {
	_, respT := pairedTunnels(t, fixturePlan())
	newPlan := RoutePlan{Topic: "new-topic", Epoch: 0, Hops: []string{"hop-x"}, Class: QoSLowLatency}

	record, err := respT.Apply(RouteDecision{Action: ActionReroute, NewRoutePlan: &newPlan, Rationale: "latency spike"})
	if err != nil {
		t.Fatalf("Apply reroute: %v", err)
	}
	if record == nil {
		t.Fatal("expected a RerouteRecord for ActionReroute")
	}
	var zero [32]byte
	if record.TupleCommitment == zero {
		t.Fatal("tuple commitment should not be zero")
	}
	if record.Rationale != "latency spike" {
		t.Fatalf("Rationale = %q", record.Rationale)
	}
}

func TestSequenceExhaustedRejectsFurtherSeals(t *testing.T) {
	initT, _ := pairedTunnels(t, fixturePlan())
	initT.sendSeq = ^uint64(0)
	if _, err := initT.Seal([]byte("x"), []byte("topic")); err == nil {
		t.Fatal("expected SequenceExhausted at max sequence")
	}
}

func TestCloseZeroizesSecretsAndRejectsFurtherUse(t *testing.T) {
	initT, _ := pairedTunnels(t, fixturePlan())

	initT.Close()
	if initT.State() != StateClosed {
		t.Fatal("Close must transition the tunnel to Closed")
	}
	for _, b := range [][]byte{initT.masterSecret, initT.sendKey, initT.recvKey, initT.sendNonceBase, initT.recvNonceBase, initT.tupleKey} {
		for _, v := range b {
			if v != 0 {
				t.Fatal("Close must zeroize all retained secret material")
			}
		}
	}
	if _, err := initT.Seal([]byte("x"), []byte("topic")); err == nil {
		t.Fatal("closed tunnel must reject Seal")
	}

	// Idempotent: closing twice must not panic or re-zeroize garbage.
	initT.Close()
}

func TestRouteHashDeterministic(t *testing.T) {
	p := fixturePlan()
	if p.RouteHash() != p.RouteHash() {
		t.Fatal("RouteHash should be deterministic for the same plan")
	}
	other := p
	other.Epoch = 1
	if p.RouteHash() == other.RouteHash() {
		t.Fatal("different epochs should not collide")
	}
}
