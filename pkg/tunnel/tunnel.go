package tunnel

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2s"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/aead"
	"github.com/pqcnet/tunnelcore/pkg/engine"
	"github.com/pqcnet/tunnelcore/pkg/handshake"
)

// State is a tunnel's lifecycle stage.
type State byte

const (
	StateHandshaking State = iota
	StateActive
	StateRerouting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "Handshaking"
	case StateActive:
		return "Active"
	case StateRerouting:
		return "Rerouting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// RouteAction is what the routing controller decided to do this tick.
type RouteAction byte

const (
	ActionMaintain RouteAction = iota
	ActionRekey
	ActionReroute
)

// RouteDecision is the controller's verdict for one tick. NewRoutePlan and
// Rationale are only meaningful for ActionReroute. Deciding which action to
// take belongs to the embedder's controller; Apply only executes it.
type RouteDecision struct {
	Action       RouteAction
	NewRoutePlan *RoutePlan
	Rationale    string
}

// SealedFrame is a single sealed frame ready for transport, or one just
// received and awaiting Open.
type SealedFrame struct {
	TunnelID   [32]byte
	RouteHash  [32]byte
	RouteEpoch uint64
	Sequence   uint64
	Topic      []byte
	Ciphertext []byte
}

// RerouteRecord describes a reroute Apply just performed, for the caller
// to hand to the anchor DAG as a state diff.
type RerouteRecord struct {
	TunnelID        [32]byte
	NewRouteHash    [32]byte
	NewRouteEpoch   uint64
	Rationale       string
	TupleCommitment [32]byte
}

// ComputeTunnelID derives tunnel_id = blake2s_32(ciphertext ||
// responder_signature || initial_route_hash), fixed at handshake
// completion and unchanged across reroutes.
func ComputeTunnelID(ciphertext, responderSignature []byte, initialRouteHash [32]byte) [32]byte {
	h, _ := blake2s.New256(nil)
	h.Write(ciphertext)
	h.Write(responderSignature)
	h.Write(initialRouteHash[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// tupleCommitment computes blake2s_32(tuple_key || tunnel_id || route_hash
// || u64_le(route_epoch)) — the only session state exposed to the anchor DAG.
func tupleCommitment(tupleKey []byte, tunnelID, routeHash [32]byte, routeEpoch uint64) [32]byte {
	h, _ := blake2s.New256(nil)
	h.Write(tupleKey)
	h.Write(tunnelID[:])
	h.Write(routeHash[:])
	var epochBytes [8]byte
	binary.LittleEndian.PutUint64(epochBytes[:], routeEpoch)
	h.Write(epochBytes[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Stats counts frames processed over a tunnel's lifetime.
type Stats struct {
	Sealed         uint64
	Opened         uint64
	ReplayRejected uint64
	AuthFailures   uint64
	Reroutes       uint64
	Rekeys         uint64
}

// Tunnel is one directional-AEAD session bound to a route. Seal and Open
// are safe for single-producer/single-consumer use; Apply requires
// exclusive access (the caller must not Seal/Open concurrently with Apply).
type Tunnel struct {
	mu sync.Mutex

	id          [32]byte
	asResponder bool
	suite       constants.CipherSuite
	state       State
	stats       Stats

	plan       RoutePlan
	routeHash  [32]byte
	routeEpoch uint64
	sessionID  [32]byte

	// masterSecret is the raw KEM shared secret, retained only so Rekey and
	// Reroute can re-derive nonces for a new route epoch. It never leaves
	// this struct.
	masterSecret []byte

	sendKey, recvKey             []byte
	sendNonceBase, recvNonceBase []byte
	tupleKey                     []byte

	sendSeq     uint64
	recvWindow  *ReplayWindow
	sendCipher  *aead.AEAD
	recvCipher  *aead.AEAD
}

// Config constructs a new Tunnel from a completed handshake.
type Config struct {
	TunnelID     [32]byte
	Plan         RoutePlan
	Material     *handshake.SessionMaterial
	MasterSecret []byte
	AsResponder  bool
	Suite        constants.CipherSuite
	ReplayWindow int // 0 uses constants.DefaultReplayWindow
}

// New constructs an Active tunnel from handshake output.
func New(cfg Config) (*Tunnel, error) {
	sendCipher, err := aead.New(cfg.Suite, cfg.Material.SendKey)
	if err != nil {
		return nil, err
	}
	recvCipher, err := aead.New(cfg.Suite, cfg.Material.RecvKey)
	if err != nil {
		return nil, err
	}
	window, err := NewReplayWindow(cfg.ReplayWindow)
	if err != nil {
		return nil, err
	}
	return &Tunnel{
		id:            cfg.TunnelID,
		asResponder:   cfg.AsResponder,
		suite:         cfg.Suite,
		state:         StateActive,
		plan:          cfg.Plan,
		routeHash:     cfg.Plan.RouteHash(),
		routeEpoch:    cfg.Plan.Epoch,
		sessionID:     cfg.Material.SessionID,
		masterSecret:  cfg.MasterSecret,
		sendKey:       cfg.Material.SendKey,
		recvKey:       cfg.Material.RecvKey,
		sendNonceBase: cfg.Material.SendNonce,
		recvNonceBase: cfg.Material.RecvNonce,
		tupleKey:      cfg.Material.TupleKey,
		recvWindow:    window,
		sendCipher:    sendCipher,
		recvCipher:    recvCipher,
	}, nil
}

// State reports the tunnel's current lifecycle stage.
func (t *Tunnel) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stats returns a snapshot of this tunnel's lifetime counters.
func (t *Tunnel) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func associatedData(tunnelID, routeHash [32]byte, routeEpoch, seq uint64, topic []byte) []byte {
	ad := make([]byte, 0, 32+32+8+8+len(topic))
	ad = append(ad, tunnelID[:]...)
	ad = append(ad, routeHash[:]...)
	var epochBytes, seqBytes [8]byte
	binary.LittleEndian.PutUint64(epochBytes[:], routeEpoch)
	binary.LittleEndian.PutUint64(seqBytes[:], seq)
	ad = append(ad, epochBytes[:]...)
	ad = append(ad, seqBytes[:]...)
	ad = append(ad, topic...)
	return ad
}

// Seal encrypts plaintext under the next send sequence and binds it to the
// tunnel's current route.
func (t *Tunnel) Seal(plaintext, topic []byte) (*SealedFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return nil, qerrors.ErrInvalidState
	}
	if t.sendSeq == ^uint64(0) {
		return nil, qerrors.ErrSequenceExhausted
	}
	seq := t.sendSeq
	t.sendSeq++

	nonce := aead.XORNonce(t.sendNonceBase, seq)
	ad := associatedData(t.id, t.routeHash, t.routeEpoch, seq, topic)
	ciphertext, err := t.sendCipher.Seal(nonce, plaintext, ad)
	if err != nil {
		return nil, err
	}
	t.stats.Sealed++

	return &SealedFrame{
		TunnelID:   t.id,
		RouteHash:  t.routeHash,
		RouteEpoch: t.routeEpoch,
		Sequence:   seq,
		Topic:      topic,
		Ciphertext: ciphertext,
	}, nil
}

// Open authenticates and decrypts a received frame, rejecting route
// mismatches, tunnel mismatches, and replays before ever invoking the
// AEAD. An authentication failure closes the tunnel permanently.
func (t *Tunnel) Open(frame *SealedFrame) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return nil, qerrors.ErrInvalidState
	}
	if frame.TunnelID != t.id {
		return nil, qerrors.ErrWrongTunnel
	}
	if frame.RouteHash != t.routeHash || frame.RouteEpoch != t.routeEpoch {
		return nil, qerrors.ErrWrongRoute
	}
	if err := t.recvWindow.Check(frame.Sequence); err != nil {
		t.stats.ReplayRejected++
		return nil, err
	}

	nonce := aead.XORNonce(t.recvNonceBase, frame.Sequence)
	ad := associatedData(frame.TunnelID, frame.RouteHash, frame.RouteEpoch, frame.Sequence, frame.Topic)
	plaintext, err := t.recvCipher.Open(nonce, frame.Ciphertext, ad)
	if err != nil {
		t.stats.AuthFailures++
		t.state = StateClosed
		t.zeroizeSecrets()
		return nil, qerrors.ErrAuthFailure
	}
	t.stats.Opened++
	return plaintext, nil
}

// Close transitions the tunnel to Closed and zeroizes all retained key
// material. It is idempotent — closing an already-closed tunnel is a no-op.
func (t *Tunnel) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateClosed {
		return
	}
	t.state = StateClosed
	t.zeroizeSecrets()
}

// zeroizeSecrets scrubs every secret-bearing byte slice this tunnel holds.
// Caller must hold t.mu.
func (t *Tunnel) zeroizeSecrets() {
	engine.ZeroizeMultiple(t.masterSecret, t.sendKey, t.recvKey, t.sendNonceBase, t.recvNonceBase, t.tupleKey)
}

// Apply executes a routing controller's decision. Rekey and Reroute both
// bump route_epoch, re-derive the send and receive nonce bases (never the
// AEAD keys), and reset both sequence counters to zero. Reroute additionally
// swaps the active RoutePlan and returns a RerouteRecord describing the
// anchor edge the caller should emit.
func (t *Tunnel) Apply(decision RouteDecision) (*RerouteRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return nil, qerrors.ErrInvalidState
	}

	switch decision.Action {
	case ActionMaintain:
		return nil, nil

	case ActionRekey:
		t.routeEpoch++
		if err := t.rederiveNonces(); err != nil {
			return nil, err
		}
		t.resetCounters()
		t.stats.Rekeys++
		return nil, nil

	case ActionReroute:
		if decision.NewRoutePlan == nil {
			return nil, qerrors.ErrInvalidState
		}
		t.state = StateRerouting
		t.plan = *decision.NewRoutePlan
		t.routeEpoch++
		t.routeHash = t.plan.RouteHash()
		if err := t.rederiveNonces(); err != nil {
			t.state = StateActive
			return nil, err
		}
		t.resetCounters()
		t.stats.Reroutes++
		t.state = StateActive

		commitment := tupleCommitment(t.tupleKey, t.id, t.routeHash, t.routeEpoch)
		return &RerouteRecord{
			TunnelID:        t.id,
			NewRouteHash:    t.routeHash,
			NewRouteEpoch:   t.routeEpoch,
			Rationale:       decision.Rationale,
			TupleCommitment: commitment,
		}, nil

	default:
		return nil, qerrors.ErrInvalidState
	}
}

func (t *Tunnel) rederiveNonces() error {
	sendNonce, recvNonce, err := handshake.RederiveNonces(t.masterSecret, t.sessionID, t.routeHash, t.routeEpoch, t.asResponder)
	if err != nil {
		return err
	}
	engine.ZeroizeMultiple(t.sendNonceBase, t.recvNonceBase)
	t.sendNonceBase, t.recvNonceBase = sendNonce, recvNonce
	return nil
}

func (t *Tunnel) resetCounters() {
	t.sendSeq = 0
	window, err := NewReplayWindow(int(t.recvWindow.size))
	if err == nil {
		t.recvWindow = window
	}
}
