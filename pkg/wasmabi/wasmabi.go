// Package wasmabi implements the host embedding ABI: a small set of
// exported entry points (allocate/free a linear-memory buffer, run one
// handshake responder step) that let a non-Go host runtime — typically a
// WebAssembly host compiling this package with GOOS=wasip1 — drive the
// handshake engine without linking against Go at all. The portable
// machinery here runs under any GOOS; only the thin wasmexport/wasmimport
// shims in memory_wasip1.go and entropy_wasip1.go are build-tagged.
package wasmabi

import (
	"sync"

	"github.com/pqcnet/tunnelcore/pkg/engine"
	"github.com/pqcnet/tunnelcore/pkg/handshake"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

// Status codes returned by Host.Handshake and the pqc_handshake export,
// mirroring pqc_handshake's contract: non-negative is bytes written,
// negative is an error.
const (
	StatusInvalidInput     int32 = -1
	StatusResponseTooSmall int32 = -2
	StatusInternalError    int32 = -3
)

// Responder answers pqc_handshake requests using a key manager's active
// signing identity, resolving the initiator's requested KEM key through
// the same manager.
type Responder struct {
	Resolver      handshake.KEMResolver
	SigningRecord *keymanager.DSAKeyRecord
	SigningEngine engine.DSA
	RouteEpoch    uint64
}

// NewResponder builds a Responder backed by mgr's active signing identity,
// rotating it first if it has aged out.
func NewResponder(mgr *keymanager.Manager, routeEpoch uint64) (*Responder, error) {
	signRecord, signEngine, err := mgr.ActiveSigning()
	if err != nil {
		return nil, err
	}
	return &Responder{
		Resolver:      mgr,
		SigningRecord: signRecord,
		SigningEngine: signEngine,
		RouteEpoch:    routeEpoch,
	}, nil
}

// Handle decodes a WireInit from request, runs the responder side of the
// handshake, and returns the wire-encoded Envelope. It never returns the
// session's shared secret — Envelope.SharedSecret is always empty, per the
// handshake package's own boundary rule.
func (r *Responder) Handle(request []byte) ([]byte, error) {
	init, err := handshake.DecodeWireInit(request)
	if err != nil {
		return nil, err
	}
	env, _, err := handshake.RespondHandshake(init, r.Resolver, r.SigningRecord, r.SigningEngine, r.RouteEpoch)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// handshakeBufferRelease returns an Envelope.Encode buffer to the
// handshake package's pool once Host has copied it across the ABI
// boundary.
func handshakeBufferRelease(buf []byte) { handshake.ReleaseEnvelopeBuffer(buf) }

var (
	defaultMu        sync.Mutex
	defaultResponder *Responder
)

// SetDefaultResponder installs the Responder the memory_wasip1.go
// wasmexport entry points dispatch to. The embedding host's startup code
// must call this — typically from a package main init() — before any
// pqc_handshake call arrives; pqcHandshakeExport returns StatusInvalidInput
// if none has been set yet.
func SetDefaultResponder(r *Responder) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultResponder = r
}

func currentResponder() *Responder {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultResponder
}
