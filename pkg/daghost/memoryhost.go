// Package daghost provides concrete implementations of the anchor
// package's HostStore persistence contract: an in-memory store for tests
// and embedders who don't need durability, and a bbolt-backed store for
// everyone else.
package daghost

import (
	"sync"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

// MemoryHost is an in-memory anchor.HostStore, useful for tests and for
// embedders with no durability requirement.
type MemoryHost struct {
	mu         sync.RWMutex
	payloads   map[string][]byte
	signatures map[string][]byte
	signers    map[string]keymanager.KeyId
}

// NewMemoryHost constructs an empty MemoryHost.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		payloads:   make(map[string][]byte),
		signatures: make(map[string][]byte),
		signers:    make(map[string]keymanager.KeyId),
	}
}

// PutEdgePayload registers the payload an edge is expected to anchor,
// before any verification pass.
func (m *MemoryHost) PutEdgePayload(edgeID string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[edgeID] = payload
}

// GetEdgePayload implements anchor.HostStore.
func (m *MemoryHost) GetEdgePayload(edgeID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.payloads[edgeID]
	if !ok {
		return nil, qerrors.ErrUnknownKey
	}
	return payload, nil
}

// AttachPQCSignature implements anchor.HostStore.
func (m *MemoryHost) AttachPQCSignature(edgeID string, signerKeyID keymanager.KeyId, signature []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[edgeID] = signature
	m.signers[edgeID] = signerKeyID
	return nil
}

// Signature returns the signature attached to edgeID, if any.
func (m *MemoryHost) Signature(edgeID string) ([]byte, keymanager.KeyId, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.signatures[edgeID]
	return sig, m.signers[edgeID], ok
}
