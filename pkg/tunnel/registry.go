package tunnel

import (
	"encoding/hex"
	"sync"

	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

// Registry tracks the live tunnels a process is a party to, keyed by
// tunnel_id, and evicts closed ones on request instead of growing forever.
type Registry struct {
	mu      sync.RWMutex
	tunnels map[string]*Tunnel
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tunnels: make(map[string]*Tunnel)}
}

func keyFor(id [32]byte) string { return hex.EncodeToString(id[:]) }

// Add registers t under its tunnel id, replacing any prior entry with the
// same id.
func (r *Registry) Add(t *Tunnel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tunnels[keyFor(t.id)] = t
}

// Get looks up a tunnel by id.
func (r *Registry) Get(id [32]byte) (*Tunnel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tunnels[keyFor(id)]
	if !ok {
		return nil, qerrors.ErrInvalidState
	}
	return t, nil
}

// Remove drops a tunnel from the registry, e.g. after it closes.
func (r *Registry) Remove(id [32]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tunnels, keyFor(id))
}

// PruneClosed removes every tunnel currently in StateClosed and reports
// how many were evicted.
func (r *Registry) PruneClosed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pruned := 0
	for key, t := range r.tunnels {
		if t.State() == StateClosed {
			delete(r.tunnels, key)
			pruned++
		}
	}
	return pruned
}

// Len reports the number of tunnels currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tunnels)
}
