// Package tunnel implements the runtime that seals and opens frames over
// an established session: directional AEAD, route-bound nonce derivation,
// replay rejection, and the Maintain/Rekey/Reroute routing controller.
package tunnel

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2s"
)

// QoS classifies a route's traffic-handling intent. The routing controller
// that picks between route plans is out of scope here — RoutePlan is an
// input type the embedder's controller produces.
type QoS byte

const (
	QoSGossip QoS = iota
	QoSLowLatency
	QoSControl
)

func (q QoS) String() string {
	switch q {
	case QoSGossip:
		return "Gossip"
	case QoSLowLatency:
		return "LowLatency"
	case QoSControl:
		return "Control"
	default:
		return "Unknown"
	}
}

// RoutePlan names the path a tunnel's frames currently travel and the
// epoch that path was adopted at.
type RoutePlan struct {
	Topic string
	Epoch uint64
	Hops  []string
	Class QoS
}

// RouteHash computes blake2s_32(topic || epoch || hops...), the value both
// the AEAD associated data and the session-material salt bind to.
func (p RoutePlan) RouteHash() [32]byte {
	h, _ := blake2s.New256(nil)
	h.Write([]byte(p.Topic))
	var epochBytes [8]byte
	binary.LittleEndian.PutUint64(epochBytes[:], p.Epoch)
	h.Write(epochBytes[:])
	for _, hop := range p.Hops {
		h.Write([]byte(hop))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
