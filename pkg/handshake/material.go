package handshake

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
)

// SessionMaterial is the symmetric state a tunnel seals and opens frames
// with. SendKey/RecvKey never change for the tunnel's lifetime; SendNonce/
// RecvNonce are re-derived on every Rekey or Reroute.
type SessionMaterial struct {
	SendKey   []byte // 32 bytes
	SendNonce []byte // 12 bytes
	RecvKey   []byte // 32 bytes
	RecvNonce []byte // 12 bytes
	TupleKey  []byte // 32 bytes
	SessionID [32]byte
}

// deriveSessionMaterial expands sharedSecret into the five session-material
// fields via HKDF-SHA256, salted with sessionID || routeHash || u64_le(epoch).
// asResponder swaps which derived key/nonce pair becomes Send vs Recv.
func deriveSessionMaterial(sharedSecret []byte, sessionID, routeHash [32]byte, routeEpoch uint64, asResponder bool) (*SessionMaterial, error) {
	salt := make([]byte, 0, 32+32+8)
	salt = append(salt, sessionID[:]...)
	salt = append(salt, routeHash[:]...)
	var epochBytes [8]byte
	binary.LittleEndian.PutUint64(epochBytes[:], routeEpoch)
	salt = append(salt, epochBytes[:]...)

	initToRespKey, err := hkdfExpand(sharedSecret, salt, constants.InfoInitToRespKey, 32)
	if err != nil {
		return nil, err
	}
	initToRespNonce, err := hkdfExpand(sharedSecret, salt, constants.InfoInitToRespNonce, 12)
	if err != nil {
		return nil, err
	}
	respToInitKey, err := hkdfExpand(sharedSecret, salt, constants.InfoRespToInitKey, 32)
	if err != nil {
		return nil, err
	}
	respToInitNonce, err := hkdfExpand(sharedSecret, salt, constants.InfoRespToInitNonce, 12)
	if err != nil {
		return nil, err
	}
	tupleKey, err := hkdfExpand(sharedSecret, salt, constants.InfoTupleKey, 32)
	if err != nil {
		return nil, err
	}

	m := &SessionMaterial{TupleKey: tupleKey, SessionID: sessionID}
	if asResponder {
		m.SendKey, m.SendNonce = respToInitKey, respToInitNonce
		m.RecvKey, m.RecvNonce = initToRespKey, initToRespNonce
	} else {
		m.SendKey, m.SendNonce = initToRespKey, initToRespNonce
		m.RecvKey, m.RecvNonce = respToInitKey, respToInitNonce
	}
	return m, nil
}

func hkdfExpand(secret, salt []byte, info string, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, qerrors.NewCryptoError("handshake.hkdfExpand", err)
	}
	return out, nil
}

// RederiveNonces recomputes only SendNonce/RecvNonce for a new routeEpoch,
// leaving SendKey/RecvKey untouched — this is what Rekey and Reroute do to
// an established tunnel instead of running the handshake again.
func RederiveNonces(sharedSecret []byte, sessionID, routeHash [32]byte, routeEpoch uint64, asResponder bool) (sendNonce, recvNonce []byte, err error) {
	m, err := deriveSessionMaterial(sharedSecret, sessionID, routeHash, routeEpoch, asResponder)
	if err != nil {
		return nil, nil, err
	}
	return m.SendNonce, m.RecvNonce, nil
}
