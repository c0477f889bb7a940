package handshake

import (
	"golang.org/x/crypto/blake2s"

	"github.com/pqcnet/tunnelcore/internal/constants"
	qerrors "github.com/pqcnet/tunnelcore/internal/errors"
	"github.com/pqcnet/tunnelcore/pkg/engine"
	"github.com/pqcnet/tunnelcore/pkg/keymanager"
)

// WireInit is the initiator's opening message. It is not bound to the
// bit-exact byte table that Envelope uses — see the package doc.
type WireInit struct {
	KEMScheme       engine.KEMScheme
	KEMKeyID        keymanager.KeyId
	Ciphertext      []byte
	InitiatorNonce  [32]byte
	RouteHash       [32]byte
	ApplicationData []byte

	DSAScheme       engine.DSAScheme
	SigningKeyID    keymanager.KeyId
	SignerPublicKey []byte
	Signature       []byte
}

func blake2sDigest(parts ...[]byte) [32]byte {
	h, _ := blake2s.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// InitHandshake runs the initiator side of the handshake: encapsulate
// against the peer's KEM public key, then sign a transcript binding the
// ciphertext, shared secret, and application data. The returned shared
// secret is kept only by the caller — it is never placed on the wire.
func InitHandshake(
	peerKEMPublic []byte,
	kemScheme engine.KEMScheme,
	kemKeyID keymanager.KeyId,
	signingRecord *keymanager.DSAKeyRecord,
	signingEngine engine.DSA,
	routeHash [32]byte,
	applicationData []byte,
) (*WireInit, []byte, error) {
	kem, err := engine.NewKEM(kemScheme)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("init", err)
	}
	ciphertext, sharedSecret, err := kem.Encapsulate(peerKEMPublic)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("init", err)
	}

	initiatorNonce := blake2sDigest([]byte(constants.DomainInitiatorNonce), routeHash[:], ciphertext, applicationData)
	transcript := blake2sDigest([]byte(constants.DomainSignatureTranscript), signingRecord.PublicKey, ciphertext, sharedSecret, applicationData)

	signature, err := signingEngine.Sign(signingRecord.SecretKey, transcript[:])
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("init", err)
	}

	init := &WireInit{
		KEMScheme:       kemScheme,
		KEMKeyID:        kemKeyID,
		Ciphertext:      ciphertext,
		InitiatorNonce:  initiatorNonce,
		RouteHash:       routeHash,
		ApplicationData: applicationData,
		DSAScheme:       signingRecord.Scheme,
		SigningKeyID:    signingRecord.ID,
		SignerPublicKey: signingRecord.PublicKey,
		Signature:       signature,
	}
	return init, sharedSecret, nil
}

// KEMResolver resolves a KeyId to the secret key and scheme needed to
// decapsulate, and to the public key that travels back on the wire in the
// response envelope — normally backed by a keymanager.Manager.
type KEMResolver interface {
	ResolveKEMSecret(id keymanager.KeyId) ([]byte, engine.KEMScheme, error)
	ResolveKEMPublicKey(id keymanager.KeyId) ([]byte, error)
}

// RespondHandshake runs the responder side: decapsulate, verify the
// initiator's transcript signature BEFORE deriving any session state, then
// produce a signed response envelope and the responder's view of the
// session material. SharedSecret is empty on the returned Envelope — it
// never leaves this process.
func RespondHandshake(
	init *WireInit,
	resolver KEMResolver,
	signingRecord *keymanager.DSAKeyRecord,
	signingEngine engine.DSA,
	routeEpoch uint64,
) (*Envelope, *SessionMaterial, error) {
	secretKey, scheme, err := resolver.ResolveKEMSecret(init.KEMKeyID)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", err)
	}
	if scheme != init.KEMScheme {
		return nil, nil, qerrors.NewHandshakeError("respond", qerrors.ErrUnknownScheme)
	}
	kem, err := engine.NewKEM(scheme)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", err)
	}
	sharedSecret, err := kem.Decapsulate(secretKey, init.Ciphertext)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", qerrors.ErrInvalidCiphertext)
	}

	initTranscript := blake2sDigest([]byte(constants.DomainSignatureTranscript), init.SignerPublicKey, init.Ciphertext, sharedSecret, init.ApplicationData)
	dsaForInit, err := engine.NewDSA(init.DSAScheme)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", err)
	}
	if !dsaForInit.Verify(init.SignerPublicKey, initTranscript[:], init.Signature) {
		return nil, nil, qerrors.NewHandshakeError("respond", qerrors.ErrBadInitiatorSignature)
	}

	sessionID := blake2sDigest(init.Ciphertext, init.Signature, init.RouteHash[:])
	responderNonce := blake2sDigest([]byte(constants.DomainResponderNonce), sessionID[:], init.RouteHash[:])

	respTranscript := blake2sDigest([]byte(constants.DomainSignatureTranscript), signingRecord.PublicKey, sessionID[:], responderNonce[:], sharedSecret)
	signature, err := signingEngine.Sign(signingRecord.SecretKey, respTranscript[:])
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", err)
	}

	material, err := deriveSessionMaterial(sharedSecret, sessionID, init.RouteHash, routeEpoch, true)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", err)
	}

	kemPublicKey, err := resolver.ResolveKEMPublicKey(init.KEMKeyID)
	if err != nil {
		return nil, nil, qerrors.NewHandshakeError("respond", err)
	}

	env := &Envelope{
		KEMScheme:    scheme,
		DSAScheme:    signingRecord.Scheme,
		Threshold:    signingRecord.Threshold,
		KEMKeyID:     init.KEMKeyID,
		SigningKeyID: signingRecord.ID,
		Ciphertext:   init.Ciphertext,
		SharedSecret: nil,
		Signature:    signature,
		KEMPublicKey: kemPublicKey,
		DSAPublicKey: signingRecord.PublicKey,
	}
	// A resolver that can also project the key's public record (as
	// keymanager.Manager does) supplies its creation and expiry times;
	// otherwise both stay zero.
	if pr, ok := resolver.(interface {
		PublicKeyRecord(keymanager.KeyId) (*keymanager.PublicKeyRecord, error)
	}); ok {
		if rec, err := pr.PublicKeyRecord(init.KEMKeyID); err == nil {
			env.KEMCreatedAt = rec.CreatedAt.UnixNano()
			env.KEMExpiresAt = rec.ExpiresAt.UnixNano()
		}
	}
	return env, material, nil
}

// CompleteInitiator verifies the responder's signature and derives the
// initiator's view of the session material. sharedSecret is the value the
// initiator produced locally in InitHandshake — it was never on the wire.
func CompleteInitiator(init *WireInit, sharedSecret []byte, resp *Envelope, routeEpoch uint64) (*SessionMaterial, error) {
	sessionID := blake2sDigest(init.Ciphertext, init.Signature, init.RouteHash[:])
	responderNonce := blake2sDigest([]byte(constants.DomainResponderNonce), sessionID[:], init.RouteHash[:])
	respTranscript := blake2sDigest([]byte(constants.DomainSignatureTranscript), resp.DSAPublicKey, sessionID[:], responderNonce[:], sharedSecret)

	dsa, err := engine.NewDSA(resp.DSAScheme)
	if err != nil {
		return nil, qerrors.NewHandshakeError("complete", err)
	}
	if !dsa.Verify(resp.DSAPublicKey, respTranscript[:], resp.Signature) {
		return nil, qerrors.NewHandshakeError("complete", qerrors.ErrBadResponderSignature)
	}

	return deriveSessionMaterial(sharedSecret, sessionID, init.RouteHash, routeEpoch, false)
}
